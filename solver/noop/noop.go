// Package noop provides a test-only solver.Backend that always reports
// Unsolvable, letting the pipeline and httpapi layers exercise the
// Unsolvable response path (spec.md §7) without depending on any real
// resolution behavior.
package noop

import (
	"context"

	"github.com/rattler-go/repodata-solver/solver"
)

// Backend always reports Unsolvable.
type Backend struct{}

// New returns a noop Backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "noop" }

func (b *Backend) Solve(ctx context.Context, req solver.Request) (solver.Plan, error) {
	if err := ctx.Err(); err != nil {
		return solver.Plan{}, &solver.Error{Kind: solver.Cancelled, Message: err.Error()}
	}

	conflicts := make([]solver.Conflict, 0, len(req.Specs))
	for _, s := range req.Specs {
		conflicts = append(conflicts, solver.Conflict{
			Spec:   s.Raw,
			Reason: "noop backend never produces a solution",
		})
	}
	return solver.Plan{}, &solver.Error{
		Kind:      solver.Unsolvable,
		Message:   "noop backend: no solution",
		Conflicts: conflicts,
	}
}
