// Package portable implements the portable solver backend SPEC_FULL.md §6
// describes: a depth-bounded backtracking search with a node-visit budget,
// used as the default solver.Backend so the service is runnable without an
// external resolution engine. It deliberately does not attempt to be a
// complete or optimal dependency solver — spec.md §1 treats real
// resolution as an external collaborator — only a correct-enough one that
// terminates.
package portable

import (
	"context"
	"fmt"
	"sort"

	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/query"
	"github.com/rattler-go/repodata-solver/solver"
)

// DefaultNodeBudget bounds how many search nodes Solve will visit before
// giving up, so a pathological input degrades to a bounded Unsolvable
// response instead of a runaway search (SPEC_FULL.md §6).
const DefaultNodeBudget = 200_000

// Backend is the portable depth-bounded backtracking resolver.
type Backend struct {
	NodeBudget int
}

// New returns a Backend with the given node-visit budget. budget <= 0
// uses DefaultNodeBudget.
func New(budget int) *Backend {
	if budget <= 0 {
		budget = DefaultNodeBudget
	}
	return &Backend{NodeBudget: budget}
}

func (b *Backend) Name() string { return "portable" }

func (b *Backend) Solve(ctx context.Context, req solver.Request) (solver.Plan, error) {
	byName := groupByName(req.Candidates)

	virtual := make(map[string]query.VirtualPackage, len(req.VirtualPkgs))
	for _, vp := range req.VirtualPkgs {
		virtual[vp.Name] = vp
	}

	s := &search{
		byName:  byName,
		virtual: virtual,
		budget:  b.NodeBudget,
	}

	assigned, serr := s.resolve(ctx, req.Specs, assignment{byName: map[string]index.Record{}})
	if serr != nil {
		return solver.Plan{}, serr
	}

	records := make([]index.Record, 0, len(assigned.order))
	for _, name := range assigned.order {
		records = append(records, assigned.byName[name])
	}
	return solver.Plan{Records: records}, nil
}

// groupByName buckets candidates by package name, each bucket sorted
// newest-first (highest version, then highest build number), matching
// SPEC_FULL.md §6's "newest-first candidate order".
func groupByName(records []index.Record) map[string][]index.Record {
	byName := make(map[string][]index.Record)
	for _, r := range records {
		byName[r.Name] = append(byName[r.Name], r)
	}
	for name, rs := range byName {
		sort.SliceStable(rs, func(i, j int) bool {
			if cmp := compareVersions(rs[i].Version, rs[j].Version); cmp != 0 {
				return cmp > 0
			}
			return rs[i].BuildNumber > rs[j].BuildNumber
		})
		byName[name] = rs
	}
	return byName
}

type search struct {
	byName  map[string][]index.Record
	virtual map[string]query.VirtualPackage
	budget  int
	nodes   int
}

// assignment records which record was chosen for each package name, and
// the order in which choices were made, so the resulting plan preserves
// candidate/input order for TopoSort's stable tie-break (spec.md §4.5)
// instead of the arbitrary order a map range would produce.
type assignment struct {
	byName map[string]index.Record
	order  []string
}

func (a assignment) with(r index.Record) assignment {
	next := assignment{
		byName: make(map[string]index.Record, len(a.byName)+1),
		order:  make([]string, len(a.order), len(a.order)+1),
	}
	for k, v := range a.byName {
		next.byName[k] = v
	}
	copy(next.order, a.order)
	next.byName[r.Name] = r
	next.order = append(next.order, r.Name)
	return next
}

// resolve performs the depth-bounded backtracking search. pending is the
// queue of match specs still needing a satisfying assignment; assigned
// records the choices made so far, in the order they were made.
func (s *search) resolve(ctx context.Context, pending []query.MatchSpec, assigned assignment) (assignment, *solver.Error) {
	if len(pending) == 0 {
		return assigned, nil
	}

	if err := ctx.Err(); err != nil {
		return assignment{}, &solver.Error{Kind: solver.Cancelled, Message: err.Error()}
	}

	s.nodes++
	if s.nodes > s.budget {
		return assignment{}, &solver.Error{
			Kind:    solver.Unsolvable,
			Message: fmt.Sprintf("search exceeded node budget of %d without finding a solution", s.budget),
		}
	}

	spec, rest := pending[0], pending[1:]

	if isVirtualName(spec.Name) {
		vp, ok := s.virtual[spec.Name]
		if !ok || !satisfiesSpec(vp.Version, vp.Build, spec) {
			return assignment{}, &solver.Error{
				Kind:    solver.Unsolvable,
				Message: fmt.Sprintf("no virtual package satisfies %q", spec.Raw),
				Conflicts: []solver.Conflict{{
					Spec:   spec.Raw,
					Reason: "required virtual package is absent or does not satisfy the constraint",
				}},
			}
		}
		return s.resolve(ctx, rest, assigned)
	}

	if existing, ok := assigned.byName[spec.Name]; ok {
		if satisfiesSpec(existing.Version, existing.Build, spec) {
			return s.resolve(ctx, rest, assigned)
		}
		return assignment{}, &solver.Error{
			Kind:    solver.Unsolvable,
			Message: fmt.Sprintf("%q conflicts with already-selected %s %s", spec.Raw, existing.Name, existing.Version),
			Conflicts: []solver.Conflict{{
				Spec:   spec.Raw,
				Reason: fmt.Sprintf("already resolved to %s %s build %s by an earlier constraint", existing.Name, existing.Version, existing.Build),
			}},
		}
	}

	candidates := s.byName[spec.Name]
	var lastErr *solver.Error
	for _, candidate := range candidates {
		if !satisfiesSpec(candidate.Version, candidate.Build, spec) {
			continue
		}

		nextAssigned := assigned.with(candidate)

		nextPending := make([]query.MatchSpec, 0, len(rest)+len(candidate.Depends))
		nextPending = append(nextPending, rest...)
		for _, dep := range candidate.Depends {
			depSpec, err := query.ParseMatchSpec(dep)
			if err != nil {
				return assignment{}, &solver.Error{
					Kind:    solver.ParseMatchSpec,
					Message: fmt.Sprintf("candidate %s %s has an unparseable dependency %q: %v", candidate.Name, candidate.Version, dep, err),
				}
			}
			nextPending = append(nextPending, depSpec)
		}

		result, serr := s.resolve(ctx, nextPending, nextAssigned)
		if serr == nil {
			return result, nil
		}
		if serr.Kind == solver.Cancelled || serr.Kind == solver.ParseMatchSpec {
			return assignment{}, serr
		}
		lastErr = serr
	}

	if lastErr != nil {
		return assignment{}, lastErr
	}
	return assignment{}, &solver.Error{
		Kind:    solver.Unsolvable,
		Message: fmt.Sprintf("no candidate for %q satisfies the requested constraint", spec.Raw),
		Conflicts: []solver.Conflict{{
			Spec:   spec.Raw,
			Reason: "no known package with this name satisfies the constraint",
		}},
	}
}

func isVirtualName(name string) bool {
	return len(name) >= 2 && name[0] == '_' && name[1] == '_'
}
