// Package solver defines the pluggable resolution boundary spec.md §1 and
// §6 describe: the actual dependency-resolution algorithm is treated as an
// external collaborator, accessed only through Backend. This package owns
// the request/error shapes and the topological-sort postprocessing step
// every backend's output passes through; algorithm implementations live in
// subpackages (solver/portable, solver/noop).
package solver

import (
	"context"

	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/query"
)

// Request is everything a Backend needs to resolve one environment:
// the user's match specs, the virtual packages describing the target
// system, and the combined candidate pool gathered from every fetched
// index in channel-priority order.
type Request struct {
	Specs      []query.MatchSpec
	VirtualPkgs []query.VirtualPackage
	Candidates []index.Record
}

// Plan is a Backend's resolution result: the set of records it selected,
// in no particular order. Ordering into an installable sequence is
// TopoSort's job, not the Backend's.
type Plan struct {
	Records []index.Record
}

// Backend resolves a Request into a Plan or reports why no solution
// exists. Implementations must be safe to invoke concurrently — the
// pipeline dispatches Solve calls from the shared blocking worker pool.
type Backend interface {
	Name() string
	Solve(ctx context.Context, req Request) (Plan, error)
}

// ErrorKind classifies why resolution failed, mirroring spec.md §7's
// error taxonomy for the Solve stage.
type ErrorKind int

const (
	// Unsolvable means the backend explored the search space and found
	// no assignment satisfying every spec and dependency edge.
	Unsolvable ErrorKind = iota
	// ParseMatchSpec means a match spec string encountered inside the
	// solver itself — typically a candidate's own Depends entry — failed
	// to parse.
	ParseMatchSpec
	// UnsupportedOperation means the backend cannot express a requested
	// constraint (e.g. a version operator it does not implement).
	UnsupportedOperation
	// Cancelled means ctx ended the search before it reached a verdict.
	Cancelled
)

func (k ErrorKind) String() string {
	switch k {
	case Unsolvable:
		return "unsolvable"
	case ParseMatchSpec:
		return "parse_match_spec"
	case UnsupportedOperation:
		return "unsupported_operation"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Conflict is one reason a candidate set failed to satisfy a spec or
// dependency edge, surfaced back to the caller as structured detail
// (spec.md §7 "Unsolvable responses SHOULD include enough structure for a
// client to understand which specs conflicted").
type Conflict struct {
	Spec   string
	Reason string
}

// Error is the error type every Backend must return on failure.
type Error struct {
	Kind      ErrorKind
	Message   string
	Conflicts []Conflict
}

func (e *Error) Error() string {
	return e.Message
}
