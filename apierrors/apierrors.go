// Package apierrors maps every error the pipeline can produce onto the
// user-visible taxonomy spec.md §7 defines, and renders that taxonomy as
// an HTTP status code plus a JSON body.
package apierrors

import (
	"errors"
	"fmt"

	"github.com/rattler-go/repodata-solver/index"
	"github.com/rattler-go/repodata-solver/query"
	"github.com/rattler-go/repodata-solver/solver"
	"github.com/rattler-go/repodata-solver/workerpool"
)

// Kind is one of the user-visible error kinds from spec.md §7's table.
type Kind string

const (
	Internal           Kind = "internal"
	Validation         Kind = "validation"
	Fetch              Kind = "fetch"
	SolverUnsolvable   Kind = "solver_unsolvable"
	SolverParseMatchSpec Kind = "solver_parse_match_spec"
	SolverCancelled    Kind = "solver_cancelled"
)

// statusFor is the Kind -> HTTP status mapping spec.md §7 names.
var statusFor = map[Kind]int{
	Internal:             500,
	Validation:           400,
	Fetch:                400,
	SolverUnsolvable:      409,
	SolverParseMatchSpec: 400,
	SolverCancelled:       400,
}

// Error is the single error shape every pipeline stage's failure is
// normalized into before it reaches the HTTP layer.
type Error struct {
	Kind      Kind             `json:"error_kind"`
	Status    int              `json:"-"`
	Message   string           `json:"message"`
	URL       string           `json:"url,omitempty"`
	Conflicts []solver.Conflict `json:"additional_info,omitempty"`

	cause error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Status: statusFor[kind], Message: message, cause: cause}
}

// Map classifies err into the spec.md §7 taxonomy. Propagation policy
// (§7): each pipeline stage either succeeds or returns its error untouched
// to the top-level handler; Map is that handler's single point of
// translation, and it never recovers or retries — it only classifies.
func Map(err error) *Error {
	if err == nil {
		return nil
	}

	var already *Error
	if errors.As(err, &already) {
		return already
	}

	var valErrs query.ValidationErrors
	if errors.As(err, &valErrs) {
		return newError(Validation, valErrs.Error(), err)
	}

	var fetchErr *index.Error
	if errors.As(err, &fetchErr) {
		return &Error{
			Kind:    Fetch,
			Status:  statusFor[Fetch],
			Message: fmt.Sprintf("unable to retrieve index at %s: %v", fetchErr.URL, fetchErr.Cause),
			URL:     fetchErr.URL,
			cause:   err,
		}
	}

	var solverErr *solver.Error
	if errors.As(err, &solverErr) {
		return mapSolverError(solverErr, err)
	}

	var panicErr *workerpool.PanicError
	if errors.As(err, &panicErr) {
		return newError(Internal, fmt.Sprintf("internal error: %v", panicErr.Recovered), err)
	}

	return newError(Internal, "internal error", err)
}

// mapSolverError applies spec.md §7's rewrite: UnsupportedOperation
// indicates a server misconfiguration, not client misuse, so it is
// reported as Internal rather than any of the client-facing solver kinds.
func mapSolverError(serr *solver.Error, cause error) *Error {
	switch serr.Kind {
	case solver.Unsolvable:
		return &Error{
			Kind:      SolverUnsolvable,
			Status:    statusFor[SolverUnsolvable],
			Message:   serr.Message,
			Conflicts: serr.Conflicts,
			cause:     cause,
		}
	case solver.ParseMatchSpec:
		return newError(SolverParseMatchSpec, serr.Message, cause)
	case solver.Cancelled:
		return newError(SolverCancelled, serr.Message, cause)
	case solver.UnsupportedOperation:
		return newError(Internal, fmt.Sprintf("solver backend reported an unsupported operation: %s", serr.Message), cause)
	default:
		return newError(Internal, serr.Message, cause)
	}
}
