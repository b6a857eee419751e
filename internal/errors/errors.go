// Package errors defines the error kinds raised by the solver pipeline and
// helpers to classify them.
//
// Two categories exist:
//   - Fatal input errors: MalformedPOMDP, MalformedAutomaton, UnsolvableGraph.
//     The pipeline stops; retrying with the same inputs cannot succeed.
//   - Recoverable conditions: StateSpaceExplosion (retry with a larger budget)
//     and TransformationFailed (the transformed model is still usable).
//
// Every error carries the identifiers needed to reproduce the failure
// without re-running the whole pipeline.
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrStateSpaceExplosion) { ... }
//
//	var ex *errors.ExplosionError
//	if errors.As(err, &ex) { fmt.Println(ex.NodesExplored) }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions so callers import only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Kind identifies the class of a pipeline error.
type Kind int

const (
	KindMalformedPOMDP Kind = iota + 1
	KindMalformedAutomaton
	KindStateSpaceExplosion
	KindUnsolvableGraph
	KindTransformationFailed
)

// String returns the kind name used in messages.
func (k Kind) String() string {
	switch k {
	case KindMalformedPOMDP:
		return "malformed POMDP"
	case KindMalformedAutomaton:
		return "malformed automaton"
	case KindStateSpaceExplosion:
		return "state space explosion"
	case KindUnsolvableGraph:
		return "unsolvable graph"
	case KindTransformationFailed:
		return "transformation failed"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is for each kind.
var (
	ErrMalformedPOMDP       = New("malformed POMDP")
	ErrMalformedAutomaton   = New("malformed automaton")
	ErrStateSpaceExplosion  = New("state space explosion")
	ErrUnsolvableGraph      = New("unsolvable graph")
	ErrTransformationFailed = New("transformation failed")
)

func sentinel(k Kind) error {
	switch k {
	case KindMalformedPOMDP:
		return ErrMalformedPOMDP
	case KindMalformedAutomaton:
		return ErrMalformedAutomaton
	case KindStateSpaceExplosion:
		return ErrStateSpaceExplosion
	case KindUnsolvableGraph:
		return ErrUnsolvableGraph
	case KindTransformationFailed:
		return ErrTransformationFailed
	}
	return nil
}

// Error is a pipeline error with the offending identifiers attached.
type Error struct {
	Kind        Kind
	Op          string // stage that raised it, e.g. "product.Build"
	State       string
	Action      string
	Observation string
	AutState    string
	Detail      string
	Err         error
}

// Newf creates an Error of the given kind with a formatted detail message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around a cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// WithState records the POMDP state involved.
func (e *Error) WithState(name string) *Error {
	e.State = name
	return e
}

// WithAction records the action involved.
func (e *Error) WithAction(name string) *Error {
	e.Action = name
	return e
}

// WithObservation records the observation involved.
func (e *Error) WithObservation(name string) *Error {
	e.Observation = name
	return e
}

// WithAutState records the automaton state involved.
func (e *Error) WithAutState(name string) *Error {
	e.AutState = name
	return e
}

// Error formats as "op: kind: detail [state=.. action=..]: cause".
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Op != "" {
		sb.WriteString(e.Op)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.String())
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	var ctx []string
	if e.State != "" {
		ctx = append(ctx, "state="+e.State)
	}
	if e.Action != "" {
		ctx = append(ctx, "action="+e.Action)
	}
	if e.Observation != "" {
		ctx = append(ctx, "obs="+e.Observation)
	}
	if e.AutState != "" {
		ctx = append(ctx, "aut="+e.AutState)
	}
	if len(ctx) > 0 {
		sb.WriteString(" [")
		sb.WriteString(strings.Join(ctx, " "))
		sb.WriteString("]")
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of this error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

// ExplosionError reports that exploration exceeded its budget. It carries the
// progress made so the caller can retry with a larger budget.
type ExplosionError struct {
	NodesExplored int
	Limit         int
	Elapsed       time.Duration
	Reason        string // "max nodes" or "timeout"
}

func (e *ExplosionError) Error() string {
	if e.Reason == "timeout" {
		return fmt.Sprintf("state space explosion: timeout after %s with %d belief supports explored",
			e.Elapsed.Round(time.Millisecond), e.NodesExplored)
	}
	return fmt.Sprintf("state space explosion: %d belief supports explored, limit %d",
		e.NodesExplored, e.Limit)
}

// Is matches ErrStateSpaceExplosion.
func (e *ExplosionError) Is(target error) bool {
	return target == ErrStateSpaceExplosion
}

// IsFatal reports whether err stems from malformed input or an empty graph.
func IsFatal(err error) bool {
	return Is(err, ErrMalformedPOMDP) || Is(err, ErrMalformedAutomaton) || Is(err, ErrUnsolvableGraph)
}

// IsRecoverable reports whether the caller may proceed or retry.
func IsRecoverable(err error) bool {
	return Is(err, ErrStateSpaceExplosion) || Is(err, ErrTransformationFailed)
}
