package types

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindPrecondition ErrKind = iota // bad index, range or nil argument
	ErrKindCapacity                    // no room left on a fixed-capacity medium or page
	ErrKindCorrupt                     // structural corruption (bad header, broken chains, bad traits)
	ErrKindUnsupported                 // operation the component never supports (interior insert/remove)
	ErrKindState                       // invalid operation for current state (closed, finished, handle open)
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindPrecondition:
		return "precondition"
	case ErrKindCapacity:
		return "capacity"
	case ErrKindCorrupt:
		return "corrupt"
	case ErrKindUnsupported:
		return "unsupported"
	case ErrKindState:
		return "state"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so that
// errors.Is(err, types.ErrCorrupt) matches every corruption error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels commonly returned by implementations. Compare with errors.Is.
var (
	// ErrPrecondition indicates a bad argument (index, range, nil).
	ErrPrecondition = &Error{Kind: ErrKindPrecondition, Msg: "precondition violated"}
	// ErrCapacity indicates insufficient room on a fixed-capacity medium or page.
	ErrCapacity = &Error{Kind: ErrKindCapacity, Msg: "capacity exceeded"}
	// ErrCorrupt indicates non-recoverable structural inconsistency.
	ErrCorrupt = &Error{Kind: ErrKindCorrupt, Msg: "corrupt data"}
	// ErrUnsupported indicates an operation the component does not support.
	ErrUnsupported = &Error{Kind: ErrKindUnsupported, Msg: "unsupported operation"}
	// ErrState indicates an operation invalid for the current state.
	ErrState = &Error{Kind: ErrKindState, Msg: "invalid state"}
)

// Preconditionf builds an ErrKindPrecondition error.
func Preconditionf(format string, args ...any) error {
	return &Error{Kind: ErrKindPrecondition, Msg: fmt.Sprintf(format, args...)}
}

// Capacityf builds an ErrKindCapacity error.
func Capacityf(format string, args ...any) error {
	return &Error{Kind: ErrKindCapacity, Msg: fmt.Sprintf(format, args...)}
}

// Corruptf builds an ErrKindCorrupt error.
func Corruptf(format string, args ...any) error {
	return &Error{Kind: ErrKindCorrupt, Msg: fmt.Sprintf(format, args...)}
}

// Unsupportedf builds an ErrKindUnsupported error.
func Unsupportedf(format string, args ...any) error {
	return &Error{Kind: ErrKindUnsupported, Msg: fmt.Sprintf(format, args...)}
}

// Statef builds an ErrKindState error.
func Statef(format string, args ...any) error {
	return &Error{Kind: ErrKindState, Msg: fmt.Sprintf(format, args...)}
}

// WrapCorrupt marks cause as corruption, keeping it reachable through Unwrap.
func WrapCorrupt(cause error, format string, args ...any) error {
	return &Error{Kind: ErrKindCorrupt, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
