// Package errors defines the runtime's structured error kinds, grounded on
// barn's types.ErrorCode (an int enum with String()/Message() and a
// MooError wrapper) and spec.md's Design Notes call to replace
// `catch(const char*)`/`throw "Type Mismatch"` with a structured error
// enum surfaced through a result type.
package errors

import "fmt"

// Kind enumerates the runtime error kinds the VM can surface.
type Kind int

const (
	IndexOutOfBounds Kind = iota
	KeyNotFound
	TypeMismatch
	StackAllocationFailed
	UndeliverableMessage
)

func (k Kind) String() string {
	switch k {
	case IndexOutOfBounds:
		return "IndexOutOfBounds"
	case KeyNotFound:
		return "KeyNotFound"
	case TypeMismatch:
		return "TypeMismatch"
	case StackAllocationFailed:
		return "StackAllocationFailed"
	case UndeliverableMessage:
		return "UndeliverableMessage"
	default:
		return "UnknownError"
	}
}

// Message returns a human-readable description of the error kind.
func (k Kind) Message() string {
	switch k {
	case IndexOutOfBounds:
		return "array subscript past size"
	case KeyNotFound:
		return "dict subscript miss"
	case TypeMismatch:
		return "conflicting varying type"
	case StackAllocationFailed:
		return "process stack growth failed"
	case UndeliverableMessage:
		return "message undelivered at shutdown"
	default:
		return "unknown error"
	}
}

// Fatal reports whether this error kind is fatal to the whole run, as
// opposed to recoverable at the message boundary (aborting only the
// currently executing message).
func (k Kind) Fatal() bool {
	switch k {
	case StackAllocationFailed, TypeMismatch:
		return true
	default:
		return false
	}
}

// RuntimeError is the structured error the VM raises and the embedder
// receives: an error identifier plus a line number (from the
// instruction's source-line metadata where available). No stack trace is
// promised — the call stack is opaque.
type RuntimeError struct {
	Kind Kind
	Line int
}

func New(kind Kind, line int) *RuntimeError {
	return &RuntimeError{Kind: kind, Line: line}
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Kind.Message(), e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Kind.Message())
}
