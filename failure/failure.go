// Package failure defines the closed set of failure kinds a script
// execution can end in, and the typed error that carries one.
//
// Callers never see raw interpreter diagnostics or internal errors: every
// failed execution surfaces exactly one [*Error] whose [Kind] is drawn from
// the fixed taxonomy below, together with a short excerpt of the
// diagnostics that led to it.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
)

// Kind names a failure category.
type Kind string

// Failure kinds. The first three form the data-access family.
const (
	EmptyResult     Kind = "EmptyResult"
	IndexOutOfRange Kind = "IndexOutOfRange"
	NoDataAvailable Kind = "NoDataAvailable"
	SyntaxError     Kind = "SyntaxError"
	RuntimeError    Kind = "RuntimeError"
	ProcessError    Kind = "ProcessError"
	TimeoutError    Kind = "TimeoutError"
	UnknownError    Kind = "UnknownError"
)

// Kinds lists every kind in the taxonomy.
var Kinds = []Kind{
	EmptyResult, IndexOutOfRange, NoDataAvailable,
	SyntaxError, RuntimeError, ProcessError, TimeoutError, UnknownError,
}

// Valid reports whether k belongs to the taxonomy.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsDataAccess reports whether k is one of the data-access kinds.
func (k Kind) IsDataAccess() bool {
	switch k {
	case EmptyResult, IndexOutOfRange, NoDataAvailable:
		return true
	}
	return false
}

// Sentinels for errors.Is checks. They match any *Error of the same kind.
var (
	ErrEmptyResult     = &Error{Kind: EmptyResult}
	ErrIndexOutOfRange = &Error{Kind: IndexOutOfRange}
	ErrNoDataAvailable = &Error{Kind: NoDataAvailable}
	ErrSyntax          = &Error{Kind: SyntaxError}
	ErrRuntime         = &Error{Kind: RuntimeError}
	ErrProcess         = &Error{Kind: ProcessError}
	ErrTimeout         = &Error{Kind: TimeoutError}
	ErrUnknown         = &Error{Kind: UnknownError}
)

// Error is a classified execution failure.
type Error struct {
	// Kind is the taxonomy entry.
	Kind Kind

	// Message is a one-line human-readable description.
	Message string

	// Excerpt holds the last few diagnostic lines, bounded in length.
	Excerpt string

	// ExitCode is the interpreter exit code, or -1 when the process did not
	// exit on its own.
	ExitCode int

	// Err is the underlying cause, if any.
	Err error
}

// New returns an *Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), ExitCode: -1}
}

// Wrap returns an *Error of the given kind with err as its cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err, ExitCode: -1}
}

// Error returns "<kind>: <message>".
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind carried by err, or UnknownError if err is not
// classified. A nil error has no kind and yields "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return UnknownError
}

// From maps an arbitrary error onto the taxonomy. Already classified errors
// pass through unchanged; anything else is re-classified by heuristics so
// that callers only ever observe the closed set of kinds.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		strings.Contains(strings.ToLower(msg), "timeout"):
		return Wrap(TimeoutError, err, msg)
	case isIOError(err):
		return Wrap(ProcessError, err, msg)
	default:
		return Wrap(UnknownError, err, msg)
	}
}

func isIOError(err error) bool {
	var (
		pathErr    *fs.PathError
		syscallErr *os.SyscallError
		execErr    *exec.Error
		linkErr    *os.LinkError
	)
	switch {
	case errors.As(err, &pathErr),
		errors.As(err, &syscallErr),
		errors.As(err, &execErr),
		errors.As(err, &linkErr):
		return true
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, os.ErrClosed),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
