// Package apperr defines the error taxonomy shared by the registry, the challenge manager and the transport layer.
// Errors carry a Kind (how the caller should react) and a stable Code (what the HTTP error body reports).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how a caller is expected to handle it.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindState       Kind = "state"
	KindAuth        Kind = "auth"
	KindConfig      Kind = "config"
	KindDependency  Kind = "dependency"
	KindInvalid     Kind = "invalid"
	KindRateLimited Kind = "rate_limited"
)

// Error is a classified application error. Two Errors match under errors.Is when their codes match,
// so a sentinel wrapped with a cause still compares equal to the bare sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

// New returns a sentinel error with the given kind, code and message.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of sentinel carrying cause. Wrap(s, nil) returns s.
func Wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	cp := *sentinel
	cp.cause = cause
	return &cp
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the Code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// InvariantError signals store corruption or a broken entropy source. It is raised with panic and must
// not be recovered and continued past; the transport layer only converts it into a 500 for the request.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Msg }

// Invariant panics with an *InvariantError built from format and args.
func Invariant(format string, args ...any) {
	panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}
