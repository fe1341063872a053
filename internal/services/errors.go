package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them onto HTTP statuses.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrDependency   = errors.New("dependency failure")
)

// Error is a service failure carrying a kind, a message safe to show to the
// caller and, for dependency failures, the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is makes errors.Is(err, ErrNotFound) and friends work on *Error.
func (e *Error) Is(target error) bool { return e.Kind == target }

func (e *Error) Unwrap() error { return e.Err }

func invalidInput(msg string) error { return &Error{Kind: ErrInvalidInput, Message: msg} }
func notFound(msg string) error     { return &Error{Kind: ErrNotFound, Message: msg} }
func conflict(msg string) error     { return &Error{Kind: ErrConflict, Message: msg} }

func dependency(msg string, err error) error {
	return &Error{Kind: ErrDependency, Message: msg, Err: err}
}

// Message returns the caller-facing message of err, or fallback when err is
// not a service error.
func Message(err error, fallback string) string {
	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
