// Package apperr defines the error taxonomy shared by services and handlers.
// Services return *Error values; handlers map the Kind to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers. All domain kinds are permanent for the given input.
type Kind string

const (
	KindNotFound              Kind = "not_found"
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindRegistrationClosed    Kind = "registration_closed"
	KindCapacityExceeded      Kind = "capacity_exceeded"
	KindInvalidTransition     Kind = "invalid_transition"
	KindNotEligible           Kind = "not_eligible"
	KindBadRequest            Kind = "bad_request"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindUnavailable           Kind = "unavailable"
	KindInternal              Kind = "internal"
)

// Error is a classified error with a client-safe message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the same request may succeed later without changes.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable
}

// New creates a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap classifies an underlying error.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(msg string) *Error { return New(KindNotFound, msg) }

// Internal wraps an unexpected fault.
func Internal(err error, msg string) *Error { return Wrap(err, KindInternal, msg) }

// KindOf returns the Kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the client-safe message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
