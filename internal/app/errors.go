package app

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrOverpayment     = errors.New("overpayment")
	ErrExternalService = errors.New("external service error")
	ErrRateLimited     = errors.New("rate limited")
)

// Error is a classified, user-facing failure.
type Error struct {
	Kind    error
	Message string
	// RetryAfter is set for ErrRateLimited, in seconds.
	RetryAfter int
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Kind, e.cause}
	}
	return []error{e.Kind}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind error, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func validationError(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

func notFoundError(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

// PublicMessage returns the message safe to show to clients.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
