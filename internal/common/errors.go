// Package common defines shared constants and sentinel errors used across
// server and client layers. Callers should use errors.Is to match these values.
package common

import (
	"errors"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (account workflow taxonomy).
	ErrorConflict     = errors.New("conflict")
	ErrorBadRequest   = errors.New("bad request")
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)

// Error is a failure of one of the taxonomy kinds above with a message that
// is safe to show to the caller. Err keeps the underlying cause for
// server-side diagnostics and is never rendered to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is reports whether target is the kind of e, so errors.Is(err, ErrorConflict)
// matches a *Error with Kind ErrorConflict.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Internal wraps cause as an ErrorInternal with a generic public message.
func Internal(cause error) *Error {
	return &Error{Kind: ErrorInternal, Message: ErrorInternal.Error(), Err: cause}
}

// PublicMessage returns the message that may be shown to a caller for err.
// Internal failures and foreign errors collapse to the generic text.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != ErrorInternal {
		return e.Message
	}
	for _, kind := range []error{ErrorNotFound, ErrorConflict, ErrorBadRequest, ErrorUnauthorized, ErrorForbidden, ErrInvalidToken, ErrTokenExpired} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return ErrorInternal.Error()
}
