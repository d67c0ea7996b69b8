package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for the attendance session domain.
var (
	ErrInvalidConfiguration  = New("INVALID_CONFIGURATION", http.StatusBadRequest, "session parameters violate constraints")
	ErrMalformedToken        = New("MALFORMED_TOKEN", http.StatusBadRequest, "scan payload could not be decoded")
	ErrSessionNotFound       = New("SESSION_NOT_FOUND", http.StatusNotFound, "session does not exist")
	ErrSessionExpiredOrEnded = New("SESSION_EXPIRED_OR_ENDED", http.StatusGone, "session is no longer active")
	ErrNoActiveBinding       = New("NO_ACTIVE_SESSION_BINDING", http.StatusPreconditionFailed, "device must scan a session code first")
	ErrDuplicateScan         = New("DUPLICATE_SCAN", http.StatusConflict, "student already recorded for this session")
	ErrSessionFull           = New("SESSION_FULL", http.StatusConflict, "session reached its attendee limit")
	ErrLateEntryDisallowed   = New("LATE_ENTRY_DISALLOWED", http.StatusForbidden, "late arrivals are not accepted for this session")
	ErrAlreadyTerminal       = New("ALREADY_TERMINAL", http.StatusConflict, "session already expired or ended")
	ErrAborted               = New("ABORTED", http.StatusServiceUnavailable, "operation aborted, safe to retry")
)

// Predefined errors for common transport scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same domain code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
