// Package errors defines the application error carried from services to
// handlers, where it becomes an error envelope or a flash message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError pairs a stable code with the message shown to the user.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

// Unwrap exposes the internal cause.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches by code, so copies made with WithInternal or WithMessage still
// match their sentinel.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	if !ok || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// Status returns the HTTP status, defaulting to 500.
func (e *AppError) Status() int {
	if e == nil || e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// WithInternal returns a copy carrying cause.
func (e *AppError) WithInternal(cause error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = cause
	return &cpy
}

// WithMessage returns a copy with a different user-facing message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Message = message
	return &cpy
}

var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
	// ErrForbidden doubles as the access-denied error for ownership and role checks.
	ErrForbidden       = New("FORBIDDEN", "Access denied", http.StatusForbidden)
	ErrNotFound        = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest      = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrPayloadTooLarge = New("PAYLOAD_TOO_LARGE", "Request body is too large", http.StatusRequestEntityTooLarge)
	ErrRateLimit       = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
	ErrCSRFInvalid     = New("CSRF_TOKEN_INVALID", "Invalid CSRF token", http.StatusForbidden)
	ErrInternalServer  = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// NewBadRequest builds a validation failure with message.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// FromError finds the AppError in err's chain. Anything else becomes an
// internal server error that keeps err as its cause.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// IsInternal reports whether err would be rendered as a server-side failure.
func IsInternal(err error) bool {
	appErr := FromError(err)
	return appErr != nil && appErr.Status() >= http.StatusInternalServerError
}
