package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a tripkit error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrInvalidTemplate     ErrorCode = "INVALID_TEMPLATE"     // 422
	ErrCorruptState        ErrorCode = "CORRUPT_STATE"        // 500, recovered locally
	ErrInternal            ErrorCode = "INTERNAL"             // 500
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE" // 503
)

// TripError represents a structured error with code, status, and details.
type TripError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *TripError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *TripError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *TripError {
	return &TripError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a day, stop, or record that does not exist.
// Itinerary mutations never return it; only explicit lookups at the surfaces do.
func NewNotFound(kind, identifier string) *TripError {
	return &TripError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewInvalidTemplate creates a 422 error for a schedule template that fails validation.
func NewInvalidTemplate(problems []string) *TripError {
	return &TripError{
		Code:    ErrInvalidTemplate,
		Status:  422,
		Message: fmt.Sprintf("invalid trip template: %v", problems),
		Details: map[string]any{"problems": problems},
	}
}

// NewCorruptState creates an error describing an unparsable persisted value.
func NewCorruptState(key string, err error) *TripError {
	return &TripError{
		Code:    ErrCorruptState,
		Status:  500,
		Message: fmt.Sprintf("persisted value for %q is corrupt", key),
		Details: map[string]any{"key": key},
		Err:     err,
	}
}

// NewUpstreamUnavailable creates a 503 error for a failing external provider.
func NewUpstreamUnavailable(provider string, err error) *TripError {
	msg := fmt.Sprintf("%s unavailable", provider)
	if err != nil {
		msg = fmt.Sprintf("%s unavailable: %v", provider, err)
	}
	return &TripError{
		Code:    ErrUpstreamUnavailable,
		Status:  503,
		Message: msg,
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *TripError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &TripError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error (or anything it wraps) is a TripError with the given code.
func Is(err error, code ErrorCode) bool {
	var tErr *TripError
	if stderrors.As(err, &tErr) {
		return tErr.Code == code
	}
	return false
}

// StatusOf returns the HTTP-style status carried by err, or 500.
func StatusOf(err error) int {
	var tErr *TripError
	if stderrors.As(err, &tErr) && tErr.Status != 0 {
		return tErr.Status
	}
	return 500
}
