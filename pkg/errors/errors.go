package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found locally or remotely
	ErrorTypeNotFound ErrorType = "NOT_FOUND"
	// ErrorTypeBadRequest indicates invalid input
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"
	// ErrorTypeConflict indicates a state conflict
	ErrorTypeConflict ErrorType = "CONFLICT"
	// ErrorTypeInternal indicates an internal error
	ErrorTypeInternal ErrorType = "INTERNAL"
	// ErrorTypeTransient indicates a retryable remote failure (timeouts, 5xx)
	ErrorTypeTransient ErrorType = "TRANSIENT"
	// ErrorTypeRateLimited indicates the remote asked us to back off (429, 503)
	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"
	// ErrorTypeMalformed indicates a remote payload that could not be parsed
	ErrorTypeMalformed ErrorType = "MALFORMED"
	// ErrorTypeStorage indicates a local persistence failure
	ErrorTypeStorage ErrorType = "STORAGE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error returns the error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new application error
func New(errorType ErrorType, message string) error {
	return &AppError{
		Type:    errorType,
		Message: message,
	}
}

// Wrap wraps an error with an application error
func Wrap(errorType ErrorType, message string, err error) error {
	return &AppError{
		Type:    errorType,
		Message: message,
		Err:     err,
	}
}

// NotFound creates a not found error
func NotFound(message string) error {
	return New(ErrorTypeNotFound, message)
}

// BadRequest creates a bad request error
func BadRequest(message string) error {
	return New(ErrorTypeBadRequest, message)
}

// Conflict creates a conflict error
func Conflict(message string) error {
	return New(ErrorTypeConflict, message)
}

// Internal creates an internal error
func Internal(message string) error {
	return New(ErrorTypeInternal, message)
}

// Transient wraps a retryable remote failure
func Transient(message string, err error) error {
	return Wrap(ErrorTypeTransient, message, err)
}

// RateLimited creates a rate limited error
func RateLimited(message string) error {
	return New(ErrorTypeRateLimited, message)
}

// Malformed wraps a payload decoding failure
func Malformed(message string, err error) error {
	return Wrap(ErrorTypeMalformed, message, err)
}

// Storage wraps a local persistence failure
func Storage(message string, err error) error {
	return Wrap(ErrorTypeStorage, message, err)
}

// TypeOf returns the ErrorType carried by err, or the empty string
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsBadRequest checks if an error is a bad request error
func IsBadRequest(err error) bool {
	return TypeOf(err) == ErrorTypeBadRequest
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return TypeOf(err) == ErrorTypeConflict
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return TypeOf(err) == ErrorTypeInternal
}

// IsStorage checks if an error is a local persistence failure
func IsStorage(err error) bool {
	return TypeOf(err) == ErrorTypeStorage
}

// IsRetryable reports whether the failure may succeed on a later attempt
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTransient, ErrorTypeRateLimited:
		return true
	}
	return false
}

// IsRemoteFailure reports whether err originates from the remote catalog.
// Callers degrade to cached data on these instead of surfacing them.
func IsRemoteFailure(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeTransient, ErrorTypeRateLimited, ErrorTypeMalformed, ErrorTypeNotFound:
		return true
	}
	return false
}

// IsDuplicateError checks if an error is a duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint") ||
		strings.Contains(errStr, "Duplicate entry")
}
