package transport

import (
	"errors"
	"fmt"
	"time"
)

// TransportError represents the different failure classes raised by the
// retry-aware transport. Callers usually map these onto the SDK error
// taxonomy; direct transport users can branch on Type.
//
//nolint:revive // TransportError is intentionally named for clarity in external API usage
type TransportError interface {
	error
	Type() ErrorType
}

// ErrorType defines the category of transport failure
type ErrorType string

const (
	NetworkError    ErrorType = "network"
	TimeoutError    ErrorType = "timeout"
	CanceledError   ErrorType = "canceled"
	HTTPError       ErrorType = "http"
	ValidationError ErrorType = "validation"
)

// networkError represents connectivity-level failures (refused, reset, DNS)
type networkError struct {
	message string
	wrapped error
}

func (e *networkError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network error: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network error: %s", e.message)
}

func (e *networkError) Type() ErrorType {
	return NetworkError
}

func (e *networkError) Unwrap() error {
	return e.wrapped
}

// timeoutError represents attempt-level timeouts
type timeoutError struct {
	message string
	timeout time.Duration
	wrapped error
}

func (e *timeoutError) Error() string {
	if e.timeout > 0 {
		return fmt.Sprintf("timeout error: %s (timeout: %v)", e.message, e.timeout)
	}
	return fmt.Sprintf("timeout error: %s", e.message)
}

func (e *timeoutError) Type() ErrorType {
	return TimeoutError
}

func (e *timeoutError) Unwrap() error {
	return e.wrapped
}

// canceledError represents caller-initiated aborts (context cancellation or
// an external deadline). Cancellation is never retried.
type canceledError struct {
	message string
	wrapped error
}

func (e *canceledError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("canceled: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("canceled: %s", e.message)
}

func (e *canceledError) Type() ErrorType {
	return CanceledError
}

func (e *canceledError) Unwrap() error {
	return e.wrapped
}

// httpError represents a retryable HTTP status that survived the attempt
// budget. It carries the final status code for classification.
type httpError struct {
	message    string
	statusCode int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP error: %s (status: %d)", e.message, e.statusCode)
}

func (e *httpError) Type() ErrorType {
	return HTTPError
}

func (e *httpError) StatusCode() int {
	return e.statusCode
}

func (e *httpError) Unwrap() error {
	return nil
}

// validationError represents descriptor or policy validation failures
type validationError struct {
	message string
	field   string
}

func (e *validationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("validation error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("validation error: %s", e.message)
}

func (e *validationError) Type() ErrorType {
	return ValidationError
}

func (e *validationError) Unwrap() error {
	return nil
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, wrapped error) TransportError {
	return &networkError{
		message: message,
		wrapped: wrapped,
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, timeout time.Duration, wrapped error) TransportError {
	return &timeoutError{
		message: message,
		timeout: timeout,
		wrapped: wrapped,
	}
}

// NewCanceledError creates a new cancellation error wrapping the context error
func NewCanceledError(message string, wrapped error) TransportError {
	return &canceledError{
		message: message,
		wrapped: wrapped,
	}
}

// NewHTTPError creates a new HTTP status error
func NewHTTPError(message string, statusCode int) TransportError {
	return &httpError{
		message:    message,
		statusCode: statusCode,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message, field string) TransportError {
	return &validationError{
		message: message,
		field:   field,
	}
}

// IsErrorType checks if an error is of a specific transport error type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var transportErr TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Type() == errorType
	}
	return false
}

// IsHTTPStatusError checks if an error is an HTTP error with a specific status code
func IsHTTPStatusError(err error, statusCode int) bool {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == statusCode
	}
	return false
}

// StatusCodeOf returns the HTTP status carried by an error, if any
func StatusCodeOf(err error) (int, bool) {
	var httpErr *httpError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode(), true
	}
	return 0, false
}
