package mtapclient

import (
	"errors"
	"fmt"
)

// ClientError is the common interface of all SDK errors. Concrete error
// values are unexported; callers branch on Type, the IsErrorType helper,
// or errors.Is/As through the wrapped chain.
type ClientError interface {
	error
	Type() ErrorType
	Unwrap() error
}

// ErrorType defines the category of client error.
type ErrorType string

const (
	// ConfigurationError marks invalid client setup or operation inputs.
	// Configuration errors never reach the network and are never retried.
	ConfigurationError ErrorType = "configuration"
	// NetworkFailure marks connectivity problems between client and
	// server, including timeouts and context cancellation.
	NetworkFailure ErrorType = "network"
	// UnexpectedError marks failures outside the API taxonomy, such as a
	// malformed body on an otherwise successful response.
	UnexpectedError ErrorType = "unexpected"

	// API error kinds derived from the response status.
	InvalidRequestError      ErrorType = "invalid_request"
	AuthenticationError      ErrorType = "authentication"
	AuthorizationError       ErrorType = "authorization"
	NotFoundError            ErrorType = "not_found"
	IdempotencyConflictError ErrorType = "idempotency_conflict"
	RateLimitError           ErrorType = "rate_limit"
	ServerError              ErrorType = "server"
	GenericAPIError          ErrorType = "api"
)

// configurationError represents invalid setup or operation inputs
type configurationError struct {
	message string
	field   string
	wrapped error
}

func (e *configurationError) Error() string {
	if e.field != "" {
		return fmt.Sprintf("configuration error: %s (field: %s)", e.message, e.field)
	}
	return fmt.Sprintf("configuration error: %s", e.message)
}

func (e *configurationError) Type() ErrorType {
	return ConfigurationError
}

func (e *configurationError) Unwrap() error {
	return e.wrapped
}

// networkFailure represents connectivity-level failures
type networkFailure struct {
	message string
	wrapped error
}

func (e *networkFailure) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("network failure: %s: %v", e.message, e.wrapped)
	}
	return fmt.Sprintf("network failure: %s", e.message)
}

func (e *networkFailure) Type() ErrorType {
	return NetworkFailure
}

func (e *networkFailure) Unwrap() error {
	return e.wrapped
}

// apiError represents a non-success response from the MTAP API. Its kind
// is derived from the HTTP status; auth failures raised before any request
// carry no status.
type apiError struct {
	kind       ErrorType
	message    string
	statusCode int
	wrapped    error
}

func (e *apiError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("%s error: %s (status: %d)", e.kind, e.message, e.statusCode)
	}
	return fmt.Sprintf("%s error: %s", e.kind, e.message)
}

func (e *apiError) Type() ErrorType {
	return e.kind
}

func (e *apiError) Unwrap() error {
	return e.wrapped
}

// StatusCode returns the HTTP status of the failing response, zero when
// the failure happened before any response arrived.
func (e *apiError) StatusCode() int {
	return e.statusCode
}

// Message returns the server-derived message without decoration.
func (e *apiError) Message() string {
	return e.message
}

// unexpectedError preserves the cause chain of failures that fit no other
// category
type unexpectedError struct {
	message    string
	statusCode int
	wrapped    error
}

func (e *unexpectedError) Error() string {
	msg := fmt.Sprintf("unexpected error: %s", e.message)
	if e.statusCode > 0 {
		msg = fmt.Sprintf("%s (status: %d)", msg, e.statusCode)
	}
	if e.wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.wrapped)
	}
	return msg
}

func (e *unexpectedError) Type() ErrorType {
	return UnexpectedError
}

func (e *unexpectedError) Unwrap() error {
	return e.wrapped
}

func (e *unexpectedError) StatusCode() int {
	return e.statusCode
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(message, field string) ClientError {
	return &configurationError{
		message: message,
		field:   field,
	}
}

// NewNetworkFailure creates a new network failure wrapping the transport
// cause
func NewNetworkFailure(message string, wrapped error) ClientError {
	return &networkFailure{
		message: message,
		wrapped: wrapped,
	}
}

// NewAPIError creates an API error whose kind is derived from the status
// code.
func NewAPIError(message string, statusCode int) ClientError {
	return &apiError{
		kind:       classifyStatus(statusCode),
		message:    message,
		statusCode: statusCode,
	}
}

// NewUnexpectedError creates a new unexpected error carrying the original
// status and cause
func NewUnexpectedError(message string, statusCode int, wrapped error) ClientError {
	return &unexpectedError{
		message:    message,
		statusCode: statusCode,
		wrapped:    wrapped,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	var clientErr ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type() == errorType
	}
	return false
}

// statusCarrier is implemented by errors that know the HTTP status of the
// response that produced them.
type statusCarrier interface {
	StatusCode() int
}

// StatusCodeOf returns the HTTP status carried by the error chain, if any.
func StatusCodeOf(err error) (int, bool) {
	var carrier statusCarrier
	if errors.As(err, &carrier) && carrier.StatusCode() > 0 {
		return carrier.StatusCode(), true
	}
	return 0, false
}

// IsHTTPStatusError checks if an error carries a specific HTTP status code
func IsHTTPStatusError(err error, statusCode int) bool {
	code, ok := StatusCodeOf(err)
	return ok && code == statusCode
}
