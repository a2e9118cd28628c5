package deta

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the SDK. These can be used with errors.Is()
// to check for specific error conditions.
//
// Example:
//
//	rec, err := base.Get(ctx, "user123")
//	if errors.Is(err, deta.ErrNotFound) {
//	    // Key doesn't exist
//	} else if errors.Is(err, deta.ErrUnauthorized) {
//	    // Project key was rejected
//	}
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMissingProjectKey is returned when no project key is configured.
	// Set the DETA_PROJECT_KEY environment variable or use WithProjectKey.
	ErrMissingProjectKey = errors.New("project key not configured")

	// ErrInvalidProjectKey is returned when the project key is malformed
	ErrInvalidProjectKey = errors.New("invalid project key")

	// ErrEmptyKey is returned when an operation is called with an empty key
	ErrEmptyKey = errors.New("key cannot be empty")

	// ErrNotFound is returned when a key is not found in the base
	ErrNotFound = errors.New("key not found")

	// ErrConflict is returned when inserting a key that already exists
	ErrConflict = errors.New("key already exists")

	// ErrUnauthorized is returned when the service rejects the project key
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBatchTooLarge is returned when a put batch exceeds MaxBatchSize
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrTimeout is returned when a request times out
	ErrTimeout = errors.New("request timeout")

	// ErrServerError is returned for 5xx server errors
	ErrServerError = errors.New("server error")

	// ErrInvalidResponse is returned when the server response cannot be decoded
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrRateLimited is returned when the request is rate limited
	ErrRateLimited = errors.New("rate limited")

	// ErrRetryBudgetExhausted is returned when the retry budget is exhausted
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrClientClosed is returned when an operation is attempted on a closed client
	ErrClientClosed = errors.New("client is closed")
)

// ErrorType categorizes errors for handling and retry decisions.
//
// Example:
//
//	var detaErr *deta.Error
//	if errors.As(err, &detaErr) {
//	    switch detaErr.Type {
//	    case deta.ErrorTypeNetwork:
//	        // transport failure, DNS, TLS
//	    case deta.ErrorTypeAuth:
//	        // project key rejected
//	    case deta.ErrorTypeNotFound:
//	        // record absent
//	    }
//	}
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown or unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork represents transport failures (connection refused, DNS, TLS)
	ErrorTypeNetwork
	// ErrorTypeTimeout represents timeout errors (request timeout, context deadline)
	ErrorTypeTimeout
	// ErrorTypeAuth represents authentication failures (invalid or missing project key)
	ErrorTypeAuth
	// ErrorTypeNotFound represents a missing record (HTTP 404)
	ErrorTypeNotFound
	// ErrorTypeConflict represents an insert on an existing key (HTTP 409)
	ErrorTypeConflict
	// ErrorTypeValidation represents malformed requests (oversized batch, bad payload)
	ErrorTypeValidation
	// ErrorTypeDecode represents responses that are not valid JSON or miss expected fields
	ErrorTypeDecode
	// ErrorTypeServer represents opaque server errors (5xx status codes)
	ErrorTypeServer
	// ErrorTypeClient represents other client errors (4xx status codes)
	ErrorTypeClient
	// ErrorTypeRateLimit represents rate limiting (429 Too Many Requests)
	ErrorTypeRateLimit
	// ErrorTypeCircuitOpen represents circuit breaker open state errors
	ErrorTypeCircuitOpen
	// ErrorTypeRetryBudget represents retry budget exhausted errors
	ErrorTypeRetryBudget
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeDecode:
		return "decode"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeClient:
		return "client"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeCircuitOpen:
		return "circuit_open"
	case ErrorTypeRetryBudget:
		return "retry_budget"
	default:
		return "unknown"
	}
}

// Error is the enhanced error type returned by all SDK operations.
// It carries the error category, retryability, and context about the
// request that failed. It supports errors.Is() and errors.As().
//
// Example:
//
//	var detaErr *deta.Error
//	if errors.As(err, &detaErr) {
//	    fmt.Printf("type=%s retryable=%v\n", detaErr.Type, detaErr.IsRetryable())
//	}
type Error struct {
	// Type categorizes the error for handling decisions
	Type ErrorType `json:"type"`
	// Code is an optional error code from the service
	Code string `json:"code,omitempty"`
	// Message is a human-readable error description
	Message string `json:"message"`
	// Details contains additional error metadata
	Details map[string]interface{} `json:"details,omitempty"`
	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
	// Timestamp is when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// Retryable indicates if the operation can be retried
	Retryable bool `json:"retryable"`
	// Context provides additional context about the failed operation
	Context *ErrorContext `json:"context,omitempty"`
	// wrapped is the underlying error, if any
	wrapped error
}

// ErrorContext describes the request that produced the error.
type ErrorContext struct {
	// URL is the full URL of the failed request
	URL string `json:"url,omitempty"`
	// Method is the HTTP method used
	Method string `json:"method,omitempty"`
	// Base is the base the operation targeted, if any
	Base string `json:"base,omitempty"`
	// Duration is how long the operation took before failing
	Duration time.Duration `json:"duration,omitempty"`
	// RetryCount is the number of retry attempts made
	RetryCount int `json:"retry_count,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Context != nil && e.Context.URL != "" {
		return fmt.Sprintf("%s error: %s (url: %s)", e.Type, e.Message, e.Context.URL)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is implements errors.Is
func (e *Error) Is(target error) bool {
	switch e.Type {
	case ErrorTypeTimeout:
		return errors.Is(target, ErrTimeout)
	case ErrorTypeAuth:
		return errors.Is(target, ErrUnauthorized)
	case ErrorTypeNotFound:
		return errors.Is(target, ErrNotFound)
	case ErrorTypeConflict:
		return errors.Is(target, ErrConflict)
	case ErrorTypeServer:
		return errors.Is(target, ErrServerError)
	case ErrorTypeCircuitOpen:
		return errors.Is(target, ErrCircuitOpen)
	case ErrorTypeRateLimit:
		return errors.Is(target, ErrRateLimited)
	case ErrorTypeRetryBudget:
		return errors.Is(target, ErrRetryBudgetExhausted)
	}
	return false
}

// IsRetryable returns true if the error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// WithContext adds error context
func (e *Error) WithContext(ctx *ErrorContext) *Error {
	e.Context = ctx
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError creates a new enhanced error
func NewError(errType ErrorType, message string, wrapped error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: isRetryableType(errType),
		wrapped:   wrapped,
	}
}

// NewErrorWithCode creates a new enhanced error with a code
func NewErrorWithCode(errType ErrorType, code, message string, wrapped error) *Error {
	err := NewError(errType, message, wrapped)
	err.Code = code
	return err
}

// isRetryableType determines if an error type is retryable.
// Only transient conditions qualify; semantic errors never retry.
func isRetryableType(errType ErrorType) bool {
	switch errType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit:
		return true
	default:
		return false
	}
}

// APIError represents an error response from the Deta Base API.
// It contains the HTTP status code and the error messages the service
// returns in its body.
//
// Example:
//
//	var apiErr *deta.APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.IsConflict() {
//	        // 409, key already exists
//	    }
//	}
type APIError struct {
	// StatusCode is the HTTP status code from the response
	StatusCode int `json:"-"`
	// Errors holds the error messages from the service body
	Errors []string `json:"errors,omitempty"`
	// Message is a fallback error message when the body is not structured
	Message string `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Errors[0])
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a not found error
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if the error is a key conflict
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsUnauthorized returns true if the service rejected the credential
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsServerError returns true if the error is a server error
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsClientError returns true if the error is a client error
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsRetryable returns true if the error is retryable
func (e *APIError) IsRetryable() bool {
	if e.IsServerError() {
		return true
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout {
		return true
	}
	return false
}

// ToError converts APIError to the enhanced Error type
func (e *APIError) ToError() *Error {
	var errType ErrorType
	switch {
	case e.StatusCode == http.StatusNotFound:
		errType = ErrorTypeNotFound
	case e.StatusCode == http.StatusConflict:
		errType = ErrorTypeConflict
	case e.IsUnauthorized():
		errType = ErrorTypeAuth
	case e.StatusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
	case e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusGatewayTimeout:
		errType = ErrorTypeTimeout
	case e.StatusCode == http.StatusBadRequest:
		errType = ErrorTypeValidation
	case e.IsServerError():
		errType = ErrorTypeServer
	default:
		errType = ErrorTypeClient
	}

	message := e.Message
	if len(e.Errors) > 0 {
		message = e.Errors[0]
	}
	err := NewError(errType, message, e)
	err.WithDetail("status_code", e.StatusCode)
	return err
}

// NetworkError represents a transport failure such as connection refused,
// DNS resolution failure, or a TLS handshake error.
type NetworkError struct {
	// Op is the operation that failed (e.g., "GET /items/key")
	Op string
	// Err is the underlying network error
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true; transport failures are considered transient
func (e *NetworkError) IsRetryable() bool {
	return true
}

// ToError converts NetworkError to the enhanced Error type
func (e *NetworkError) ToError() *Error {
	err := NewError(ErrorTypeNetwork, e.Error(), e)
	err.WithDetail("operation", e.Op)
	return err
}

// IsNotFound checks if the error represents a missing record.
//
// Example:
//
//	rec, err := base.Get(ctx, "user123")
//	if deta.IsNotFound(err) {
//	    // create the record instead
//	}
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsNotFound()
	}
	return false
}

// IsConflict checks if the error represents an insert on an existing key.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsConflict()
	}
	return false
}

// IsUnauthorized checks if the error represents a rejected credential.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsUnauthorized()
	}
	return false
}

// IsRetryable checks if an error is retryable. Retryable errors are
// network failures, timeouts, 5xx responses, and rate limiting. Semantic
// errors (not found, conflict, validation, auth) never retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrServerError) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		return enhancedErr.IsRetryable()
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.IsRetryable()
	}

	return false
}

// WrapError wraps an error with a type and message. If the error is
// already an enhanced Error, only the message is updated.
func WrapError(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		enhancedErr.Message = message
		return enhancedErr
	}

	return NewError(errType, message, err)
}
