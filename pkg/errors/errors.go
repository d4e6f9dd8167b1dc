package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeForbidden   ErrorType = "forbidden"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// RateLimitInfo carries the throttling headers returned with a 429
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Error represents a platform API error with type information
type Error struct {
	Type      ErrorType
	Message   string
	Code      int
	Endpoint  string
	RateLimit *RateLimitInfo
}

func (e *Error) Error() string {
	if e.Type == ErrorTypeRateLimit && e.RateLimit != nil && !e.RateLimit.Reset.IsZero() {
		return fmt.Sprintf("%s error (code %d): %s (throttled until %s)", e.Type, e.Code, e.Message, e.RateLimit.Reset.Local().Format(time.Kitchen))
	}
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

// New builds an Error of the given type
func New(t ErrorType, code int, msg string) *Error {
	return &Error{Type: t, Code: code, Message: msg}
}

// NewRateLimit builds a rate limit error for an endpoint
func NewRateLimit(endpoint string, info *RateLimitInfo) *Error {
	return &Error{
		Type:      ErrorTypeRateLimit,
		Message:   "rate limit exceeded",
		Code:      429,
		Endpoint:  endpoint,
		RateLimit: info,
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown for foreign errors
func TypeOf(err error) ErrorType {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Type
	}
	return ErrorTypeUnknown
}

// IsRateLimit reports whether err (or anything it wraps) is a rate limit signal
func IsRateLimit(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeRateLimit
}

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool {
	return err != nil && TypeOf(err) == ErrorTypeNotFound
}

// IsRetryable checks if an error type should be retried at the transport level.
// Rate limits are not retried here; sessions pause on them instead.
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404, 429:
		return false
	default:
		return statusCode >= 500
	}
}

// FromStatusCode maps an HTTP status to an ErrorType
func FromStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 401:
		return ErrorTypeAuth
	case statusCode == 403:
		return ErrorTypeForbidden
	case statusCode == 404:
		return ErrorTypeNotFound
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}
