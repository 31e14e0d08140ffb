// Package errors provides the typed error system shared across the SDK.
// Every failure that crosses a package boundary carries an ErrorCode so that
// the retry executor can classify it and callers can branch on the category
// without string matching.
package errors

import (
	stderr "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode identifies a failure class.
type ErrorCode string

const (
	// Transport failures.
	ErrCodeNetwork           ErrorCode = "NETWORK"
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeConnectionTimeout ErrorCode = "CONNECTION_TIMEOUT"

	// Credential failures.
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"

	// Malformed input from the caller.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// Upstream provider failures not otherwise classified.
	ErrCodeProvider         ErrorCode = "PROVIDER"
	ErrCodeProviderNotFound ErrorCode = "PROVIDER_NOT_FOUND"

	// Cache backend failures.
	ErrCodeCache ErrorCode = "CACHE"

	// Internal aggregator faults.
	ErrCodeAggregation ErrorCode = "AGGREGATION"

	// Misconfigured SDK.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// Provider throttling; carries a retry-after hint.
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT"

	// Deadline exceeded.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// Circuit breaker rejection.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
)

// Error is the structured error type used throughout the SDK.
type Error struct {
	Code     ErrorCode
	Message  string
	Provider string
	// RetryAfter is a throttling hint, set for ErrCodeRateLimit.
	RetryAfter time.Duration
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Provider != "" {
		b.WriteString("[" + e.Provider + "]")
	}
	b.WriteString(": " + e.Message)
	if e.cause != nil {
		b.WriteString(": " + e.cause.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithProvider tags the error with the originating provider name.
func (e *Error) WithProvider(name string) *Error {
	e.Provider = name
	return e
}

// WithRetryAfter records the upstream throttling hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// CodeOf returns the error code carried by err, or ErrCodeProvider when err is
// not a structured Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderr.As(err, &e) {
		return e.Code
	}
	return ErrCodeProvider
}

// retryablePatterns classifies plain errors whose text suggests a transient
// transport condition. Used only when no ErrorCode is attached.
var retryablePatterns = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"temporary",
	"unavailable",
	"too many requests",
	"rate limit",
	"eof",
}

var nonRetryablePatterns = []string{
	"unauthorized",
	"forbidden",
	"invalid",
	"validation",
	"not found",
	"bad request",
}

// Retryable reports whether the failure is worth retrying. Structured errors
// are classified by code; plain errors fall back to a textual heuristic.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if stderr.As(err, &e) {
		switch e.Code {
		case ErrCodeNetwork, ErrCodeConnectionFailed, ErrCodeConnectionTimeout,
			ErrCodeRateLimit, ErrCodeTimeout, ErrCodeProvider:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, p := range nonRetryablePatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Recoverable reports whether the failure is a provider-level condition that
// leaves the aggregated response usable. Aggregation and configuration faults
// are the only non-recoverable classes.
func Recoverable(err error) bool {
	var e *Error
	if stderr.As(err, &e) {
		return e.Code != ErrCodeAggregation && e.Code != ErrCodeConfiguration
	}
	return true
}
