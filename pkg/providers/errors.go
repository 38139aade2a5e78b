package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Class partitions adapter failures for the dispatcher's retry decision.
type Class int

const (
	// ClassPermanent marks failures that retrying cannot fix: invalid
	// symbols, malformed queries, upstream 4xx other than 429.
	ClassPermanent Class = iota

	// ClassTransient marks failures worth retrying: network errors,
	// timeouts, upstream rate limiting, and 5xx responses.
	ClassTransient
)

// String returns the class name for logs and metrics labels.
func (c Class) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "permanent"
}

// UpstreamError represents a non-2xx response from an upstream source.
// Its class depends on the status code: 429 and 5xx are transient,
// everything else is permanent.
type UpstreamError struct {
	// Source is the source id that returned the error.
	Source string

	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int

	// Message is the error message.
	Message string

	// Cause is the underlying error (if any).
	Cause error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("source %q error (status %d): %s", e.Source, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("source %q error: %s", e.Source, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Transient reports whether the status code indicates a retryable failure.
func (e *UpstreamError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500 || e.StatusCode == 0
}

// RateLimitError represents an upstream rate limit (HTTP 429). It carries
// the Retry-After duration when the upstream provided one. Always transient.
type RateLimitError struct {
	// Source is the source id that rate limited the request.
	Source string

	// RetryAfter is the duration to wait before retrying (if provided).
	RetryAfter time.Duration

	// Message is the upstream's error message.
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("source %q rate limit exceeded (retry after %s): %s",
			e.Source, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("source %q rate limit exceeded: %s", e.Source, e.Message)
}

// TimeoutError represents a per-attempt timeout. Always transient.
type TimeoutError struct {
	// Source is the source id where the timeout occurred.
	Source string

	// Timeout is the configured attempt timeout.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("source %q request timeout after %s", e.Source, e.Timeout)
}

// ParseError represents a malformed upstream response. Permanent: the
// upstream answered, it just answered garbage, and retrying rarely helps.
type ParseError struct {
	// Source is the source id that returned the malformed response.
	Source string

	// RawResponse is the raw body that failed to parse.
	RawResponse string

	// Cause is the underlying parse error.
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("source %q response parse error: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// SymbolNotFoundError represents a symbol the upstream does not know.
// Permanent.
type SymbolNotFoundError struct {
	// Source is the source id.
	Source string

	// Symbol is the unknown ticker.
	Symbol string
}

// Error implements the error interface.
func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("source %q does not know symbol %q", e.Source, e.Symbol)
}

// QueryError represents a query the adapter cannot express against its
// upstream (unsupported report kind, missing mandatory field). Permanent.
type QueryError struct {
	// Source is the source id.
	Source string

	// Message describes what is invalid about the query.
	Message string
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("source %q cannot serve query: %s", e.Source, e.Message)
}

// ConfigError represents an adapter configuration error.
type ConfigError struct {
	// Source is the source id with invalid configuration.
	Source string

	// Field is the configuration field that is invalid.
	Field string

	// Message describes the configuration error.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %q configuration error for field %q: %s",
		e.Source, e.Field, e.Message)
}

// Classify maps an adapter failure to its retry class.
//
// Transient: rate limits, timeouts, cancelled/deadline contexts, network
// errors, and upstream errors whose status is 429 or 5xx. Everything else,
// including parse failures and unknown symbols, is permanent. Context
// cancellation is reported transient here; the dispatcher checks the
// context separately and stops retrying regardless of class.
func Classify(err error) Class {
	var rateLimit *RateLimitError
	var timeout *TimeoutError
	var upstream *UpstreamError

	switch {
	case errors.As(err, &rateLimit), errors.As(err, &timeout):
		return ClassTransient
	case errors.As(err, &upstream):
		if upstream.Transient() {
			return ClassTransient
		}
		return ClassPermanent
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ClassTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	return ClassPermanent
}
