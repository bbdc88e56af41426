package client

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorKind classifies an upstream failure.
type ErrorKind string

const (
	// KindUnauthorized is a 401 response (invalid or missing API key).
	KindUnauthorized ErrorKind = "unauthorized"

	// KindForbidden is a 403 response.
	KindForbidden ErrorKind = "forbidden"

	// KindNotFound is a 404 response.
	KindNotFound ErrorKind = "not_found"

	// KindValidation is a 422 response with field-level messages.
	KindValidation ErrorKind = "validation"

	// KindRateLimited is a 429 response.
	KindRateLimited ErrorKind = "rate_limited"

	// KindNetwork is a transport-level failure (refused, DNS, timeout).
	KindNetwork ErrorKind = "network_unreachable"

	// KindUnknown is any other non-2xx response.
	KindUnknown ErrorKind = "unknown"
)

// APIError is a classified upstream failure with enough context for a
// caller to explain it without re-deriving from transport details.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Path       string
	ResourceID string              // trailing numeric path segment on 404, if any
	Message    string
	Fields     map[string][]string // per-field messages on 422
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "crm %s error", e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " on %s", e.Path)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure may succeed on retry.
func (e *APIError) Transient() bool {
	return shouldRetry(e.Kind)
}

// AsAPIError extracts an *APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// shouldRetry determines if an error kind should be retried.
func shouldRetry(kind ErrorKind) bool {
	switch kind {
	case KindRateLimited, KindNetwork:
		return true
	default:
		// 401/403/404/422 and unknown statuses are terminal
		return false
	}
}
