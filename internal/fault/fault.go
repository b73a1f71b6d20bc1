// Package fault defines the closed error taxonomy surfaced by the review
// pipeline. Callers branch on Kind instead of inspecting transport errors.
package fault

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// KindInvalidURL indicates the input URL matched no supported platform pattern
	KindInvalidURL Kind = "invalid_url"
	// KindAuth indicates a missing, invalid, or expired credential
	KindAuth Kind = "auth"
	// KindNotFound indicates the PR, repository, or resource does not exist
	KindNotFound Kind = "not_found"
	// KindRateLimit indicates an upstream platform or model rate limit was hit
	KindRateLimit Kind = "rate_limit"
	// KindEmptyDiff indicates the PR has no changed files
	KindEmptyDiff Kind = "empty_diff"
	// KindQuotaExceeded indicates the model provider quota is exhausted
	KindQuotaExceeded Kind = "quota_exceeded"
	// KindMalformedResponse indicates model output failed schema validation
	KindMalformedResponse Kind = "malformed_response"
	// KindTimeout indicates a network step exceeded its budget after retries
	KindTimeout Kind = "timeout"
	// KindInternal covers failures outside the published taxonomy
	KindInternal Kind = "internal"
)

// Error is a classified pipeline error. It wraps the underlying cause so
// errors.Is/As keep working through the taxonomy.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // cooldown hint for rate limits, zero if unknown
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. A nil cause returns nil.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithRetryAfter attaches a cooldown hint and returns the same error.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// KindOf extracts the Kind from an error chain. Unclassified errors
// report KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// Retryable reports whether the failure may succeed on a later attempt.
// The caller decides the backoff; rate limits should honor RetryAfter.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindTimeout:
		return true
	default:
		return false
	}
}
