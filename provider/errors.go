package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ValidationError reports a malformed CompletionRequest.
// Validation errors are surfaced to the caller immediately and never
// count toward circuit breaker state.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Field == "messages" && e.Index > 0 {
		return fmt.Sprintf("provider: invalid request: %s (message %d)", e.Reason, e.Index)
	}
	return fmt.Sprintf("provider: invalid request: %s", e.Reason)
}

// AuthError reports a credential rejected by a backend.
// Fatal for that provider for the remainder of the call; it is a
// configuration problem, not a health signal, so it does not count
// toward the circuit breaker.
type AuthError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: authentication rejected (status %d): %s",
		e.Provider, e.StatusCode, e.Message)
}

// TransientError reports a backend failure that is expected to be
// temporary: timeouts, connection failures, 5xx responses, backend rate
// limiting, malformed response bodies. Transient errors count toward the
// circuit breaker and trigger fallback.
type TransientError struct {
	Provider   string
	StatusCode int
	Message    string
	RateLimit  bool // backend returned 429
	Cause      error
}

func (e *TransientError) Error() string {
	switch {
	case e.RateLimit:
		return fmt.Sprintf("provider %s: backend rate limited (status %d): %s",
			e.Provider, e.StatusCode, e.Message)
	case e.Cause != nil && e.StatusCode == 0:
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Message, e.Cause)
	default:
		return fmt.Sprintf("provider %s: transient backend error (status %d): %s",
			e.Provider, e.StatusCode, e.Message)
	}
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsAuth reports whether err is or wraps an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient reports whether err should count as a backend health
// failure. Context cancellation and deadline expiry from the caller are
// not backend faults; a backend-side timeout reaches here wrapped in a
// TransientError by the adapter and still counts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	// Checked before net.Error: context.DeadlineExceeded satisfies that
	// interface too.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// classifyStatus converts an HTTP status into the matching error type.
// 401/403 are fatal auth errors, 429 is a transient rate limit, anything
// else non-2xx is a transient backend error.
func classifyStatus(provider string, status int, message string) error {
	switch {
	case status == 401 || status == 403:
		return &AuthError{Provider: provider, StatusCode: status, Message: message}
	case status == 429:
		return &TransientError{Provider: provider, StatusCode: status, Message: message, RateLimit: true}
	default:
		return &TransientError{Provider: provider, StatusCode: status, Message: message}
	}
}
