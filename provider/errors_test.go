package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		wantAuth  bool
		rateLimit bool
	}{
		{401, true, false},
		{403, true, false},
		{429, false, true},
		{500, false, false},
		{503, false, false},
		{400, false, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			err := classifyStatus("openai", tt.status, "nope")

			if got := IsAuth(err); got != tt.wantAuth {
				t.Errorf("IsAuth() = %v, want %v", got, tt.wantAuth)
			}
			if !tt.wantAuth && !IsTransient(err) {
				t.Error("non-auth status should classify as transient")
			}
			var te *TransientError
			if errors.As(err, &te) && te.RateLimit != tt.rateLimit {
				t.Errorf("RateLimit = %v, want %v", te.RateLimit, tt.rateLimit)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(&TransientError{Provider: "x", Message: "boom"}) {
		t.Error("TransientError should be transient")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", &TransientError{Provider: "x"})) {
		t.Error("wrapped TransientError should be transient")
	}
	if IsTransient(context.DeadlineExceeded) {
		t.Error("the caller's own deadline expiry is not a backend fault")
	}
	if IsTransient(context.Canceled) {
		t.Error("caller cancellation is not a backend fault")
	}
	if IsTransient(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Error("wrapped caller deadline expiry is not a backend fault")
	}
	if !IsTransient(&TransientError{Provider: "x", Message: "timeout", Cause: context.DeadlineExceeded}) {
		t.Error("an adapter-classified backend timeout stays transient")
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
	if IsTransient(&AuthError{Provider: "x"}) {
		t.Error("auth errors are not transient")
	}
	if IsTransient(errors.New("unclassified")) {
		t.Error("arbitrary errors are not transient")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TransientError{Provider: "ollama", Message: "request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("Unwrap() does not expose the cause")
	}
}
