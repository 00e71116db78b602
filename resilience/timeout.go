package resilience

import (
	"context"
	"errors"
	"time"
)

// WithDeadline runs op under a deadline derived from the parent context.
// A zero timeout leaves the parent deadline in force. Deadline expiry is
// reported as ErrTimeout so callers can distinguish the budget running
// out from explicit cancellation.
func WithDeadline(ctx context.Context, timeout time.Duration, op func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	err := op(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
