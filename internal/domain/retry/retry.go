// Package retry provides bounded fixed-delay retry schedules for upstream calls.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidAttempts indicates a policy was constructed with a non-positive attempt count.
var ErrInvalidAttempts = errors.New("retry attempts must be positive")

// ErrInvalidDelay indicates a policy was constructed with a negative delay.
var ErrInvalidDelay = errors.New("retry delay must not be negative")

// Policy retries an operation a bounded number of times with a fixed pause
// between attempts. The delay never grows: the upstream publishes a hard
// request budget, so waiting longer on later attempts buys nothing.
type Policy struct {
	attempts int
	delay    time.Duration
}

// NewPolicy constructs a Policy that runs an operation up to attempts times,
// pausing delay between attempts.
func NewPolicy(attempts int, delay time.Duration) (Policy, error) {
	if attempts <= 0 {
		return Policy{}, ErrInvalidAttempts
	}
	if delay < 0 {
		return Policy{}, ErrInvalidDelay
	}
	return Policy{attempts: attempts, delay: delay}, nil
}

// Attempts returns the total attempt budget, including the first try.
func (p Policy) Attempts() int {
	return p.attempts
}

// Delay returns the fixed pause applied between attempts.
func (p Policy) Delay() time.Duration {
	return p.delay
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled mid-pause. The final attempt's error is returned wrapped with the
// attempt count; a cancelled pause returns the context error joined with the
// most recent attempt error so callers see both.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	if p.attempts <= 0 {
		return ErrInvalidAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == p.attempts {
			break
		}
		if err := Sleep(ctx, p.delay); err != nil {
			return errors.Join(err, lastErr)
		}
	}

	return fmt.Errorf("after %d attempts: %w", p.attempts, lastErr)
}

// Sleep pauses for d or until ctx is cancelled, whichever comes first.
// Returns the context error when the pause is cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
