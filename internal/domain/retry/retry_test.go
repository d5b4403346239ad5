package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		policy, err := NewPolicy(3, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, policy.Attempts())
		assert.Equal(t, 50*time.Millisecond, policy.Delay())
	})

	t.Run("zero attempts", func(t *testing.T) {
		_, err := NewPolicy(0, time.Second)
		require.ErrorIs(t, err, ErrInvalidAttempts)
	})

	t.Run("negative delay", func(t *testing.T) {
		_, err := NewPolicy(1, -time.Second)
		require.ErrorIs(t, err, ErrInvalidDelay)
	})
}

func TestPolicy_Do(t *testing.T) {
	t.Run("first attempt succeeds", func(t *testing.T) {
		policy, err := NewPolicy(3, time.Hour)
		require.NoError(t, err)

		calls := 0
		err = policy.Do(context.Background(), func(context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		policy, err := NewPolicy(3, time.Millisecond)
		require.NoError(t, err)

		calls := 0
		err = policy.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		policy, err := NewPolicy(2, time.Millisecond)
		require.NoError(t, err)

		sentinel := errors.New("still down")
		calls := 0
		err = policy.Do(context.Background(), func(context.Context) error {
			calls++
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.ErrorContains(t, err, "after 2 attempts")
		assert.Equal(t, 2, calls)
	})

	t.Run("delay stays fixed between attempts", func(t *testing.T) {
		policy, err := NewPolicy(3, 30*time.Millisecond)
		require.NoError(t, err)

		var stamps []time.Time
		_ = policy.Do(context.Background(), func(context.Context) error {
			stamps = append(stamps, time.Now())
			return errors.New("nope")
		})

		require.Len(t, stamps, 3)
		first := stamps[1].Sub(stamps[0])
		second := stamps[2].Sub(stamps[1])
		assert.GreaterOrEqual(t, first, 30*time.Millisecond)
		assert.GreaterOrEqual(t, second, 30*time.Millisecond)
		// Fixed schedule: the second gap must not stretch the way an
		// exponential policy would.
		assert.Less(t, second, 10*first)
	})

	t.Run("cancellation interrupts the pause", func(t *testing.T) {
		policy, err := NewPolicy(5, time.Hour)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		sentinel := errors.New("down")
		calls := 0

		done := make(chan error, 1)
		go func() {
			done <- policy.Do(ctx, func(context.Context) error {
				calls++
				return sentinel
			})
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.ErrorIs(t, err, context.Canceled)
			assert.ErrorIs(t, err, sentinel)
		case <-time.After(time.Second):
			t.Fatal("expected Do to return promptly after cancellation")
		}
		assert.Equal(t, 1, calls)
	})

	t.Run("pre-cancelled context skips the attempt", func(t *testing.T) {
		policy, err := NewPolicy(2, time.Millisecond)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		calls := 0
		err = policy.Do(ctx, func(context.Context) error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, calls)
	})
}

func TestSleep(t *testing.T) {
	t.Run("elapses", func(t *testing.T) {
		start := time.Now()
		err := Sleep(context.Background(), 20*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		err := Sleep(ctx, time.Hour)
		require.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("zero duration returns immediately", func(t *testing.T) {
		require.NoError(t, Sleep(context.Background(), 0))
	})
}
