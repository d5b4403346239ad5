package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// captureSink records emitted metrics for assertions.
type captureSink struct {
	mu      sync.Mutex
	counts  []capturedMetric
	gauges  []capturedMetric
	timings []capturedMetric
}

type capturedMetric struct {
	name string
	tags map[string]string
}

func (s *captureSink) Count(name string, _ int64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, capturedMetric{name: name, tags: tags})
}

func (s *captureSink) Gauge(name string, _ float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, capturedMetric{name: name, tags: tags})
}

func (s *captureSink) Timing(name string, _ time.Duration, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timings = append(s.timings, capturedMetric{name: name, tags: tags})
}

func (s *captureSink) countNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.counts))
	for _, m := range s.counts {
		names = append(names, m.name)
	}
	return names
}

// tickFunc adapts a function to core.JobScheduler.
type tickFunc func(ctx context.Context, now time.Time) (int, error)

func (f tickFunc) Tick(ctx context.Context, now time.Time) (int, error) {
	return f(ctx, now)
}

func TestNewRunner_RequiresDatabaseOrRepositories(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database connection is required")
}

func TestNewRunner_InjectedRepositories(t *testing.T) {
	ctrl := gomock.NewController(t)

	runner, err := NewRunner(RunnerOptions{
		Jobs:            mocks.NewMockJobRepository(ctrl),
		Scheduled:       mocks.NewMockScheduledChecksRepository(ctrl),
		JobIntrospector: mocks.NewMockJobIntrospector(ctrl),
	})
	require.NoError(t, err)
	require.NotNil(t, runner)

	assert.Equal(t, defaultInterval, runner.interval)
	assert.NotNil(t, runner.logger)
}

func TestNewRunner_CustomInterval(t *testing.T) {
	ctrl := gomock.NewController(t)

	runner, err := NewRunner(RunnerOptions{
		Jobs:            mocks.NewMockJobRepository(ctrl),
		Scheduled:       mocks.NewMockScheduledChecksRepository(ctrl),
		JobIntrospector: mocks.NewMockJobIntrospector(ctrl),
		Interval:        5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, runner.interval)
}

func TestRunner_Run_TicksUntilCancelled(t *testing.T) {
	sink := &captureSink{}
	ticks := make(chan struct{}, 16)

	var scheduler core.JobScheduler = tickFunc(func(_ context.Context, _ time.Time) (int, error) {
		select {
		case ticks <- struct{}{}:
		default:
		}
		return 1, nil
	})

	runner := &Runner{
		scheduler: scheduler,
		interval:  5 * time.Millisecond,
		logger:    slog.Default(),
		metrics:   sink,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	// Wait for at least two ticks before stopping
	for range 2 {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for scheduler tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation should stop the runner cleanly")
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	names := sink.countNames()
	assert.Contains(t, names, "scheduler.tick")
	assert.Contains(t, names, "scheduler.checks_processed")
}

func TestRunner_Run_KeepsTickingAfterError(t *testing.T) {
	sink := &captureSink{}
	ticks := make(chan struct{}, 16)

	var calls int
	var mu sync.Mutex
	var scheduler core.JobScheduler = tickFunc(func(_ context.Context, _ time.Time) (int, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		select {
		case ticks <- struct{}{}:
		default:
		}
		if n == 1 {
			return 0, errors.New("transient database error")
		}
		return 0, nil
	})

	runner := &Runner{
		scheduler: scheduler,
		interval:  5 * time.Millisecond,
		logger:    slog.Default(),
		metrics:   sink,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	// The first tick fails; the loop must keep going and tick again
	for range 2 {
		select {
		case <-ticks:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for scheduler tick")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunner_EmitTickMetrics(t *testing.T) {
	t.Run("success with processed checks", func(t *testing.T) {
		sink := &captureSink{}
		r := &Runner{metrics: sink}

		r.emitTickMetrics(3, 25*time.Millisecond, nil)

		require.Len(t, sink.counts, 2)
		assert.Equal(t, "scheduler.tick", sink.counts[0].name)
		assert.Equal(t, "success", sink.counts[0].tags["result"])
		assert.Equal(t, "scheduler.checks_processed", sink.counts[1].name)
		require.Len(t, sink.timings, 1)
		assert.Equal(t, "scheduler.tick_duration", sink.timings[0].name)
		require.Len(t, sink.gauges, 1)
		assert.Equal(t, "scheduler.last_success_epoch", sink.gauges[0].name)
	})

	t.Run("noop tick", func(t *testing.T) {
		sink := &captureSink{}
		r := &Runner{metrics: sink}

		r.emitTickMetrics(0, time.Millisecond, nil)

		require.Len(t, sink.counts, 1)
		assert.Equal(t, "scheduler.tick", sink.counts[0].name)
		assert.Equal(t, "noop", sink.counts[0].tags["result"])
		// A no-op tick is still a healthy one
		require.Len(t, sink.gauges, 1)
		assert.Equal(t, "scheduler.last_success_epoch", sink.gauges[0].name)
	})

	t.Run("error tagged with class", func(t *testing.T) {
		sink := &captureSink{}
		r := &Runner{metrics: sink}

		r.emitTickMetrics(0, time.Millisecond, errors.New("boom"))

		require.Len(t, sink.counts, 1)
		assert.Equal(t, "error", sink.counts[0].tags["result"])
		assert.NotEmpty(t, sink.counts[0].tags["error_class"])
		assert.Empty(t, sink.gauges, "failed ticks must not refresh the success gauge")
	})

	t.Run("nil sink is a no-op", func(t *testing.T) {
		r := &Runner{}
		r.emitTickMetrics(1, time.Millisecond, nil)
	})
}
