// Package failurenotifier fans job failure events out to the configured
// alerting sinks without ever blocking the worker that reported them.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/observability/metrics"
	"github.com/slipstreamlabs/recordwatch/internal/observability/notify"
	"github.com/slipstreamlabs/recordwatch/internal/observability/statsd"
)

const (
	defaultBufferSize      = 64
	defaultDeliveryTimeout = 30 * time.Second
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration

	// BufferSize bounds how many undelivered events are held in memory.
	// When the buffer is full the oldest event is evicted so the newest
	// failure is the one that reaches operators.
	BufferSize int

	// DeliveryTimeout caps how long a single event may spend in sink delivery.
	DeliveryTimeout time.Duration

	Metrics statsd.Sink
}

// Service dispatches failure events to all registered sinks from a background
// goroutine. NotifyJobFailure never blocks; events that cannot be buffered are
// dropped and counted.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	metrics statsd.Sink
	timeout time.Duration

	events chan notify.JobFailurePayload
	stop   chan struct{}
	done   chan struct{}

	stopOnce sync.Once
}

// NewService constructs a failure notifier and starts its delivery loop.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{
			Name: name,
			Sink: entry.Sink,
		})
	}

	bufferSize := opts.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	timeout := opts.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	s := &Service{
		logger:  logger,
		sinks:   sinks,
		metrics: opts.Metrics,
		timeout: timeout,
		events:  make(chan notify.JobFailurePayload, bufferSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	if len(s.sinks) == 0 {
		close(s.done)
		return s
	}

	go s.run()
	return s
}

// NotifyJobFailure queues the payload for delivery to all sinks. It returns
// immediately; when the buffer is full the oldest queued event is dropped.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now().UTC()
	}

	select {
	case s.events <- payload:
		return
	default:
	}

	select {
	case dropped := <-s.events:
		s.countDrop(ctx, dropped)
	default:
	}

	select {
	case s.events <- payload:
	default:
		// Producers raced us for the freed slot.
		s.countDrop(ctx, payload)
	}
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// Stop halts background delivery and waits for the in-flight event to finish.
// Buffered events that have not been delivered yet are discarded.
func (s *Service) Stop() {
	if len(s.sinks) == 0 {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		<-s.done
		if n := len(s.events); n > 0 {
			s.logger.Warn("failure notifier stopped with undelivered events", "count", n)
		}
	})
}

func (s *Service) run() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case payload := <-s.events:
			s.deliver(payload)
		}
	}
}

// deliver fans one event out to every sink. Delivery runs on its own context
// so a worker's cancelled job context cannot take the alert down with it.
func (s *Service) deliver(payload notify.JobFailurePayload) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := entry.Sink.SendJobFailure(ctx, payload)
			result := metrics.ResultSuccess
			if err != nil {
				result = metrics.ResultError
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"job_id", payload.JobID,
					"job_type", payload.JobType,
					"error", err,
				)
			}
			if s.metrics != nil {
				s.metrics.Count("notify.delivery", 1, map[string]string{
					"sink":   entry.Name,
					"result": result,
				})
			}
		}()
	}
	wg.Wait()
}

func (s *Service) countDrop(ctx context.Context, payload notify.JobFailurePayload) {
	if s.metrics != nil {
		s.metrics.Count("notify.dropped", 1, map[string]string{"job_type": payload.JobType})
	}
	s.logger.WarnContext(ctx, "failure notification dropped, buffer full",
		"job_id", payload.JobID,
		"job_type", payload.JobType,
	)
}
