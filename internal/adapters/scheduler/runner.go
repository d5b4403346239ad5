// Package scheduler provides the adapter that runs the check scheduler loop.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data"
	obserrors "github.com/slipstreamlabs/recordwatch/internal/observability/errors"
	"github.com/slipstreamlabs/recordwatch/internal/observability/metrics"
	"github.com/slipstreamlabs/recordwatch/internal/observability/statsd"
	"github.com/slipstreamlabs/recordwatch/internal/service"
)

// defaultInterval paces the tick loop. Checks fire on cron schedules measured
// in hours, so a sub-minute poll keeps firing latency low without load.
const defaultInterval = 30 * time.Second

// Runner drives the scheduler service on a fixed tick interval.
type Runner struct {
	scheduler core.JobScheduler
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB       *sql.DB
	Config   *core.SchedulerConfig
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// Optional dependency injections for testing/decoupling
	Jobs            core.JobRepository
	Scheduled       core.ScheduledChecksRepository
	JobIntrospector core.JobIntrospector
	Alerts          core.MapperAlertRepository
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	scheduler := service.NewSchedulerService(wireRunnerDependencies(opts))

	return &Runner{
		scheduler: scheduler,
		interval:  opts.Interval,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && (opts.Jobs == nil || opts.Scheduled == nil) {
		return errors.New("database connection is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wireRunnerDependencies assembles the scheduler service dependencies. The
// data repositories satisfy the core ports directly; injected test doubles
// take precedence.
func wireRunnerDependencies(opts RunnerOptions) service.SchedulerServiceOptions {
	jobs := opts.Jobs
	var jobRepo *data.JobRepo
	if jobs == nil {
		jobRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
		jobs = jobRepo
	}

	scheduled := opts.Scheduled
	if scheduled == nil {
		scheduled = data.NewScheduledChecksRepo(opts.DB)
	}

	ji := opts.JobIntrospector
	if ji == nil {
		if x, ok := jobs.(core.JobIntrospector); ok {
			ji = x
		} else if jobRepo != nil {
			ji = jobRepo
		}
	}

	alerts := opts.Alerts
	if alerts == nil && opts.DB != nil {
		alerts = data.NewMapperAlertRepo(opts.DB)
	}

	return service.SchedulerServiceOptions{
		Repo:            scheduled,
		Jobs:            jobs,
		JobIntrospector: ji,
		Alerts:          alerts,
		Config:          opts.Config,
		Logger:          opts.Logger,
	}
}

// Run starts the scheduler loop and runs until the context is cancelled.
// It calls Tick() at the configured interval and logs the results.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "scheduler runner starting", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case now := <-ticker.C:
			start := time.Now()
			processed, err := r.scheduler.Tick(ctx, now)
			elapsed := time.Since(start)

			r.emitTickMetrics(processed, elapsed, err)

			if err != nil {
				// Keep ticking; the next slot retries whatever failed
				r.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
			} else if processed > 0 {
				r.logger.InfoContext(ctx, "scheduler processed checks", "count", processed)
			}
		}
	}
}

func (r *Runner) emitTickMetrics(processed int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if processed == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.tick", 1, tags)

	if processed > 0 {
		r.metrics.Count("scheduler.checks_processed", int64(processed), tags)
	}

	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}

	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
