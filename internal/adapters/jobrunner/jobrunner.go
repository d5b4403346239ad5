// Package jobrunner pulls queued jobs and drives them through the worker
// services for one job type per runner instance.
package jobrunner

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	obserrors "github.com/slipstreamlabs/recordwatch/internal/observability/errors"
	"github.com/slipstreamlabs/recordwatch/internal/observability/metrics"
	"github.com/slipstreamlabs/recordwatch/internal/observability/statsd"
	"github.com/slipstreamlabs/recordwatch/internal/service"
	"github.com/slipstreamlabs/recordwatch/internal/service/failurenotifier"
)

// HandlerFunc processes one reserved job. A returned error fails the queue row
// unless it is a context error, in which case the row is abandoned to the
// reaper.
type HandlerFunc func(ctx context.Context, job *model.Job) error

// PipelineTuning carries the worker knobs that encode the upstream request
// contract. Zero values defer to the service defaults.
type PipelineTuning struct {
	MaxListPages    int
	MaxSubjectMaps  int
	ListPageSize    int
	FetchAttempts   int
	FetchRetryDelay time.Duration
	UpstreamPause   time.Duration

	PositionBatchSize int
	PositionTopN      int
	MapCountThreshold int

	DigestSendConcurrency int
}

// RunnerOptions configures the queue consumer adapter.
type RunnerOptions struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient
	RaceClient  core.RaceClient
	Mailer      core.Mailer
	Logger      *slog.Logger

	// Job processing settings
	Lease      time.Duration // per-job lease duration; defaults to 30s
	JobType    model.JobType // which job type to process; defaults to map_search
	JobTimeout time.Duration // per-job execution budget; defaults per type

	// Concurrency is accepted for config compatibility but every queue type
	// runs a single consumer regardless of its value.
	Concurrency int

	// Pipeline tunes the worker services this runner constructs.
	Pipeline PipelineTuning

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	Results         core.JobResultRepository
	SearchStore     core.SearchJobStore
	MapperAlerts    core.MapperAlertRepository
	Drivers         core.DriverNotificationRepository
	Digests         core.DigestRepository
	Resolver        core.PlayerResolver
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner reserves jobs of a single type and executes them using the
// registered handler, holding the lease alive with a background heartbeat.
type Runner struct {
	jobs       *service.JobService
	logger     *slog.Logger
	lease      time.Duration
	jobType    model.JobType
	jobTimeout time.Duration
	workers    int
	handlers   map[model.JobType]HandlerFunc
	metrics    statsd.Sink
	results    core.JobResultRepository

	searches  *service.MapSearchService
	checks    *service.MapperCheckService
	positions *service.PositionService
	digests   *service.DigestService
}

// NewRunner wires repositories and worker services and constructs a queue
// consumer for a single job type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	logger := resolveLogger(opts.Logger)

	jt := opts.JobType
	if !jt.Valid() {
		jt = model.JobTypeMapSearch
	}

	deps := resolveDependencies(opts, logger)
	if err := validateDependencies(jt, opts, deps); err != nil {
		return nil, err
	}

	lease := resolveLease(opts.Lease)
	jobService := service.MustNewJobService(service.JobServiceOptions{
		Repo:            deps.jobsRepo,
		DefaultLease:    lease,
		Logger:          logger,
		FailureNotifier: opts.FailureNotifier,
	})

	svcs, err := buildServices(opts, deps, logger)
	if err != nil {
		return nil, err
	}

	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = defaultJobTimeout(jt)
	}

	r := &Runner{
		jobs:       jobService,
		logger:     logger,
		lease:      lease,
		jobType:    jt,
		jobTimeout: timeout,
		workers:    resolveWorkers(opts.Concurrency, logger, jt),
		handlers:   make(map[model.JobType]HandlerFunc),
		metrics:    opts.Metrics,
		results:    deps.results,
		searches:   svcs.searches,
		checks:     svcs.checks,
		positions:  svcs.positions,
		digests:    svcs.digests,
	}

	// Register handlers for every service the options could build; the
	// reserve loop only ever pulls r.jobType.
	if r.searches != nil {
		r.handlers[model.JobTypeMapSearch] = r.handleMapSearch
	}
	if r.checks != nil {
		r.handlers[model.JobTypeMapperCheck] = r.handleMapperCheck
	}
	if r.positions != nil {
		r.handlers[model.JobTypeDriverCheck] = r.handleDriverCheck
	}
	if r.digests != nil {
		r.handlers[model.JobTypeDigestDispatch] = r.handleDigestDispatch
	}

	return r, nil
}

// Run starts the worker loop and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner",
		"type", r.jobType, "workers", r.workers, "lease", r.lease, "job_timeout", r.jobTimeout)

	group, gctx := errgroup.WithContext(ctx)
	for range r.workers {
		group.Go(func() error { return r.runWorkerLoop(gctx) })
	}
	return group.Wait()
}

// runWorkerLoop reserves and processes jobs until the context ends.
func (r *Runner) runWorkerLoop(ctx context.Context) error {
	unsub, ch := r.jobs.Subscribe(r.jobType)
	defer unsub()

	for ctx.Err() == nil {
		job, err := r.jobs.ReserveNext(ctx, r.jobType, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, ch) {
				return nil
			}
		default:
			r.logger.ErrorContext(ctx, "failed to reserve next job", "type", r.jobType, "error", err)
			return err
		}
	}
	return ctx.Err()
}

// processJob executes a single reserved job under the per-type budget.
func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	r.logger.InfoContext(ctx, "processing job", "job_id", job.ID, "type", job.Type)

	start := time.Now()

	h, ok := r.handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type %s", job.Type)
		r.failJob(ctx, job.ID, err)
		r.emitJobMetric(jobMetricInput{
			Job:        job,
			Transition: "failed",
			Result:     metrics.ResultError,
			Elapsed:    time.Since(start),
			Err:        err,
		})
		return
	}

	jctx := ctx
	if r.jobTimeout > 0 {
		var cancel context.CancelFunc
		jctx, cancel = context.WithTimeout(ctx, r.jobTimeout)
		defer cancel()
	}

	stopHB := r.startHeartbeat(jctx, job.ID)
	defer stopHB()

	if err := h(jctx, job); err != nil {
		if isContextErr(err) {
			// A spent budget or a shutdown is an operational condition, not a
			// job failure. Leaving the row lets the lease lapse so the reaper
			// fails it and raises the alert.
			r.logger.WarnContext(ctx, "job abandoned before completion",
				"job_id", job.ID, "type", job.Type, "error", err)
			r.emitJobMetric(jobMetricInput{
				Job:        job,
				Transition: "abandoned",
				Result:     metrics.ResultError,
				Elapsed:    time.Since(start),
				Err:        err,
			})
			return
		}
		r.logger.ErrorContext(ctx, "job processing failed", "job_id", job.ID, "type", job.Type, "error", err)
		r.failJob(ctx, job.ID, err)
		r.recordRunSummary(ctx, job, runSummary{
			Status:    "failed",
			ElapsedMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		})
		r.emitJobMetric(jobMetricInput{
			Job:        job,
			Transition: "failed",
			Result:     metrics.ResultError,
			Elapsed:    time.Since(start),
			Err:        err,
		})
		return
	}

	r.recordRunSummary(ctx, job, runSummary{
		Status:    "completed",
		ElapsedMS: time.Since(start).Milliseconds(),
	})

	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		r.logger.ErrorContext(ctx, "failed to mark job as completed", "job_id", job.ID, "error", err)
		r.emitJobMetric(jobMetricInput{
			Job:        job,
			Transition: "completed",
			Result:     metrics.ResultError,
			Elapsed:    time.Since(start),
			Err:        err,
		})
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
		}
		r.emitJobMetric(jobMetricInput{
			Job:        job,
			Transition: "completed",
			Result:     result,
			Elapsed:    time.Since(start),
		})
	}
}

// runSummary is the execution record persisted for check-type jobs. It
// outlives the queue row, so an operator can audit a sweep after the reaper
// has pruned the job itself.
type runSummary struct {
	Status    string `json:"status"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// recordRunSummary persists the run outcome for check-type jobs. Search jobs
// keep their result in the TTL store instead, so they are skipped. Recording
// is best effort; a write failure never changes the job outcome.
func (r *Runner) recordRunSummary(ctx context.Context, job *model.Job, summary runSummary) {
	if r.results == nil || job.Type == model.JobTypeMapSearch {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to encode run summary", "job_id", job.ID, "error", err)
		return
	}

	if err := r.results.Upsert(ctx, core.UpsertJobResultParams{
		JobID:   job.ID,
		JobType: job.Type,
		Result:  payload,
	}); err != nil {
		r.logger.WarnContext(ctx, "failed to persist run summary", "job_id", job.ID, "error", err)
	}
}

// failJob marks the queue row failed with a classified error.
func (r *Runner) failJob(ctx context.Context, id string, cause error) {
	if _, err := r.jobs.FailWithDetails(ctx, id, cause.Error(), service.JobFailureDetails{
		ErrorClass: obserrors.Classify(cause),
		Metadata: map[string]string{
			"component": r.componentLabel(),
		},
	}); err != nil {
		r.logger.ErrorContext(ctx, "failed to mark job as failed", "job_id", id, "error", err)
	}
}

// startHeartbeat starts a background ticker to extend the job lease
// periodically. It returns a stop function to end the heartbeat.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	interval := r.lease / 2
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ok, err := r.jobs.Heartbeat(ctx, jobID, r.lease); err != nil {
					r.logger.ErrorContext(ctx, "heartbeat failed", "job_id", jobID, "error", err)
				} else if !ok {
					r.logger.WarnContext(ctx, "heartbeat not applied (job may be lost)", "job_id", jobID)
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

// waitForNotify waits for a job notification or context cancellation.
func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) handleMapSearch(ctx context.Context, job *model.Job) error {
	var payload model.MapSearchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode map_search payload: %w", err)
	}
	return r.searches.Process(ctx, payload)
}

func (r *Runner) handleMapperCheck(ctx context.Context, job *model.Job) error {
	var payload model.MapperCheckPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode mapper_check payload: %w", err)
	}
	return r.checks.Process(ctx, payload)
}

func (r *Runner) handleDriverCheck(ctx context.Context, job *model.Job) error {
	var payload model.DriverCheckPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode driver_check payload: %w", err)
	}
	return r.positions.SweepDrivers(ctx, payload.Date)
}

func (r *Runner) handleDigestDispatch(ctx context.Context, job *model.Job) error {
	var payload model.DigestDispatchPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode digest_dispatch payload: %w", err)
	}
	return r.digests.DispatchDaily(ctx, payload.Date)
}

func (r *Runner) componentLabel() string {
	switch r.jobType {
	case model.JobTypeMapSearch:
		return "search_runner"
	case model.JobTypeMapperCheck:
		return "mapper_check_runner"
	case model.JobTypeDriverCheck:
		return "driver_check_runner"
	case model.JobTypeDigestDispatch:
		return "digest_runner"
	default:
		return "job_runner"
	}
}

// Helper functions for dependency resolution and configuration

type runnerDeps struct {
	jobsRepo     core.JobRepository
	results      core.JobResultRepository
	searchStore  core.SearchJobStore
	mapperAlerts core.MapperAlertRepository
	drivers      core.DriverNotificationRepository
	digests      core.DigestRepository
	resolver     core.PlayerResolver
}

type runnerServices struct {
	searches  *service.MapSearchService
	checks    *service.MapperCheckService
	positions *service.PositionService
	digests   *service.DigestService
}

func resolveDependencies(opts RunnerOptions, logger *slog.Logger) runnerDeps {
	deps := runnerDeps{
		jobsRepo:     opts.JobsRepo,
		results:      opts.Results,
		searchStore:  opts.SearchStore,
		mapperAlerts: opts.MapperAlerts,
		drivers:      opts.Drivers,
		digests:      opts.Digests,
		resolver:     opts.Resolver,
	}

	if deps.jobsRepo == nil && opts.DB != nil {
		deps.jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	if deps.results == nil && opts.DB != nil {
		deps.results = data.NewJobResultRepo(opts.DB)
	}
	if deps.searchStore == nil && opts.RedisClient != nil {
		deps.searchStore = data.NewRedisSearchStore(opts.RedisClient, data.SearchStoreConfig{})
	}
	if deps.mapperAlerts == nil && opts.DB != nil {
		deps.mapperAlerts = data.NewMapperAlertRepo(opts.DB)
	}
	if deps.drivers == nil && opts.DB != nil {
		deps.drivers = data.NewDriverNotificationRepo(opts.DB)
	}
	if deps.digests == nil && opts.DB != nil {
		deps.digests = data.NewDigestRepo(opts.DB)
	}
	if deps.resolver == nil && opts.RaceClient != nil {
		deps.resolver = buildResolver(opts, logger)
	}

	return deps
}

// buildResolver assembles the cached display-name resolver. Resolution is a
// best-effort garnish on search and check output, so construction failure
// downgrades to running without one.
func buildResolver(opts RunnerOptions, logger *slog.Logger) core.PlayerResolver {
	var cache core.CacheRepository
	if opts.RedisClient != nil {
		cache = data.NewRedisCacheRepo(opts.RedisClient)
	}
	resolver, err := service.NewResolverService(service.ResolverServiceOptions{
		Client: opts.RaceClient,
		Cache:  cache,
		Logger: logger,
	})
	if err != nil {
		logger.Warn("running without a player resolver", "error", err)
		return nil
	}
	return resolver
}

func validateDependencies(jt model.JobType, opts RunnerOptions, deps runnerDeps) error {
	var missing []string
	if deps.jobsRepo == nil {
		missing = append(missing, "JobRepository")
	}

	switch jt {
	case model.JobTypeMapSearch:
		if opts.RaceClient == nil {
			missing = append(missing, "RaceClient")
		}
		if deps.searchStore == nil {
			missing = append(missing, "SearchJobStore")
		}
	case model.JobTypeMapperCheck:
		if opts.RaceClient == nil {
			missing = append(missing, "RaceClient")
		}
		if deps.mapperAlerts == nil {
			missing = append(missing, "MapperAlertRepository")
		}
		if deps.drivers == nil {
			missing = append(missing, "DriverNotificationRepository")
		}
		if deps.digests == nil {
			missing = append(missing, "DigestRepository")
		}
	case model.JobTypeDriverCheck:
		if opts.RaceClient == nil {
			missing = append(missing, "RaceClient")
		}
		if deps.drivers == nil {
			missing = append(missing, "DriverNotificationRepository")
		}
		if deps.digests == nil {
			missing = append(missing, "DigestRepository")
		}
	case model.JobTypeDigestDispatch:
		if deps.digests == nil {
			missing = append(missing, "DigestRepository")
		}
		if opts.Mailer == nil {
			missing = append(missing, "Mailer")
		}
	}

	if len(missing) == 0 {
		return nil
	}

	noun := "dependency"
	if len(missing) > 1 {
		noun = "dependencies"
	}
	return fmt.Errorf("%s runner missing required %s: %s", jt, noun, strings.Join(missing, ", "))
}

func buildServices(opts RunnerOptions, deps runnerDeps, logger *slog.Logger) (runnerServices, error) {
	var svcs runnerServices
	tune := opts.Pipeline

	if opts.RaceClient != nil && deps.searchStore != nil {
		searches, err := service.NewMapSearchService(service.MapSearchServiceOptions{
			Client:          opts.RaceClient,
			Store:           deps.searchStore,
			Resolver:        deps.resolver,
			Logger:          logger,
			MaxListPages:    tune.MaxListPages,
			MaxSubjectMaps:  tune.MaxSubjectMaps,
			ListPageSize:    tune.ListPageSize,
			FetchAttempts:   tune.FetchAttempts,
			FetchRetryDelay: tune.FetchRetryDelay,
			UpstreamPause:   tune.UpstreamPause,
		})
		if err != nil {
			return svcs, fmt.Errorf("create map search service: %w", err)
		}
		svcs.searches = searches
	}

	if opts.RaceClient != nil && deps.drivers != nil && deps.digests != nil {
		positions, err := service.NewPositionService(service.PositionServiceOptions{
			Client:        opts.RaceClient,
			Drivers:       deps.drivers,
			Digests:       deps.digests,
			Logger:        logger,
			BatchSize:     tune.PositionBatchSize,
			TopN:          tune.PositionTopN,
			UpstreamPause: tune.UpstreamPause,
		})
		if err != nil {
			return svcs, fmt.Errorf("create position service: %w", err)
		}
		svcs.positions = positions
	}

	// The mapper check borrows the position engine's batched sampling for its
	// inaccurate mode, so it only exists when the position service does.
	if opts.RaceClient != nil && deps.mapperAlerts != nil && deps.digests != nil && svcs.positions != nil {
		checks, err := service.NewMapperCheckService(service.MapperCheckServiceOptions{
			Client:          opts.RaceClient,
			Alerts:          deps.mapperAlerts,
			Digests:         deps.digests,
			Sampler:         svcs.positions,
			Resolver:        deps.resolver,
			Logger:          logger,
			Threshold:       tune.MapCountThreshold,
			MaxListPages:    tune.MaxListPages,
			MaxSubjectMaps:  tune.MaxSubjectMaps,
			ListPageSize:    tune.ListPageSize,
			FetchAttempts:   tune.FetchAttempts,
			FetchRetryDelay: tune.FetchRetryDelay,
			UpstreamPause:   tune.UpstreamPause,
		})
		if err != nil {
			return svcs, fmt.Errorf("create mapper check service: %w", err)
		}
		svcs.checks = checks
	}

	if deps.digests != nil && opts.Mailer != nil {
		digests, err := service.NewDigestService(service.DigestServiceOptions{
			Digests:         deps.digests,
			Mailer:          opts.Mailer,
			Logger:          logger,
			SendConcurrency: tune.DigestSendConcurrency,
		})
		if err != nil {
			return svcs, fmt.Errorf("create digest service: %w", err)
		}
		svcs.digests = digests
	}

	return svcs, nil
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func resolveLease(lease time.Duration) time.Duration {
	if lease > 0 {
		return lease
	}
	return 30 * time.Second
}

// resolveWorkers pins every queue type to one consumer. The upstream request
// budget holds only because calls are serialized with fixed sleeps, so extra
// workers would break the pacing contract rather than add throughput.
func resolveWorkers(requested int, logger *slog.Logger, jobType model.JobType) int {
	if requested > 1 && logger != nil {
		logger.Warn("ignoring configured concurrency; queue type runs a single consumer",
			"requested", requested, "job_type", jobType)
	}
	return 1
}

// defaultJobTimeout sizes the per-job budget for each queue type. Search and
// mapper sweeps can sit through several 15 minute retry pauses, so their
// budget is generous; the digest pass never talks to the upstream at all.
func defaultJobTimeout(jt model.JobType) time.Duration {
	switch jt {
	case model.JobTypeMapSearch, model.JobTypeMapperCheck:
		return 2 * time.Hour
	case model.JobTypeDriverCheck:
		return 30 * time.Minute
	case model.JobTypeDigestDispatch:
		return 15 * time.Minute
	default:
		return time.Hour
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type jobMetricInput struct {
	Job        *model.Job
	Transition string
	Result     string
	Elapsed    time.Duration
	Err        error
}

func (r *Runner) emitJobMetric(input jobMetricInput) {
	if r.metrics == nil || input.Job == nil {
		return
	}

	metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
		JobType:    string(input.Job.Type),
		Transition: input.Transition,
		Result:     input.Result,
		Duration:   input.Elapsed,
		Err:        input.Err,
	})
}
