package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/slipstreamlabs/recordwatch/config"
	"github.com/slipstreamlabs/recordwatch/internal/adapters/jobrunner"
	"github.com/slipstreamlabs/recordwatch/internal/adapters/raceapi"
	"github.com/slipstreamlabs/recordwatch/internal/adapters/reaper"
	schedrunner "github.com/slipstreamlabs/recordwatch/internal/adapters/scheduler"
	smtpadapter "github.com/slipstreamlabs/recordwatch/internal/adapters/smtp"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data"
	"github.com/slipstreamlabs/recordwatch/internal/data/cryptoutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/observability/statsd"
	"github.com/slipstreamlabs/recordwatch/internal/service/failurenotifier"
)

// BuildRaceClient constructs the upstream race API client with its cached,
// encrypted credential manager. Returns an error when the upstream
// configuration is incomplete; worker modes cannot run without it.
func BuildRaceClient(
	cfg config.RaceAPIConfig,
	redisClient redis.UniversalClient,
	encryptor cryptoutil.Encryptor,
	logger *slog.Logger,
) (core.RaceClient, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("upstream race API is not configured")
	}
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required for the credential cache")
	}

	tokens, err := raceapi.NewTokenManager(raceapi.TokenManagerOptions{
		Cache:     data.NewRedisCacheRepo(redisClient),
		Encryptor: encryptor,
		Config: raceapi.TokenConfig{
			IssuerURL:    cfg.IssuerURL,
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Username:     cfg.Username,
			Password:     cfg.Password,
			Scopes:       cfg.Scopes,
			Freshness:    cfg.TokenFreshness,
			CacheKey:     cfg.TokenCacheKey,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create token manager: %w", err)
	}

	client, err := raceapi.NewClient(raceapi.ClientOptions{
		Tokens: tokens,
		Config: raceapi.Config{
			MapsURL:           cfg.MapsURL,
			LeaderboardURL:    cfg.LeaderboardURL,
			PositionsURL:      cfg.PositionsURL,
			AccountsURL:       cfg.AccountsURL,
			LeaderboardLength: cfg.LeaderboardLength,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Timeout:           cfg.Timeout,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create race API client: %w", err)
	}

	return client, nil
}

// BuildMailer constructs the outbound mailer. Disabled or dev deployments get
// a nop mailer that logs deliveries instead of sending them.
//
//nolint:ireturn // Returning Mailer interface is required for runner injection.
func BuildMailer(cfg config.SMTPConfig, isDev bool, logger *slog.Logger) (core.Mailer, error) {
	if !cfg.Enabled || isDev {
		return smtpadapter.NewNopMailer(logger), nil
	}
	mailer, err := smtpadapter.NewMailer(smtpadapter.MailerOptions{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create SMTP mailer: %w", err)
	}
	return mailer, nil
}

// pipelineTuning maps worker pipeline configuration onto runner tuning.
func pipelineTuning(p config.PipelineConfig, d config.DigestConfig) jobrunner.PipelineTuning {
	return jobrunner.PipelineTuning{
		MaxListPages:          p.MaxListPages,
		MaxSubjectMaps:        p.MaxSubjectMaps,
		ListPageSize:          p.ListPageSize,
		FetchAttempts:         p.FetchAttempts,
		FetchRetryDelay:       p.FetchRetryDelay,
		UpstreamPause:         p.UpstreamPause,
		PositionBatchSize:     p.PositionBatchSize,
		PositionTopN:          p.PositionTopN,
		MapCountThreshold:     p.MapCountThreshold,
		DigestSendConcurrency: d.SendConcurrency,
	}
}

// runJobRunner centralizes queue consumer setup so individual workers only
// pass job-specific options.
func runJobRunner(ctx context.Context, opts jobrunner.RunnerOptions) error {
	label := jobRunnerLabel(opts.JobType)

	runner, err := jobrunner.NewRunner(opts)
	if err != nil {
		return fmt.Errorf("create %s runner: %w", label, err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run %s runner: %w", label, runErr)
	}
	return nil
}

func jobRunnerLabel(jobType model.JobType) string {
	switch jobType {
	case model.JobTypeMapSearch:
		return "map search"
	case model.JobTypeMapperCheck:
		return "mapper check"
	case model.JobTypeDriverCheck:
		return "driver check"
	case model.JobTypeDigestDispatch:
		return "digest dispatch"
	}

	if jobType == "" {
		return "job"
	}
	return strings.ToLower(strings.ReplaceAll(string(jobType), "_", " "))
}

// SearchWorkerConfig contains configuration for the map-search worker.
type SearchWorkerConfig struct {
	DB              *sql.DB
	RedisClient     redis.UniversalClient
	RaceClient      core.RaceClient
	Logger          *slog.Logger
	Worker          config.WorkerConfig
	Pipeline        config.PipelineConfig
	ResultTTL       time.Duration
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunSearchWorker starts the on-demand map-search queue consumer.
func RunSearchWorker(ctx context.Context, cfg SearchWorkerConfig) error {
	var store core.SearchJobStore
	if cfg.RedisClient != nil {
		store = data.NewRedisSearchStore(cfg.RedisClient, data.SearchStoreConfig{TTL: cfg.ResultTTL})
	}

	return runJobRunner(ctx, jobrunner.RunnerOptions{
		DB:              cfg.DB,
		RedisClient:     cfg.RedisClient,
		RaceClient:      cfg.RaceClient,
		Logger:          cfg.Logger,
		Lease:           cfg.Worker.Lease,
		JobType:         model.JobTypeMapSearch,
		JobTimeout:      cfg.Worker.Timeout,
		Concurrency:     cfg.Worker.Concurrency,
		Pipeline:        pipelineTuning(cfg.Pipeline, config.DigestConfig{}),
		SearchStore:     store,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
}

// CheckWorkerConfig contains configuration for the daily check worker.
type CheckWorkerConfig struct {
	DB              *sql.DB
	RedisClient     redis.UniversalClient
	RaceClient      core.RaceClient
	Logger          *slog.Logger
	Worker          config.WorkerConfig
	Pipeline        config.PipelineConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunCheckWorker starts the mapper-check and driver-check queue consumers.
// Each job type gets its own single consumer; the shared transport limiter
// inside the race client keeps their combined call rate inside the upstream
// budget.
func RunCheckWorker(ctx context.Context, cfg CheckWorkerConfig) error {
	group, gctx := errgroup.WithContext(ctx)

	for _, jobType := range []model.JobType{model.JobTypeMapperCheck, model.JobTypeDriverCheck} {
		group.Go(func() error {
			return runJobRunner(gctx, jobrunner.RunnerOptions{
				DB:              cfg.DB,
				RedisClient:     cfg.RedisClient,
				RaceClient:      cfg.RaceClient,
				Logger:          cfg.Logger,
				Lease:           cfg.Worker.Lease,
				JobType:         jobType,
				JobTimeout:      cfg.Worker.Timeout,
				Concurrency:     cfg.Worker.Concurrency,
				Pipeline:        pipelineTuning(cfg.Pipeline, config.DigestConfig{}),
				Metrics:         cfg.Metrics,
				FailureNotifier: cfg.FailureNotifier,
			})
		})
	}

	return group.Wait()
}

// DigestWorkerConfig contains configuration for the digest dispatch worker.
type DigestWorkerConfig struct {
	DB              *sql.DB
	RedisClient     redis.UniversalClient
	Mailer          core.Mailer
	Logger          *slog.Logger
	Worker          config.WorkerConfig
	Digest          config.DigestConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunDigestWorker starts the digest dispatch queue consumer.
func RunDigestWorker(ctx context.Context, cfg DigestWorkerConfig) error {
	return runJobRunner(ctx, jobrunner.RunnerOptions{
		DB:              cfg.DB,
		RedisClient:     cfg.RedisClient,
		Mailer:          cfg.Mailer,
		Logger:          cfg.Logger,
		Lease:           cfg.Worker.Lease,
		JobType:         model.JobTypeDigestDispatch,
		JobTimeout:      cfg.Worker.Timeout,
		Concurrency:     cfg.Worker.Concurrency,
		Pipeline:        pipelineTuning(config.PipelineConfig{}, cfg.Digest),
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
}

// SchedulerConfig contains configuration for the scheduled-check dispatcher.
type SchedulerConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.SchedulerConfig
	Metrics statsd.Sink
}

// RunScheduler starts the scheduled-check dispatcher.
func RunScheduler(ctx context.Context, cfg SchedulerConfig) error {
	schedulerCfg := core.SchedulerConfig{
		BatchSize:       cfg.Config.BatchSize,
		DefaultPriority: cfg.Config.DefaultPriority,
		Strategy: domain.StrategyOptions{
			Overrun:       cfg.Config.OverrunPolicy,
			OverrunStates: cfg.Config.OverrunStates,
		},
	}

	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		DB:       cfg.DB,
		Config:   &schedulerCfg,
		Interval: cfg.Config.Interval,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for the reaper.
type ReaperConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Config          config.ReaperConfig
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:              cfg.DB,
		Config:          cfg.Config,
		Logger:          cfg.Logger,
		Metrics:         cfg.Metrics,
		FailureNotifier: cfg.FailureNotifier,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
