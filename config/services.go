package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeAPI runs the ops API server.
	ServiceModeAPI ServiceMode = "api"
	// ServiceModeSearchWorker runs the on-demand map-search queue consumer.
	ServiceModeSearchWorker ServiceMode = "search-worker"
	// ServiceModeCheckWorker runs the daily mapper and driver check queue consumers.
	ServiceModeCheckWorker ServiceMode = "check-worker"
	// ServiceModeDigestWorker runs the digest dispatch queue consumer.
	ServiceModeDigestWorker ServiceMode = "digest-worker"
	// ServiceModeScheduler runs the scheduled-check dispatcher.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeAPI,
		ServiceModeSearchWorker,
		ServiceModeCheckWorker,
		ServiceModeDigestWorker,
		ServiceModeScheduler,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeAPI,
			ServiceModeSearchWorker,
			ServiceModeCheckWorker,
			ServiceModeDigestWorker,
			ServiceModeScheduler,
			ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: api, search-worker, check-worker, digest-worker, scheduler, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// BatchSize is the number of due checks to claim per tick.
	BatchSize int `env:"SCHEDULER_BATCH_SIZE" envDefault:"25"`

	// DefaultPriority is the default priority for enqueued jobs.
	DefaultPriority int `env:"SCHEDULER_DEFAULT_PRIORITY" envDefault:"0"`

	// OverrunPolicy determines how to handle checks whose previous run is still going.
	// Valid values: skip, queue, reschedule
	OverrunPolicy domain.OverrunPolicy `env:"SCHEDULER_OVERRUN" envDefault:"skip"`

	// OverrunStates defines which job states block new enqueue attempts when OverrunPolicy=skip.
	// Comma-separated list of: running, pending, retrying.
	OverrunStates domain.OverrunStateMask `env:"SCHEDULER_OVERRUN_STATES" envDefault:"running"`

	// Interval is the scheduler tick interval. The checks themselves fire on
	// hour-scale cron schedules, so sub-minute ticks buy nothing.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"30s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.BatchSize < 1 {
		s.BatchSize = 1
	}
	if s.OverrunStates == 0 {
		s.OverrunStates = domain.OverrunStatesDefault
	}
	if s.Interval < time.Second {
		s.Interval = time.Second
	}
}

// WorkerConfig contains queue consumer configuration for one job type.
// Concurrency is accepted for deployment symmetry but every queue type is
// clamped to a single consumer: the upstream request budget holds only
// because calls are serialized.
type WorkerConfig struct {
	Concurrency int           `env:"CONCURRENCY" envDefault:"1"`
	Lease       time.Duration `env:"LEASE"       envDefault:"5m"`
	Timeout     time.Duration `env:"TIMEOUT"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Lease < 30*time.Second {
		w.Lease = 30 * time.Second
	}
	if w.Timeout < 0 {
		w.Timeout = 0
	}
}

// WorkersConfig groups per-queue worker configuration.
type WorkersConfig struct {
	Search WorkerConfig `envPrefix:"SEARCH_WORKER_"`
	Check  WorkerConfig `envPrefix:"CHECK_WORKER_"`
	Digest WorkerConfig `envPrefix:"DIGEST_WORKER_"`
}

// Sanitize applies guardrails to all worker configurations.
func (w *WorkersConfig) Sanitize() {
	w.Search.Sanitize()
	w.Check.Sanitize()
	w.Digest.Sanitize()
}

// PipelineConfig tunes the worker services that talk to the upstream API.
// The retry delay and inter-map pause encode the upstream request contract
// and must not be shortened in production deployments.
type PipelineConfig struct {
	// MaxListPages caps the paginated map-listing walk; exceeding it fails the job.
	MaxListPages int `env:"PIPELINE_MAX_LIST_PAGES" envDefault:"100"`

	// MaxSubjectMaps caps how many maps one subject sweep may cover.
	MaxSubjectMaps int `env:"PIPELINE_MAX_SUBJECT_MAPS" envDefault:"1000"`

	// ListPageSize is the page size requested from the map index.
	ListPageSize int `env:"PIPELINE_LIST_PAGE_SIZE" envDefault:"100"`

	// FetchAttempts bounds per-map leaderboard fetch attempts.
	FetchAttempts int `env:"PIPELINE_FETCH_ATTEMPTS" envDefault:"3"`

	// FetchRetryDelay is the fixed wait between fetch attempts, per the
	// upstream cooldown contract. Fixed, never exponential.
	FetchRetryDelay time.Duration `env:"PIPELINE_FETCH_RETRY_DELAY" envDefault:"15m"`

	// UpstreamPause is the mandatory sleep after each map's leaderboard fetch.
	UpstreamPause time.Duration `env:"PIPELINE_UPSTREAM_PAUSE" envDefault:"500ms"`

	// PositionBatchSize is the number of map ids per batched position call.
	// The upstream contract caps this at 50.
	PositionBatchSize int `env:"PIPELINE_POSITION_BATCH_SIZE" envDefault:"50"`

	// PositionTopN is the ranked-window cutoff; a tracked player found outside
	// it goes inactive.
	PositionTopN int `env:"PIPELINE_POSITION_TOP_N" envDefault:"100"`

	// MapCountThreshold switches mapper checks between accurate and
	// inaccurate mode.
	MapCountThreshold int `env:"PIPELINE_MAP_COUNT_THRESHOLD" envDefault:"200"`
}

// Sanitize applies guardrails to pipeline configuration values.
func (p *PipelineConfig) Sanitize() {
	if p.MaxListPages < 1 {
		p.MaxListPages = 1
	}
	if p.MaxSubjectMaps < 1 {
		p.MaxSubjectMaps = 1
	}
	if p.ListPageSize < 1 {
		p.ListPageSize = 1
	}
	if p.FetchAttempts < 1 {
		p.FetchAttempts = 1
	}
	if p.FetchRetryDelay < 0 {
		p.FetchRetryDelay = 0
	}
	if p.UpstreamPause < 0 {
		p.UpstreamPause = 0
	}
	if p.PositionBatchSize < 1 {
		p.PositionBatchSize = 1
	}
	if p.PositionBatchSize > 50 {
		p.PositionBatchSize = 50
	}
	if p.PositionTopN < 1 {
		p.PositionTopN = 1
	}
	if p.MapCountThreshold < 1 {
		p.MapCountThreshold = 1
	}
}

// SearchConfig contains on-demand search acceptance configuration.
type SearchConfig struct {
	// DailyLimit is the per-username daily search quota.
	DailyLimit int64 `env:"SEARCH_DAILY_LIMIT" envDefault:"10"`

	// ResultTTL is how long search records survive in the ephemeral store.
	ResultTTL time.Duration `env:"SEARCH_RESULT_TTL" envDefault:"24h"`
}

// Sanitize applies guardrails to search configuration values.
func (s *SearchConfig) Sanitize() {
	if s.DailyLimit < 1 {
		s.DailyLimit = 1
	}
	if s.ResultTTL < time.Hour {
		s.ResultTTL = time.Hour
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are marked as failed.
	// Jobs stuck in pending status longer than this will be failed.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"24h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// JobResultsMaxAge is the maximum age for persisted job_results rows before deletion.
	// These records keep check-run history after their corresponding jobs are reaped.
	JobResultsMaxAge time.Duration `env:"REAPER_JOB_RESULTS_MAX_AGE" envDefault:"2160h"` // 90 days

	// DigestMaxAge is the maximum age for daily digest rows before deletion.
	DigestMaxAge time.Duration `env:"REAPER_DIGEST_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.JobResultsMaxAge < 24*time.Hour {
		r.JobResultsMaxAge = 24 * time.Hour
	}
	if r.DigestMaxAge < 24*time.Hour {
		r.DigestMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
