// Package service provides business logic services for the recordwatch job system.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	domainscheduler "github.com/slipstreamlabs/recordwatch/internal/domain/scheduler"
)

// Scheduled check names the dispatcher recognises. Qualified variants such as
// "mapper_fanout:eu" resolve by the segment before the first colon.
const (
	checkNameMapperFanout   = "mapper_fanout"
	checkNameDriverFanout   = "driver_fanout"
	checkNameDigestDispatch = "digest_dispatch"
)

// SchedulerService implements the JobScheduler interface.
// It processes due scheduled checks, applies overrun strategy, enqueues jobs, and advances next_run_at.
// Safe under concurrent replicas through database-level concurrency controls.
type SchedulerService struct {
	repo         core.ScheduledChecksRepository
	jobs         core.JobRepository
	jobq         core.JobIntrospector
	alerts       core.MapperAlertRepository // fan-out source for mapper checks
	cfg          core.SchedulerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger

	checkProcessor *domainscheduler.CheckProcessor
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) *SchedulerService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Config == nil {
		defaultCfg := core.DefaultSchedulerConfig()
		opts.Config = &defaultCfg
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &SchedulerService{
		repo:         opts.Repo,
		jobs:         opts.Jobs,
		jobq:         opts.JobIntrospector,
		alerts:       opts.Alerts,
		cfg:          *opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
		checkProcessor: domainscheduler.NewCheckProcessor(domainscheduler.CheckProcessorOptions{
			DefaultPolicy: opts.Config.Strategy.Overrun,
			DefaultStates: opts.Config.Strategy.OverrunStates,
			StateReader:   opts.JobIntrospector,
		}),
	}
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Repo            core.ScheduledChecksRepository
	Jobs            core.JobRepository
	JobIntrospector core.JobIntrospector
	Alerts          core.MapperAlertRepository // Optional: required only when a mapper fan-out check is scheduled
	Config          *core.SchedulerConfig
	TimeProvider    data.TimeProvider
	Logger          *slog.Logger
}

// Tick processes due scheduled checks and enqueues jobs according to strategy.
// Returns the number of checks processed.
//
// Algorithm:
// 1. Find due checks using batch size limit
// 2. For each check, try to acquire advisory lock by check name
// 3. If lock acquired, apply overrun policy and potentially enqueue jobs
// 4. Advance next_run_at along the check's cron schedule
//
// Concurrency safety:
// - FindDue uses FOR UPDATE SKIP LOCKED to prevent double-processing
// - TryWithCheckLock uses advisory locks to ensure only one replica processes each check.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.FindDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find due checks: %w", err)
	}

	processed := 0
	for _, check := range due {
		worked := false
		lockOK, lockErr := s.repo.TryWithCheckLock(ctx, check.CheckName, func(ctx context.Context, tx *sql.Tx) error {
			w, processErr := s.processCheck(ctx, tx, check)
			if w {
				worked = true
			}
			return processErr
		})
		if lockErr != nil {
			return processed, fmt.Errorf("process check %s: %w", check.CheckName, lockErr)
		}
		if lockOK && worked {
			processed++
		}
		// If ok==false, another replica is handling this check; skip
	}

	return processed, nil
}

// processCheck handles a single scheduled check within a transaction.
// Returns worked=true if this invocation actually made a change (advanced the schedule or created a job).
// This function is called within TryWithCheckLock, so it has exclusive access to the check during execution.
func (s *SchedulerService) processCheck(
	ctx context.Context,
	tx *sql.Tx,
	check domain.ScheduledCheck,
) (bool, error) {
	now := s.timeProvider.Now()

	if s.checkProcessor == nil {
		return false, errors.New("check processor is not configured")
	}

	result, err := s.checkProcessor.Process(ctx, domainscheduler.ProcessParams{
		Check: check,
		Now:   now,
		Store: checkStoreAdapter{
			repo: s.repo,
			tx:   tx,
		},
		Enqueuer: checkEnqueuer{
			service: s,
			tx:      tx,
		},
	})
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}
	return result.Worked, nil
}

type checkStoreAdapter struct {
	repo core.ScheduledChecksRepository
	tx   *sql.Tx
}

func (a checkStoreAdapter) MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error) {
	return a.repo.MarkQueuedTx(ctx, a.tx, params)
}

func (a checkStoreAdapter) UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error {
	return a.repo.UpdateActiveFireKeyTx(ctx, a.tx, params)
}

type checkEnqueuer struct {
	service *SchedulerService
	tx      *sql.Tx
}

func (e checkEnqueuer) Enqueue(ctx context.Context, check domain.ScheduledCheck, fireKey string) (bool, error) {
	return e.service.enqueueJobs(ctx, enqueueJobsParams{
		Tx:      e.tx,
		Check:   check,
		FireKey: fireKey,
	})
}

type enqueueJobsParams struct {
	Tx      *sql.Tx
	Check   domain.ScheduledCheck
	FireKey string
}

// enqueueJobs creates the jobs behind a due check. Mapper fan-out checks enqueue
// one check job per enabled alert; the remaining kinds enqueue a single dated job.
// Returns created=true if at least one new job row was inserted (not a duplicate).
func (s *SchedulerService) enqueueJobs(ctx context.Context, params enqueueJobsParams) (bool, error) {
	jobType, ok := jobTypeForCheckName(params.Check.CheckName)
	if !ok {
		return false, fmt.Errorf("no job type for check %q", params.Check.CheckName)
	}

	if jobType == model.JobTypeMapperCheck {
		return s.enqueueMapperChecks(ctx, params)
	}
	return s.enqueueDatedJob(ctx, jobType, params)
}

// enqueueMapperChecks fans a mapper check out to one job per enabled alert.
// Each job carries its own fire key scoped to the alert and the digest date, so
// a re-dispatch of the same slot only inserts jobs for alerts not yet covered.
func (s *SchedulerService) enqueueMapperChecks(ctx context.Context, params enqueueJobsParams) (bool, error) {
	if s.alerts == nil {
		return false, errors.New("mapper alert repository is not configured")
	}

	alerts, err := s.alerts.ListEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("list enabled alerts: %w", err)
	}
	if len(alerts) == 0 {
		s.logger.DebugContext(ctx, "scheduler: no enabled mapper alerts to fan out", "check", params.Check.CheckName)
		return false, nil
	}

	date := model.DigestDate(s.timeProvider.Now())
	created := false
	for _, alert := range alerts {
		payload, marshalErr := json.Marshal(model.MapperCheckPayload{AlertID: alert.ID})
		if marshalErr != nil {
			return created, fmt.Errorf("marshal mapper check payload: %w", marshalErr)
		}
		req, reqErr := s.buildJobRequest(buildJobRequestParams{
			Check:   params.Check,
			JobType: model.JobTypeMapperCheck,
			Payload: payload,
			FireKey: fmt.Sprintf("mapper:%s:%s", alert.ID, date),
		})
		if reqErr != nil {
			return created, reqErr
		}
		inserted, insertErr := s.createJobOnce(ctx, params.Tx, req)
		if insertErr != nil {
			return created, insertErr
		}
		if inserted {
			created = true
		}
	}

	s.logger.DebugContext(
		ctx,
		"scheduler: mapper fan-out complete",
		"check",
		params.Check.CheckName,
		"alerts",
		len(alerts),
		"date",
		date,
	)
	return created, nil
}

// enqueueDatedJob enqueues a single job stamped with the digest date of the slot
// being fired. The check payload may pin an explicit date (backfills); otherwise
// the current UTC date applies.
func (s *SchedulerService) enqueueDatedJob(
	ctx context.Context,
	jobType model.JobType,
	params enqueueJobsParams,
) (bool, error) {
	date, err := resolveCheckDate(params.Check.Payload)
	if err != nil {
		return false, fmt.Errorf("parse check payload: %w", err)
	}
	if date == "" {
		date = model.DigestDate(s.timeProvider.Now())
	}

	payload, err := marshalDatedPayload(jobType, date)
	if err != nil {
		return false, err
	}
	req, err := s.buildJobRequest(buildJobRequestParams{
		Check:   params.Check,
		JobType: jobType,
		Payload: payload,
		FireKey: params.FireKey,
	})
	if err != nil {
		return false, err
	}
	return s.createJobOnce(ctx, params.Tx, req)
}

// resolveCheckDate extracts an explicit date override from a check payload.
func resolveCheckDate(payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	var p struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", err
	}
	if p.Date == "" {
		return "", nil
	}
	if _, err := model.ParseDigestDate(p.Date); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", p.Date, err)
	}
	return p.Date, nil
}

func marshalDatedPayload(jobType model.JobType, date string) (json.RawMessage, error) {
	var payload any
	switch jobType {
	case model.JobTypeDriverCheck:
		payload = model.DriverCheckPayload{Date: date}
	case model.JobTypeDigestDispatch:
		payload = model.DigestDispatchPayload{Date: date}
	default:
		return nil, fmt.Errorf("job type %s does not take a dated payload", jobType)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", jobType, err)
	}
	return json.RawMessage(b), nil
}

// buildJobRequestParams groups parameters for buildJobRequest.
type buildJobRequestParams struct {
	Check   domain.ScheduledCheck
	JobType model.JobType
	Payload json.RawMessage
	FireKey string
}

// buildJobRequest constructs the CreateJobRequest with scheduler metadata attached.
func (s *SchedulerService) buildJobRequest(params buildJobRequestParams) (*model.CreateJobRequest, error) {
	meta, err := s.buildSchedulerMetadata(params.Check, params.FireKey)
	if err != nil {
		return nil, err
	}
	return &model.CreateJobRequest{
		Type:       params.JobType,
		Priority:   s.cfg.DefaultPriority,
		Payload:    params.Payload,
		Metadata:   meta,
		MaxRetries: s.cfg.MaxRetries,
	}, nil
}

// buildSchedulerMetadata prepares scheduler metadata with idempotent fire key.
// The queue's unique index on scheduler.fire_key makes inserts idempotent, and
// scheduler.check_name ties the job back to its check for overrun introspection
// and fire key release.
func (s *SchedulerService) buildSchedulerMetadata(check domain.ScheduledCheck, fireKey string) (json.RawMessage, error) {
	m := map[string]any{
		"scheduler.check_name": check.CheckName,
		"scheduler.cron_spec":  check.CronSpec,
		"scheduler.fire_key":   fireKey,
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return json.RawMessage(b), nil
}

// createJobOnce inserts a job, treating a duplicate fire key as a no-op.
// Returns created=true if a new job row was inserted.
func (s *SchedulerService) createJobOnce(
	ctx context.Context,
	tx *sql.Tx,
	req *model.CreateJobRequest,
) (bool, error) {
	err := s.insertJob(ctx, tx, req)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Duplicate due to unique fire key; treat as success/no-op
			return false, nil
		}
		return false, fmt.Errorf("create job: %w", err)
	}
	return true, nil
}

func (s *SchedulerService) insertJob(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) error {
	if tx == nil {
		_, err := s.jobs.Create(ctx, req)
		return err
	}

	if creator, ok := s.jobs.(core.JobRepositoryTx); ok {
		_, err := creator.CreateInTx(ctx, tx, req)
		return err
	}

	if s.logger != nil {
		s.logger.WarnContext(
			ctx,
			"job repository missing transactional support; falling back to non-transactional create",
		)
	}

	_, err := s.jobs.Create(ctx, req)
	return err
}

// jobTypeForCheckName maps a check name to the job type its firing enqueues.
// Returns the job type and whether the name was recognised.
func jobTypeForCheckName(checkName string) (model.JobType, bool) {
	name := checkName
	if i := strings.Index(name, ":"); i >= 0 {
		name = name[:i]
	}
	switch name {
	case checkNameMapperFanout:
		return model.JobTypeMapperCheck, true
	case checkNameDriverFanout:
		return model.JobTypeDriverCheck, true
	case checkNameDigestDispatch:
		return model.JobTypeDigestDispatch, true
	}
	return "", false
}
