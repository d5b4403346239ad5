package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
)

const (
	// defaultSearchDailyLimit caps accepted searches per subject per day.
	defaultSearchDailyLimit = 10
	// searchQuotaWindow is the rolling window the per-subject counter lives in.
	searchQuotaWindow = 24 * time.Hour
)

// SearchServiceOptions groups dependencies for SearchService.
type SearchServiceOptions struct {
	Store core.SearchJobStore
	Jobs  core.JobRepository
	// Quota enforces the per-subject daily limit. Optional; when nil every
	// request is accepted.
	Quota      core.QuotaRepository
	Logger     *slog.Logger
	DailyLimit int64
	nowFunc    func() time.Time
}

// SearchService accepts map-search requests, records them, and enqueues the
// background job that performs the sweep.
type SearchService struct {
	store      core.SearchJobStore
	jobs       core.JobRepository
	quota      core.QuotaRepository
	logger     *slog.Logger
	dailyLimit int64
	now        func() time.Time
}

// NewSearchService constructs a new SearchService.
func NewSearchService(opts SearchServiceOptions) (*SearchService, error) {
	if opts.Store == nil {
		return nil, errors.New("SearchJobStore is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.DailyLimit
	if limit <= 0 {
		limit = defaultSearchDailyLimit
	}
	now := opts.nowFunc
	if now == nil {
		now = time.Now
	}
	return &SearchService{
		store:      opts.Store,
		jobs:       opts.Jobs,
		quota:      opts.Quota,
		logger:     logger.With("component", "search_service"),
		dailyLimit: limit,
		now:        now,
	}, nil
}

// Create validates a search request, charges the subject's daily quota, stores
// a pending record under the job ID, and enqueues the map_search job. The
// returned record is what callers poll until the worker finishes.
func (s *SearchService) Create(ctx context.Context, req *model.CreateSearchRequest) (*model.SearchJob, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	if err := s.chargeQuota(ctx, req.Subject); err != nil {
		return nil, err
	}

	id := req.JobID
	if id == "" {
		id = uuid.NewString()
	}

	now := s.now().UTC()
	record := &model.SearchJob{
		ID:        id,
		Subject:   req.Subject,
		Window:    req.Window,
		Status:    model.SearchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create search record: %w", err)
	}

	if err := s.enqueueSearchJob(ctx, record); err != nil {
		// The record exists but no worker will ever pick it up, so mark it
		// failed rather than leaving a pending record that never resolves.
		if failErr := s.store.Fail(ctx, id, "failed to enqueue search job"); failErr != nil {
			s.logger.WarnContext(ctx, "failed to mark unqueued search record",
				"job_id", id, "error", failErr)
		}
		return nil, fmt.Errorf("enqueue search job: %w", err)
	}
	return record, nil
}

// Get returns the current state of a search record.
func (s *SearchService) Get(ctx context.Context, jobID string) (*model.SearchJob, error) {
	if jobID == "" {
		return nil, apperrors.Validation("job id is required")
	}
	return s.store.Get(ctx, jobID)
}

// QuotaRemaining reports how many searches the subject can still run today.
func (s *SearchService) QuotaRemaining(ctx context.Context, subject string) (int64, error) {
	if s.quota == nil {
		return s.dailyLimit, nil
	}
	used, err := s.quota.Current(ctx, SearchQuotaScope(subject))
	if err != nil {
		return 0, fmt.Errorf("read search quota: %w", err)
	}
	remaining := s.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ResetQuota clears the subject's daily counter. Operator tooling only.
func (s *SearchService) ResetQuota(ctx context.Context, subject string) error {
	if subject == "" {
		return apperrors.Validation("subject is required")
	}
	if s.quota == nil {
		return nil
	}
	if err := s.quota.Reset(ctx, SearchQuotaScope(subject)); err != nil {
		return fmt.Errorf("reset search quota: %w", err)
	}
	return nil
}

// chargeQuota bumps the subject's counter and rejects the request once the
// day's budget is spent. Counting happens before acceptance, so rejected
// attempts still consume nothing extra but keep the counter honest.
func (s *SearchService) chargeQuota(ctx context.Context, subject string) error {
	if s.quota == nil {
		return nil
	}
	count, err := s.quota.Increment(ctx, SearchQuotaScope(subject), searchQuotaWindow)
	if err != nil {
		return fmt.Errorf("charge search quota: %w", err)
	}
	if count > s.dailyLimit {
		return apperrors.QuotaExceeded(
			fmt.Sprintf("daily search limit of %d reached for %s", s.dailyLimit, subject))
	}
	return nil
}

func (s *SearchService) enqueueSearchJob(ctx context.Context, record *model.SearchJob) error {
	payload := model.MapSearchPayload{
		JobID:   record.ID,
		Subject: record.Subject,
		Window:  record.Window,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search payload: %w", err)
	}
	// The search record is the retry boundary: a failed sweep marks the record
	// failed, so the queue job itself never retries.
	req := &model.CreateJobRequest{
		Type:       model.JobTypeMapSearch,
		Payload:    json.RawMessage(b),
		MaxRetries: 0,
	}
	if _, err := s.jobs.Create(ctx, req); err != nil {
		return err
	}
	return nil
}

// SearchQuotaScope derives the quota counter key for a subject. Lowercasing
// keeps differently cased spellings of the same username on one counter.
// Exported for operator tooling that clears counters directly.
func SearchQuotaScope(subject string) string {
	return "search:" + strings.ToLower(strings.TrimSpace(subject))
}
