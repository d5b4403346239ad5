package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/domain/retry"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
)

// defaultMapCountThreshold is where a mapper flips from per-board accuracy to
// sampled heads. At the threshold the check stays accurate; one over switches.
const defaultMapCountThreshold = 200

// activitySampler is the slice of the position engine the inaccurate path
// needs: which of these maps saw a record since cutoff.
type activitySampler interface {
	ActiveMaps(ctx context.Context, maps []model.MapSummary, cutoff int64) ([]model.MapSummary, error)
}

// MapperCheckServiceOptions groups dependencies for MapperCheckService.
type MapperCheckServiceOptions struct {
	Client  core.RaceClient
	Alerts  core.MapperAlertRepository
	Digests core.DigestRepository
	Sampler activitySampler
	// Resolver fills display names on accurate-mode records. Optional.
	Resolver core.PlayerResolver
	Logger   *slog.Logger

	Threshold       int
	MaxListPages    int
	MaxSubjectMaps  int
	ListPageSize    int
	FetchAttempts   int
	FetchRetryDelay time.Duration
	UpstreamPause   time.Duration
	nowFunc         func() time.Time
}

// MapperCheckService runs one mapper subscription's daily check: it refreshes
// the tracked map count, picks the accurate or inaccurate mode from it, and
// turns the day's leaderboard movement into mapper digest lines.
type MapperCheckService struct {
	client   core.RaceClient
	alerts   core.MapperAlertRepository
	digests  core.DigestRepository
	sampler  activitySampler
	resolver core.PlayerResolver
	logger   *slog.Logger

	threshold  int
	limits     mapListingLimits
	fetchRetry retry.Policy
	pause      time.Duration
	now        func() time.Time
}

// NewMapperCheckService constructs a new MapperCheckService.
func NewMapperCheckService(opts MapperCheckServiceOptions) (*MapperCheckService, error) {
	if opts.Client == nil {
		return nil, errors.New("RaceClient is required")
	}
	if opts.Alerts == nil {
		return nil, errors.New("MapperAlertRepository is required")
	}
	if opts.Digests == nil {
		return nil, errors.New("DigestRepository is required")
	}
	if opts.Sampler == nil {
		return nil, errors.New("activity sampler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = defaultMapCountThreshold
	}
	attempts := opts.FetchAttempts
	if attempts <= 0 {
		attempts = defaultFetchAttempts
	}
	delay := opts.FetchRetryDelay
	if delay <= 0 {
		delay = defaultFetchRetryDelay
	}
	policy, err := retry.NewPolicy(attempts, delay)
	if err != nil {
		return nil, fmt.Errorf("build fetch retry policy: %w", err)
	}
	pause := opts.UpstreamPause
	if pause <= 0 {
		pause = defaultUpstreamPause
	}
	limits := mapListingLimits{
		pageSize: opts.ListPageSize,
		maxPages: opts.MaxListPages,
		maxMaps:  opts.MaxSubjectMaps,
	}
	if limits.pageSize <= 0 {
		limits.pageSize = defaultListPageSize
	}
	if limits.maxPages <= 0 {
		limits.maxPages = defaultMaxListPages
	}
	if limits.maxMaps <= 0 {
		limits.maxMaps = defaultMaxSubjectMaps
	}
	now := opts.nowFunc
	if now == nil {
		now = time.Now
	}
	return &MapperCheckService{
		client:     opts.Client,
		alerts:     opts.Alerts,
		digests:    opts.Digests,
		sampler:    opts.Sampler,
		resolver:   opts.Resolver,
		logger:     logger.With("component", "mapper_check"),
		threshold:  threshold,
		limits:     limits,
		fetchRetry: policy,
		pause:      pause,
		now:        now,
	}, nil
}

// Process runs one queued mapper check. A subscription deleted or disabled
// after fan-out is a no-op. The mode decision is recomputed from the fresh map
// count every run and persisted when it or the count changed, then the run
// proceeds in the freshly decided mode.
func (s *MapperCheckService) Process(ctx context.Context, payload model.MapperCheckPayload) error {
	if payload.AlertID == "" {
		return apperrors.Validation("mapper check payload is missing alert_id")
	}

	alert, err := s.alerts.GetByID(ctx, payload.AlertID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.WarnContext(ctx, "mapper alert vanished after fan-out, skipping",
				"alert_id", payload.AlertID)
			return nil
		}
		return fmt.Errorf("load mapper alert: %w", err)
	}
	if !alert.Enabled {
		s.logger.DebugContext(ctx, "mapper alert disabled, skipping",
			"alert_id", alert.ID, "subject", alert.Subject)
		return nil
	}

	maps, err := collectSubjectMaps(ctx, s.client, alert.Subject, s.limits)
	if err != nil {
		return err
	}

	mode := model.TrackingModeAccurate
	if len(maps) > s.threshold {
		mode = model.TrackingModeInaccurate
	}
	if mode != alert.Mode || len(maps) != alert.TrackedMapCount {
		err := s.alerts.UpdateTracking(ctx, core.UpdateTrackingParams{
			AlertID:         alert.ID,
			Mode:            mode,
			TrackedMapCount: len(maps),
		})
		if err != nil {
			// The computed mode still drives this run; only the bookkeeping is
			// stale until the next one.
			s.logger.WarnContext(ctx, "failed to persist tracking state",
				"alert_id", alert.ID, "mode", mode, "map_count", len(maps), "error", err)
		}
	}

	if len(maps) == 0 {
		s.logger.InfoContext(ctx, "mapper has no published maps",
			"alert_id", alert.ID, "subject", alert.Subject)
		return nil
	}

	now := s.now()
	cutoff := model.TimeWindowDay.CutoffMillis(now)

	var lines []string
	switch mode {
	case model.TrackingModeAccurate:
		lines, err = s.accurateLines(ctx, maps, cutoff)
	case model.TrackingModeInaccurate:
		lines, err = s.inaccurateLines(ctx, maps, cutoff)
	}
	if err != nil {
		return err
	}

	if len(lines) == 0 {
		s.logger.InfoContext(ctx, "no new records for mapper",
			"alert_id", alert.ID, "subject", alert.Subject, "mode", mode, "maps", len(maps))
		return nil
	}

	err = s.digests.Append(ctx, core.AppendDigestParams{
		OwningUser: alert.Contact,
		DigestDate: model.DigestDate(now),
		Section:    model.DigestSectionMapper,
		Lines:      lines,
	})
	if err != nil {
		return fmt.Errorf("append mapper digest for %s: %w", alert.Contact, err)
	}

	s.logger.InfoContext(ctx, "mapper check finished",
		"alert_id", alert.ID,
		"subject", alert.Subject,
		"mode", mode,
		"maps", len(maps),
		"lines", len(lines))
	return nil
}

// accurateLines fetches every board and reports each record set in the prior
// day individually.
func (s *MapperCheckService) accurateLines(ctx context.Context, maps []model.MapSummary, cutoff int64) ([]string, error) {
	found, err := sweepLeaderboards(ctx, s.client, s.fetchRetry, s.pause, maps, cutoff)
	if err != nil {
		return nil, err
	}
	fillDisplayNames(ctx, s.resolver, s.logger, found)

	var lines []string
	for _, m := range found {
		for _, r := range m.Records {
			name := r.DisplayName
			if name == "" {
				name = r.AccountID
			}
			lines = append(lines, fmt.Sprintf("New record on %s: %s took position %d with %s",
				mapLabel(m.MapID, m.MapName), name, r.Position, formatRaceTime(r.Score)))
		}
	}
	return lines, nil
}

// inaccurateLines samples leaderboard heads in batches and reports only which
// maps moved, without per-record detail.
func (s *MapperCheckService) inaccurateLines(ctx context.Context, maps []model.MapSummary, cutoff int64) ([]string, error) {
	active, err := s.sampler.ActiveMaps(ctx, maps, cutoff)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, m := range active {
		lines = append(lines, fmt.Sprintf("New activity on %s", mapLabel(m.MapID, m.MapName)))
	}
	return lines, nil
}

func mapLabel(mapID, mapName string) string {
	if mapName != "" {
		return mapName
	}
	return mapID
}
