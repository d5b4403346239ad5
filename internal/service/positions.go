package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/domain/retry"
)

const (
	// defaultPositionBatchSize is the upstream contract: at most fifty map ids
	// per batched position call.
	defaultPositionBatchSize = 50
	// defaultTopN is the ranked window a tracked position must stay inside.
	defaultTopN = 100
)

// PositionServiceOptions groups dependencies for PositionService.
type PositionServiceOptions struct {
	Client  core.RaceClient
	Drivers core.DriverNotificationRepository
	Digests core.DigestRepository
	Logger  *slog.Logger

	// BatchSize caps map ids per upstream call. Values above the upstream
	// contract are clamped down to it.
	BatchSize int
	TopN      int
	// UpstreamPause is the pause between consecutive batched calls.
	UpstreamPause time.Duration
	nowFunc       func() time.Time
}

// PositionService diffs tracked leaderboard positions against fresh snapshots.
// The daily driver sweep runs through it, and the inaccurate mapper path
// borrows its batched sampling to spot recent activity.
type PositionService struct {
	client  core.RaceClient
	drivers core.DriverNotificationRepository
	digests core.DigestRepository
	logger  *slog.Logger

	batchSize int
	topN      int
	pause     time.Duration
	now       func() time.Time
}

// NewPositionService constructs a new PositionService.
func NewPositionService(opts PositionServiceOptions) (*PositionService, error) {
	if opts.Client == nil {
		return nil, errors.New("RaceClient is required")
	}
	if opts.Drivers == nil {
		return nil, errors.New("DriverNotificationRepository is required")
	}
	if opts.Digests == nil {
		return nil, errors.New("DigestRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	batch := opts.BatchSize
	if batch <= 0 || batch > defaultPositionBatchSize {
		batch = defaultPositionBatchSize
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	pause := opts.UpstreamPause
	if pause <= 0 {
		pause = defaultUpstreamPause
	}
	now := opts.nowFunc
	if now == nil {
		now = time.Now
	}
	return &PositionService{
		client:    opts.Client,
		drivers:   opts.Drivers,
		digests:   opts.Digests,
		logger:    logger.With("component", "position_sweep"),
		batchSize: batch,
		topN:      topN,
		pause:     pause,
		now:       now,
	}, nil
}

// SweepDrivers runs the daily position check across every active tracked
// position. Regressions become digest lines on the owner's record for date;
// improvements persist silently. One failed batch is skipped and logged, and
// only a sweep where every batch failed reports an error.
func (s *PositionService) SweepDrivers(ctx context.Context, date string) error {
	if date == "" {
		date = model.DigestDate(s.now())
	}

	subs, err := s.drivers.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active positions: %w", err)
	}
	if len(subs) == 0 {
		s.logger.InfoContext(ctx, "no active positions to sweep", "date", date)
		return nil
	}

	byMap := make(map[string][]*model.DriverNotification)
	mapIDs := make([]string, 0, len(subs))
	for _, sub := range subs {
		if _, seen := byMap[sub.MapID]; !seen {
			mapIDs = append(mapIDs, sub.MapID)
		}
		byMap[sub.MapID] = append(byMap[sub.MapID], sub)
	}

	now := s.now().UTC()
	batches := chunkMapIDs(mapIDs, s.batchSize)
	lines := make(map[string][]string)
	failed := 0
	var lastBatchErr error

	for i, batch := range batches {
		if i > 0 {
			if err := retry.Sleep(ctx, s.pause); err != nil {
				return err
			}
		}
		heads, err := s.client.LeaderboardTops(ctx, core.LeaderboardTopsParams{
			MapIDs: batch,
			Depth:  s.topN,
		})
		if err != nil {
			if isContextError(err) {
				return err
			}
			s.logger.WarnContext(ctx, "position batch failed, skipping",
				"batch", i+1, "batches", len(batches), "maps", len(batch), "error", err)
			failed++
			lastBatchErr = err
			continue
		}

		snapshots := make(map[string][]model.LeaderboardEntry, len(heads))
		for _, h := range heads {
			snapshots[h.MapID] = h.Entries
		}
		for _, mapID := range batch {
			for _, sub := range byMap[mapID] {
				update, line := s.diffPosition(sub, snapshots[mapID], now)
				s.applyUpdate(ctx, sub, update)
				if line != "" {
					lines[sub.Contact] = append(lines[sub.Contact], line)
				}
			}
		}
	}

	if failed == len(batches) {
		return fmt.Errorf("all %d position batches failed: %w", failed, lastBatchErr)
	}

	var appendErrs []error
	for contact, contactLines := range lines {
		err := s.digests.Append(ctx, core.AppendDigestParams{
			OwningUser: contact,
			DigestDate: date,
			Section:    model.DigestSectionDriver,
			Lines:      contactLines,
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to append driver digest lines",
				"contact", contact, "date", date, "lines", len(contactLines), "error", err)
			appendErrs = append(appendErrs, fmt.Errorf("append digest for %s: %w", contact, err))
		}
	}

	s.logger.InfoContext(ctx, "driver sweep finished",
		"date", date,
		"positions", len(subs),
		"maps", len(mapIDs),
		"batches", len(batches),
		"batches_failed", failed,
		"users_notified", len(lines))
	return errors.Join(appendErrs...)
}

// ActiveMaps samples the leaderboard head of each map and returns the subset
// with any record achieved at or after cutoff. The inaccurate mapper path
// uses it to report that something happened without fetching full boards.
// Batch failures skip like the sweep; an all-failed sample is an error.
func (s *PositionService) ActiveMaps(ctx context.Context, maps []model.MapSummary, cutoff int64) ([]model.MapSummary, error) {
	if len(maps) == 0 {
		return nil, nil
	}

	mapIDs := make([]string, 0, len(maps))
	for _, m := range maps {
		mapIDs = append(mapIDs, m.MapID)
	}
	batches := chunkMapIDs(mapIDs, s.batchSize)

	active := make(map[string]bool)
	failed := 0
	var lastBatchErr error
	for i, batch := range batches {
		if i > 0 {
			if err := retry.Sleep(ctx, s.pause); err != nil {
				return nil, err
			}
		}
		heads, err := s.client.LeaderboardTops(ctx, core.LeaderboardTopsParams{
			MapIDs: batch,
			Depth:  s.topN,
		})
		if err != nil {
			if isContextError(err) {
				return nil, err
			}
			s.logger.WarnContext(ctx, "activity sample batch failed, skipping",
				"batch", i+1, "batches", len(batches), "error", err)
			failed++
			lastBatchErr = err
			continue
		}
		for _, h := range heads {
			for _, e := range h.Entries {
				if e.AchievedAt >= cutoff {
					active[h.MapID] = true
					break
				}
			}
		}
	}
	if failed == len(batches) {
		return nil, fmt.Errorf("all %d activity sample batches failed: %w", failed, lastBatchErr)
	}

	kept := make([]model.MapSummary, 0, len(active))
	for _, m := range maps {
		if active[m.MapID] {
			kept = append(kept, m)
		}
	}
	return kept, nil
}

// diffPosition compares one tracked position against its map's snapshot and
// produces the persistable update plus an optional digest line. An entity
// missing from a snapshot that covers the whole ranked window has fallen out
// of it and goes inactive; a shorter snapshot proves nothing, so only the
// check timestamp moves.
func (s *PositionService) diffPosition(sub *model.DriverNotification, snapshot []model.LeaderboardEntry, now time.Time) (model.PositionUpdate, string) {
	update := model.PositionUpdate{ID: sub.ID, LastCheckedAt: now}

	entry, found := matchSnapshotEntry(snapshot, sub.AccountID, sub.DisplayName)
	if !found {
		if len(snapshot) >= s.topN {
			inactive := model.DriverStatusInactive
			update.Status = &inactive
		}
		return update, ""
	}

	newPos := entry.Position
	newScore := entry.Score
	update.Position = &newPos
	update.Score = &newScore

	// Lower is better on both axes; score is a race time in milliseconds.
	if newPos > sub.Position || newScore > sub.Score {
		return update, formatRegressionLine(sub, entry)
	}
	return update, ""
}

func (s *PositionService) applyUpdate(ctx context.Context, sub *model.DriverNotification, update model.PositionUpdate) {
	ok, err := s.drivers.UpdatePosition(ctx, update)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to persist position update",
			"id", sub.ID, "map_id", sub.MapID, "error", err)
		return
	}
	if !ok {
		s.logger.DebugContext(ctx, "tracked position vanished before update",
			"id", sub.ID, "map_id", sub.MapID)
	}
}

// matchSnapshotEntry finds the tracked player in a snapshot by account id
// first, then by case-insensitive display name for rows created before the
// account id was known.
func matchSnapshotEntry(snapshot []model.LeaderboardEntry, accountID, displayName string) (model.LeaderboardEntry, bool) {
	if accountID != "" {
		for _, e := range snapshot {
			if e.AccountID == accountID {
				return e, true
			}
		}
	}
	if displayName != "" {
		for _, e := range snapshot {
			if e.DisplayName != "" && strings.EqualFold(e.DisplayName, displayName) {
				return e, true
			}
		}
	}
	return model.LeaderboardEntry{}, false
}

func formatRegressionLine(sub *model.DriverNotification, entry model.LeaderboardEntry) string {
	name := sub.DisplayName
	if name == "" {
		name = sub.AccountID
	}
	return fmt.Sprintf("%s on %s: position %d -> %d, best time %s",
		name, sub.MapName, sub.Position, entry.Position, formatRaceTime(entry.Score))
}

// formatRaceTime renders a millisecond race time as m:ss.mmm, adding an hour
// field for endurance runs.
func formatRaceTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := (ms % 3_600_000) / 60_000
	sec := (ms % 60_000) / 1000
	milli := ms % 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, sec, milli)
	}
	return fmt.Sprintf("%d:%02d.%03d", m, sec, milli)
}

// chunkMapIDs splits ids into consecutive groups of at most size.
func chunkMapIDs(ids []string, size int) [][]string {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
