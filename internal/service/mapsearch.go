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

const (
	// defaultListPageSize is how many maps one listing page asks for.
	defaultListPageSize = 100
	// defaultMaxListPages caps pagination so a broken cursor cannot spin forever.
	defaultMaxListPages = 100
	// defaultMaxSubjectMaps caps how many authored maps a single sweep covers.
	defaultMaxSubjectMaps = 1000
	// defaultFetchAttempts is the per-leaderboard attempt budget.
	defaultFetchAttempts = 3
	// defaultFetchRetryDelay spaces leaderboard retries far enough apart to
	// ride out upstream rate-limit windows.
	defaultFetchRetryDelay = 15 * time.Minute
	// defaultUpstreamPause is the fixed pause between consecutive upstream
	// calls, keeping a sweep inside the documented request budget.
	defaultUpstreamPause = 500 * time.Millisecond
)

// mapListingLimits bounds one full walk of a subject's authored maps.
type mapListingLimits struct {
	pageSize int
	maxPages int
	maxMaps  int
}

// MapSearchServiceOptions groups dependencies for MapSearchService.
type MapSearchServiceOptions struct {
	Client core.RaceClient
	Store  core.SearchJobStore
	// Resolver fills display names on surviving records. Optional; results
	// ship with bare account IDs when absent or failing.
	Resolver core.PlayerResolver
	Logger   *slog.Logger

	MaxListPages    int
	MaxSubjectMaps  int
	ListPageSize    int
	FetchAttempts   int
	FetchRetryDelay time.Duration
	// UpstreamPause overrides the inter-call pause. Tests shrink it.
	UpstreamPause time.Duration
	nowFunc       func() time.Time
}

// MapSearchService executes queued map searches: it walks the subject's
// authored maps, pulls each leaderboard, keeps records achieved inside the
// requested window, and writes the outcome back onto the search record.
type MapSearchService struct {
	client   core.RaceClient
	store    core.SearchJobStore
	resolver core.PlayerResolver
	logger   *slog.Logger

	limits     mapListingLimits
	fetchRetry retry.Policy
	pause      time.Duration
	now        func() time.Time
}

// NewMapSearchService constructs a new MapSearchService.
func NewMapSearchService(opts MapSearchServiceOptions) (*MapSearchService, error) {
	if opts.Client == nil {
		return nil, errors.New("RaceClient is required")
	}
	if opts.Store == nil {
		return nil, errors.New("SearchJobStore is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
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
	return &MapSearchService{
		client:     opts.Client,
		store:      opts.Store,
		resolver:   opts.Resolver,
		logger:     logger.With("component", "map_search"),
		limits:     limits,
		fetchRetry: policy,
		pause:      pause,
		now:        now,
	}, nil
}

// Process runs one queued map search to completion. A missing or already
// terminal search record is a no-op: the record either expired or another
// attempt finished it, and redoing a full sweep would waste the request
// budget. A context cancellation leaves the record non-terminal so the store's
// expiry reclaims it.
func (s *MapSearchService) Process(ctx context.Context, payload model.MapSearchPayload) error {
	if payload.JobID == "" {
		return apperrors.Validation("map search payload is missing job_id")
	}
	if payload.Subject == "" {
		return apperrors.Validation("map search payload is missing subject_username")
	}
	if !payload.Window.Valid() {
		return apperrors.Validation(fmt.Sprintf("map search payload has invalid time_window %q", payload.Window))
	}

	record, err := s.store.Get(ctx, payload.JobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.WarnContext(ctx, "search record missing, skipping",
				"job_id", payload.JobID, "subject", payload.Subject)
			return nil
		}
		return fmt.Errorf("load search record: %w", err)
	}
	if record.Status.Terminal() {
		s.logger.DebugContext(ctx, "search record already terminal, skipping",
			"job_id", payload.JobID, "status", record.Status)
		return nil
	}

	if err := s.store.MarkProcessing(ctx, payload.JobID); err != nil {
		return fmt.Errorf("mark search record processing: %w", err)
	}

	result, err := s.sweep(ctx, payload)
	if err != nil {
		if !isContextError(err) {
			s.failSearch(ctx, payload.JobID, err)
		}
		return err
	}

	if err := s.store.Complete(ctx, payload.JobID, result); err != nil {
		return fmt.Errorf("complete search record: %w", err)
	}
	s.logger.InfoContext(ctx, "map search completed",
		"job_id", payload.JobID,
		"subject", payload.Subject,
		"maps_searched", result.MapsSearched,
		"maps_with_records", len(result.Maps),
		"total_records", result.TotalRecords)
	return nil
}

// sweep walks every authored map and gathers the in-window records.
func (s *MapSearchService) sweep(ctx context.Context, payload model.MapSearchPayload) (*model.SearchResult, error) {
	maps, err := collectSubjectMaps(ctx, s.client, payload.Subject, s.limits)
	if err != nil {
		return nil, err
	}

	cutoff := payload.Window.CutoffMillis(s.now())
	found, err := sweepLeaderboards(ctx, s.client, s.fetchRetry, s.pause, maps, cutoff)
	if err != nil {
		return nil, err
	}
	fillDisplayNames(ctx, s.resolver, s.logger, found)

	total := 0
	for _, m := range found {
		total += len(m.Records)
	}
	return &model.SearchResult{
		Subject:      payload.Subject,
		Window:       payload.Window,
		Maps:         found,
		MapsSearched: len(maps),
		TotalRecords: total,
	}, nil
}

// sweepLeaderboards fetches each map's full board strictly sequentially under
// policy, keeps records achieved at or after cutoff, and pauses for pause
// after every map regardless of outcome. Maps with nothing in the window are
// dropped, not reported empty. Shared by on-demand searches and the accurate
// mapper check.
func sweepLeaderboards(ctx context.Context, client core.RaceClient, policy retry.Policy, pause time.Duration, maps []model.MapSummary, cutoff int64) ([]model.MapRecords, error) {
	found := make([]model.MapRecords, 0, len(maps))
	for _, m := range maps {
		var entries []model.LeaderboardEntry
		err := policy.Do(ctx, func(ctx context.Context) error {
			var fetchErr error
			entries, fetchErr = client.Leaderboard(ctx, m.MapID)
			return fetchErr
		})
		if err != nil {
			return nil, fmt.Errorf("fetch leaderboard for map %s: %w", m.MapID, err)
		}
		records := filterEntriesSince(entries, cutoff)
		if len(records) > 0 {
			found = append(found, model.MapRecords{
				MapID:   m.MapID,
				MapName: m.MapName,
				Records: records,
			})
		}
		if err := retry.Sleep(ctx, pause); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// fillDisplayNames resolves missing display names in place, best effort. A nil
// resolver or a resolution failure leaves account ids showing.
func fillDisplayNames(ctx context.Context, resolver core.PlayerResolver, logger *slog.Logger, found []model.MapRecords) {
	if resolver == nil || len(found) == 0 {
		return
	}
	ids := make([]string, 0, 16)
	for _, m := range found {
		for _, r := range m.Records {
			if r.DisplayName == "" {
				ids = append(ids, r.AccountID)
			}
		}
	}
	if len(ids) == 0 {
		return
	}
	names, err := resolver.ResolveNames(ctx, ids)
	if err != nil {
		logger.WarnContext(ctx, "display name resolution failed, results keep account ids", "error", err)
		return
	}
	for mi := range found {
		for ri := range found[mi].Records {
			r := &found[mi].Records[ri]
			if r.DisplayName == "" {
				r.DisplayName = names[r.AccountID]
			}
		}
	}
}

func (s *MapSearchService) failSearch(ctx context.Context, jobID string, cause error) {
	if err := s.store.Fail(ctx, jobID, cause.Error()); err != nil {
		s.logger.WarnContext(ctx, "failed to mark search record failed",
			"job_id", jobID, "error", err)
	}
}

// collectSubjectMaps pages through the subject's authored maps and returns
// them all. Both check paths and on-demand searches start here, so the
// pagination guards live in one place: a repeated cursor ends the walk, and
// blowing either the page or map cap fails it outright instead of letting a
// misbehaving upstream stretch the sweep indefinitely. Listing pages are not
// paced; only leaderboard traffic falls under the upstream budget.
func collectSubjectMaps(ctx context.Context, client core.RaceClient, subject string, lim mapListingLimits) ([]model.MapSummary, error) {
	var (
		maps   []model.MapSummary
		cursor string
		pages  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := client.ListMaps(ctx, core.ListMapsParams{
			Subject:  subject,
			Cursor:   cursor,
			PageSize: lim.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("list maps for %s: %w", subject, err)
		}
		pages++
		maps = append(maps, page.Maps...)
		if len(maps) > lim.maxMaps {
			return nil, apperrors.InvalidData(
				fmt.Sprintf("subject %s exceeds the %d map limit", subject, lim.maxMaps))
		}
		if !page.More || page.NextCursor == "" {
			return maps, nil
		}
		// An upstream that hands back the cursor it was given would otherwise
		// loop; treat it as the end of the listing.
		if page.NextCursor == cursor {
			return maps, nil
		}
		if pages >= lim.maxPages {
			return nil, apperrors.InvalidData(
				fmt.Sprintf("map listing did not terminate within %d pages", lim.maxPages))
		}
		cursor = page.NextCursor
	}
}

// filterEntriesSince keeps entries achieved at or after cutoff.
func filterEntriesSince(entries []model.LeaderboardEntry, cutoff int64) []model.LeaderboardEntry {
	var kept []model.LeaderboardEntry
	for _, e := range entries {
		if e.AchievedAt >= cutoff {
			kept = append(kept, e)
		}
	}
	return kept
}

// isContextError reports whether err came from a cancelled or expired context.
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
