package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/slipstreamlabs/recordwatch/internal/core"
)

const (
	defaultResolverTTL = 24 * time.Hour
	resolverKeyPrefix  = "recordwatch:player:"
)

// ResolverServiceOptions groups dependencies for ResolverService.
type ResolverServiceOptions struct {
	Client core.RaceClient      // Required: upstream profile lookups
	Cache  core.CacheRepository // Optional: resolved-name cache
	Logger *slog.Logger         // Optional: structured logger
	TTL    time.Duration        // Optional: cached name lifetime, default 24h
}

// ResolverService resolves account IDs to display names. Distinct IDs are
// fetched in one batched upstream call; identical concurrent batches are
// coalesced so parallel workers resolving the same subject share one request.
type ResolverService struct {
	client core.RaceClient
	cache  core.CacheRepository
	logger *slog.Logger
	ttl    time.Duration
	group  singleflight.Group
}

var _ core.PlayerResolver = (*ResolverService)(nil)

// NewResolverService constructs a ResolverService.
func NewResolverService(opts ResolverServiceOptions) (*ResolverService, error) {
	if opts.Client == nil {
		return nil, errors.New("RaceClient is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultResolverTTL
	}

	return &ResolverService{
		client: opts.Client,
		cache:  opts.Cache,
		logger: logger.With("component", "player_resolver"),
		ttl:    ttl,
	}, nil
}

// ResolveNames implements core.PlayerResolver. An ID that cannot be resolved
// is absent from the result; a cold cache costs at most one upstream call per
// distinct batch.
func (s *ResolverService) ResolveNames(ctx context.Context, accountIDs []string) (map[string]string, error) {
	ids := dedupeAccountIDs(accountIDs)
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	resolved := make(map[string]string, len(ids))
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := s.cachedName(ctx, id); ok {
			resolved[id] = name
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return resolved, nil
	}

	fetched, err := s.fetchNames(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, name := range fetched {
		resolved[id] = name
	}
	return resolved, nil
}

// fetchNames resolves one batch upstream. The singleflight key is the sorted
// ID list, so concurrent identical batches share a single request.
func (s *ResolverService) fetchNames(ctx context.Context, ids []string) (map[string]string, error) {
	key := strings.Join(ids, ",")
	v, err, _ := s.group.Do(key, func() (any, error) {
		profiles, err := s.client.Profiles(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve %d account names: %w", len(ids), err)
		}

		names := make(map[string]string, len(profiles))
		for _, p := range profiles {
			if p.DisplayName == "" {
				continue
			}
			names[p.AccountID] = p.DisplayName
			s.storeName(ctx, p.AccountID, p.DisplayName)
		}
		return names, nil
	})
	if err != nil {
		return nil, err
	}

	names, _ := v.(map[string]string)
	return names, nil
}

func (s *ResolverService) cachedName(ctx context.Context, id string) (string, bool) {
	if s.cache == nil {
		return "", false
	}

	val, err := s.cache.Get(ctx, resolverKeyPrefix+id)
	if err != nil {
		s.logger.WarnContext(ctx, "player name cache read failed", "account_id", id, "error", err)
		return "", false
	}
	if len(val) == 0 {
		return "", false
	}
	return string(val), true
}

func (s *ResolverService) storeName(ctx context.Context, id, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, resolverKeyPrefix+id, []byte(name), s.ttl); err != nil {
		s.logger.WarnContext(ctx, "player name cache write failed", "account_id", id, "error", err)
	}
}

// dedupeAccountIDs trims, drops empties, dedupes, and sorts so equivalent
// inputs produce the same batch and the same coalescing key.
func dedupeAccountIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
