package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
)

// searchKeyPrefix namespaces search records in Redis.
const searchKeyPrefix = "recordwatch:search:"

// defaultSearchTTL is how long a search record stays readable after its last write.
const defaultSearchTTL = time.Hour

// SearchStoreConfig holds construction options for RedisSearchStore.
type SearchStoreConfig struct {
	// TTL is applied on create; later writes keep the remaining TTL, so a
	// record expires relative to its creation, not its last update.
	TTL          time.Duration
	TimeProvider TimeProvider
}

// RedisSearchStore keeps ephemeral map-search records in Redis.
//
// Records carry their own expiry; there is no cleanup job. A record whose
// worker died before reaching a terminal status simply ages out, which is why
// readers must treat pending and processing as "check again later" rather
// than guarantees of progress.
type RedisSearchStore struct {
	client       redis.UniversalClient
	ttl          time.Duration
	timeProvider TimeProvider
}

// NewRedisSearchStore creates a RedisSearchStore with the given client and config.
func NewRedisSearchStore(client redis.UniversalClient, cfg SearchStoreConfig) *RedisSearchStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultSearchTTL
	}
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &RedisSearchStore{client: client, ttl: ttl, timeProvider: tp}
}

// Create stores a fresh pending record under the search's job ID.
// Returns a Conflict error when a record with that ID already exists.
func (s *RedisSearchStore) Create(ctx context.Context, search *model.SearchJob) error {
	if search == nil {
		return errors.New("search record is required")
	}
	if search.ID == "" {
		return errors.New("search job ID is required")
	}

	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("marshal search record: %w", err)
	}

	// SET NX + TTL is atomic; a lost race surfaces as redis.Nil.
	_, err = s.client.SetArgs(ctx, searchKey(search.ID), payload, redis.SetArgs{
		Mode: "NX",
		TTL:  s.ttl,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return apperrors.Conflictf("search %s already exists", search.ID)
	}
	if err != nil {
		return fmt.Errorf("create search record: %w", err)
	}
	return nil
}

// Get retrieves a record by job ID. Returns a NotFound error when the record
// never existed or has already expired; the two cases are indistinguishable.
func (s *RedisSearchStore) Get(ctx context.Context, jobID string) (*model.SearchJob, error) {
	if jobID == "" {
		return nil, errors.New("job ID is required")
	}

	raw, err := s.client.Get(ctx, searchKey(jobID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFoundf("search %s not found or expired", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get search record: %w", err)
	}

	var search model.SearchJob
	if err := json.Unmarshal([]byte(raw), &search); err != nil {
		return nil, fmt.Errorf("unmarshal search record: %w", err)
	}
	return &search, nil
}

// MarkProcessing flips a record to processing when the worker picks it up.
func (s *RedisSearchStore) MarkProcessing(ctx context.Context, jobID string) error {
	return s.update(ctx, jobID, func(search *model.SearchJob) {
		search.Status = model.SearchStatusProcessing
	})
}

// Complete stores the final result and flips the record to completed.
func (s *RedisSearchStore) Complete(ctx context.Context, jobID string, result *model.SearchResult) error {
	return s.update(ctx, jobID, func(search *model.SearchJob) {
		search.Status = model.SearchStatusCompleted
		search.Result = result
		search.Error = nil
	})
}

// Fail records the failure reason and flips the record to failed.
func (s *RedisSearchStore) Fail(ctx context.Context, jobID, errMsg string) error {
	return s.update(ctx, jobID, func(search *model.SearchJob) {
		search.Status = model.SearchStatusFailed
		search.Error = &errMsg
	})
}

// update applies mutate to the stored record and writes it back, keeping the
// remaining TTL. Plain read-modify-write is enough here: after creation only
// the single worker that reserved the job writes the record.
func (s *RedisSearchStore) update(ctx context.Context, jobID string, mutate func(*model.SearchJob)) error {
	search, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}

	mutate(search)
	search.UpdatedAt = s.timeProvider.Now().UTC()

	payload, err := json.Marshal(search)
	if err != nil {
		return fmt.Errorf("marshal search record: %w", err)
	}

	if err := s.client.SetArgs(ctx, searchKey(jobID), payload, redis.SetArgs{
		KeepTTL: true,
	}).Err(); err != nil {
		return fmt.Errorf("update search record: %w", err)
	}
	return nil
}

func searchKey(jobID string) string {
	return searchKeyPrefix + jobID
}
