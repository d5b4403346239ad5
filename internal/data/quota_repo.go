package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// quotaKeyPrefix namespaces quota counters in Redis.
const quotaKeyPrefix = "recordwatch:quota:"

// RedisQuotaRepo keeps per-scope usage counters in Redis so they survive
// process restarts. A counter starts its window on first increment and
// disappears when the window elapses.
type RedisQuotaRepo struct {
	client redis.UniversalClient
}

// NewRedisQuotaRepo creates a RedisQuotaRepo with the given Redis client.
func NewRedisQuotaRepo(client redis.UniversalClient) *RedisQuotaRepo {
	return &RedisQuotaRepo{client: client}
}

// Increment bumps the counter for scope and returns the post-increment count.
// ExpireNX arms the window only when the key has no expiry yet, so a crash
// between the two calls cannot produce an immortal counter.
func (r *RedisQuotaRepo) Increment(ctx context.Context, scope string, window time.Duration) (int64, error) {
	if scope == "" {
		return 0, errors.New("scope cannot be empty")
	}
	if window <= 0 {
		return 0, errors.New("window must be greater than zero")
	}

	key := quotaKey(scope)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr quota: %w", err)
	}

	if err := r.client.ExpireNX(ctx, key, window).Err(); err != nil {
		return 0, fmt.Errorf("redis expire quota: %w", err)
	}

	return count, nil
}

// Current returns the live counter for scope, zero when expired or unset.
func (r *RedisQuotaRepo) Current(ctx context.Context, scope string) (int64, error) {
	if scope == "" {
		return 0, errors.New("scope cannot be empty")
	}

	count, err := r.client.Get(ctx, quotaKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get quota: %w", err)
	}
	return count, nil
}

// Reset clears the counter for scope.
func (r *RedisQuotaRepo) Reset(ctx context.Context, scope string) error {
	if scope == "" {
		return errors.New("scope cannot be empty")
	}

	if err := r.client.Del(ctx, quotaKey(scope)).Err(); err != nil {
		return fmt.Errorf("redis del quota: %w", err)
	}
	return nil
}

func quotaKey(scope string) string {
	return quotaKeyPrefix + scope
}
