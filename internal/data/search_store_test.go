package data

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
)

func newTestSearchJob(jobID string) *model.SearchJob {
	now := time.Now().UTC().Truncate(time.Second)
	return &model.SearchJob{
		ID:        jobID,
		Subject:   "mapper-one",
		Window:    model.TimeWindowWeek,
		Status:    model.SearchStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRedisSearchStore_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewRedisSearchStore(client, SearchStoreConfig{})
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		jobID := fmt.Sprintf("search-rt-%d", time.Now().UnixNano())
		search := newTestSearchJob(jobID)

		require.NoError(t, store.Create(ctx, search))

		got, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, jobID, got.ID)
		assert.Equal(t, "mapper-one", got.Subject)
		assert.Equal(t, model.TimeWindowWeek, got.Window)
		assert.Equal(t, model.SearchStatusPending, got.Status)
		assert.Nil(t, got.Result)
		assert.Nil(t, got.Error)
	})

	t.Run("create applies TTL", func(t *testing.T) {
		jobID := fmt.Sprintf("search-ttl-%d", time.Now().UnixNano())
		require.NoError(t, store.Create(ctx, newTestSearchJob(jobID)))

		ttl := client.TTL(ctx, searchKey(jobID)).Val()
		assert.True(t, ttl > 0 && ttl <= defaultSearchTTL)
	})

	t.Run("duplicate create conflicts", func(t *testing.T) {
		jobID := fmt.Sprintf("search-dup-%d", time.Now().UnixNano())
		require.NoError(t, store.Create(ctx, newTestSearchJob(jobID)))

		err := store.Create(ctx, newTestSearchJob(jobID))
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
	})

	t.Run("create validation", func(t *testing.T) {
		require.Error(t, store.Create(ctx, nil))

		search := newTestSearchJob("")
		err := store.Create(ctx, search)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job ID is required")
	})

	t.Run("get missing record", func(t *testing.T) {
		_, err := store.Get(ctx, "search-never-created")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("get requires job ID", func(t *testing.T) {
		_, err := store.Get(ctx, "")
		require.Error(t, err)
	})
}

func TestRedisSearchStore_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewRedisSearchStore(client, SearchStoreConfig{})
	ctx := context.Background()

	t.Run("pending to processing to completed", func(t *testing.T) {
		jobID := fmt.Sprintf("search-done-%d", time.Now().UnixNano())
		require.NoError(t, store.Create(ctx, newTestSearchJob(jobID)))

		require.NoError(t, store.MarkProcessing(ctx, jobID))
		got, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.SearchStatusProcessing, got.Status)
		assert.False(t, got.Status.Terminal())

		result := &model.SearchResult{
			Subject: "mapper-one",
			Window:  model.TimeWindowWeek,
			Maps: []model.MapRecords{
				{
					MapID:   "map-1",
					MapName: "Canyon Run",
					Records: []model.LeaderboardEntry{
						{AccountID: "acct-9", Position: 1, Score: 51234, AchievedAt: time.Now().UnixMilli()},
					},
				},
			},
			MapsSearched: 12,
			TotalRecords: 1,
		}
		require.NoError(t, store.Complete(ctx, jobID, result))

		got, err = store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.SearchStatusCompleted, got.Status)
		assert.True(t, got.Status.Terminal())
		require.NotNil(t, got.Result)
		assert.Equal(t, 12, got.Result.MapsSearched)
		require.Len(t, got.Result.Maps, 1)
		assert.Equal(t, "Canyon Run", got.Result.Maps[0].MapName)
		assert.Nil(t, got.Error)
	})

	t.Run("fail records the reason", func(t *testing.T) {
		jobID := fmt.Sprintf("search-fail-%d", time.Now().UnixNano())
		require.NoError(t, store.Create(ctx, newTestSearchJob(jobID)))
		require.NoError(t, store.MarkProcessing(ctx, jobID))

		require.NoError(t, store.Fail(ctx, jobID, "upstream returned 503"))

		got, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.SearchStatusFailed, got.Status)
		require.NotNil(t, got.Error)
		assert.Equal(t, "upstream returned 503", *got.Error)
		assert.Nil(t, got.Result)
	})

	t.Run("complete clears a stale error", func(t *testing.T) {
		jobID := fmt.Sprintf("search-clear-%d", time.Now().UnixNano())
		require.NoError(t, store.Create(ctx, newTestSearchJob(jobID)))
		require.NoError(t, store.Fail(ctx, jobID, "transient"))

		require.NoError(t, store.Complete(ctx, jobID, &model.SearchResult{
			Subject: "mapper-one",
			Window:  model.TimeWindowWeek,
		}))

		got, err := store.Get(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, model.SearchStatusCompleted, got.Status)
		assert.Nil(t, got.Error)
	})

	t.Run("updates keep the creation TTL", func(t *testing.T) {
		shortStore := NewRedisSearchStore(client, SearchStoreConfig{TTL: 10 * time.Second})
		jobID := fmt.Sprintf("search-keepttl-%d", time.Now().UnixNano())
		require.NoError(t, shortStore.Create(ctx, newTestSearchJob(jobID)))

		require.NoError(t, shortStore.MarkProcessing(ctx, jobID))
		require.NoError(t, shortStore.Fail(ctx, jobID, "gave up"))

		// The record still expires relative to creation, not the last write.
		ttl := client.TTL(ctx, searchKey(jobID)).Val()
		assert.True(t, ttl > 0 && ttl <= 10*time.Second,
			"expected remaining TTL within the creation window, got %s", ttl)
	})

	t.Run("update of missing record is not found", func(t *testing.T) {
		err := store.MarkProcessing(ctx, "search-vanished")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))

		err = store.Complete(ctx, "search-vanished", &model.SearchResult{})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))

		err = store.Fail(ctx, "search-vanished", "boom")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestRedisSearchStore_UpdatedAt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	tp := NewFixedTimeProvider(testutil.TestTime())
	store := NewRedisSearchStore(client, SearchStoreConfig{TimeProvider: tp})
	ctx := context.Background()

	jobID := fmt.Sprintf("search-upd-%d", time.Now().UnixNano())
	search := newTestSearchJob(jobID)
	search.CreatedAt = testutil.TestTime()
	search.UpdatedAt = testutil.TestTime()
	require.NoError(t, store.Create(ctx, search))

	tp.AddTime(90 * time.Second)
	require.NoError(t, store.MarkProcessing(ctx, jobID))

	got, err := store.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestTime().Add(90*time.Second), got.UpdatedAt)
	assert.Equal(t, testutil.TestTime(), got.CreatedAt)
}
