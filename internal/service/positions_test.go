package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	apperrors "github.com/slipstreamlabs/recordwatch/internal/errors"
	"github.com/slipstreamlabs/recordwatch/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestNewPositionService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewPositionService(PositionServiceOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RaceClient is required")

		_, err = NewPositionService(PositionServiceOptions{
			Client: mocks.NewMockRaceClient(ctrl),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DriverNotificationRepository is required")

		_, err = NewPositionService(PositionServiceOptions{
			Client:  mocks.NewMockRaceClient(ctrl),
			Drivers: mocks.NewMockDriverNotificationRepository(ctrl),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DigestRepository is required")
	})

	t.Run("clamps the batch size to the upstream contract", func(t *testing.T) {
		svc, err := NewPositionService(PositionServiceOptions{
			Client:    mocks.NewMockRaceClient(ctrl),
			Drivers:   mocks.NewMockDriverNotificationRepository(ctrl),
			Digests:   mocks.NewMockDigestRepository(ctrl),
			BatchSize: 80,
		})
		require.NoError(t, err)
		assert.Equal(t, defaultPositionBatchSize, svc.batchSize)
		assert.Equal(t, defaultTopN, svc.topN)
	})
}

type positionFixture struct {
	svc     *PositionService
	client  *mocks.MockRaceClient
	drivers *mocks.MockDriverNotificationRepository
	digests *mocks.MockDigestRepository
}

var sweepNow = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

func newPositionFixture(t *testing.T, ctrl *gomock.Controller, mutate func(*PositionServiceOptions)) positionFixture {
	t.Helper()
	client := mocks.NewMockRaceClient(ctrl)
	drivers := mocks.NewMockDriverNotificationRepository(ctrl)
	digests := mocks.NewMockDigestRepository(ctrl)
	opts := PositionServiceOptions{
		Client:        client,
		Drivers:       drivers,
		Digests:       digests,
		UpstreamPause: time.Millisecond,
		nowFunc:       func() time.Time { return sweepNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewPositionService(opts)
	require.NoError(t, err)
	return positionFixture{svc: svc, client: client, drivers: drivers, digests: digests}
}

func trackedPosition(id, mapID string, position int, score int64) *model.DriverNotification {
	return &model.DriverNotification{
		ID:          id,
		AccountID:   "acct-" + id,
		DisplayName: "Driver " + id,
		Contact:     "driver@example.com",
		MapID:       mapID,
		MapName:     "Track " + mapID,
		Position:    position,
		Score:       score,
		Status:      model.DriverStatusActive,
	}
}

func TestPositionService_SweepDrivers(t *testing.T) {
	ctx := context.Background()

	t.Run("empty active set is a no-op", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		f.drivers.EXPECT().ListActive(gomock.Any()).Return(nil, nil)

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("regression notifies and stores the new state", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		sub := trackedPosition("d1", "map-1", 3, 51_200)
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1"},
			Depth:  defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-other", Position: 3, Score: 50_100},
				{AccountID: "acct-d1", Position: 4, Score: 51_200},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				assert.Equal(t, "d1", update.ID)
				require.NotNil(t, update.Position)
				assert.Equal(t, 4, *update.Position)
				require.NotNil(t, update.Score)
				assert.EqualValues(t, 51_200, *update.Score)
				assert.Nil(t, update.Status)
				assert.Equal(t, sweepNow, update.LastCheckedAt)
				return true, nil
			})
		f.digests.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, params core.AppendDigestParams) error {
				assert.Equal(t, "driver@example.com", params.OwningUser)
				assert.Equal(t, "2025-06-02", params.DigestDate)
				assert.Equal(t, model.DigestSectionDriver, params.Section)
				require.Len(t, params.Lines, 1)
				assert.Contains(t, params.Lines[0], "position 3 -> 4")
				assert.Contains(t, params.Lines[0], "Track map-1")
				return nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("improvement stores silently", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		sub := trackedPosition("d1", "map-1", 4, 51_200)
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d1", Position: 2, Score: 49_800},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				require.NotNil(t, update.Position)
				assert.Equal(t, 2, *update.Position)
				require.NotNil(t, update.Score)
				assert.EqualValues(t, 49_800, *update.Score)
				return true, nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("absence from a full window goes inactive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, func(opts *PositionServiceOptions) {
			opts.TopN = 2
		})

		sub := trackedPosition("d1", "map-1", 90, 65_000)
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1"},
			Depth:  2,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-a", Position: 1, Score: 48_000},
				{AccountID: "acct-b", Position: 2, Score: 48_500},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				assert.Nil(t, update.Position)
				assert.Nil(t, update.Score)
				require.NotNil(t, update.Status)
				assert.Equal(t, model.DriverStatusInactive, *update.Status)
				return true, nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("absence from a short snapshot only moves the timestamp", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		sub := trackedPosition("d1", "map-1", 90, 65_000)
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-a", Position: 1, Score: 48_000},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				assert.Nil(t, update.Position)
				assert.Nil(t, update.Score)
				assert.Nil(t, update.Status)
				assert.Equal(t, sweepNow, update.LastCheckedAt)
				return true, nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("matches by display name when the account id is unknown", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		sub := trackedPosition("d1", "map-1", 5, 52_000)
		sub.AccountID = ""
		sub.DisplayName = "Hairpin"
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-x", DisplayName: "hairpin", Position: 5, Score: 52_000},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				require.NotNil(t, update.Position)
				assert.Equal(t, 5, *update.Position)
				return true, nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("one failed batch leaves the others applied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, func(opts *PositionServiceOptions) {
			opts.BatchSize = 1
		})

		subs := []*model.DriverNotification{
			trackedPosition("d1", "map-1", 3, 51_000),
			trackedPosition("d2", "map-2", 7, 58_000),
			trackedPosition("d3", "map-3", 1, 47_500),
		}
		f.drivers.EXPECT().ListActive(gomock.Any()).Return(subs, nil)

		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1"}, Depth: defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d1", Position: 3, Score: 51_000},
			}},
		}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-2"}, Depth: defaultTopN,
		}).Return(nil, apperrors.Unavailable("upstream hiccup"))
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-3"}, Depth: defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-3", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d3", Position: 1, Score: 47_500},
			}},
		}, nil)

		updated := make(map[string]bool)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(
			func(_ context.Context, update model.PositionUpdate) (bool, error) {
				updated[update.ID] = true
				return true, nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
		assert.True(t, updated["d1"])
		assert.True(t, updated["d3"])
		assert.False(t, updated["d2"])
	})

	t.Run("every batch failing is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, func(opts *PositionServiceOptions) {
			opts.BatchSize = 1
		})

		subs := []*model.DriverNotification{
			trackedPosition("d1", "map-1", 3, 51_000),
			trackedPosition("d2", "map-2", 7, 58_000),
		}
		f.drivers.EXPECT().ListActive(gomock.Any()).Return(subs, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).Times(2).
			Return(nil, apperrors.Unavailable("upstream down"))

		err := f.svc.SweepDrivers(ctx, "2025-06-02")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all 2 position batches failed")
	})

	t.Run("lines for one contact arrive in a single append", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		subs := []*model.DriverNotification{
			trackedPosition("d1", "map-1", 3, 51_000),
			trackedPosition("d2", "map-2", 7, 58_000),
		}
		f.drivers.EXPECT().ListActive(gomock.Any()).Return(subs, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1", "map-2"},
			Depth:  defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d1", Position: 5, Score: 51_400},
			}},
			{MapID: "map-2", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d2", Position: 9, Score: 58_300},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).Times(2).Return(true, nil)
		f.digests.EXPECT().Append(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, params core.AppendDigestParams) error {
				assert.Equal(t, "driver@example.com", params.OwningUser)
				assert.Len(t, params.Lines, 2)
				return nil
			})

		require.NoError(t, f.svc.SweepDrivers(ctx, "2025-06-02"))
	})

	t.Run("a failed digest append surfaces", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		sub := trackedPosition("d1", "map-1", 3, 51_000)
		f.drivers.EXPECT().ListActive(gomock.Any()).Return([]*model.DriverNotification{sub}, nil)
		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-d1", Position: 4, Score: 51_600},
			}},
		}, nil)
		f.drivers.EXPECT().UpdatePosition(gomock.Any(), gomock.Any()).Return(true, nil)
		f.digests.EXPECT().Append(gomock.Any(), gomock.Any()).
			Return(apperrors.Unavailable("digest store down"))

		err := f.svc.SweepDrivers(ctx, "2025-06-02")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "append digest for driver@example.com")
	})
}

func TestPositionService_ActiveMaps(t *testing.T) {
	ctx := context.Background()
	cutoff := sweepNow.Add(-24 * time.Hour).UnixMilli()

	t.Run("empty input short-circuits", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		maps, err := f.svc.ActiveMaps(ctx, nil, cutoff)
		require.NoError(t, err)
		assert.Nil(t, maps)
	})

	t.Run("flags maps with fresh records", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		fresh := sweepNow.Add(-2 * time.Hour).UnixMilli()
		stale := sweepNow.Add(-72 * time.Hour).UnixMilli()

		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1", "map-2"},
			Depth:  defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-1", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-a", Position: 1, Score: 48_000, AchievedAt: stale},
				{AccountID: "acct-b", Position: 2, Score: 48_900, AchievedAt: fresh},
			}},
			{MapID: "map-2", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-c", Position: 1, Score: 50_000, AchievedAt: stale},
			}},
		}, nil)

		maps, err := f.svc.ActiveMaps(ctx, []model.MapSummary{
			{MapID: "map-1", MapName: "Alpine Sprint"},
			{MapID: "map-2", MapName: "Desert Loop"},
		}, cutoff)
		require.NoError(t, err)
		require.Len(t, maps, 1)
		assert.Equal(t, "map-1", maps[0].MapID)
		assert.Equal(t, "Alpine Sprint", maps[0].MapName)
	})

	t.Run("a failed sample batch is skipped", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, func(opts *PositionServiceOptions) {
			opts.BatchSize = 1
		})

		fresh := sweepNow.Add(-time.Hour).UnixMilli()

		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-1"}, Depth: defaultTopN,
		}).Return(nil, apperrors.Unavailable("upstream hiccup"))
		f.client.EXPECT().LeaderboardTops(gomock.Any(), core.LeaderboardTopsParams{
			MapIDs: []string{"map-2"}, Depth: defaultTopN,
		}).Return([]model.LeaderboardHead{
			{MapID: "map-2", Entries: []model.LeaderboardEntry{
				{AccountID: "acct-a", Position: 1, Score: 50_000, AchievedAt: fresh},
			}},
		}, nil)

		maps, err := f.svc.ActiveMaps(ctx, []model.MapSummary{
			{MapID: "map-1", MapName: "Alpine Sprint"},
			{MapID: "map-2", MapName: "Desert Loop"},
		}, cutoff)
		require.NoError(t, err)
		require.Len(t, maps, 1)
		assert.Equal(t, "map-2", maps[0].MapID)
	})

	t.Run("every sample batch failing is an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		f := newPositionFixture(t, ctrl, nil)

		f.client.EXPECT().LeaderboardTops(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.Unavailable("upstream down"))

		_, err := f.svc.ActiveMaps(ctx, []model.MapSummary{{MapID: "map-1"}}, cutoff)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "activity sample batches failed")
	})
}

func TestFormatRaceTime(t *testing.T) {
	assert.Equal(t, "0:51.200", formatRaceTime(51_200))
	assert.Equal(t, "2:05.430", formatRaceTime(125_430))
	assert.Equal(t, "1:02:05.430", formatRaceTime(3_725_430))
	assert.Equal(t, "0:00.000", formatRaceTime(-5))
}

func TestChunkMapIDs(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	chunks := chunkMapIDs(ids, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
	assert.Equal(t, []string{"e"}, chunks[2])
	assert.Nil(t, chunkMapIDs(nil, 2))
}
