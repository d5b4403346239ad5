package data

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
)

func createTestDriverNotification(t *testing.T, repo *DriverNotificationRepo, mapID string, position int) *model.DriverNotification {
	t.Helper()
	n, err := repo.Create(context.Background(), &model.CreateDriverNotificationRequest{
		AccountID:   fmt.Sprintf("acct-%s-%d", mapID, position),
		DisplayName: fmt.Sprintf("Driver %d", position),
		Contact:     "driver@example.com",
		MapID:       mapID,
		MapName:     "Test Circuit",
		Position:    position,
		Score:       int64(60000 - position*100),
	})
	require.NoError(t, err)
	return n
}

func TestDriverNotificationRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDriverNotificationRepo(db)
		ctx := context.Background()

		t.Run("creates active baseline row", func(t *testing.T) {
			mapID := fmt.Sprintf("map-%d", time.Now().UnixNano())
			n, err := repo.Create(ctx, &model.CreateDriverNotificationRequest{
				AccountID:   " acct-1 ",
				DisplayName: " Speedster ",
				Contact:     "speedster@example.com",
				MapID:       mapID,
				MapName:     "Canyon Run",
				Position:    3,
				Score:       54321,
			})
			require.NoError(t, err)
			require.NotEmpty(t, n.ID)

			assert.Equal(t, "acct-1", n.AccountID)
			assert.Equal(t, "Speedster", n.DisplayName)
			assert.Equal(t, mapID, n.MapID)
			assert.Equal(t, 3, n.Position)
			assert.Equal(t, int64(54321), n.Score)
			assert.Equal(t, model.DriverStatusActive, n.Status)
			// No check has run yet.
			assert.Nil(t, n.LastCheckedAt)
		})

		t.Run("allows display name without account id", func(t *testing.T) {
			mapID := fmt.Sprintf("map-%d", time.Now().UnixNano())
			n, err := repo.Create(ctx, &model.CreateDriverNotificationRequest{
				DisplayName: "NameOnly",
				Contact:     "nameonly@example.com",
				MapID:       mapID,
				Position:    1,
				Score:       10000,
			})
			require.NoError(t, err)
			assert.Empty(t, n.AccountID)
			assert.Equal(t, "NameOnly", n.DisplayName)
		})

		t.Run("rejects nil request", func(t *testing.T) {
			_, err := repo.Create(ctx, nil)
			require.Error(t, err)
		})

		t.Run("validation errors", func(t *testing.T) {
			cases := []struct {
				name    string
				req     *model.CreateDriverNotificationRequest
				wantErr string
			}{
				{
					name: "no identity",
					req: &model.CreateDriverNotificationRequest{
						Contact:  "x@example.com",
						MapID:    "map-1",
						Position: 1,
					},
					wantErr: "account_id or display_name is required",
				},
				{
					name: "bad contact",
					req: &model.CreateDriverNotificationRequest{
						AccountID: "acct",
						Contact:   "nope",
						MapID:     "map-1",
						Position:  1,
					},
					wantErr: "contact must be an email address",
				},
				{
					name: "missing map",
					req: &model.CreateDriverNotificationRequest{
						AccountID: "acct",
						Contact:   "x@example.com",
						Position:  1,
					},
					wantErr: "map_id is required",
				},
				{
					name: "zero position",
					req: &model.CreateDriverNotificationRequest{
						AccountID: "acct",
						Contact:   "x@example.com",
						MapID:     "map-1",
						Position:  0,
					},
					wantErr: "position must be >= 1",
				},
				{
					name: "negative score",
					req: &model.CreateDriverNotificationRequest{
						AccountID: "acct",
						Contact:   "x@example.com",
						MapID:     "map-1",
						Position:  1,
						Score:     -1,
					},
					wantErr: "score must be >= 0",
				},
			}

			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					_, err := repo.Create(ctx, tc.req)
					require.Error(t, err)
					assert.Contains(t, err.Error(), tc.wantErr)
				})
			}
		})

		t.Run("rejects duplicate tracking row", func(t *testing.T) {
			mapID := fmt.Sprintf("map-dup-%d", time.Now().UnixNano())
			req := &model.CreateDriverNotificationRequest{
				AccountID:   "acct-dup",
				DisplayName: "Dup Driver",
				Contact:     "dup@example.com",
				MapID:       mapID,
				Position:    2,
				Score:       1000,
			}
			_, err := repo.Create(ctx, req)
			require.NoError(t, err)

			_, err = repo.Create(ctx, req)
			require.ErrorIs(t, err, ErrDriverNotificationExists)
		})

		t.Run("same driver on another map is fine", func(t *testing.T) {
			base := fmt.Sprintf("map-multi-%d", time.Now().UnixNano())
			for _, mapID := range []string{base + "-a", base + "-b"} {
				_, err := repo.Create(ctx, &model.CreateDriverNotificationRequest{
					AccountID: "acct-multi",
					Contact:   "multi@example.com",
					MapID:     mapID,
					Position:  5,
					Score:     2000,
				})
				require.NoError(t, err)
			}
		})
	})
}

func TestDriverNotificationRepo_GetByID(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDriverNotificationRepo(db)
		ctx := context.Background()

		mapID := fmt.Sprintf("map-get-%d", time.Now().UnixNano())
		created := createTestDriverNotification(t, repo, mapID, 4)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.AccountID, got.AccountID)
		assert.Equal(t, created.MapID, got.MapID)
		assert.Equal(t, created.Position, got.Position)

		_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
		require.ErrorIs(t, err, ErrDriverNotificationNotFound)
	})
}

func TestDriverNotificationRepo_List_ListActive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDriverNotificationRepo(db)
		ctx := context.Background()

		base := fmt.Sprintf("map-list-%d", time.Now().UnixNano())
		mapA := base + "-a"
		mapB := base + "-b"

		// Interleave creation across maps so map grouping is observable.
		a1 := createTestDriverNotification(t, repo, mapA, 1)
		time.Sleep(5 * time.Millisecond)
		b1 := createTestDriverNotification(t, repo, mapB, 1)
		time.Sleep(5 * time.Millisecond)
		a2 := createTestDriverNotification(t, repo, mapA, 2)
		time.Sleep(5 * time.Millisecond)
		retired := createTestDriverNotification(t, repo, mapB, 2)

		status := model.DriverStatusInactive
		ok, err := repo.UpdatePosition(ctx, model.PositionUpdate{
			ID:            retired.ID,
			Status:        &status,
			LastCheckedAt: time.Now(),
		})
		require.NoError(t, err)
		require.True(t, ok)

		t.Run("list newest first", func(t *testing.T) {
			all, err := repo.List(ctx, 100, 0)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(all), 4)
			for i := 1; i < len(all); i++ {
				assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt),
					"expected created_at descending")
			}
		})

		t.Run("list limit", func(t *testing.T) {
			page, err := repo.List(ctx, 2, 0)
			require.NoError(t, err)
			assert.Len(t, page, 2)
		})

		t.Run("active grouped by map oldest first", func(t *testing.T) {
			active, err := repo.ListActive(ctx)
			require.NoError(t, err)

			var ours []*model.DriverNotification
			for _, n := range active {
				if n.MapID == mapA || n.MapID == mapB {
					ours = append(ours, n)
				}
			}
			require.Len(t, ours, 3)

			// mapA rows come together in creation order; the retired mapB
			// row is gone.
			assert.Equal(t, a1.ID, ours[0].ID)
			assert.Equal(t, a2.ID, ours[1].ID)
			assert.Equal(t, b1.ID, ours[2].ID)
		})
	})
}

func TestDriverNotificationRepo_UpdatePosition(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDriverNotificationRepo(db)
		ctx := context.Background()

		t.Run("applies position and score", func(t *testing.T) {
			mapID := fmt.Sprintf("map-upd-%d", time.Now().UnixNano())
			n := createTestDriverNotification(t, repo, mapID, 5)

			newPos := 8
			newScore := int64(48000)
			checked := time.Now()
			ok, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				ID:            n.ID,
				Position:      &newPos,
				Score:         &newScore,
				LastCheckedAt: checked,
			})
			require.NoError(t, err)
			require.True(t, ok)

			got, err := repo.GetByID(ctx, n.ID)
			require.NoError(t, err)
			assert.Equal(t, 8, got.Position)
			assert.Equal(t, int64(48000), got.Score)
			assert.Equal(t, model.DriverStatusActive, got.Status)
			require.NotNil(t, got.LastCheckedAt)
			assert.WithinDuration(t, checked, *got.LastCheckedAt, time.Second)
		})

		t.Run("advances last_checked_at alone", func(t *testing.T) {
			mapID := fmt.Sprintf("map-touch-%d", time.Now().UnixNano())
			n := createTestDriverNotification(t, repo, mapID, 5)

			checked := time.Now()
			ok, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				ID:            n.ID,
				LastCheckedAt: checked,
			})
			require.NoError(t, err)
			require.True(t, ok)

			got, err := repo.GetByID(ctx, n.ID)
			require.NoError(t, err)
			// Snapshot untouched when the driver was absent from the batch.
			assert.Equal(t, n.Position, got.Position)
			assert.Equal(t, n.Score, got.Score)
			require.NotNil(t, got.LastCheckedAt)
			assert.WithinDuration(t, checked, *got.LastCheckedAt, time.Second)
		})

		t.Run("retires row", func(t *testing.T) {
			mapID := fmt.Sprintf("map-retire-%d", time.Now().UnixNano())
			n := createTestDriverNotification(t, repo, mapID, 5)

			status := model.DriverStatusInactive
			ok, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				ID:            n.ID,
				Status:        &status,
				LastCheckedAt: time.Now(),
			})
			require.NoError(t, err)
			require.True(t, ok)

			got, err := repo.GetByID(ctx, n.ID)
			require.NoError(t, err)
			assert.Equal(t, model.DriverStatusInactive, got.Status)
		})

		t.Run("rejects invalid status", func(t *testing.T) {
			mapID := fmt.Sprintf("map-badstatus-%d", time.Now().UnixNano())
			n := createTestDriverNotification(t, repo, mapID, 5)

			status := model.DriverStatus("paused")
			_, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				ID:            n.ID,
				Status:        &status,
				LastCheckedAt: time.Now(),
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid driver status")
		})

		t.Run("requires id", func(t *testing.T) {
			_, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				LastCheckedAt: time.Now(),
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "id is required")
		})

		t.Run("missing row", func(t *testing.T) {
			ok, err := repo.UpdatePosition(ctx, model.PositionUpdate{
				ID:            "00000000-0000-0000-0000-000000000000",
				LastCheckedAt: time.Now(),
			})
			require.NoError(t, err)
			assert.False(t, ok)
		})
	})
}

func TestDriverNotificationRepo_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewDriverNotificationRepo(db)
		ctx := context.Background()

		mapID := fmt.Sprintf("map-del-%d", time.Now().UnixNano())
		n := createTestDriverNotification(t, repo, mapID, 1)

		deleted, err := repo.Delete(ctx, n.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, n.ID)
		require.ErrorIs(t, err, ErrDriverNotificationNotFound)

		deleted, err = repo.Delete(ctx, n.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
