package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

var (
	// ErrDriverNotificationNotFound is returned when a tracked position is not found.
	ErrDriverNotificationNotFound = errors.New("driver notification not found")
	// ErrDriverNotificationExists is returned when the same driver/map/contact combination is already tracked.
	ErrDriverNotificationExists = errors.New("driver notification already exists")
)

// DriverNotificationRepo provides database operations for tracked driver positions.
type DriverNotificationRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewDriverNotificationRepo creates a new DriverNotificationRepo with real time provider.
func NewDriverNotificationRepo(db *sql.DB) *DriverNotificationRepo {
	return &DriverNotificationRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewDriverNotificationRepoWithTimeProvider creates a new DriverNotificationRepo with a custom time provider.
func NewDriverNotificationRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *DriverNotificationRepo {
	return &DriverNotificationRepo{DB: db, timeProvider: tp}
}

// Create inserts a new tracked position. New rows start active with the
// caller-supplied position and score as the baseline snapshot.
func (r *DriverNotificationRepo) Create(ctx context.Context, req *model.CreateDriverNotificationRequest) (*model.DriverNotification, error) {
	if req == nil {
		return nil, errors.New("create driver notification request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.DriverNotification
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO driver_notifications (
				account_id, display_name, contact, map_id, map_name, position, score, status, last_checked_at, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, NULL, $9
			) RETURNING `+driverNotificationColumnList,
			strings.TrimSpace(req.AccountID),
			strings.TrimSpace(req.DisplayName),
			strings.TrimSpace(req.Contact),
			strings.TrimSpace(req.MapID),
			strings.TrimSpace(req.MapName),
			req.Position,
			req.Score,
			model.DriverStatusActive,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DriverNotification])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a tracked position by ID.
func (r *DriverNotificationRepo) GetByID(ctx context.Context, id string) (*model.DriverNotification, error) {
	var out model.DriverNotification
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, driverNotificationGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DriverNotification])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDriverNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get driver notification by ID: %w", err)
	}
	return &out, nil
}

// List retrieves tracked positions with pagination.
func (r *DriverNotificationRepo) List(ctx context.Context, limit, offset int) ([]*model.DriverNotification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.DriverNotification
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, driverNotificationListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.DriverNotification])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list driver notifications: %w", err)
	}

	res := make([]*model.DriverNotification, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ListActive retrieves every active tracked position, grouped by map so the
// daily sweep can batch leaderboard lookups map by map.
func (r *DriverNotificationRepo) ListActive(ctx context.Context) ([]*model.DriverNotification, error) {
	var rowsOut []model.DriverNotification
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, driverNotificationListActiveQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.DriverNotification])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list active driver notifications: %w", err)
	}

	res := make([]*model.DriverNotification, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// UpdatePosition applies a position-diff outcome to a tracked row. Only the
// fields carried by the update are written; last_checked_at always advances.
// Returns false when the row no longer exists.
func (r *DriverNotificationRepo) UpdatePosition(ctx context.Context, update model.PositionUpdate) (bool, error) {
	if update.ID == "" {
		return false, errors.New("id is required")
	}
	if update.Status != nil && !update.Status.Valid() {
		return false, fmt.Errorf("invalid driver status: %s", *update.Status)
	}

	setParts := make([]string, 0, 5)
	args := make([]any, 0, 6)
	nextIdx := func() int { return len(args) + 1 }

	if update.Position != nil {
		setParts = append(setParts, fmt.Sprintf("position = $%d", nextIdx()))
		args = append(args, *update.Position)
	}
	if update.Score != nil {
		setParts = append(setParts, fmt.Sprintf("score = $%d", nextIdx()))
		args = append(args, *update.Score)
	}
	if update.Status != nil {
		setParts = append(setParts, fmt.Sprintf("status = $%d", nextIdx()))
		args = append(args, *update.Status)
	}
	setParts = append(setParts, fmt.Sprintf("last_checked_at = $%d", nextIdx()))
	args = append(args, update.LastCheckedAt.UTC())
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.timeProvider.Now().UTC())

	args = append(args, update.ID)
	query := "UPDATE driver_notifications SET " + strings.Join(setParts, ", ") +
		" WHERE id = $" + strconv.Itoa(len(args))

	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to update driver position: %w", err)
	}
	return rows > 0, nil
}

// Delete deletes a tracked position by ID.
func (r *DriverNotificationRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM driver_notifications WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete driver notification: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const (
	driverNotificationColumnList = `id, account_id, display_name, contact, map_id, map_name, position, score, status, last_checked_at, created_at, updated_at`

	driverNotificationGetByIDQuery = `
		SELECT ` + driverNotificationColumnList + `
		FROM driver_notifications
		WHERE id = $1`

	driverNotificationListQuery = `
		SELECT ` + driverNotificationColumnList + `
		FROM driver_notifications
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	driverNotificationListActiveQuery = `
		SELECT ` + driverNotificationColumnList + `
		FROM driver_notifications
		WHERE status = 'active'
		ORDER BY map_id, created_at ASC`
)

func (r *DriverNotificationRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrDriverNotificationNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDriverNotificationExists
	}
	return err
}
