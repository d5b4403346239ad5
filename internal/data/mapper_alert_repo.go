package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

var (
	// ErrMapperAlertNotFound is returned when a mapper alert is not found.
	ErrMapperAlertNotFound = errors.New("mapper alert not found")
	// ErrMapperAlertSubjectExists is returned when attempting to create an alert for a subject that already has one.
	ErrMapperAlertSubjectExists = errors.New("mapper alert subject already exists")
)

const (
	sortDirAsc  = "ASC"
	sortDirDesc = "DESC"
)

// MapperAlertRepo provides database operations for mapper alert subscriptions.
type MapperAlertRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewMapperAlertRepo creates a new MapperAlertRepo with real time provider.
func NewMapperAlertRepo(db *sql.DB) *MapperAlertRepo {
	return &MapperAlertRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewMapperAlertRepoWithTimeProvider creates a new MapperAlertRepo with a custom time provider (useful for tests).
func NewMapperAlertRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *MapperAlertRepo {
	return &MapperAlertRepo{DB: db, timeProvider: tp}
}

// Create inserts a new mapper alert subscription.
// New alerts start in inaccurate mode with a zero map count; the first check
// run measures the subject's catalog and switches the mode if warranted.
func (r *MapperAlertRepo) Create(ctx context.Context, req *model.CreateMapperAlertRequest) (*model.MapperAlert, error) {
	if req == nil {
		return nil, errors.New("create mapper alert request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.timeProvider.Now().UTC()
	var out model.MapperAlert
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO mapper_alerts (
				subject, contact, mode, tracked_map_count, enabled, created_at
			) VALUES (
				$1, $2, $3, 0, true, $4
			) RETURNING `+mapperAlertColumnList,
			strings.TrimSpace(req.Subject),
			strings.TrimSpace(req.Contact),
			model.TrackingModeInaccurate,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MapperAlert])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a mapper alert by ID.
func (r *MapperAlertRepo) GetByID(ctx context.Context, id string) (*model.MapperAlert, error) {
	return r.getByQuery(ctx, mapperAlertGetByIDQuery, "failed to get mapper alert by ID", id)
}

// GetBySubject retrieves a mapper alert by its subject account.
func (r *MapperAlertRepo) GetBySubject(ctx context.Context, subject string) (*model.MapperAlert, error) {
	return r.getByQuery(ctx, mapperAlertGetBySubjectQuery, "failed to get mapper alert by subject", subject)
}

// List retrieves mapper alerts with pagination.
func (r *MapperAlertRepo) List(ctx context.Context, limit, offset int) ([]*model.MapperAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rowsOut []model.MapperAlert
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, mapperAlertListQuery, limit, offset)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.MapperAlert])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list mapper alerts: %w", err)
	}

	res := make([]*model.MapperAlert, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// ListEnabled retrieves every enabled mapper alert, oldest first.
// The daily dispatcher enqueues one check job per returned row.
func (r *MapperAlertRepo) ListEnabled(ctx context.Context) ([]*model.MapperAlert, error) {
	var rowsOut []model.MapperAlert
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, mapperAlertListEnabledQuery)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.MapperAlert])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list enabled mapper alerts: %w", err)
	}

	res := make([]*model.MapperAlert, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// UpdateTracking persists the mode decision and map count from a check run.
// These are the only alert fields the check pipeline writes; applying the same
// values twice is a no-op beyond updated_at.
func (r *MapperAlertRepo) UpdateTracking(ctx context.Context, params core.UpdateTrackingParams) error {
	if !params.Mode.Valid() {
		return fmt.Errorf("invalid tracking mode: %s", params.Mode)
	}
	if params.TrackedMapCount < 0 {
		return errors.New("tracked map count must be >= 0")
	}

	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE mapper_alerts
			SET mode = $2, tracked_map_count = $3, updated_at = $4
			WHERE id = $1
		`, params.AlertID, params.Mode, params.TrackedMapCount, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update mapper alert tracking: %w", err)
	}
	if rows == 0 {
		return ErrMapperAlertNotFound
	}
	return nil
}

// SetEnabled toggles a mapper alert subscription on or off.
func (r *MapperAlertRepo) SetEnabled(ctx context.Context, id string, enabled bool) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE mapper_alerts
			SET enabled = $2, updated_at = $3
			WHERE id = $1
		`, id, enabled, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to set mapper alert enabled: %w", err)
	}
	return rows > 0, nil
}

// Delete deletes a mapper alert by ID.
func (r *MapperAlertRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM mapper_alerts WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete mapper alert: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	mapperAlertColumnList = `id, subject, contact, mode, tracked_map_count, enabled, created_at, updated_at`

	mapperAlertGetByIDQuery = `
		SELECT ` + mapperAlertColumnList + `
		FROM mapper_alerts
		WHERE id = $1`

	mapperAlertGetBySubjectQuery = `
		SELECT ` + mapperAlertColumnList + `
		FROM mapper_alerts
		WHERE subject = $1`

	mapperAlertListQuery = `
		SELECT ` + mapperAlertColumnList + `
		FROM mapper_alerts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	mapperAlertListEnabledQuery = `
		SELECT ` + mapperAlertColumnList + `
		FROM mapper_alerts
		WHERE enabled
		ORDER BY created_at ASC`
)

// getByQuery is a helper function to execute a query and return a single alert.
func (r *MapperAlertRepo) getByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.MapperAlert, error) {
	var alert model.MapperAlert
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		alert, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MapperAlert])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMapperAlertNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &alert, nil
}

func (r *MapperAlertRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrMapperAlertNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrMapperAlertSubjectExists
	}
	return err
}
