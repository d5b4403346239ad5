package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
)

// ScheduledChecksAdminRepo provides admin operations for scheduled_checks (upsert/delete by check name).
// This is separate from the concurrency-focused ScheduledChecksRepo used by the scheduler tick loop.
type ScheduledChecksAdminRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewScheduledChecksAdminRepo creates a new ScheduledChecksAdminRepo instance with the given database connection.
func NewScheduledChecksAdminRepo(db *sql.DB) *ScheduledChecksAdminRepo {
	return &ScheduledChecksAdminRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewScheduledChecksAdminRepoWithTimeProvider allows injecting a custom time provider (for testing).
func NewScheduledChecksAdminRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ScheduledChecksAdminRepo {
	return &ScheduledChecksAdminRepo{DB: db, timeProvider: tp}
}

// UpsertByCheckName creates or updates a scheduled check identified by CheckName.
// Updates payload and cron_spec and recomputes next_run_at from the new spec;
// preserves last_queued_at so overrun accounting survives spec changes.
func (r *ScheduledChecksAdminRepo) UpsertByCheckName(ctx context.Context, req domain.UpsertCheckParams) error {
	if req.CheckName == "" {
		return errors.New("checkName is required")
	}
	if err := domain.ValidateCronSpec(req.CronSpec); err != nil {
		return err
	}
	now := r.timeProvider.Now().UTC()
	nextRun, err := domain.NextRun(req.CronSpec, now)
	if err != nil {
		return err
	}

	var policyVal any
	if req.OverrunPolicy != nil {
		policy := string(*req.OverrunPolicy)
		policyVal = policy
	}

	var stateVal any
	if req.OverrunStates != nil {
		stateVal = int16(*req.OverrunStates)
	}

	q := `
		INSERT INTO scheduled_checks (check_name, payload, cron_spec, next_run_at, overrun_policy, overrun_state_mask, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (check_name) DO UPDATE
	SET payload = EXCLUDED.payload,
	    cron_spec = EXCLUDED.cron_spec,
	    next_run_at = EXCLUDED.next_run_at,
	    overrun_policy = COALESCE(EXCLUDED.overrun_policy, scheduled_checks.overrun_policy),
	    overrun_state_mask = COALESCE(EXCLUDED.overrun_state_mask, scheduled_checks.overrun_state_mask),
	    updated_at = EXCLUDED.updated_at
	`
	_, err = r.DB.ExecContext(ctx, q, req.CheckName, req.Payload, req.CronSpec, nextRun.UTC(), policyVal, stateVal, now)
	if err != nil {
		return fmt.Errorf("upsert scheduled_check: %w", err)
	}
	return nil
}

// DeleteByCheckName deletes a scheduled check identified by checkName.
func (r *ScheduledChecksAdminRepo) DeleteByCheckName(ctx context.Context, checkName string) (bool, error) {
	if checkName == "" {
		return false, errors.New("checkName is required")
	}
	q := `DELETE FROM scheduled_checks WHERE check_name = $1`
	res, err := r.DB.ExecContext(ctx, q, checkName)
	if err != nil {
		return false, fmt.Errorf("delete scheduled_check: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListChecks returns every scheduled check, ordered by name.
func (r *ScheduledChecksAdminRepo) ListChecks(ctx context.Context) ([]domain.ScheduledCheck, error) {
	query := `
		SELECT ` + scheduledCheckColumns + `
		FROM scheduled_checks
		ORDER BY check_name ASC
	`

	var checks []domain.ScheduledCheck
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		collected, err := pgx.CollectRows(rows, rowToScheduledCheck)
		if err != nil {
			return err
		}
		checks = collected
		return nil
	}); err != nil {
		return nil, fmt.Errorf("list scheduled checks: %w", err)
	}

	return checks, nil
}
