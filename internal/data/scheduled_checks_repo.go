package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain"
)

// ScheduledChecksRepo provides database operations for scheduled checks management.
type ScheduledChecksRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewScheduledChecksRepo creates a new ScheduledChecksRepo instance with the given database connection.
func NewScheduledChecksRepo(db *sql.DB) *ScheduledChecksRepo {
	return &ScheduledChecksRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewScheduledChecksRepoWithTimeProvider creates a ScheduledChecksRepo with a custom TimeProvider (useful for testing).
func NewScheduledChecksRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ScheduledChecksRepo {
	return &ScheduledChecksRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

// fnvHash computes FNV-1a 64-bit hash of the given string for use as advisory lock key.
func fnvHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	// Advisory locks accept BIGINT; constrain the unsigned hash into int64 range before casting.
	u := h.Sum64()
	if u > uint64(math.MaxInt64) {
		u %= uint64(math.MaxInt64)
	}
	return int64(u) // #nosec G115 -- value is explicitly bounded to <= MaxInt64 before casting to int64.
}

const scheduledCheckColumns = `
  id,
  check_name,
  payload,
  cron_spec,
  next_run_at,
  last_queued_at,
  updated_at,
  overrun_policy,
  overrun_state_mask,
  active_fire_key
`

// FindDue finds scheduled checks that are due for execution.
// Uses FOR UPDATE SKIP LOCKED to prevent concurrent schedulers from processing the same checks.
// A check is due when next_run_at IS NULL OR next_run_at <= now.
func (r *ScheduledChecksRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledCheck, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := `
		SELECT ` + scheduledCheckColumns + `
		FROM scheduled_checks
		WHERE (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY
			CASE WHEN next_run_at IS NULL THEN 0 ELSE 1 END,
			next_run_at ASC,
			created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	// Use pgx via stdlib bridge to leverage pgx v5 helpers
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		// Important: Closing the acquired *sql.Conn here returns it to the pool.
		// It does NOT close the shared *sql.DB or underlying pool; this prevents leaks.

		return nil, fmt.Errorf("get connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			// connection close failure is best-effort and ignored
			_ = cerr
		}
	}()

	var checks []domain.ScheduledCheck
	err = conn.Raw(func(dc any) error {
		stdConn, ok := dc.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection type: %T", dc)
		}
		pgxConn := stdConn.Conn()
		rows, queryErr := pgxConn.Query(ctx, query, now.UTC(), limit)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectRows(rows, rowToScheduledCheck)
		if collectErr != nil {
			return collectErr
		}
		checks = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query due scheduled checks: %w", err)
	}

	return checks, nil
}

// FindDueTx is the transactional variant of FindDue. It must be paired with any updates
// (e.g., MarkQueuedTx) within the same transaction to ensure SKIP LOCKED semantics hold
// across selection and subsequent updates.
func (r *ScheduledChecksRepo) FindDueTx(
	ctx context.Context,
	tx *sql.Tx,
	p domain.FindDueParams,
) ([]domain.ScheduledCheck, error) {
	if p.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", p.Limit)
	}

	query := `
		SELECT ` + scheduledCheckColumns + `
		FROM scheduled_checks
		WHERE (next_run_at IS NULL OR next_run_at <= $1)
		ORDER BY
			CASE WHEN next_run_at IS NULL THEN 0 ELSE 1 END,
			next_run_at ASC,
			created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, queryErr := tx.QueryContext(ctx, query, p.Now.UTC(), p.Limit)
	if queryErr != nil {
		return nil, fmt.Errorf("query due scheduled checks: %w", queryErr)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			// best-effort close; nothing further to do
			_ = closeErr
		}
	}()

	var checks []domain.ScheduledCheck
	for rows.Next() {
		check, scanErr := scanScheduledCheckFromSQLRows(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan scheduled check: %w", scanErr)
		}
		checks = append(checks, check)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate scheduled checks: %w", rowsErr)
	}

	return checks, nil
}

// MarkQueued records a firing and advances next_run_at to the cron-derived follow-up.
// Return semantics:
//   - (true, nil): check found and updated
//   - (false, nil): check not found
//   - (false, err): update failed due to error
func (r *ScheduledChecksRepo) MarkQueued(ctx context.Context, p domain.MarkQueuedParams) (bool, error) {
	currentTime := r.timeProvider.Now()

	clauses := []string{"last_queued_at = $2", "next_run_at = $3", "updated_at = $4"}
	args := []any{p.ID, p.Now.UTC(), p.NextRunAt.UTC(), currentTime.UTC()}

	clauses, args = appendActiveFireKeyUpdate(
		clauses,
		args,
		activeFireKeyUpdateParams{keyPtr: p.ActiveFireKey, setAt: p.ActiveFireKeySetAt, fallback: currentTime.UTC()},
	)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE scheduled_checks SET ")
	queryBuilder.WriteString(strings.Join(clauses, ", "))
	queryBuilder.WriteString(" WHERE id = $1")

	res, err := r.DB.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return false, fmt.Errorf("update scheduled check: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkQueuedTx records a firing within an existing transaction.
// Use this with FindDueTx to ensure selection and update happen under the same locks.
func (r *ScheduledChecksRepo) MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error) {
	currentTime := r.timeProvider.Now()

	clauses := []string{"last_queued_at = $2", "next_run_at = $3", "updated_at = $4"}
	args := []any{p.ID, p.Now.UTC(), p.NextRunAt.UTC(), currentTime.UTC()}

	clauses, args = appendActiveFireKeyUpdate(
		clauses,
		args,
		activeFireKeyUpdateParams{keyPtr: p.ActiveFireKey, setAt: p.ActiveFireKeySetAt, fallback: currentTime.UTC()},
	)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE scheduled_checks SET ")
	queryBuilder.WriteString(strings.Join(clauses, ", "))
	queryBuilder.WriteString(" WHERE id = $1")

	res, err := tx.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return false, fmt.Errorf("update scheduled check (tx): %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected (tx): %w", err)
	}

	return rowsAffected > 0, nil
}

// UpdateActiveFireKeyTx updates or clears the active fire key for a scheduled check within a transaction.
func (r *ScheduledChecksRepo) UpdateActiveFireKeyTx(
	ctx context.Context,
	tx *sql.Tx,
	p domain.UpdateActiveFireKeyParams,
) error {
	currentTime := r.timeProvider.Now().UTC()
	updateAt := currentTime
	if !p.SetAt.IsZero() {
		updateAt = p.SetAt.UTC()
	}

	clauses := []string{"updated_at = $2"}
	args := []any{p.ID, currentTime}

	clauses, args = appendActiveFireKeyUpdate(
		clauses,
		args,
		activeFireKeyUpdateParams{keyPtr: p.FireKey, setAt: &p.SetAt, fallback: updateAt},
	)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE scheduled_checks SET ")
	queryBuilder.WriteString(strings.Join(clauses, ", "))
	queryBuilder.WriteString(" WHERE id = $1")

	if _, err := tx.ExecContext(ctx, queryBuilder.String(), args...); err != nil {
		return fmt.Errorf("update active fire key: %w", err)
	}
	return nil
}

// TryWithCheckLock attempts to acquire an advisory lock for the given check name.
// Uses FNV-1a 64-bit hash of check_name for the lock key.
// If the lock is acquired, executes fn within the same transaction.
// Return semantics:
//   - (false, nil): lock not acquired; fn was not executed
//   - (true, nil): lock acquired; fn executed and succeeded
//   - (true, err): lock acquired; fn executed and failed with err
func (r *ScheduledChecksRepo) TryWithCheckLock(
	ctx context.Context,
	checkName string,
	fn func(context.Context, *sql.Tx) error,
) (bool, error) {
	lockKey := fnvHash(checkName)

	var locked bool
	var fnErr error

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			// Try to acquire advisory lock within transaction
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", lockKey).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock for check %s: %w", checkName, err)
			}

			if !locked {
				return nil // Lock not acquired, but no error
			}

			// Lock acquired, execute function with the same transaction
			fnErr = fn(ctx, tx)
			// Don't return fnErr here - we want to commit the transaction regardless
			// The function error will be returned separately
			return nil
		},
	})
	if err != nil {
		return false, err
	}

	return locked, fnErr
}

// scheduledCheckRow represents the database row structure for scheduled checks.
// This struct matches the database schema exactly, allowing pgx.RowToStructByName to work.
type scheduledCheckRow struct {
	ID               string         `db:"id"`
	CheckName        string         `db:"check_name"`
	Payload          []byte         `db:"payload"`
	CronSpec         string         `db:"cron_spec"`
	NextRunAt        sql.NullTime   `db:"next_run_at"`
	LastQueuedAt     sql.NullTime   `db:"last_queued_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	OverrunPolicy    sql.NullString `db:"overrun_policy"`
	OverrunStateMask sql.NullInt64  `db:"overrun_state_mask"`
	ActiveFireKey    sql.NullString `db:"active_fire_key"`
}

// toDomainScheduledCheck converts a scheduledCheckRow to domain.ScheduledCheck.
func (r *scheduledCheckRow) toDomainScheduledCheck() domain.ScheduledCheck {
	if r == nil {
		return domain.ScheduledCheck{}
	}

	check := domain.ScheduledCheck{
		ID:        r.ID,
		CheckName: r.CheckName,
		CronSpec:  r.CronSpec,
		UpdatedAt: r.UpdatedAt,
	}

	if r.Payload != nil {
		check.Payload = json.RawMessage(r.Payload)
	}
	if r.NextRunAt.Valid {
		check.NextRunAt = r.NextRunAt.Time
	}
	if r.LastQueuedAt.Valid {
		check.LastQueuedAt = &r.LastQueuedAt.Time
	}
	if r.OverrunPolicy.Valid {
		p := domain.OverrunPolicy(r.OverrunPolicy.String)
		check.OverrunPolicy = &p
	}
	if r.OverrunStateMask.Valid {
		if val := r.OverrunStateMask.Int64; val >= 0 && val <= math.MaxUint8 {
			mask := domain.OverrunStateMask(val)
			check.OverrunStates = &mask
		}
	}
	if r.ActiveFireKey.Valid {
		key := strings.TrimSpace(r.ActiveFireKey.String)
		if key != "" {
			check.ActiveFireKey = &key
		}
	}

	return check
}

// rowToScheduledCheck maps a pgx row to domain.ScheduledCheck using pgx v5 generics.
func rowToScheduledCheck(row pgx.CollectableRow) (domain.ScheduledCheck, error) {
	dbRow, err := pgx.RowToStructByName[scheduledCheckRow](row)
	if err != nil {
		return domain.ScheduledCheck{}, fmt.Errorf("scan scheduled check row: %w", err)
	}
	return dbRow.toDomainScheduledCheck(), nil
}

type activeFireKeyUpdateParams struct {
	keyPtr   *string
	setAt    *time.Time
	fallback time.Time
}

func appendActiveFireKeyUpdate(
	clauses []string,
	args []any,
	params activeFireKeyUpdateParams,
) ([]string, []any) {
	if params.keyPtr == nil {
		clauses = append(clauses, "active_fire_key = NULL", "active_fire_key_set_at = NULL")
		return clauses, args
	}

	key := strings.TrimSpace(*params.keyPtr)
	if key == "" {
		clauses = append(clauses, "active_fire_key = NULL", "active_fire_key_set_at = NULL")
		return clauses, args
	}

	idx := len(args) + 1
	clauses = append(clauses, fmt.Sprintf("active_fire_key = $%d", idx))
	args = append(args, key)
	idx++

	ts := params.fallback
	if params.setAt != nil && !params.setAt.IsZero() {
		ts = params.setAt.UTC()
	}
	clauses = append(clauses, fmt.Sprintf("active_fire_key_set_at = $%d", idx))
	args = append(args, ts)

	return clauses, args
}

// scanScheduledCheckFromSQLRows scans a database/sql row into a ScheduledCheck struct.
// This is used for methods that work with database/sql instead of pgx.
func scanScheduledCheckFromSQLRows(rows *sql.Rows) (domain.ScheduledCheck, error) {
	var dbRow scheduledCheckRow
	err := rows.Scan(
		&dbRow.ID,
		&dbRow.CheckName,
		&dbRow.Payload,
		&dbRow.CronSpec,
		&dbRow.NextRunAt,
		&dbRow.LastQueuedAt,
		&dbRow.UpdatedAt,
		&dbRow.OverrunPolicy,
		&dbRow.OverrunStateMask,
		&dbRow.ActiveFireKey,
	)
	if err != nil {
		return domain.ScheduledCheck{}, fmt.Errorf("scan scheduled check row: %w", err)
	}
	return dbRow.toDomainScheduledCheck(), nil
}
