package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

// ErrDigestNotFound is returned when no digest record exists for a user and date.
var ErrDigestNotFound = errors.New("digest not found")

// DigestRepo provides database operations for daily digest records.
//
// Appends are section-scoped: the mapper check and the driver sweep write
// disjoint columns of the same (owning_user, digest_date) row, so neither
// writer can clobber the other's content no matter how their jobs interleave.
type DigestRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewDigestRepo creates a new DigestRepo with real time provider.
func NewDigestRepo(db *sql.DB) *DigestRepo {
	return &DigestRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewDigestRepoWithTimeProvider creates a new DigestRepo with a custom time provider (useful for tests).
func NewDigestRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *DigestRepo {
	return &DigestRepo{DB: db, timeProvider: tp}
}

// Append upserts the (user, date) record and appends lines to one section.
// Concatenating an empty array leaves the other section untouched, which keeps
// the whole upsert a single statement. Appending zero lines is a no-op.
func (r *DigestRepo) Append(ctx context.Context, params core.AppendDigestParams) error {
	if strings.TrimSpace(params.OwningUser) == "" {
		return errors.New("owning user is required")
	}
	if _, err := model.ParseDigestDate(params.DigestDate); err != nil {
		return err
	}
	if !params.Section.Valid() {
		return fmt.Errorf("invalid digest section: %s", params.Section)
	}
	if len(params.Lines) == 0 {
		return nil
	}

	mapperLines := []string{}
	driverLines := []string{}
	switch params.Section {
	case model.DigestSectionMapper:
		mapperLines = params.Lines
	case model.DigestSectionDriver:
		driverLines = params.Lines
	}

	now := r.timeProvider.Now().UTC()
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO daily_digests (owning_user, digest_date, mapper_content, driver_content, created_at, updated_at)
			VALUES ($1, $2::date, $3, $4, $5, $5)
			ON CONFLICT (owning_user, digest_date)
			DO UPDATE SET
				mapper_content = daily_digests.mapper_content || EXCLUDED.mapper_content,
				driver_content = daily_digests.driver_content || EXCLUDED.driver_content,
				updated_at = EXCLUDED.updated_at
		`, params.OwningUser, params.DigestDate, mapperLines, driverLines, now)
		return err
	})
	if err != nil {
		return fmt.Errorf("append digest: %w", err)
	}
	return nil
}

// GetByUserDate retrieves a single digest record.
func (r *DigestRepo) GetByUserDate(ctx context.Context, owningUser, digestDate string) (*model.DigestRecord, error) {
	var out model.DigestRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+digestColumnList+`
			FROM daily_digests
			WHERE owning_user = $1 AND digest_date = $2::date
		`, owningUser, digestDate)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.DigestRecord])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDigestNotFound
		}
		return nil, fmt.Errorf("get digest: %w", err)
	}
	return &out, nil
}

// ListUnsent returns every record for the given date that has content in at
// least one section and no sent marker yet, ordered by owning user for stable
// dispatch order.
func (r *DigestRepo) ListUnsent(ctx context.Context, digestDate string) ([]*model.DigestRecord, error) {
	if _, err := model.ParseDigestDate(digestDate); err != nil {
		return nil, err
	}

	var rowsOut []model.DigestRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+digestColumnList+`
			FROM daily_digests
			WHERE digest_date = $1::date
			  AND sent_at IS NULL
			  AND (cardinality(mapper_content) > 0 OR cardinality(driver_content) > 0)
			ORDER BY owning_user
		`, digestDate)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.DigestRecord])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list unsent digests: %w", err)
	}

	res := make([]*model.DigestRecord, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// MarkSent sets the sent marker exactly once. The sent_at IS NULL guard makes
// the marker first-writer-wins: a dispatcher retrying after a crash sees false
// and skips the send instead of mailing the digest twice.
func (r *DigestRepo) MarkSent(ctx context.Context, params core.MarkDigestSentParams) (bool, error) {
	if _, err := model.ParseDigestDate(params.DigestDate); err != nil {
		return false, err
	}

	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `
			UPDATE daily_digests
			SET sent_at = $3, updated_at = $3
			WHERE owning_user = $1 AND digest_date = $2::date AND sent_at IS NULL
		`, params.OwningUser, params.DigestDate, params.SentAt.UTC())
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("mark digest sent: %w", err)
	}
	return rows > 0, nil
}

// digestColumnList casts digest_date to text so it scans into the model's
// string key directly.
const digestColumnList = `owning_user, digest_date::text AS digest_date, mapper_content, driver_content, sent_at, created_at, updated_at`
