package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/slipstreamlabs/recordwatch/internal/data/database"
	"github.com/slipstreamlabs/recordwatch/internal/data/pgxutil"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

// jobColumnList splits the shared column spec into the individual identifiers
// the query builder sanitizes one by one.
func jobColumnList() []string {
	parts := strings.Split(jobColumns, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		cols = append(cols, strings.TrimSpace(p))
	}
	return cols
}

// jobSortColumns whitelists the order-by fields the admin view may request.
var jobSortColumns = map[string]string{
	"created_at": "created_at",
	"status":     "status",
	"type":       "type",
}

// buildJobListQuery constructs the SQL and args for the admin job listing.
func buildJobListQuery(opts *model.JobListOptions) (string, []any) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}

	builderOpts := []database.ListQueryOption{
		database.WithColumns(jobColumnList()...),
	}

	if opts.Status != nil {
		builderOpts = append(builderOpts,
			database.WithCondition(database.WhereCond("status", database.Equal, string(*opts.Status))))
	}
	if opts.Type != nil {
		builderOpts = append(builderOpts,
			database.WithCondition(database.WhereCond("type", database.Equal, string(*opts.Type))))
	}

	sortBy, ok := jobSortColumns[opts.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	sortOrder := strings.ToLower(opts.SortOrder)
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	builderOpts = append(builderOpts,
		database.WithOrderBy(sortBy, sortOrder),
		database.WithTiebreak("id"),
	)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50 // Default limit
	}
	if limit > 1000 {
		limit = 1000 // Max limit
	}
	builderOpts = append(builderOpts,
		database.WithLimit(limit),
		database.WithOffset(max(opts.Offset, 0)),
	)

	return database.BuildListQuery(database.NewListQueryOptions("jobs", builderOpts...))
}

// List returns jobs with optional filtering for the admin view.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	query, args := buildJobListQuery(opts)

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs with filters: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// ListRecentByType returns the most recent jobs of a given type, ordered by created_at DESC.
func (r *JobRepo) ListRecentByType(ctx context.Context, jobType model.JobType, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = 5 // sensible default for the admin CLI
	}
	if limit > 1000 {
		limit = 1000 // cap to prevent large scans
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("jobs",
		database.WithColumns(jobColumnList()...),
		database.WithCondition(database.WhereCond("type", database.Equal, string(jobType))),
		database.WithOrderBy("created_at", "desc"),
		database.WithTiebreak("id"),
		database.WithLimit(limit),
	))

	var result []*model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs by type: %w", err)
		}
		defer rows.Close()

		vals, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		result = vals
		return nil
	}); err != nil {
		return nil, err
	}
	return result, nil
}
