package data

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScheduledChecksRepo_Integration_ConcurrentFindDue tests concurrent access to FindDue
// to ensure FOR UPDATE SKIP LOCKED works correctly.
func TestScheduledChecksRepo_Integration_ConcurrentFindDue(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		now := time.Now()

		// Insert test checks that are all due with unique names
		checkPrefix := fmt.Sprintf("concurrent_%d_", now.UnixNano())
		for i := 1; i <= 5; i++ {
			_, err := db.ExecContext(ctx, `
				INSERT INTO scheduled_checks (check_name, payload, cron_spec, next_run_at)
				VALUES ($1, '{}', '@daily', NULL)
			`, fmt.Sprintf("%scheck_%d", checkPrefix, i))
			require.NoError(t, err)
		}

		// Run concurrent FindDue operations with transactions to test SKIP LOCKED
		const numWorkers = 3
		results := make(chan []string, numWorkers)
		var wg sync.WaitGroup

		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()

				// Use a transaction to hold the locks longer
				tx, err := db.BeginTx(ctx, nil)
				assert.NoError(t, err)
				defer func() { _ = tx.Rollback() }()

				// Query with FOR UPDATE SKIP LOCKED within transaction
				rows, err := tx.QueryContext(ctx, `
					SELECT check_name FROM scheduled_checks
					WHERE (next_run_at IS NULL OR next_run_at <= $1)
					ORDER BY created_at ASC
					LIMIT 2
					FOR UPDATE SKIP LOCKED
				`, now.UTC())
				assert.NoError(t, err)
				defer rows.Close()

				var checkNames []string
				for rows.Next() {
					var checkName string
					err := rows.Scan(&checkName)
					assert.NoError(t, err)
					checkNames = append(checkNames, checkName)
				}
				if err := rows.Err(); err != nil {
					assert.NoError(t, err)
				}

				// Hold the lock briefly to ensure other workers see the effect
				time.Sleep(50 * time.Millisecond)

				results <- checkNames
			}()
		}

		wg.Wait()
		close(results)

		// Collect all check names found by workers
		allFoundChecks := make(map[string]int)
		totalFound := 0
		for checkNames := range results {
			totalFound += len(checkNames)
			for _, name := range checkNames {
				allFoundChecks[name]++
			}
		}

		// Each check should be found by at most one worker due to SKIP LOCKED
		for checkName, count := range allFoundChecks {
			assert.LessOrEqual(
				t,
				count,
				1,
				"Check %s should be found by at most one worker",
				checkName,
			)
		}

		// We should have found some checks (SKIP LOCKED means some workers get nothing)
		assert.Positive(t, totalFound, "At least some checks should be found")
	})
}

// TestScheduledChecksRepo_Integration_LockContention tests advisory lock contention.
func TestScheduledChecksRepo_Integration_LockContention(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledChecksRepo(db)
		ctx := context.Background()
		checkName := "contention_test"

		const numWorkers = 5
		results := make(chan bool, numWorkers)
		var wg sync.WaitGroup

		// Start multiple workers trying to acquire the same lock
		for i := range numWorkers {
			wg.Add(1)
			go func(_ int) {
				defer wg.Done()
				locked, err := repo.TryWithCheckLock(
					ctx,
					checkName,
					func(_ context.Context, _ *sql.Tx) error {
						// Simulate some work
						time.Sleep(50 * time.Millisecond)
						return nil
					},
				)
				assert.NoError(t, err)
				results <- locked
			}(i)
		}

		wg.Wait()
		close(results)

		// Count how many workers acquired the lock
		lockedCount := 0
		for locked := range results {
			if locked {
				lockedCount++
			}
		}

		// Exactly one worker should have acquired the lock
		assert.Equal(t, 1, lockedCount, "Exactly one worker should acquire the lock")
	})
}

// TestScheduledChecksRepo_Integration_DueTransitions tests that MarkQueued moves a
// check out of the due set until its next fire time arrives.
func TestScheduledChecksRepo_Integration_DueTransitions(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledChecksRepo(db)
		ctx := context.Background()
		now := time.Now()

		checkName := fmt.Sprintf("due_transition_%d", now.UnixNano())
		var checkID string
		err := db.QueryRowContext(ctx, `
			INSERT INTO scheduled_checks (check_name, payload, cron_spec, next_run_at)
			VALUES ($1, '{"date": "2025-06-01"}', '@daily', NULL)
			RETURNING id
		`, checkName).Scan(&checkID)
		require.NoError(t, err)

		isDue := func(at time.Time) bool {
			checks, err := repo.FindDue(ctx, at, 500)
			require.NoError(t, err)
			for _, check := range checks {
				if check.CheckName == checkName {
					return true
				}
			}
			return false
		}

		// Never-run checks are due immediately
		require.True(t, isDue(now))

		// Queue it with the next fire 24h out
		found, err := repo.MarkQueued(ctx, domain.MarkQueuedParams{
			ID:        checkID,
			Now:       now,
			NextRunAt: now.Add(24 * time.Hour),
		})
		require.NoError(t, err)
		require.True(t, found)

		// Not due now, due again once the fire time passes
		assert.False(t, isDue(now))
		assert.True(t, isDue(now.Add(25*time.Hour)))
	})
}

// TestScheduledChecksRepo_Integration_MarkQueuedRace tests race conditions in MarkQueued.
func TestScheduledChecksRepo_Integration_MarkQueuedRace(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledChecksRepo(db)
		ctx := context.Background()
		now := time.Now()

		// Insert a test check with unique name and get its ID
		checkName := fmt.Sprintf("race_check_%d", now.UnixNano())
		var checkID string
		err := db.QueryRowContext(ctx, `
			INSERT INTO scheduled_checks (check_name, payload, cron_spec, next_run_at)
			VALUES ($1, '{}', '@daily', NULL)
			RETURNING id
		`, checkName).Scan(&checkID)
		require.NoError(t, err)

		// Try to mark the same check as queued concurrently
		const numWorkers = 10
		results := make(chan bool, numWorkers)
		var wg sync.WaitGroup

		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, err := repo.MarkQueued(ctx, domain.MarkQueuedParams{
					ID:        checkID,
					Now:       now,
					NextRunAt: now.Add(24 * time.Hour),
				})
				assert.NoError(t, err)
				results <- found
			}()
		}

		wg.Wait()
		close(results)

		// All workers should successfully update (found=true)
		// because MarkQueued is idempotent
		for found := range results {
			assert.True(t, found, "All workers should find and update the check")
		}

		// Verify the check was actually updated
		var lastQueued sql.NullTime
		err = db.QueryRowContext(ctx, "SELECT last_queued_at FROM scheduled_checks WHERE id = $1", checkID).
			Scan(&lastQueued)
		require.NoError(t, err)
		assert.True(t, lastQueued.Valid)
	})
}

// TestJobRepo_Integration_JobStatesByCheckName tests overrun state aggregation.
func TestJobRepo_Integration_JobStatesByCheckName(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()
		now := time.Now()

		// Insert job rows covering each state
		_, err := db.ExecContext(ctx, `
			INSERT INTO jobs (type, status, payload, metadata, lease_expires_at)
			VALUES ('mapper_check', 'running', '{}', '{"scheduler.check_name": "running_check"}', $1)
		`, now.Add(time.Hour))
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `
			INSERT INTO jobs (type, status, payload, metadata, lease_expires_at)
			VALUES ('mapper_check', 'running', '{}', '{"scheduler.check_name": "expired_check"}', $1)
		`, now.Add(-time.Hour))
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `
			INSERT INTO jobs (type, status, payload, metadata, retry_count)
			VALUES ('mapper_check', 'pending', '{}', '{"scheduler.check_name": "pending_check"}', 0)
		`)
		require.NoError(t, err)

		_, err = db.ExecContext(ctx, `
			INSERT INTO jobs (type, status, payload, metadata, retry_count)
			VALUES ('mapper_check', 'pending', '{}', '{"scheduler.check_name": "retrying_check"}', 2)
		`)
		require.NoError(t, err)

		cases := []struct {
			checkName    string
			expectedMask domain.OverrunStateMask
		}{
			{"running_check", domain.OverrunStateRunning},                                // running with active lease
			{"expired_check", 0},                                                        // running but expired lease
			{"pending_check", domain.OverrunStatePending},                               // pending without retries
			{"retrying_check", domain.OverrunStatePending | domain.OverrunStateRetrying}, // pending with retries
			{"unknown", 0}, // no jobs
		}

		for _, tc := range cases {
			t.Run(tc.checkName, func(t *testing.T) {
				mask, err := repo.JobStatesByCheckName(ctx, tc.checkName, now)
				require.NoError(t, err)
				assert.Equal(t, tc.expectedMask, mask)

				running, err := repo.RunningJobExistsByCheckName(ctx, tc.checkName, now)
				require.NoError(t, err)
				assert.Equal(t, mask.Has(domain.OverrunStateRunning), running)
			})
		}
	})
}
