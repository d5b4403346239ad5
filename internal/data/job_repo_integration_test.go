package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestJobRepo_Integration_CreateAndReserve tests the full flow of creating and reserving jobs.
func TestJobRepo_Integration_CreateAndReserve(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create multiple jobs with different priorities
		jobs := []*model.CreateJobRequest{
			{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-low", "subject_username": "speedking", "time_window": "1d"}`),
				Priority: 25,
			},
			{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-high", "subject_username": "speedking", "time_window": "1w"}`),
				Priority: 75,
			},
			{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-mid", "subject_username": "speedking", "time_window": "1m"}`),
				Priority: 50,
			},
		}

		for _, req := range jobs {
			_, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
		}

		// Reserve jobs and verify they come out in priority order
		reserved1, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		assert.Equal(t, 75, reserved1.Priority) // Highest priority first

		reserved2, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		assert.Equal(t, 50, reserved2.Priority) // Medium priority second

		reserved3, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		assert.Equal(t, 25, reserved3.Priority) // Lowest priority last

		// No more jobs available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_JobLifecycle tests the complete lifecycle of a job.
func TestJobRepo_Integration_JobLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		// Use a fixed time provider to control time for retry delays
		fixedTime := testutil.TestTime()
		timeProvider := NewFixedTimeProvider(fixedTime)
		repo := NewJobRepo(db, RepoConfig{
			RetryDelaySeconds: 5,
			TimeProvider:      timeProvider,
		})

		// 1. Create a job
		req := &model.CreateJobRequest{
			Type:       model.JobTypeMapSearch,
			Payload:    json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			MaxRetries: 2,
		}
		job, err := repo.Create(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)

		// 2. Reserve the job
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, reserved.ID)
		assert.Equal(t, model.JobStatusRunning, reserved.Status)
		assert.NotNil(t, reserved.StartedAt)
		assert.NotNil(t, reserved.LeaseExpiresAt)

		// 3. Extend the lease (heartbeat)
		success, err := repo.Heartbeat(context.Background(), job.ID, 60)
		require.NoError(t, err)
		assert.True(t, success)

		// 4. Fail the job (first attempt)
		success, err = repo.Fail(context.Background(), job.ID, "first failure")
		require.NoError(t, err)
		assert.True(t, success)

		// 5. Job should be back to pending for retry, but it has a retry delay
		// Advance time beyond the retry delay (5 seconds) to make the job available
		timeProvider.AddTime(6 * time.Second)

		retryJob, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		assert.Equal(t, job.ID, retryJob.ID)
		assert.Equal(t, 1, retryJob.RetryCount)
		assert.Equal(t, "first failure", *retryJob.LastError)

		// 6. Complete the job on retry
		success, err = repo.Complete(context.Background(), job.ID)
		require.NoError(t, err)
		assert.True(t, success)

		// 7. Job should no longer be available
		_, err = repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// TestJobRepo_Integration_ConcurrentReservation tests concurrent job reservation.
func TestJobRepo_Integration_ConcurrentReservation(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create a single job
		req := &model.CreateJobRequest{
			Type:    model.JobTypeMapSearch,
			Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
		}
		job, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// Try to reserve the same job concurrently
		results := make(chan *model.Job, 2)
		errors := make(chan error, 2)

		for range 2 {
			go func() {
				reserved, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
				if err != nil {
					errors <- err
				} else {
					results <- reserved
				}
			}()
		}

		// One should succeed, one should fail
		var successCount, errorCount int
		var reservedJob *model.Job

		for range 2 {
			select {
			case job := <-results:
				successCount++
				reservedJob = job
			case err := <-errors:
				errorCount++
				require.ErrorIs(t, err, model.ErrNoJobsAvailable)
			case <-time.After(5 * time.Second):
				t.Fatal("Test timed out")
			}
		}

		assert.Equal(t, 1, successCount, "Exactly one goroutine should succeed")
		assert.Equal(t, 1, errorCount, "Exactly one goroutine should fail")
		if reservedJob != nil {
			assert.Equal(t, job.ID, reservedJob.ID)
		}
	})
}

// TestJobRepo_Integration_Stats tests job statistics.
func TestJobRepo_Integration_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		// Create jobs with different priorities to control reservation order
		// 2 pending jobs (lowest priorities - won't be reserved)
		for i := range 2 {
			req := &model.CreateJobRequest{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-pending", "subject_username": "speedking", "time_window": "1d"}`),
				Priority: 10 + i, // Low priorities: 10, 11
			}
			_, err := repo.Create(context.Background(), req)
			require.NoError(t, err)
		}

		// 1 running job (medium priority - will be reserved second)
		req := &model.CreateJobRequest{
			Type:     model.JobTypeMapSearch,
			Payload:  json.RawMessage(`{"job_id": "s-running", "subject_username": "speedking", "time_window": "1d"}`),
			Priority: 40,
		}
		runningJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// 1 completed job (highest priority - will be reserved first)
		req = &model.CreateJobRequest{
			Type:     model.JobTypeMapSearch,
			Payload:  json.RawMessage(`{"job_id": "s-completed", "subject_username": "speedking", "time_window": "1d"}`),
			Priority: 50,
		}
		completedJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// 1 failed job (third highest priority - will be reserved third)
		req = &model.CreateJobRequest{
			Type:     model.JobTypeMapSearch,
			Payload:  json.RawMessage(`{"job_id": "s-failed", "subject_username": "speedking", "time_window": "1d"}`),
			Priority: 30,
		}
		failedJob, err := repo.Create(context.Background(), req)
		require.NoError(t, err)

		// Process jobs in priority order (highest first)
		// 1. Reserve and complete the completed job (priority 50)
		reserved, err := repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		require.Equal(t, completedJob.ID, reserved.ID)
		_, err = repo.Complete(context.Background(), reserved.ID)
		require.NoError(t, err)

		// 2. Reserve the running job (priority 40) and leave it running
		reserved, err = repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		require.Equal(t, runningJob.ID, reserved.ID)

		// 3. Reserve and fail the failed job (priority 30)
		reserved, err = repo.ReserveNext(context.Background(), model.JobTypeMapSearch, 30)
		require.NoError(t, err)
		require.Equal(t, failedJob.ID, reserved.ID)
		// With no retry budget, the first failure marks it as failed
		_, err = repo.Fail(context.Background(), reserved.ID, "failure without retry budget")
		require.NoError(t, err)

		// 4. Leave the 2 pending jobs (priorities 10, 11) unreserved

		// Get stats
		stats, err := repo.Stats(context.Background(), model.JobTypeMapSearch)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Pending)
		assert.Equal(t, 1, stats.Running)
		assert.Equal(t, 1, stats.Completed)
		assert.Equal(t, 1, stats.Failed)
	})
}

// TestJobRepo_Integration_FireKeyLifecycle tests that terminal job transitions
// release the scheduler's active fire key while retryable failures keep it held.
func TestJobRepo_Integration_FireKeyLifecycle(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	seedCheck := func(t *testing.T, db *sql.DB, checkName, fireKey string) {
		t.Helper()
		_, err := db.ExecContext(context.Background(), `
			INSERT INTO scheduled_checks (check_name, cron_spec, active_fire_key, active_fire_key_set_at)
			VALUES ($1, '0 6 * * *', $2, NOW())
		`, checkName, fireKey)
		require.NoError(t, err)
	}

	activeFireKey := func(t *testing.T, db *sql.DB, checkName string) sql.NullString {
		t.Helper()
		var key sql.NullString
		err := db.QueryRowContext(context.Background(), `
			SELECT active_fire_key FROM scheduled_checks WHERE check_name = $1
		`, checkName).Scan(&key)
		require.NoError(t, err)
		return key
	}

	createCheckJob := func(t *testing.T, repo *JobRepo, checkName, fireKey string, maxRetries int) *model.Job {
		t.Helper()
		job, err := repo.Create(context.Background(), &model.CreateJobRequest{
			Type:       model.JobTypeMapperCheck,
			Payload:    json.RawMessage(`{"alert_id": "alert-1"}`),
			Metadata:   json.RawMessage(`{"scheduler.check_name": "` + checkName + `", "scheduler.fire_key": "` + fireKey + `"}`),
			MaxRetries: maxRetries,
		})
		require.NoError(t, err)
		return job
	}

	t.Run("complete releases the fire key", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			seedCheck(t, db, "mapper-check:alert-1", "fk-complete")
			job := createCheckJob(t, repo, "mapper-check:alert-1", "fk-complete", 0)

			_, err := repo.ReserveNext(ctx, model.JobTypeMapperCheck, 30)
			require.NoError(t, err)

			ok, err := repo.Complete(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, ok)

			assert.False(t, activeFireKey(t, db, "mapper-check:alert-1").Valid)
		})
	})

	t.Run("terminal failure releases the fire key", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			seedCheck(t, db, "mapper-check:alert-1", "fk-failed")
			job := createCheckJob(t, repo, "mapper-check:alert-1", "fk-failed", 0)

			_, err := repo.ReserveNext(ctx, model.JobTypeMapperCheck, 30)
			require.NoError(t, err)

			ok, err := repo.Fail(ctx, job.ID, "upstream down")
			require.NoError(t, err)
			require.True(t, ok)

			assert.False(t, activeFireKey(t, db, "mapper-check:alert-1").Valid)
		})
	})

	t.Run("retryable failure keeps the fire key", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			seedCheck(t, db, "mapper-check:alert-1", "fk-retry")
			job := createCheckJob(t, repo, "mapper-check:alert-1", "fk-retry", 3)

			_, err := repo.ReserveNext(ctx, model.JobTypeMapperCheck, 30)
			require.NoError(t, err)

			ok, err := repo.Fail(ctx, job.ID, "transient error")
			require.NoError(t, err)
			require.True(t, ok)

			// Still pending for retry, so the slot stays claimed
			pending, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, model.JobStatusPending, pending.Status)

			key := activeFireKey(t, db, "mapper-check:alert-1")
			require.True(t, key.Valid)
			assert.Equal(t, "fk-retry", key.String)
		})
	})

	t.Run("mismatched fire key is left alone", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// The check has already moved on to a newer firing
			seedCheck(t, db, "mapper-check:alert-1", "fk-newer")
			job := createCheckJob(t, repo, "mapper-check:alert-1", "fk-stale", 0)

			_, err := repo.ReserveNext(ctx, model.JobTypeMapperCheck, 30)
			require.NoError(t, err)

			ok, err := repo.Complete(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, ok)

			key := activeFireKey(t, db, "mapper-check:alert-1")
			require.True(t, key.Valid)
			assert.Equal(t, "fk-newer", key.String)
		})
	})
}

// TestJobRepo_Integration_FireKeyDedupe tests that two jobs cannot carry the
// same scheduler fire key. The scheduler relies on this to make re-fired
// slots idempotent.
func TestJobRepo_Integration_FireKeyDedupe(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		metadata := json.RawMessage(`{"scheduler.check_name": "driver-check:daily", "scheduler.fire_key": "driver-check:daily@2025-06-01T06:00:00Z"}`)

		_, err := repo.Create(ctx, &model.CreateJobRequest{
			Type:     model.JobTypeDriverCheck,
			Payload:  json.RawMessage(`{"date": "2025-06-01"}`),
			Metadata: metadata,
		})
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.CreateJobRequest{
			Type:     model.JobTypeDriverCheck,
			Payload:  json.RawMessage(`{"date": "2025-06-01"}`),
			Metadata: metadata,
		})
		require.Error(t, err)

		var pgErr *pgconn.PgError
		require.ErrorAs(t, err, &pgErr)
		assert.Equal(t, pgerrcode.UniqueViolation, pgErr.Code)

		// Jobs without a fire key never collide
		for range 2 {
			_, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeDriverCheck,
				Payload: json.RawMessage(`{"date": "2025-06-02"}`),
			})
			require.NoError(t, err)
		}
	})
}
