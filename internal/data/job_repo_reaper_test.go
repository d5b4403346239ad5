package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepo_FailExpiredLeases(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails running jobs with lapsed leases", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Two running jobs: one lease lapsed, one still live
			abandoned, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
				Priority: 90,
			})
			require.NoError(t, err)

			healthy, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:     model.JobTypeMapSearch,
				Payload:  json.RawMessage(`{"job_id": "s-2", "subject_username": "speedking", "time_window": "1w"}`),
				Priority: 50,
			})
			require.NoError(t, err)

			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)
			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)

			// Push the first job's lease into the past
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET lease_expires_at = $1
				WHERE id = $2
			`, time.Now().Add(-time.Minute), abandoned.ID)
			require.NoError(t, err)

			count, err := repo.FailExpiredLeases(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			// The abandoned job is now terminally failed
			abandonedAfter, err := repo.GetByID(ctx, abandoned.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, abandonedAfter.Status)
			require.NotNil(t, abandonedAfter.LastError)
			assert.Contains(t, *abandonedAfter.LastError, "Lease expired")
			assert.NotNil(t, abandonedAfter.CompletedAt)

			// The job with a live lease is untouched
			healthyAfter, err := repo.GetByID(ctx, healthy.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, healthyAfter.Status)
		})
	})

	t.Run("no expired leases", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 300)
			require.NoError(t, err)

			count, err := repo.FailExpiredLeases(ctx, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})

	t.Run("respects batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			for i := 0; i < 3; i++ {
				_, err := repo.Create(ctx, &model.CreateJobRequest{
					Type:    model.JobTypeMapSearch,
					Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
				})
				require.NoError(t, err)

				_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
				require.NoError(t, err)
			}

			_, err := db.ExecContext(ctx, `
				UPDATE jobs
				SET lease_expires_at = $1
				WHERE status = 'running'
			`, time.Now().Add(-time.Minute))
			require.NoError(t, err)

			count, err := repo.FailExpiredLeases(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = repo.FailExpiredLeases(ctx, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	})
}

func TestJobRepo_FailStalePendingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails stale pending jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create a pending job that is old
			oldJob, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Manually update created_at to make it old
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET created_at = $1
				WHERE id = $2
			`, time.Now().Add(-2*time.Hour), oldJob.ID)
			require.NoError(t, err)

			// Create a recent pending job
			recentJob, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-2", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Fail stale pending jobs older than 1 hour (batch size 1000)
			count, err := repo.FailStalePendingJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			// Verify old job is now failed
			oldJobAfter, err := repo.GetByID(ctx, oldJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, oldJobAfter.Status)
			assert.NotNil(t, oldJobAfter.LastError)
			assert.Contains(t, *oldJobAfter.LastError, "timed out in pending status")
			assert.NotNil(t, oldJobAfter.CompletedAt)

			// Verify recent job is still pending
			recentJobAfter, err := repo.GetByID(ctx, recentJob.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, recentJobAfter.Status)
		})
	})

	t.Run("no jobs to fail", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create a recent pending job
			_, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Try to fail stale jobs with a very short max age (batch size 1000)
			count, err := repo.FailStalePendingJobs(ctx, 24*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)
		})
	})

	t.Run("does not fail running jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create a pending job
			job, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Reserve the job (makes it running)
			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)

			// Make the job old
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET created_at = $1
				WHERE id = $2
			`, time.Now().Add(-2*time.Hour), job.ID)
			require.NoError(t, err)

			// Try to fail stale pending jobs (batch size 1000)
			count, err := repo.FailStalePendingJobs(ctx, 1*time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			// Verify job is still running
			jobAfter, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusRunning, jobAfter.Status)
		})
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old completed jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create a job
			job, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Reserve the job (makes it running)
			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)

			// Complete the job
			success, err := repo.Complete(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, success)

			// Verify job is completed
			jobAfter, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, model.JobStatusCompleted, jobAfter.Status)
			require.NotNil(t, jobAfter.CompletedAt)

			// Make the job old (8 days ago)
			oldTime := time.Now().Add(-8 * 24 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, oldTime, job.ID)
			require.NoError(t, err)

			// Delete old completed jobs older than 7 days (batch size 1000)
			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count, "Expected 1 job to be deleted")

			// Verify job is deleted
			_, err = repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("deletes old failed jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// With no retry budget the first failure is terminal
			job, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			// Reserve the job (makes it running)
			reservedJob, err := repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)
			require.NotNil(t, reservedJob)
			require.Equal(t, model.JobStatusRunning, reservedJob.Status)

			success, err := repo.Fail(ctx, job.ID, "test error")
			require.NoError(t, err)
			require.True(t, success, "Fail should return true")

			// Verify job is failed
			jobAfter, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.Equal(t, model.JobStatusFailed, jobAfter.Status)

			// Make the job old
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-8*24*time.Hour), job.ID)
			require.NoError(t, err)

			// Delete old failed jobs older than 7 days (batch size 1000)
			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusFailed,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			// Verify job is deleted
			_, err = repo.GetByID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobNotFound)
		})
	})

	t.Run("does not delete recent jobs", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create, reserve, and complete a job
			job, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)
			_, err = repo.Complete(ctx, job.ID)
			require.NoError(t, err)

			// Try to delete jobs older than 7 days (job is recent, batch size 1000)
			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusCompleted,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			// Verify job still exists
			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("does not delete jobs with different status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Create, reserve, and complete a job
			job, err := repo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapSearch,
				Payload: json.RawMessage(`{"job_id": "s-1", "subject_username": "speedking", "time_window": "1d"}`),
			})
			require.NoError(t, err)

			_, err = repo.ReserveNext(ctx, model.JobTypeMapSearch, 30)
			require.NoError(t, err)
			_, err = repo.Complete(ctx, job.ID)
			require.NoError(t, err)

			// Make the job old
			_, err = db.ExecContext(ctx, `
				UPDATE jobs
				SET completed_at = $1, updated_at = $1
				WHERE id = $2
			`, time.Now().Add(-8*24*time.Hour), job.ID)
			require.NoError(t, err)

			// Try to delete old failed jobs (job is completed, not failed, batch size 1000)
			count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatusFailed,
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			// Verify job still exists
			_, err = repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("invalid status returns error", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// Try to delete jobs with invalid status (batch size 1000)
			_, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
				Status:    model.JobStatus("invalid"),
				MaxAge:    7 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid job status")
		})
	})
}

func TestJobRepo_DeleteOldDigests(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes digests past the cutoff", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			// One digest well past the cutoff, one from today
			_, err := db.ExecContext(ctx, `
				INSERT INTO daily_digests (owning_user, digest_date)
				VALUES ('speedking@example.com', CURRENT_DATE - INTERVAL '60 days')
			`)
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `
				INSERT INTO daily_digests (owning_user, digest_date)
				VALUES ('speedking@example.com', CURRENT_DATE)
			`)
			require.NoError(t, err)

			count, err := repo.DeleteOldDigests(ctx, core.DeleteOldDigestsParams{
				MaxAge:    30 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			var remaining int
			err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_digests`).Scan(&remaining)
			require.NoError(t, err)
			assert.Equal(t, 1, remaining)
		})
	})

	t.Run("sent and unsent digests age out alike", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := db.ExecContext(ctx, `
				INSERT INTO daily_digests (owning_user, digest_date, sent_at)
				VALUES ('sent@example.com', CURRENT_DATE - INTERVAL '60 days', NOW() - INTERVAL '60 days')
			`)
			require.NoError(t, err)

			_, err = db.ExecContext(ctx, `
				INSERT INTO daily_digests (owning_user, digest_date)
				VALUES ('unsent@example.com', CURRENT_DATE - INTERVAL '60 days')
			`)
			require.NoError(t, err)

			count, err := repo.DeleteOldDigests(ctx, core.DeleteOldDigestsParams{
				MaxAge:    30 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})
	})

	t.Run("validates params", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()

			_, err := repo.DeleteOldDigests(ctx, core.DeleteOldDigestsParams{
				MaxAge:    30 * 24 * time.Hour,
				BatchSize: 0,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "batch size")

			_, err = repo.DeleteOldDigests(ctx, core.DeleteOldDigestsParams{
				MaxAge:    0,
				BatchSize: 1000,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "max age")
		})
	})
}
