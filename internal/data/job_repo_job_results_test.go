package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/core"
	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/slipstreamlabs/recordwatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobResultRepo_UpsertAndGet(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("insert then update", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			job, err := jobRepo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapperCheck,
				Payload: json.RawMessage(`{"alert_id":"alert-1"}`),
			})
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(`{"alert_id":"alert-1","new_record_count":0}`),
			})
			require.NoError(t, err)

			// Second write for the same job replaces the result
			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(`{"alert_id":"alert-1","new_record_count":3}`),
			})
			require.NoError(t, err)

			result, err := resultsRepo.GetByJobID(ctx, job.ID)
			require.NoError(t, err)
			require.NotNil(t, result.JobID)
			assert.Equal(t, job.ID, *result.JobID)
			assert.Equal(t, model.JobTypeMapperCheck, result.JobType)
			assert.JSONEq(t, `{"alert_id":"alert-1","new_record_count":3}`, string(result.Result))

			var rowCount int
			err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_results WHERE job_id = $1`, job.ID).Scan(&rowCount)
			require.NoError(t, err)
			assert.Equal(t, 1, rowCount)
		})
	})

	t.Run("missing job id", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			err := resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(`{}`),
			})
			require.ErrorIs(t, err, ErrJobIDRequired)

			_, err = resultsRepo.GetByJobID(ctx, "")
			require.ErrorIs(t, err, ErrJobIDRequired)
		})
	})

	t.Run("not found", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			resultsRepo := NewJobResultRepo(db)

			_, err := resultsRepo.GetByJobID(context.Background(), "00000000-0000-0000-0000-000000000000")
			require.ErrorIs(t, err, ErrJobResultsNotFound)
		})
	})

	t.Run("unconfigured repo", func(t *testing.T) {
		var repo *JobResultRepo

		err := repo.Upsert(context.Background(), core.UpsertJobResultParams{JobID: "x"})
		require.ErrorIs(t, err, ErrJobResultsNotConfigured)

		_, err = repo.GetByJobID(context.Background(), "x")
		require.ErrorIs(t, err, ErrJobResultsNotConfigured)
	})
}

func TestJobRepo_DeleteOldJobResults(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			job, err := jobRepo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapperCheck,
				Payload: json.RawMessage(`{"alert_id":"alert-1"}`),
			})
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(`{"alert_id":"alert-1","new_record_count":1}`),
			})
			require.NoError(t, err)

			oldTime := time.Now().Add(-120 * 24 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE job_results
				SET updated_at = $1, created_at = $1
				WHERE job_id = $2
			`, oldTime, job.ID)
			require.NoError(t, err)

			count, err := jobRepo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   model.JobTypeMapperCheck,
				MaxAge:    90 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			_, err = resultsRepo.GetByJobID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobResultsNotFound)
		})
	})

	t.Run("skips recent rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			job, err := jobRepo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapperCheck,
				Payload: json.RawMessage(`{"alert_id":"alert-2"}`),
			})
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(`{"alert_id":"alert-2","new_record_count":0}`),
			})
			require.NoError(t, err)

			count, err := jobRepo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   model.JobTypeMapperCheck,
				MaxAge:    90 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			result, err := resultsRepo.GetByJobID(ctx, job.ID)
			require.NoError(t, err)
			require.NotNil(t, result.JobID, "JobID should not be nil for recent result")
			assert.Equal(t, job.ID, *result.JobID)
		})
	})

	t.Run("only touches the requested job type", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			job, err := jobRepo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeDriverCheck,
				Payload: json.RawMessage(`{"date":"2025-06-01"}`),
			})
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeDriverCheck,
				Result:  json.RawMessage(`{"notifications_checked":12}`),
			})
			require.NoError(t, err)

			oldTime := time.Now().Add(-120 * 24 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE job_results
				SET updated_at = $1, created_at = $1
				WHERE job_id = $2
			`, oldTime, job.ID)
			require.NoError(t, err)

			count, err := jobRepo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   model.JobTypeMapperCheck,
				MaxAge:    90 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			_, err = resultsRepo.GetByJobID(ctx, job.ID)
			require.NoError(t, err)
		})
	})

	t.Run("job_results persist after parent job is deleted (orphaned)", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()

			// Use unique alert ID to avoid conflicts with leftover test data
			alertID := fmt.Sprintf("alert-orphan-%d", time.Now().UnixNano())

			// Create a job
			job, err := jobRepo.Create(ctx, &model.CreateJobRequest{
				Type:    model.JobTypeMapperCheck,
				Payload: json.RawMessage(fmt.Sprintf(`{"alert_id":"%s"}`, alertID)),
			})
			require.NoError(t, err)

			// Store job result
			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeMapperCheck,
				Result:  json.RawMessage(fmt.Sprintf(`{"alert_id":"%s","new_record_count":2}`, alertID)),
			})
			require.NoError(t, err)

			// Run the job to completion so it can be deleted
			_, err = jobRepo.ReserveNext(ctx, model.JobTypeMapperCheck, 30)
			require.NoError(t, err)

			ok, err := jobRepo.Complete(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, ok)

			// Delete the parent job (simulating reaping)
			err = jobRepo.Delete(ctx, job.ID)
			require.NoError(t, err)

			// Verify job was deleted
			_, err = jobRepo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)

			// Verify job_result still exists but with NULL job_id
			var count int
			err = db.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM job_results
				WHERE job_type = $1 AND result->>'alert_id' = $2
			`, model.JobTypeMapperCheck, alertID).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count, "job_result should still exist after parent job deletion")

			// Verify job_id is NULL
			var jobID sql.NullString
			err = db.QueryRowContext(ctx, `
				SELECT job_id FROM job_results
				WHERE job_type = $1 AND result->>'alert_id' = $2
			`, model.JobTypeMapperCheck, alertID).Scan(&jobID)
			require.NoError(t, err)
			assert.False(t, jobID.Valid, "job_id should be NULL after parent job deletion")
		})
	})
}
