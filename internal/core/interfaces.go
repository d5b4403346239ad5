package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// JobRepository defines the interface for job data operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ReserveNext(ctx context.Context, jobType model.JobType, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, id, errMsg string) (bool, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	Delete(ctx context.Context, id string) error
	DeleteByPayloadField(ctx context.Context, params DeleteByPayloadFieldParams) (int, error)
}

// JobRepositoryTx defines optional transactional job creation support.
type JobRepositoryTx interface {
	CreateInTx(ctx context.Context, tx *sql.Tx, req *model.CreateJobRequest) (*model.Job, error)
}

// DeleteByPayloadFieldParams groups parameters for DeleteByPayloadField to keep param count small.
// Used to drop pending check jobs when their subscription is removed.
type DeleteByPayloadFieldParams struct {
	JobType    model.JobType
	FieldName  string
	FieldValue string
}

// UpsertJobResultParams groups parameters for JobResultRepository.Upsert.
type UpsertJobResultParams struct {
	JobID   string
	JobType model.JobType
	Result  []byte
}

// JobResultRepository defines the interface for persisted job result data.
type JobResultRepository interface {
	Upsert(ctx context.Context, params UpsertJobResultParams) error
	GetByJobID(ctx context.Context, jobID string) (*model.JobResult, error)
}

// SearchJobStore defines the interface for ephemeral map-search records.
// Records are keyed by job ID and expire on their own. After creation exactly
// one worker writes a given record; the store does not arbitrate writers.
type SearchJobStore interface {
	// Create stores a fresh pending record. Returns a Conflict error when the
	// job ID is already present.
	Create(ctx context.Context, search *model.SearchJob) error

	// Get retrieves a record by job ID. Returns NotFound when the record never
	// existed or has already expired.
	Get(ctx context.Context, jobID string) (*model.SearchJob, error)

	// MarkProcessing flips a record to processing when the worker picks it up.
	MarkProcessing(ctx context.Context, jobID string) error

	// Complete stores the final result and flips the record to completed.
	Complete(ctx context.Context, jobID string, result *model.SearchResult) error

	// Fail records the failure reason and flips the record to failed.
	Fail(ctx context.Context, jobID, errMsg string) error
}

// UpdateTrackingParams carries the only two alert fields the mapper check may
// mutate. Subscription management owns everything else.
type UpdateTrackingParams struct {
	AlertID         string
	Mode            model.TrackingMode
	TrackedMapCount int
}

// MapperAlertRepository defines the interface for mapper alert subscriptions.
type MapperAlertRepository interface {
	Create(ctx context.Context, req *model.CreateMapperAlertRequest) (*model.MapperAlert, error)
	GetByID(ctx context.Context, id string) (*model.MapperAlert, error)
	List(ctx context.Context, limit, offset int) ([]*model.MapperAlert, error)
	// ListEnabled returns every enabled alert; the dispatcher enqueues one
	// check job per row.
	ListEnabled(ctx context.Context) ([]*model.MapperAlert, error)
	// UpdateTracking persists the check's mode decision and map count.
	UpdateTracking(ctx context.Context, params UpdateTrackingParams) error
	SetEnabled(ctx context.Context, id string, enabled bool) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// DriverNotificationRepository defines the interface for driver position subscriptions.
type DriverNotificationRepository interface {
	Create(ctx context.Context, req *model.CreateDriverNotificationRequest) (*model.DriverNotification, error)
	GetByID(ctx context.Context, id string) (*model.DriverNotification, error)
	List(ctx context.Context, limit, offset int) ([]*model.DriverNotification, error)
	// ListActive returns every active subscription for the daily sweep.
	ListActive(ctx context.Context) ([]*model.DriverNotification, error)
	// UpdatePosition applies a position-diff outcome. Only position, score,
	// status and last_checked_at are writable through this path.
	UpdatePosition(ctx context.Context, update model.PositionUpdate) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AppendDigestParams groups parameters for DigestRepository.Append.
// Lines are appended to exactly the named section; the other section and the
// sent marker are never touched by an append.
type AppendDigestParams struct {
	OwningUser string
	DigestDate string
	Section    model.DigestSection
	Lines      []string
}

// MarkDigestSentParams groups parameters for DigestRepository.MarkSent.
type MarkDigestSentParams struct {
	OwningUser string
	DigestDate string
	SentAt     time.Time
}

// DigestRepository defines the interface for daily digest persistence.
type DigestRepository interface {
	// Append upserts the (user, date) record and appends lines to one section.
	Append(ctx context.Context, params AppendDigestParams) error

	// GetByUserDate retrieves a single digest record.
	GetByUserDate(ctx context.Context, owningUser, digestDate string) (*model.DigestRecord, error)

	// ListUnsent returns every record for the given date that has content and
	// no sent marker yet.
	ListUnsent(ctx context.Context, digestDate string) ([]*model.DigestRecord, error)

	// MarkSent sets the sent marker. Returns false when the record was already
	// marked, so a crashed dispatcher cannot double-send.
	MarkSent(ctx context.Context, params MarkDigestSentParams) (bool, error)
}

// QuotaRepository tracks durable usage counters that survive process restarts.
type QuotaRepository interface {
	// Increment bumps the counter for scope, starting the window on first use.
	// Returns the post-increment count; callers compare against their limit.
	// Rejected attempts still count: the counter measures demand, not grants.
	Increment(ctx context.Context, scope string, window time.Duration) (int64, error)

	// Current returns the live counter for scope, zero when expired or unset.
	Current(ctx context.Context, scope string) (int64, error)

	// Reset clears the counter for scope.
	Reset(ctx context.Context, scope string) error
}

// DeleteOldJobsParams groups parameters for DeleteOldJobs to keep param count small.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// DeleteOldJobResultsParams groups parameters for DeleteOldJobResults.
type DeleteOldJobResultsParams struct {
	JobType   model.JobType
	MaxAge    time.Duration
	BatchSize int
}

// DeleteOldDigestsParams groups parameters for DeleteOldDigests.
type DeleteOldDigestsParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailExpiredLeases marks running jobs whose lease has lapsed as failed.
	// An abandoned job surfaces here instead of being silently requeued.
	// Processes up to batchSize jobs per call; returns the number failed.
	FailExpiredLeases(ctx context.Context, batchSize int) (int64, error)

	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)

	// DeleteOldJobResults deletes persisted job_results rows for the given job type
	// that are older than maxAge. Processes up to batchSize rows per call.
	DeleteOldJobResults(ctx context.Context, params DeleteOldJobResultsParams) (int64, error)

	// DeleteOldDigests deletes digest rows whose date is older than maxAge.
	// Sent and unsent rows alike; the sweep only reads the current date.
	DeleteOldDigests(ctx context.Context, params DeleteOldDigestsParams) (int64, error)
}
