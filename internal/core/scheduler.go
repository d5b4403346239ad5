// Package core provides the business logic and service layer for the recordwatch job system.
package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/slipstreamlabs/recordwatch/internal/domain"
)

// ScheduledChecksRepository defines the interface for scheduled checks data operations.
// It provides concurrency-safe operations for managing recurring checks.
type ScheduledChecksRepository interface {
	// FindDue finds scheduled checks that are due for execution.
	// Uses FOR UPDATE SKIP LOCKED to prevent concurrent schedulers from processing the same checks.
	// A check is due when next_run_at IS NULL OR next_run_at <= now.
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledCheck, error)

	// FindDueTx is the transactional variant of FindDue; rows remain locked until tx ends.
	FindDueTx(ctx context.Context, tx *sql.Tx, p domain.FindDueParams) ([]domain.ScheduledCheck, error)

	// MarkQueued records a firing and advances next_run_at.
	// Return semantics:
	//   - (true, nil): check found and updated
	//   - (false, nil): check not found
	//   - (false, err): update failed due to error
	MarkQueued(ctx context.Context, p domain.MarkQueuedParams) (bool, error)

	// MarkQueuedTx records a firing within an existing transaction.
	MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error)

	// UpdateActiveFireKeyTx sets or clears the active fire key for a check within the provided transaction.
	UpdateActiveFireKeyTx(ctx context.Context, tx *sql.Tx, p domain.UpdateActiveFireKeyParams) error

	// TryWithCheckLock attempts to acquire an advisory lock for the given check name.
	// Uses FNV-1a 64-bit hash of check_name for the lock key.
	// If the lock is acquired, executes fn within the same transaction.
	// Return semantics:
	//   - (false, nil): lock not acquired; fn was not executed
	//   - (true, nil): lock acquired; fn executed and succeeded
	//   - (true, err): lock acquired; fn executed and failed with err
	TryWithCheckLock(
		ctx context.Context,
		checkName string,
		fn func(context.Context, *sql.Tx) error,
	) (bool, error)
}

// ScheduledChecksAdminRepository defines minimal admin operations for creating/updating/removing
// scheduled checks by name. Used by the admin CLI and the alert service to reconcile scheduler state.
type ScheduledChecksAdminRepository interface {
	// UpsertByCheckName creates or updates a scheduled check identified by CheckName.
	// If the check exists, updates payload and cron_spec and recomputes next_run_at;
	// preserves last_queued_at.
	UpsertByCheckName(ctx context.Context, req domain.UpsertCheckParams) error
	// DeleteByCheckName deletes a scheduled check by its name. Returns true if a row was deleted.
	DeleteByCheckName(ctx context.Context, checkName string) (bool, error)
	// ListChecks returns every scheduled check, ordered by name.
	ListChecks(ctx context.Context) ([]domain.ScheduledCheck, error)
}

// JobIntrospector defines the interface for inspecting queued and running jobs.
// Note: "running" means status='running' AND lease_expires_at > now (unexpired lease).
type JobIntrospector interface {
	// RunningJobExistsByCheckName checks if there are any running jobs with unexpired lease
	// that have the specified check_name in their metadata (scheduler.check_name).
	// Only counts jobs where status='running' AND lease_expires_at > now.
	RunningJobExistsByCheckName(ctx context.Context, checkName string, now time.Time) (bool, error)
	// JobStatesByCheckName returns a bitmask describing which overrun states currently exist for the check.
	JobStatesByCheckName(ctx context.Context, checkName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobScheduler defines the interface for the scheduler service.
type JobScheduler interface {
	// Tick processes due scheduled checks and enqueues jobs according to strategy.
	// Returns the number of checks processed.
	Tick(ctx context.Context, now time.Time) (int, error)
}

// SchedulerConfig holds configuration for the job scheduler.
type SchedulerConfig struct {
	BatchSize       int                    `json:"batch_size"`
	DefaultPriority int                    `json:"default_priority"`
	MaxRetries      int                    `json:"max_retries"`
	Strategy        domain.StrategyOptions `json:"strategy"`
}

// DefaultSchedulerConfig returns a SchedulerConfig with sensible defaults.
// MaxRetries stays zero: workers retry upstream calls internally on a fixed
// schedule, and a job that still fails should surface, not requeue.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:       25,
		DefaultPriority: 0,
		MaxRetries:      0,
		Strategy: domain.StrategyOptions{
			Overrun:       domain.OverrunPolicySkip,
			OverrunStates: domain.OverrunStatesDefault,
		},
	}
}
