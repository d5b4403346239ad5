// Package mocks provides mock implementations for testing the recordwatch job system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ReserveNext, WaitForNotification, Heartbeat, Complete, Fail, Stats, List, Delete, DeleteByPayloadField
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core JobRepository

// Generate mock for JobResultRepository interface from internal/core package.
// This creates MockJobResultRepository with methods for all JobResultRepository interface methods:
// Upsert, GetByJobID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_result_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core JobResultRepository

// Generate mock for SearchJobStore interface from internal/core package.
// This creates MockSearchJobStore with methods for all SearchJobStore interface methods:
// Create, Get, MarkProcessing, Complete, Fail
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=search_job_store_mock.go github.com/slipstreamlabs/recordwatch/internal/core SearchJobStore

// Generate mock for MapperAlertRepository interface from internal/core package.
// This creates MockMapperAlertRepository with methods for all MapperAlertRepository interface methods:
// Create, GetByID, List, ListEnabled, UpdateTracking, SetEnabled, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=mapper_alert_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core MapperAlertRepository

// Generate mock for DriverNotificationRepository interface from internal/core package.
// This creates MockDriverNotificationRepository with methods for all DriverNotificationRepository interface methods:
// Create, GetByID, List, ListActive, UpdatePosition, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=driver_notification_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core DriverNotificationRepository

// Generate mock for DigestRepository interface from internal/core package.
// This creates MockDigestRepository with methods for all DigestRepository interface methods:
// Append, GetByUserDate, ListUnsent, MarkSent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=digest_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core DigestRepository

// Generate mock for QuotaRepository interface from internal/core package.
// This creates MockQuotaRepository with methods for all QuotaRepository interface methods:
// Increment, Current, Reset
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=quota_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core QuotaRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailExpiredLeases, FailStalePendingJobs, DeleteOldJobs, DeleteOldJobResults, DeleteOldDigests
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core ReaperRepository

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, Exists, SetTTL, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core CacheRepository

// Generate mock for RaceClient interface from internal/core package.
// This creates MockRaceClient with methods for all RaceClient interface methods:
// ListMaps, Leaderboard, LeaderboardTops, Profiles
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=race_client_mock.go github.com/slipstreamlabs/recordwatch/internal/core RaceClient

// Generate mock for PlayerResolver interface from internal/core package.
// This creates MockPlayerResolver with methods for all PlayerResolver interface methods:
// ResolveNames
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=player_resolver_mock.go github.com/slipstreamlabs/recordwatch/internal/core PlayerResolver

// Generate mock for Mailer interface from internal/core package.
// This creates MockMailer with methods for all Mailer interface methods:
// Send
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=mailer_mock.go github.com/slipstreamlabs/recordwatch/internal/core Mailer

// Generate mock for ScheduledChecksRepository interface from internal/core package.
// This creates MockScheduledChecksRepository with methods for all ScheduledChecksRepository interface methods:
// FindDue, FindDueTx, MarkQueued, MarkQueuedTx, UpdateActiveFireKeyTx, TryWithCheckLock
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_checks_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core ScheduledChecksRepository

// Generate mock for ScheduledChecksAdminRepository interface from internal/core package.
// This creates MockScheduledChecksAdminRepository with methods for all ScheduledChecksAdminRepository interface methods:
// UpsertByCheckName, DeleteByCheckName, ListChecks
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_checks_admin_repository_mock.go github.com/slipstreamlabs/recordwatch/internal/core ScheduledChecksAdminRepository

// Generate mock for JobIntrospector interface from internal/core package.
// This creates MockJobIntrospector with methods for all JobIntrospector interface methods:
// RunningJobExistsByCheckName, JobStatesByCheckName
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_introspector_mock.go github.com/slipstreamlabs/recordwatch/internal/core JobIntrospector
