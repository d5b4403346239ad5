package model

// JobListOptions groups parameters for listing jobs with optional filters (admin view).
type JobListOptions struct {
	Status    *JobStatus // Optional filter by status (pending, running, completed, failed)
	Type      *JobType   // Optional filter by type (map_search, mapper_check, driver_check, digest_dispatch)
	SortBy    string     // Sort field: "created_at", "status", "type" (default: "created_at")
	SortOrder string     // Sort order: "asc", "desc" (default: "desc")
	Limit     int        // Pagination limit
	Offset    int        // Pagination offset
}
