package model

import (
	"encoding/json"
	"time"
)

// JobResult represents persisted job execution details, such as the record
// counts a check produced. JobID may be nil if the parent job has been reaped
// while preserving the execution history.
type JobResult struct {
	JobID     *string         `json:"job_id"     db:"job_id"`
	JobType   JobType         `json:"job_type"   db:"job_type"`
	Result    json.RawMessage `json:"result"     db:"result"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}
