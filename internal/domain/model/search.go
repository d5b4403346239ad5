package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// TimeWindow restricts a map search to records achieved recently.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TimeWindow string

const (
	// TimeWindowDay keeps records achieved within the last day.
	TimeWindowDay TimeWindow = "1d"
	// TimeWindowWeek keeps records achieved within the last week.
	TimeWindowWeek TimeWindow = "1w"
	// TimeWindowMonth keeps records achieved within the last month.
	TimeWindowMonth TimeWindow = "1m"
)

// dayMillis is the fixed length of a day for window arithmetic.
// Windows are calendar-free: a week is seven days, a month thirty.
const dayMillis = int64(86_400_000)

// Valid returns true if the TimeWindow is one of the supported values.
func (w TimeWindow) Valid() bool {
	return w == TimeWindowDay || w == TimeWindowWeek || w == TimeWindowMonth
}

// UnmarshalText implements encoding.TextUnmarshaler for TimeWindow.
func (w *TimeWindow) UnmarshalText(text []byte) error {
	v := TimeWindow(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid TimeWindow: %q", v)
	}
	*w = v
	return nil
}

// Millis returns the window length in milliseconds.
func (w TimeWindow) Millis() int64 {
	switch w {
	case TimeWindowDay:
		return dayMillis
	case TimeWindowWeek:
		return 7 * dayMillis
	case TimeWindowMonth:
		return 30 * dayMillis
	}
	return 0
}

// CutoffMillis returns the oldest achievement timestamp (unix milliseconds)
// still inside the window when measured from now. Records achieved at or
// after the cutoff are kept.
func (w TimeWindow) CutoffMillis(now time.Time) int64 {
	return now.UnixMilli() - w.Millis()
}

// SearchStatus represents the lifecycle state of a map search.
type SearchStatus string

const (
	// SearchStatusPending indicates a search has been accepted but not picked up.
	SearchStatusPending SearchStatus = "pending"
	// SearchStatusProcessing indicates the worker is sweeping leaderboards.
	SearchStatusProcessing SearchStatus = "processing"
	// SearchStatusCompleted indicates a search finished and its result is readable.
	SearchStatusCompleted SearchStatus = "completed"
	// SearchStatusFailed indicates a search gave up; Error carries the reason.
	SearchStatusFailed SearchStatus = "failed"
)

// Valid returns true if the SearchStatus is valid.
func (s SearchStatus) Valid() bool {
	return s == SearchStatusPending || s == SearchStatusProcessing ||
		s == SearchStatusCompleted || s == SearchStatusFailed
}

// Terminal returns true once the search can no longer change state on its own.
// Non-terminal records that outlive their worker simply age out of the store.
func (s SearchStatus) Terminal() bool {
	return s == SearchStatusCompleted || s == SearchStatusFailed
}

// SearchJob is the externally visible record of one map search.
// Exactly one worker writes a given record after creation.
type SearchJob struct {
	ID        string        `json:"job_id"`
	Subject   string        `json:"subject_username"`
	Window    TimeWindow    `json:"time_window"`
	Status    SearchStatus  `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Result    *SearchResult `json:"result,omitempty"`
	Error     *string       `json:"error,omitempty"`
}

// SearchResult aggregates every map that produced at least one in-window record.
type SearchResult struct {
	Subject      string       `json:"subject_username"`
	Window       TimeWindow   `json:"time_window"`
	Maps         []MapRecords `json:"maps"`
	MapsSearched int          `json:"maps_searched"`
	TotalRecords int          `json:"total_records"`
}

// MapRecords groups the surviving leaderboard records of a single map.
type MapRecords struct {
	MapID   string             `json:"map_id"`
	MapName string             `json:"map_name"`
	Records []LeaderboardEntry `json:"records"`
}

// LeaderboardEntry is one placed record on a map leaderboard.
// Score is a race time in milliseconds; lower is better.
type LeaderboardEntry struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name,omitempty"`
	Position    int    `json:"position"`
	Score       int64  `json:"score"`
	AchievedAt  int64  `json:"achieved_at"`
}

// MapSummary is one entry of a subject's authored map listing.
type MapSummary struct {
	MapID   string `json:"map_id"`
	MapName string `json:"map_name"`
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// CreateSearchRequest is the request body for enqueuing a map search.
type CreateSearchRequest struct {
	JobID   string     `json:"job_id,omitempty"`
	Subject string     `json:"subject_username"`
	Window  TimeWindow `json:"time_window"`
}

// Validate validates the CreateSearchRequest fields.
func (r *CreateSearchRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return errors.New("subject_username is required")
	}
	if !usernamePattern.MatchString(r.Subject) {
		return errors.New("subject_username contains invalid characters")
	}
	if !r.Window.Valid() {
		return errors.New("time_window must be one of 1d, 1w, 1m")
	}
	return nil
}
