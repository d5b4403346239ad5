package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TrackingMode selects how a mapper alert inspects its subject's leaderboards.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type TrackingMode string

const (
	// TrackingModeAccurate fetches each map's full leaderboard and reports the
	// exact records achieved during the prior day.
	TrackingModeAccurate TrackingMode = "accurate"
	// TrackingModeInaccurate samples leaderboard heads in batches and reports
	// only that new activity appeared, without per-record detail.
	TrackingModeInaccurate TrackingMode = "inaccurate"
)

// Valid returns true if the TrackingMode is valid.
func (m TrackingMode) Valid() bool {
	return m == TrackingModeAccurate || m == TrackingModeInaccurate
}

// UnmarshalText implements encoding.TextUnmarshaler for TrackingMode.
func (m *TrackingMode) UnmarshalText(text []byte) error {
	v := TrackingMode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid TrackingMode: %q", v)
	}
	*m = v
	return nil
}

// MapperAlert subscribes a map author to daily activity reports across all
// maps they have published. Mode and TrackedMapCount are maintained by the
// check itself; every other field belongs to subscription management.
type MapperAlert struct {
	ID              string       `json:"id"                db:"id"`
	Subject         string       `json:"subject"           db:"subject"`
	Contact         string       `json:"contact"           db:"contact"`
	Mode            TrackingMode `json:"mode"              db:"mode"`
	TrackedMapCount int          `json:"tracked_map_count" db:"tracked_map_count"`
	Enabled         bool         `json:"enabled"           db:"enabled"`
	CreatedAt       time.Time    `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"        db:"updated_at"`
}

// CreateMapperAlertRequest creates a new mapper alert subscription.
type CreateMapperAlertRequest struct {
	Subject string `json:"subject"`
	Contact string `json:"contact"`
}

// Validate validates the CreateMapperAlertRequest fields.
func (r *CreateMapperAlertRequest) Validate() error {
	if strings.TrimSpace(r.Subject) == "" {
		return errors.New("subject is required")
	}
	if !strings.Contains(r.Contact, "@") {
		return errors.New("contact must be an email address")
	}
	return nil
}

// DriverStatus marks whether a tracked position is still being checked.
type DriverStatus string

const (
	// DriverStatusActive positions are included in the daily sweep.
	DriverStatusActive DriverStatus = "active"
	// DriverStatusInactive positions dropped off the leaderboard and are no
	// longer checked. The transition is one-way.
	DriverStatusInactive DriverStatus = "inactive"
)

// Valid returns true if the DriverStatus is valid.
func (s DriverStatus) Valid() bool {
	return s == DriverStatusActive || s == DriverStatusInactive
}

// DriverNotification tracks one driver's standing on one map leaderboard.
// Position and Score hold the last snapshot the sweep observed; a later
// snapshot showing a worse position or time produces a digest entry.
type DriverNotification struct {
	ID            string       `json:"id"              db:"id"`
	AccountID     string       `json:"account_id"      db:"account_id"`
	DisplayName   string       `json:"display_name"    db:"display_name"`
	Contact       string       `json:"contact"         db:"contact"`
	MapID         string       `json:"map_id"          db:"map_id"`
	MapName       string       `json:"map_name"        db:"map_name"`
	Position      int          `json:"position"        db:"position"`
	Score         int64        `json:"score"           db:"score"`
	Status        DriverStatus `json:"status"          db:"status"`
	LastCheckedAt *time.Time   `json:"last_checked_at" db:"last_checked_at"`
	CreatedAt     time.Time    `json:"created_at"      db:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"      db:"updated_at"`
}

// CreateDriverNotificationRequest creates a new tracked position.
type CreateDriverNotificationRequest struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Contact     string `json:"contact"`
	MapID       string `json:"map_id"`
	MapName     string `json:"map_name"`
	Position    int    `json:"position"`
	Score       int64  `json:"score"`
}

// Validate validates the CreateDriverNotificationRequest fields.
func (r *CreateDriverNotificationRequest) Validate() error {
	if strings.TrimSpace(r.AccountID) == "" && strings.TrimSpace(r.DisplayName) == "" {
		return errors.New("account_id or display_name is required")
	}
	if !strings.Contains(r.Contact, "@") {
		return errors.New("contact must be an email address")
	}
	if strings.TrimSpace(r.MapID) == "" {
		return errors.New("map_id is required")
	}
	if r.Position < 1 {
		return errors.New("position must be >= 1")
	}
	if r.Score < 0 {
		return errors.New("score must be >= 0")
	}
	return nil
}

// PositionUpdate carries the fields the daily sweep is allowed to persist
// for a tracked position after comparing it against a fresh snapshot.
type PositionUpdate struct {
	ID            string
	Position      *int
	Score         *int64
	Status        *DriverStatus
	LastCheckedAt time.Time
}
