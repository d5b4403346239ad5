package model

import (
	"fmt"
	"time"
)

// DigestSection names a digest record field one writer class may update.
// Mapper checks write mapper content, driver sweeps write driver content;
// neither touches the other's section.
type DigestSection string

const (
	// DigestSectionMapper holds mapper activity lines.
	DigestSectionMapper DigestSection = "mapper_content"
	// DigestSectionDriver holds driver regression lines.
	DigestSectionDriver DigestSection = "driver_content"
)

// Valid returns true if the DigestSection is valid.
func (s DigestSection) Valid() bool {
	return s == DigestSectionMapper || s == DigestSectionDriver
}

// digestDateLayout is the canonical digest partition key format.
const digestDateLayout = "2006-01-02"

// DigestDate formats a timestamp into the UTC calendar date used to key digests.
func DigestDate(t time.Time) string {
	return t.UTC().Format(digestDateLayout)
}

// ParseDigestDate parses a digest date key back into a UTC midnight timestamp.
func ParseDigestDate(s string) (time.Time, error) {
	t, err := time.Parse(digestDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse digest date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// DigestRecord accumulates one user's notification content for one calendar
// date. There is at most one record per (OwningUser, DigestDate); section
// writers add to their own field without replacing the record. SentAt is set
// exactly once when the digest email is delivered.
type DigestRecord struct {
	OwningUser    string     `json:"owning_user"       db:"owning_user"`
	DigestDate    string     `json:"digest_date"       db:"digest_date"`
	MapperContent []string   `json:"mapper_content"    db:"mapper_content"`
	DriverContent []string   `json:"driver_content"    db:"driver_content"`
	SentAt        *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt     time.Time  `json:"created_at"        db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"        db:"updated_at"`
}

// Empty reports whether the record has no content in either section.
func (d *DigestRecord) Empty() bool {
	return len(d.MapperContent) == 0 && len(d.DriverContent) == 0
}

// Sections lists the non-empty sections in delivery order.
func (d *DigestRecord) Sections() []DigestSection {
	sections := make([]DigestSection, 0, 2)
	if len(d.MapperContent) > 0 {
		sections = append(sections, DigestSectionMapper)
	}
	if len(d.DriverContent) > 0 {
		sections = append(sections, DigestSectionDriver)
	}
	return sections
}
