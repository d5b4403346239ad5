package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestDate(t *testing.T) {
	// Local times on either side of UTC midnight land on the UTC date.
	late := time.Date(2025, 6, 14, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	assert.Equal(t, "2025-06-14", DigestDate(late))

	utc := time.Date(2025, 6, 15, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, "2025-06-15", DigestDate(utc))
}

func TestParseDigestDate(t *testing.T) {
	got, err := ParseDigestDate("2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseDigestDate("15/06/2025")
	require.Error(t, err)
}

func TestDigestRecordEmpty(t *testing.T) {
	rec := &DigestRecord{OwningUser: "driver@example.com", DigestDate: "2025-06-15"}
	assert.True(t, rec.Empty())

	rec.MapperContent = []string{"new record on Velodrome"}
	assert.False(t, rec.Empty())
}

func TestDigestRecordSections(t *testing.T) {
	rec := &DigestRecord{
		MapperContent: []string{"a"},
		DriverContent: []string{"b"},
	}
	assert.Equal(t, []DigestSection{DigestSectionMapper, DigestSectionDriver}, rec.Sections())

	rec.MapperContent = nil
	assert.Equal(t, []DigestSection{DigestSectionDriver}, rec.Sections())

	rec.DriverContent = nil
	assert.Empty(t, rec.Sections())
}
