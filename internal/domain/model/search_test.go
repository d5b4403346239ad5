package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWindowMillis(t *testing.T) {
	tests := []struct {
		window TimeWindow
		want   int64
	}{
		{TimeWindowDay, 86_400_000},
		{TimeWindowWeek, 7 * 86_400_000},
		{TimeWindowMonth, 30 * 86_400_000},
		{TimeWindow("2d"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.window), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.window.Millis())
		})
	}
}

func TestTimeWindowCutoff(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		window     TimeWindow
		achievedAt time.Time
		inWindow   bool
	}{
		{"23h ago passes 1d", TimeWindowDay, now.Add(-23 * time.Hour), true},
		{"25h ago fails 1d", TimeWindowDay, now.Add(-25 * time.Hour), false},
		{"6d ago passes 1w", TimeWindowWeek, now.Add(-6 * 24 * time.Hour), true},
		{"8d ago fails 1w", TimeWindowWeek, now.Add(-8 * 24 * time.Hour), false},
		{"8d ago passes 1m", TimeWindowMonth, now.Add(-8 * 24 * time.Hour), true},
		{"31d ago fails 1m", TimeWindowMonth, now.Add(-31 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cutoff := tt.window.CutoffMillis(now)
			assert.Equal(t, tt.inWindow, tt.achievedAt.UnixMilli() >= cutoff)
		})
	}
}

func TestTimeWindowCutoffBoundary(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	// A record achieved exactly at the cutoff is still inside the window.
	cutoff := TimeWindowDay.CutoffMillis(now)
	assert.Equal(t, now.UnixMilli()-86_400_000, cutoff)
}

func TestTimeWindowUnmarshalText(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		var w TimeWindow
		require.NoError(t, w.UnmarshalText([]byte(" 1W ")))
		assert.Equal(t, TimeWindowWeek, w)
	})

	t.Run("invalid", func(t *testing.T) {
		var w TimeWindow
		err := w.UnmarshalText([]byte("90d"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid TimeWindow")
	})
}

func TestSearchStatusTerminal(t *testing.T) {
	assert.False(t, SearchStatusPending.Terminal())
	assert.False(t, SearchStatusProcessing.Terminal())
	assert.True(t, SearchStatusCompleted.Terminal())
	assert.True(t, SearchStatusFailed.Terminal())
}

func TestCreateSearchRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateSearchRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  CreateSearchRequest{Subject: "speedking_42", Window: TimeWindowDay},
		},
		{
			name:    "missing subject",
			req:     CreateSearchRequest{Window: TimeWindowDay},
			wantErr: "subject_username is required",
		},
		{
			name:    "subject with spaces",
			req:     CreateSearchRequest{Subject: "no spaces", Window: TimeWindowDay},
			wantErr: "invalid characters",
		},
		{
			name:    "missing window",
			req:     CreateSearchRequest{Subject: "speedking_42"},
			wantErr: "time_window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
