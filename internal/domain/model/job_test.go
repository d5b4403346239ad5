package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTypeValid(t *testing.T) {
	valid := []JobType{JobTypeMapSearch, JobTypeMapperCheck, JobTypeDriverCheck, JobTypeDigestDispatch}
	for _, jt := range valid {
		assert.True(t, jt.Valid(), "expected %q to be valid", jt)
	}
	assert.False(t, JobType("browser").Valid())
	assert.False(t, JobType("").Valid())
}

func TestJobTypeUnmarshalText(t *testing.T) {
	t.Run("normalises case and whitespace", func(t *testing.T) {
		var jt JobType
		require.NoError(t, jt.UnmarshalText([]byte("  Map_Search ")))
		assert.Equal(t, JobTypeMapSearch, jt)
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		var jt JobType
		err := jt.UnmarshalText([]byte("reindex"))
		require.Error(t, err)
	})
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestCreateJobRequestValidate(t *testing.T) {
	payload := json.RawMessage(`{"alert_id":"a1"}`)

	tests := []struct {
		name    string
		req     CreateJobRequest
		wantErr string
	}{
		{
			name: "valid request",
			req:  CreateJobRequest{Type: JobTypeMapperCheck, Payload: payload},
		},
		{
			name:    "invalid type",
			req:     CreateJobRequest{Type: "bogus", Payload: payload},
			wantErr: "invalid job type",
		},
		{
			name:    "missing payload",
			req:     CreateJobRequest{Type: JobTypeMapperCheck},
			wantErr: "payload is required",
		},
		{
			name:    "priority out of range",
			req:     CreateJobRequest{Type: JobTypeMapperCheck, Payload: payload, Priority: 101},
			wantErr: "priority must be between 0 and 100",
		},
		{
			name:    "negative max retries",
			req:     CreateJobRequest{Type: JobTypeMapperCheck, Payload: payload, MaxRetries: -1},
			wantErr: "max retries must be >= 0",
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
