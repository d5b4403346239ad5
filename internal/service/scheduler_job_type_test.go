package service

import (
	"testing"

	"github.com/slipstreamlabs/recordwatch/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestJobTypeForCheckName(t *testing.T) {
	tests := []struct {
		name         string
		checkName    string
		expectedType model.JobType
		expectedOk   bool
	}{
		{
			name:         "mapper fan-out check",
			checkName:    "mapper_fanout",
			expectedType: model.JobTypeMapperCheck,
			expectedOk:   true,
		},
		{
			name:         "qualified mapper fan-out check",
			checkName:    "mapper_fanout:eu",
			expectedType: model.JobTypeMapperCheck,
			expectedOk:   true,
		},
		{
			name:         "driver fan-out check",
			checkName:    "driver_fanout",
			expectedType: model.JobTypeDriverCheck,
			expectedOk:   true,
		},
		{
			name:         "qualified driver fan-out check",
			checkName:    "driver_fanout:backfill-2025-05",
			expectedType: model.JobTypeDriverCheck,
			expectedOk:   true,
		},
		{
			name:         "digest dispatch check",
			checkName:    "digest_dispatch",
			expectedType: model.JobTypeDigestDispatch,
			expectedOk:   true,
		},
		{
			name:         "qualified digest dispatch check",
			checkName:    "digest_dispatch:morning",
			expectedType: model.JobTypeDigestDispatch,
			expectedOk:   true,
		},
		{
			name:         "unknown check name",
			checkName:    "unknown_check",
			expectedType: "",
			expectedOk:   false,
		},
		{
			name:         "qualifier alone does not resolve",
			checkName:    ":mapper_fanout",
			expectedType: "",
			expectedOk:   false,
		},
		{
			name:         "empty check name",
			checkName:    "",
			expectedType: "",
			expectedOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobType, ok := jobTypeForCheckName(tt.checkName)
			assert.Equal(t, tt.expectedOk, ok)
			assert.Equal(t, tt.expectedType, jobType)
		})
	}
}
