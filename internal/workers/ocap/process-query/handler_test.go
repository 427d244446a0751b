package processquery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
)

type fakeService struct {
	resp     *models.OCAPQueryResponse
	query    string
	threadID *string
}

func (f *fakeService) ProcessQuery(_ context.Context, query string, threadID *string, _ *int64) *models.OCAPQueryResponse {
	f.query = query
	f.threadID = threadID
	return f.resp
}

func createTestConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

func TestExecute(t *testing.T) {
	tid := "t-1"
	tests := []struct {
		name     string
		input    *Input
		resp     *models.OCAPQueryResponse
		wantCode errors.ErrorCode
	}{
		{
			name:  "processed",
			input: &Input{Query: "broken stitch", ThreadID: &tid},
			resp:  &models.OCAPQueryResponse{Status: "processed", WorkflowRunID: "r1"},
		},
		{
			name:     "pipeline error",
			input:    &Input{Query: "broken stitch"},
			resp:     &models.OCAPQueryResponse{Status: "error", WorkflowRunID: "r2", Message: "Error processing query: boom"},
			wantCode: errors.ErrCodeWorkflowFailed,
		},
		{
			name:     "blank query",
			input:    &Input{Query: "  "},
			wantCode: errors.ErrCodeValidationFailed,
		},
		{
			name:     "nil input",
			wantCode: errors.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{resp: tt.resp}
			h := NewHandler(createTestConfig(), svc, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), tt.input)
			if tt.wantCode != "" {
				require.Error(t, err)
				stdErr, ok := errors.As(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantCode, stdErr.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.resp, out)
			assert.Equal(t, "broken stitch", svc.query)
			assert.Equal(t, &tid, svc.threadID)
		})
	}
}
