package observability

import (
	"context"
	"testing"

	"ocap-agent/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracing_Disabled(t *testing.T) {
	tr, err := NewTracing(context.Background(), config.TracingConfig{ServiceName: "ocap-agent"}, "0.1.0")
	require.NoError(t, err)
	assert.False(t, tr.Enabled())

	ctx, span := tr.Tracer().Start(context.Background(), "noop")
	defer span.End()
	assert.Empty(t, TraceID(ctx))
	assert.NoError(t, tr.Shutdown(context.Background()))
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw          string
		insecure     bool
		wantHost     string
		wantPath     string
		wantInsecure bool
	}{
		{"", false, "localhost:4317", "", true},
		{"collector:4317", false, "collector:4317", "", false},
		{"collector:4317", true, "collector:4317", "", true},
		{"http://localhost:4318/v1/traces", false, "localhost:4318", "/v1/traces", true},
		{"https://otel.example.com", false, "otel.example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, path, insecure := splitEndpoint(tt.raw, tt.insecure)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantInsecure, insecure)
		})
	}
}

func TestRecordWorkflow_NilSafe(t *testing.T) {
	var o *Observability
	o.RecordWorkflow(context.Background(), "precise", "completed", 0)
	o.RecordJobProcessed(context.Background(), "ocap-classify", "completed")
	assert.NoError(t, o.Shutdown(context.Background()))
}
