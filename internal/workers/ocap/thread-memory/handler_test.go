package threadmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/azureopenai"
	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
	"ocap-agent/internal/store"
)

type fakeLLM struct {
	content string
	err     error
	calls   int
	last    azureopenai.ChatRequest
}

func (f *fakeLLM) Chat(_ context.Context, req azureopenai.ChatRequest) (string, error) {
	f.calls++
	f.last = req
	return f.content, f.err
}

type fakeMemory struct {
	available bool
	ids       []string
	listErr   error
	records   map[string]*models.WorkflowRecord
}

func (f *fakeMemory) Available() bool { return f.available }

func (f *fakeMemory) ThreadWorkflowIDs(context.Context, string) ([]string, error) {
	return f.ids, f.listErr
}

func (f *fakeMemory) Get(_ context.Context, id string) (*models.WorkflowRecord, error) {
	if id == "broken" {
		return nil, fmt.Errorf("decode failed")
	}
	return f.records[id], nil
}

func createTestConfig() *Config {
	return &Config{Timeout: 30 * time.Second, Temperature: 0.3, MaxTokens: 800}
}

func strPtr(s string) *string { return &s }

func record(id, query, response string, matches bool) *models.WorkflowRecord {
	meta := json.RawMessage(`{}`)
	if matches {
		meta = json.RawMessage(`{"registry_matches":[{"node_type":"defect","value":"Skip Stitch","match_type":"exact","confidence":90}]}`)
	}
	return &models.WorkflowRecord{
		WorkflowRunID:  id,
		Query:          query,
		Response:       response,
		Classification: strPtr("precise"),
		Metadata:       meta,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestExecute_Unavailable(t *testing.T) {
	tests := []struct {
		name    string
		memory  Memory
		wantErr bool
	}{
		{name: "no store", memory: nil},
		{name: "store down", memory: &fakeMemory{available: false}},
		{name: "empty thread", memory: &fakeMemory{available: true}},
		{name: "list error", memory: &fakeMemory{available: true, listErr: fmt.Errorf("conn reset")}, wantErr: true},
		{
			name: "only unusable runs",
			memory: &fakeMemory{
				available: true,
				ids:       []string{"gone", "broken"},
				records:   map[string]*models.WorkflowRecord{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeLLM{content: "unused"}
			h := NewHandler(createTestConfig(), llm, tt.memory, logger.NewTestLogger(t))

			out, err := h.Execute(context.Background(), &Input{Query: "q", ThreadID: strPtr("t1")})
			require.NoError(t, err)
			assert.Nil(t, out.ThreadMemorySummary)
			assert.False(t, out.ThreadMemoryAvailable)
			assert.Zero(t, out.WorkflowCount)
			assert.NotNil(t, out.HistoricalRegistryMatches)
			assert.Empty(t, out.HistoricalRegistryMatches)
			assert.Equal(t, tt.wantErr, out.ThreadMemoryError != "")
			assert.Zero(t, llm.calls)
		})
	}
}

func TestExecute_Summarizes(t *testing.T) {
	mem := &fakeMemory{
		available: true,
		ids:       []string{"r2", "r1", "missing"},
		records: map[string]*models.WorkflowRecord{
			"r2": record("r2", "what about the collar?", "Check collar attach.", false),
			"r1": record("r1", "skip stitch on polo", "Re-thread the needle.", true),
		},
	}
	llm := &fakeLLM{content: "User asked about skip stitch then collar."}
	h := NewHandler(createTestConfig(), llm, mem, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "and now?", ThreadID: strPtr("t1")})
	require.NoError(t, err)

	require.NotNil(t, out.ThreadMemorySummary)
	assert.Equal(t, "User asked about skip stitch then collar.", *out.ThreadMemorySummary)
	assert.True(t, out.ThreadMemoryAvailable)
	assert.False(t, out.SummaryFallback)
	assert.Equal(t, 2, out.WorkflowCount)
	assert.Equal(t, "t1", out.ThreadID)

	require.Len(t, out.HistoricalRegistryMatches, 1)
	hist := out.HistoricalRegistryMatches[0]
	assert.Equal(t, "r1", hist.WorkflowRunID)
	assert.Equal(t, "2026-01-02T03:04:05Z", hist.CreatedAt)
	assert.Equal(t, "Skip Stitch", hist.RegistryMatches[0].Value)

	require.NotNil(t, llm.last.Temperature)
	assert.Equal(t, 0.3, *llm.last.Temperature)
	assert.Equal(t, 800, llm.last.MaxTokens)
	prompt := llm.last.Messages[1].Content
	assert.Less(t, strings.Index(prompt, "what about the collar?"), strings.Index(prompt, "skip stitch on polo"))
}

func TestExecute_FallbackSummary(t *testing.T) {
	long := strings.Repeat("x", 150)
	mem := &fakeMemory{
		available: true,
		ids:       []string{"r1", "r2"},
		records: map[string]*models.WorkflowRecord{
			"r1": record("r1", long, "", false),
			"r2": record("r2", "short", "ok", false),
		},
	}
	h := NewHandler(createTestConfig(), &fakeLLM{err: fmt.Errorf("503")}, mem, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "q", ThreadID: strPtr("t1")})
	require.NoError(t, err)

	want := "Previous interactions:\n" +
		"Interaction 1: Query: " + strings.Repeat("x", 100) + "... Response: N/A...\n" +
		"Interaction 2: Query: short... Response: ok..."
	require.NotNil(t, out.ThreadMemorySummary)
	assert.Equal(t, want, *out.ThreadMemorySummary)
	assert.True(t, out.SummaryFallback)
	assert.True(t, out.ThreadMemoryAvailable)
	assert.Equal(t, 2, out.WorkflowCount)
}

func TestExecute_RedisMemoryStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := store.NewMemoryStore(client, config.OCAPConfig{})
	ctx := context.Background()
	for _, rec := range []*models.WorkflowRecord{
		record("r1", "first", "one", true),
		record("r2", "second", "two", false),
	} {
		rec.ThreadID = "thread-9"
		require.NoError(t, mem.Save(ctx, rec))
	}

	llm := &fakeLLM{content: "summary"}
	h := NewHandler(createTestConfig(), llm, mem, logger.NewTestLogger(t))

	out, err := h.Execute(ctx, &Input{Query: "third", ThreadID: strPtr("thread-9")})
	require.NoError(t, err)
	assert.Equal(t, 2, out.WorkflowCount)
	require.Len(t, out.HistoricalRegistryMatches, 1)
	assert.Equal(t, "r1", out.HistoricalRegistryMatches[0].WorkflowRunID)
}

func TestExecute_DerivesThreadID(t *testing.T) {
	mem := &fakeMemory{
		available: true,
		ids:       []string{"r1"},
		records:   map[string]*models.WorkflowRecord{"r1": record("r1", "first", "one", false)},
	}
	uid := int64(42)
	h := NewHandler(createTestConfig(), &fakeLLM{content: "s"}, mem, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Query: "first", UserID: &uid})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.ThreadID, "user_42_thread_"))
}
