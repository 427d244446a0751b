package azureopenai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
)

func createTestConfig(endpoint string) *config.AzureOpenAIConfig {
	return &config.AzureOpenAIConfig{
		Endpoint:   endpoint,
		APIKey:     "test-key",
		APIVersion: "2024-02-01",
		Deployment: "gpt-4o",
		Timeout:    5000,
		MaxRetries: 2,
	}
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestClient_Chat_Success(t *testing.T) {
	var got chatBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("  hello there \n")))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL+"/"), logger.NewTestLogger(t))
	out, err := client.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
		},
		Temperature: Temperature(0.3),
		MaxTokens:   800,
	})

	require.NoError(t, err)
	assert.Equal(t, "hello there", out)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	assert.Equal(t, 800, got.MaxTokens)
}

func TestClient_Chat_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(completion("ok")))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	out, err := client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_Chat_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":"401","message":"bad key"}}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	_, err := client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	require.Error(t, err)
	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMRequestFailed, stdErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Chat_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	_, err := client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMResponseInvalid, stdErr.Code)
}

func TestClient_Chat_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	cfg := createTestConfig(server.URL)
	cfg.Timeout = 50
	client := NewClient(cfg, logger.NewTestLogger(t))

	_, err := client.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "q"}}})

	stdErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeLLMTimeout, stdErr.Code)
}

func TestClient_Chat_NotConfigured(t *testing.T) {
	client := NewClient(&config.AzureOpenAIConfig{}, logger.NewTestLogger(t))
	assert.False(t, client.Configured())

	_, err := client.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
}
