// Package azureopenai is a minimal chat completions client for Azure OpenAI
// deployments.
package azureopenai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ocap-agent/internal/common/config"
	"ocap-agent/internal/common/errors"
	commonhttp "ocap-agent/internal/common/http"
	"ocap-agent/internal/common/logger"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest leaves Temperature and MaxTokens to the deployment defaults
// when they are nil or zero.
type ChatRequest struct {
	Messages    []Message
	Temperature *float64
	MaxTokens   int
}

type chatBody struct {
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// ChatClient is what graph nodes need from an LLM.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

type Client struct {
	config *config.AzureOpenAIConfig
	client *commonhttp.Client
	logger logger.Logger
}

func NewClient(cfg *config.AzureOpenAIConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		// Per-call deadlines come from ctx.
		client: commonhttp.NewClient(0),
		logger: log.With(map[string]interface{}{"component": "azure_openai"}),
	}
}

// Temperature is a helper for ChatRequest literals.
func Temperature(t float64) *float64 { return &t }

// Configured reports whether endpoint, key and deployment are all set.
func (c *Client) Configured() bool {
	return c.config.Endpoint != "" && c.config.APIKey != "" && c.config.Deployment != ""
}

func (c *Client) completionsURL() string {
	base := strings.TrimRight(c.config.Endpoint, "/")
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		base, url.PathEscape(c.config.Deployment), url.QueryEscape(c.config.APIVersion))
}

// Chat sends one chat completion and returns the trimmed content of the first
// choice. Transport errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.config.Deployment == "" {
		return "", errors.NewLLMRequestFailedError(fmt.Errorf("azure openai deployment is not configured"))
	}
	if c.config.Endpoint == "" {
		return "", errors.NewLLMRequestFailedError(fmt.Errorf("azure openai endpoint is not configured"))
	}

	timeout := config.GetDuration(c.config.Timeout)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	payload, err := json.Marshal(chatBody{
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", errors.NewLLMRequestFailedError(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", errors.NewLLMTimeoutError(timeout)
			}
		}

		content, retry, err := c.do(ctx, payload)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", errors.NewLLMTimeoutError(timeout)
		}
		if !retry {
			break
		}
		c.logger.Warn("chat completion failed, retrying", map[string]interface{}{
			"attempt": attempt + 1,
			"error":   err.Error(),
		})
	}

	if _, ok := errors.As(lastErr); ok {
		return "", lastErr
	}
	return "", errors.NewLLMRequestFailedError(lastErr)
}

func (c *Client) do(ctx context.Context, payload []byte) (content string, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.config.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", true, err
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retryable, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 300))
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", false, errors.NewLLMResponseInvalidError(fmt.Sprintf("decode: %v", err))
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("%s: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.NewLLMResponseInvalidError("response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), false, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
