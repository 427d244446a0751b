// internal/workers/ocap/thread-memory/handler.go
package threadmemory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ocap-agent/internal/common/azureopenai"
	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
	"ocap-agent/internal/prompts"
)

const (
	TaskType = "ocap-thread-memory"
	NodeName = "summarize_thread_memory"

	fallbackPreview = 100
)

// Memory is the read side of the workflow memory store.
type Memory interface {
	Available() bool
	ThreadWorkflowIDs(ctx context.Context, threadID string) ([]string, error)
	Get(ctx context.Context, id string) (*models.WorkflowRecord, error)
}

type Handler struct {
	config *Config
	llm    azureopenai.ChatClient
	memory Memory
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, llm azureopenai.ChatClient, memory Memory, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		llm:    llm,
		memory: memory,
		errors: errors.NewErrorHandler(l),
		logger: l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := camunda.DecodeVariables(job, &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"error": err})
	}
}

// Execute summarizes the earlier turns of the thread. Missing memory is not
// an error: the output simply reports the memory as unavailable.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}

	unavailable := &Output{HistoricalRegistryMatches: []models.HistoricalWorkflow{}}
	if h.memory == nil || !h.memory.Available() {
		h.logger.Debug("memory store unavailable, skipping thread memory", nil)
		return unavailable, nil
	}

	threadID := models.ResolveThreadID(input.ThreadID, input.UserID, input.Query)
	log := h.logger.WithFields(map[string]interface{}{"threadId": threadID})

	ids, err := h.memory.ThreadWorkflowIDs(ctx, threadID)
	if err != nil {
		log.Error("failed to list thread workflows", map[string]interface{}{"error": err.Error()})
		unavailable.ThreadMemoryError = err.Error()
		return unavailable, nil
	}
	if len(ids) == 0 {
		log.Info("no previous workflow runs for thread", nil)
		return unavailable, nil
	}

	interactions, historical := h.collect(ctx, log, ids)
	if len(interactions) == 0 {
		log.Info("no usable interactions to summarize", nil)
		return unavailable, nil
	}

	out := &Output{
		ThreadMemoryAvailable:     true,
		WorkflowCount:             len(interactions),
		ThreadID:                  threadID,
		HistoricalRegistryMatches: historical,
	}

	summary, err := h.summarize(ctx, interactions)
	if err != nil {
		log.Error("thread memory summary failed, using fallback", map[string]interface{}{"error": err.Error()})
		summary = FallbackSummary(interactions)
		out.SummaryFallback = true
	}
	out.ThreadMemorySummary = &summary

	log.Info("thread memory summarized", map[string]interface{}{
		"workflowCount":   out.WorkflowCount,
		"historicalRuns":  len(historical),
		"summaryFallback": out.SummaryFallback,
	})
	return out, nil
}

// collect loads the stored runs, newest first. Unreadable runs are skipped.
func (h *Handler) collect(ctx context.Context, log logger.Logger, ids []string) ([]models.Interaction, []models.HistoricalWorkflow) {
	interactions := make([]models.Interaction, 0, len(ids))
	historical := make([]models.HistoricalWorkflow, 0)

	for _, id := range ids {
		rec, err := h.memory.Get(ctx, id)
		if err != nil {
			log.Warn("failed to read workflow state", map[string]interface{}{"workflowRunId": id, "error": err.Error()})
			continue
		}
		if rec == nil {
			continue
		}

		if matches := rec.RegistryMatches(); len(matches) > 0 {
			createdAt := ""
			if !rec.CreatedAt.IsZero() {
				createdAt = rec.CreatedAt.UTC().Format(time.RFC3339)
			}
			historical = append(historical, models.HistoricalWorkflow{
				WorkflowRunID:   id,
				Query:           rec.Query,
				Response:        rec.Response,
				Classification:  rec.Classification,
				RegistryMatches: matches,
				CreatedAt:       createdAt,
			})
		}

		if rec.Query != "" {
			interactions = append(interactions, models.Interaction{
				Query:          rec.Query,
				Response:       rec.Response,
				Classification: rec.Classification,
			})
		}
	}
	return interactions, historical
}

func (h *Handler) summarize(ctx context.Context, interactions []models.Interaction) (string, error) {
	if h.llm == nil {
		return "", errors.NewLLMRequestFailedError(fmt.Errorf("no LLM client configured"))
	}
	prompt, err := prompts.SummarizeThreadMemory(prompts.MemoryData{Interactions: interactions})
	if err != nil {
		return "", err
	}
	return h.llm.Chat(ctx, azureopenai.ChatRequest{
		Messages: []azureopenai.Message{
			{Role: azureopenai.RoleSystem, Content: prompts.MemorySystem},
			{Role: azureopenai.RoleUser, Content: prompt},
		},
		Temperature: azureopenai.Temperature(h.config.Temperature),
		MaxTokens:   h.config.MaxTokens,
	})
}

// FallbackSummary lists the interactions without the LLM.
func FallbackSummary(interactions []models.Interaction) string {
	parts := make([]string, 0, len(interactions))
	for i, it := range interactions {
		resp := "N/A"
		if it.Response != "" {
			resp = preview(it.Response)
		}
		parts = append(parts, fmt.Sprintf("Interaction %d: Query: %s... Response: %s...", i+1, preview(it.Query), resp))
	}
	return "Previous interactions:\n" + strings.Join(parts, "\n")
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > fallbackPreview {
		return string(r[:fallbackPreview])
	}
	return s
}
