// internal/workers/ocap/summarize/handler.go
package summarize

import (
	"context"
	"fmt"

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
	TaskType = "ocap-summarize"
	NodeName = "summarize"

	NeedMoreInfoResponse = "I need more information to help you. " +
		"Could you please provide more details about your manufacturing query?"
	FallbackResponse = "I encountered an issue processing your query. " +
		"Could you please rephrase your question or provide more details?"
)

type Handler struct {
	config *Config
	llm    azureopenai.ChatClient
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, llm azureopenai.ChatClient, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		llm:    llm,
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

// Execute writes the final answer for the user.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}
	if input.Classification == "" {
		h.logger.Warn("no classification, asking for more details", nil)
		return &Output{Response: NeedMoreInfoResponse}, nil
	}

	response, err := h.generate(ctx, input)
	if err != nil {
		h.logger.Error("summary generation failed", map[string]interface{}{"error": err.Error()})
		return &Output{
			Response: FallbackResponse,
			Summarize: &models.SummarizeInfo{
				Error:        err.Error(),
				FallbackUsed: true,
			},
			Fallback: true,
		}, nil
	}

	h.logger.Info("summary generated", map[string]interface{}{
		"length":         len(response),
		"classification": string(input.Classification),
	})
	return &Output{
		Response: response,
		Summarize: &models.SummarizeInfo{
			ResponseLength:     len(response),
			Classification:     input.Classification,
			HasClassifyResults: input.ClassifyFormattedText != "",
		},
	}, nil
}

func (h *Handler) generate(ctx context.Context, input *Input) (string, error) {
	if h.llm == nil {
		return "", fmt.Errorf("no LLM client configured")
	}
	prompt, err := prompts.Summarize(prompts.SummarizeData{
		Query:                 input.Query,
		Classification:        string(input.Classification),
		QuerySpecSummary:      input.QuerySpecSummary,
		RegistryMatches:       input.RegistryMatches,
		MergeApplied:          input.MergeApplied,
		AnalysisReasoning:     input.AnalysisReasoning,
		ThreadMemorySummary:   input.ThreadMemorySummary,
		ClassifyFormattedText: input.ClassifyFormattedText,
	})
	if err != nil {
		return "", err
	}
	return h.llm.Chat(ctx, azureopenai.ChatRequest{
		Messages: []azureopenai.Message{
			{Role: azureopenai.RoleSystem, Content: prompts.SummarizeSystem},
			{Role: azureopenai.RoleUser, Content: prompt},
		},
		Temperature: azureopenai.Temperature(h.config.Temperature),
		MaxTokens:   h.config.MaxTokens,
	})
}
