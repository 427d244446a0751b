// internal/workers/ocap/analyze-query/handler.go
package analyzequery

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

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
	TaskType = "ocap-analyze-query"
	NodeName = "analyze_query"

	ClassificationMethod = "llm-based"
	unparsedReasoning    = "Could not parse LLM response"
)

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

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

// Execute classifies the query. When the model cannot be reached or its
// answer cannot be read the query is treated as non-precise.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}

	res, fallback := h.classify(ctx, input)

	analysis := models.Analysis{
		Classification:                 res.class,
		Reasoning:                      res.Reasoning,
		RegistryMatchCount:             len(input.RegistryMatches),
		NodeTypesFound:                 nodeTypes(input.RegistryMatches),
		ConfidenceScores:               confidences(input.RegistryMatches),
		ClassificationMethod:           ClassificationMethod,
		ThreadMemoryUsed:               input.ThreadMemorySummary != nil,
		HistoricalRegistryMatchesCount: len(input.HistoricalRegistryMatches),
		HistoricalContextUsed:          len(input.HistoricalRegistryMatches) > 0,
		MatchesByType:                  matchesByType(input.RegistryMatches),
		MergeApplied:                   res.MergeApplied,
	}

	h.logger.Info("query classified", map[string]interface{}{
		"classification": string(res.class),
		"matches":        analysis.RegistryMatchCount,
		"nodeTypes":      analysis.NodeTypesFound,
		"historicalRuns": analysis.HistoricalRegistryMatchesCount,
		"fallback":       fallback,
	})

	return &Output{Classification: res.class, Analysis: analysis, Fallback: fallback}, nil
}

type classified struct {
	llmResult
	class models.Classification
}

func (h *Handler) classify(ctx context.Context, input *Input) (classified, bool) {
	content, err := h.ask(ctx, input)
	if err != nil {
		h.logger.Error("llm classification failed", map[string]interface{}{"error": err.Error()})
		return nonPrecise(fmt.Sprintf("LLM classification failed: %v", err)), true
	}

	res, ok := ParseClassification(content)
	if !ok {
		h.logger.Warn("could not parse LLM classification, defaulting to non-precise", nil)
		return nonPrecise(unparsedReasoning), true
	}

	class := models.Classification(res.Classification)
	if res.Classification == "" {
		class = models.ClassificationNonPrecise
	}
	if !class.Valid() {
		h.logger.Warn("unknown classification from LLM, defaulting to non-precise", map[string]interface{}{
			"classification": res.Classification,
		})
		class = models.ClassificationNonPrecise
	}
	return classified{llmResult: *res, class: class}, false
}

func (h *Handler) ask(ctx context.Context, input *Input) (string, error) {
	if h.llm == nil {
		return "", fmt.Errorf("no LLM client configured")
	}
	prompt, err := prompts.AnalyzeQuery(prompts.AnalyzeData{
		Query:                     input.Query,
		QuerySpecSummary:          input.QuerySpecSummary,
		RegistryMatches:           input.RegistryMatches,
		ThreadMemorySummary:       input.ThreadMemorySummary,
		HistoricalRegistryMatches: input.HistoricalRegistryMatches,
	})
	if err != nil {
		return "", err
	}
	return h.llm.Chat(ctx, azureopenai.ChatRequest{
		Messages: []azureopenai.Message{
			{Role: azureopenai.RoleSystem, Content: prompts.AnalyzeSystem},
			{Role: azureopenai.RoleUser, Content: prompt},
		},
	})
}

// ParseClassification reads the model answer as JSON, falling back to the
// first {...} block in it.
func ParseClassification(content string) (*llmResult, bool) {
	var res llmResult
	if err := json.Unmarshal([]byte(content), &res); err == nil {
		return &res, true
	}
	block := jsonObjectPattern.FindString(content)
	if block == "" {
		return nil, false
	}
	if err := json.Unmarshal([]byte(block), &res); err != nil {
		return nil, false
	}
	return &res, true
}

func nonPrecise(reason string) classified {
	return classified{
		llmResult: llmResult{Classification: string(models.ClassificationNonPrecise), Reasoning: reason},
		class:     models.ClassificationNonPrecise,
	}
}

func nodeTypes(matches []models.RegistryMatch) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, m := range matches {
		if m.NodeType == "" {
			continue
		}
		if _, ok := seen[m.NodeType]; ok {
			continue
		}
		seen[m.NodeType] = struct{}{}
		out = append(out, m.NodeType)
	}
	sort.Strings(out)
	return out
}

func confidences(matches []models.RegistryMatch) []int {
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Confidence)
	}
	return out
}

func matchesByType(matches []models.RegistryMatch) map[string][]models.TypedMatch {
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string][]models.TypedMatch)
	for _, m := range matches {
		if m.NodeType == "" {
			continue
		}
		matchType := m.MatchType
		if matchType == "" {
			matchType = models.MatchTypePartial
		}
		out[m.NodeType] = append(out[m.NodeType], models.TypedMatch{
			Value:      m.Value,
			Confidence: m.Confidence,
			MatchType:  matchType,
		})
	}
	return out
}
