// internal/workers/ocap/extract-keywords/handler.go
package extractkeywords

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ocap-agent/internal/common/azureopenai"
	"ocap-agent/internal/common/camunda"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/common/logger"
	"ocap-agent/internal/models"
	"ocap-agent/internal/prompts"
	"ocap-agent/pkg/registry"
)

const (
	TaskType = "ocap-extract-keywords"
	NodeName = "extract_keywords"
)

var (
	jsonObjectPattern    = regexp.MustCompile(`(?s)\{.*\}`)
	keywordsArrayPattern = regexp.MustCompile(`(?s)"keywords"\s*:\s*\[[^\]]+\]`)
)

type Handler struct {
	config   *Config
	llm      azureopenai.ChatClient
	registry *registry.Registry
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewHandler(config *Config, llm azureopenai.ChatClient, reg *registry.Registry, log logger.Logger) *Handler {
	if reg == nil {
		reg = &registry.Registry{}
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		llm:      llm,
		registry: reg,
		errors:   errors.NewErrorHandler(l),
		logger:   l,
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

// Execute asks the LLM for keywords and registry matches. Any LLM or parse
// failure degrades to an empty result rather than an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewValidationError("input cannot be nil", nil)
	}

	out, err := h.extract(ctx, input.Query)
	if err != nil {
		h.logger.Error("keyword extraction failed", map[string]interface{}{"error": err.Error()})
		return &Output{
			Keywords:        []string{},
			RegistryMatches: []models.RegistryMatch{},
			Fallback:        true,
		}, nil
	}

	h.logger.Info("keywords extracted", map[string]interface{}{
		"keywords":        len(out.Keywords),
		"registryMatches": len(out.RegistryMatches),
	})
	return out, nil
}

func (h *Handler) extract(ctx context.Context, query string) (*Output, error) {
	prompt, err := prompts.ExtractKeywords(prompts.ExtractData{
		Query:           query,
		RegistryContext: h.registry.Context(),
	})
	if err != nil {
		return nil, err
	}

	content, err := h.llm.Chat(ctx, azureopenai.ChatRequest{
		Messages: []azureopenai.Message{
			{Role: azureopenai.RoleSystem, Content: prompts.ExtractSystem},
			{Role: azureopenai.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	raw, err := ParseLLMOutput(content)
	if err != nil {
		return nil, err
	}

	summary, _ := raw.QuerySpecSummary.(string)
	return &Output{
		Keywords:         toKeywords(raw.Keywords),
		RegistryMatches:  ValidateMatches(raw.RegistryMatches),
		QuerySpecSummary: summary,
	}, nil
}

// ParseLLMOutput accepts a bare JSON object, the first {...} block inside
// surrounding text, or at worst just a "keywords": [...] fragment.
func ParseLLMOutput(content string) (*llmResult, error) {
	var res llmResult
	if err := json.Unmarshal([]byte(content), &res); err == nil {
		return &res, nil
	}

	if block := jsonObjectPattern.FindString(content); block != "" {
		if err := json.Unmarshal([]byte(block), &res); err == nil {
			return &res, nil
		}
	}

	fragment := keywordsArrayPattern.FindString(content)
	if fragment == "" {
		return nil, errors.NewLLMResponseInvalidError("could not parse LLM response as JSON")
	}
	var kw struct {
		Keywords []interface{} `json:"keywords"`
	}
	if err := json.Unmarshal([]byte("{"+fragment+"}"), &kw); err != nil {
		return nil, errors.NewLLMResponseInvalidError(fmt.Sprintf("keywords fragment: %v", err))
	}
	return &llmResult{Keywords: kw.Keywords, RegistryMatches: []interface{}{}, QuerySpecSummary: ""}, nil
}

// ValidateMatches keeps entries that have both node_type and value,
// defaulting match_type to partial and coercing confidence to an int.
func ValidateMatches(raw interface{}) []models.RegistryMatch {
	items, ok := raw.([]interface{})
	if !ok {
		return []models.RegistryMatch{}
	}
	out := make([]models.RegistryMatch, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		nodeType := asString(m["node_type"])
		value := asString(m["value"])
		if nodeType == "" || value == "" {
			continue
		}
		matchType := asString(m["match_type"])
		if matchType == "" {
			matchType = models.MatchTypePartial
		}
		out = append(out, models.RegistryMatch{
			NodeType:   nodeType,
			Value:      value,
			MatchType:  matchType,
			Confidence: asInt(m["confidence"]),
		})
	}
	return out
}

func toKeywords(raw interface{}) []string {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, k := range v {
			if s := asString(k); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return []string{}
		}
		return []string{v}
	default:
		return []string{}
	}
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v interface{}) int {
	switch t := v.(type) {
	case float64:
		return int(math.Trunc(t))
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return int(math.Trunc(f))
		}
	}
	return 0
}
