// Package prompts renders the LLM prompt templates used by the query graph.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"ocap-agent/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	ExtractSystem = "You are an expert at extracting keywords and identifying registry matches. " +
		"Always respond with valid JSON only."
	MemorySystem = "You are an expert at summarizing conversation history and workflow interactions in a " +
		"manufacturing context. Create concise, informative summaries that capture the essence of previous interactions."
	AnalyzeSystem = "You are an expert at classifying manufacturing queries based on registry matches and context. " +
		"Always respond with valid JSON only."
	SummarizeSystem = "You are an expert manufacturing assistant. Generate a helpful, clear, and CONCISE response. " +
		"CRITICAL RULES: (1) Use proper terminology: 'errors', 'defects', 'operations', 'styles', 'actions' - " +
		"NOT 'issues', 'problems', 'things', 'items'. (2) When listing items, clearly state the type " +
		"(e.g., 'The following errors:', 'Available defects:'). (3) When multiple options exist, ask which one " +
		"is relevant (e.g., 'Which error is affecting you?'). (4) Always include actions when available - users " +
		"seek actionable help. (5) Use analysis metadata (merge_applied) to determine if acknowledgment is needed. " +
		"(6) Use numbered lists with case counts. Be precise and brief - remove verbose phrases."
)

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{
			"json":     toJSON,
			"truncate": truncate,
			"inc":      func(i int) int { return i + 1 },
		}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

type ExtractData struct {
	Query           string
	RegistryContext string
}

type MemoryData struct {
	Interactions []models.Interaction
}

type AnalyzeData struct {
	Query                     string
	QuerySpecSummary          string
	RegistryMatches           []models.RegistryMatch
	ThreadMemorySummary       *string
	HistoricalRegistryMatches []models.HistoricalWorkflow
}

type SummarizeData struct {
	Query                 string
	Classification        string
	QuerySpecSummary      string
	RegistryMatches       []models.RegistryMatch
	MergeApplied          bool
	AnalysisReasoning     string
	ThreadMemorySummary   *string
	ClassifyFormattedText string
}

func ExtractKeywords(data ExtractData) (string, error) {
	return render("extract_keywords.tmpl", data)
}

func SummarizeThreadMemory(data MemoryData) (string, error) {
	return render("summarize_thread_memory.tmpl", data)
}

func AnalyzeQuery(data AnalyzeData) (string, error) {
	return render("analyze_query.tmpl", data)
}

func Summarize(data SummarizeData) (string, error) {
	return render("summarize.tmpl", data)
}

func render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func truncate(n int, s string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
