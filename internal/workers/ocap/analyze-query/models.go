// internal/workers/ocap/analyze-query/models.go
package analyzequery

import "ocap-agent/internal/models"

type Input struct {
	Query                     string                      `json:"query"`
	QuerySpecSummary          string                      `json:"query_spec_summary"`
	RegistryMatches           []models.RegistryMatch      `json:"registry_matches"`
	ThreadMemorySummary       *string                     `json:"thread_memory_summary"`
	HistoricalRegistryMatches []models.HistoricalWorkflow `json:"historical_registry_matches"`
}

type Output struct {
	Classification models.Classification `json:"classification"`
	Analysis       models.Analysis       `json:"analysis"`
	Fallback       bool                  `json:"-"`
}

type llmResult struct {
	Classification string `json:"classification"`
	Reasoning      string `json:"reasoning"`
	MergeApplied   bool   `json:"merge_applied"`
}
