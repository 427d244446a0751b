// internal/workers/ocap/summarize/models.go
package summarize

import "ocap-agent/internal/models"

type Input struct {
	Query                 string                 `json:"query"`
	Classification        models.Classification  `json:"classification"`
	QuerySpecSummary      string                 `json:"query_spec_summary"`
	RegistryMatches       []models.RegistryMatch `json:"registry_matches"`
	ThreadMemorySummary   *string                `json:"thread_memory_summary"`
	AnalysisReasoning     string                 `json:"analysis_reasoning"`
	MergeApplied          bool                   `json:"merge_applied"`
	ClassifyFormattedText string                 `json:"classify_formatted_text"`
}

type Output struct {
	Response  string                `json:"response"`
	Summarize *models.SummarizeInfo `json:"summarize,omitempty"`
	Fallback  bool                  `json:"-"`
}
