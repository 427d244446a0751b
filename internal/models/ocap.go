package models

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

// Classification is the query class chosen by the analyze step.
type Classification string

const (
	ClassificationPrecise      Classification = "precise"
	ClassificationErrorPrecise Classification = "error-precise"
	ClassificationNonPrecise   Classification = "non-precise"
	ClassificationGeneric      Classification = "generic"
)

func (c Classification) Valid() bool {
	switch c {
	case ClassificationPrecise, ClassificationErrorPrecise, ClassificationNonPrecise, ClassificationGeneric:
		return true
	}
	return false
}

// Registry node types.
const (
	NodeTypeStyle     = "style"
	NodeTypeError     = "error"
	NodeTypeDefect    = "defect"
	NodeTypeOperation = "operation"
)

const (
	MatchTypeExact   = "exact"
	MatchTypePartial = "partial"
)

// RegistryMatch links a query term to a registry entry.
type RegistryMatch struct {
	NodeType   string `json:"node_type"`
	Value      string `json:"value"`
	MatchType  string `json:"match_type"`
	Confidence int    `json:"confidence"`
}

// WorkflowRecord is the state of a finished run as kept in thread memory.
type WorkflowRecord struct {
	WorkflowRunID   string          `json:"workflow_run_id"`
	ThreadID        string          `json:"thread_id"`
	Query           string          `json:"query"`
	Response        string          `json:"response"`
	Classification  *string         `json:"classification"`
	Keywords        []string        `json:"keywords"`
	Metadata        json.RawMessage `json:"metadata"`
	ClassifyResults *ClassifyResult `json:"classify_results"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RegistryMatches reads registry_matches back out of the stored metadata.
// Malformed metadata yields nil.
func (r *WorkflowRecord) RegistryMatches() []RegistryMatch {
	if len(r.Metadata) == 0 {
		return nil
	}
	var m struct {
		RegistryMatches []RegistryMatch `json:"registry_matches"`
	}
	if err := json.Unmarshal(r.Metadata, &m); err != nil {
		return nil
	}
	return m.RegistryMatches
}

type OCAPQueryRequest struct {
	Query    string  `json:"query"`
	ThreadID *string `json:"thread_id,omitempty"`
}

type OCAPQueryResponse struct {
	Query                 string          `json:"query"`
	ThreadID              string          `json:"thread_id"`
	WorkflowRunID         string          `json:"workflow_run_id"`
	Keywords              []string        `json:"keywords"`
	RegistryMatches       []RegistryMatch `json:"registry_matches"`
	QuerySpecSummary      string          `json:"query_spec_summary"`
	ThreadMemorySummary   string          `json:"thread_memory_summary"`
	Classification        *string         `json:"classification"`
	ClassifyFormattedText *string         `json:"classify_formatted_text"`
	Response              *string         `json:"response"`
	Status                string          `json:"status"`
	Message               string          `json:"message"`
}

// Interaction is one earlier turn of a thread as fed to the memory summary.
type Interaction struct {
	Query          string  `json:"query"`
	Response       string  `json:"response"`
	Classification *string `json:"classification"`
}

// HistoricalWorkflow carries the registry matches of an earlier turn.
type HistoricalWorkflow struct {
	WorkflowRunID   string          `json:"workflow_run_id"`
	Query           string          `json:"query"`
	Response        string          `json:"response"`
	Classification  *string         `json:"classification"`
	RegistryMatches []RegistryMatch `json:"registry_matches"`
	CreatedAt       string          `json:"created_at"`
}

type TypedMatch struct {
	Value      string `json:"value"`
	Confidence int    `json:"confidence"`
	MatchType  string `json:"match_type"`
}

// Analysis is the analyze step's record of how a classification was reached.
type Analysis struct {
	Classification                 Classification          `json:"classification"`
	Reasoning                      string                  `json:"reasoning"`
	RegistryMatchCount             int                     `json:"registry_match_count"`
	NodeTypesFound                 []string                `json:"node_types_found"`
	ConfidenceScores               []int                   `json:"confidence_scores"`
	ClassificationMethod           string                  `json:"classification_method"`
	ThreadMemoryUsed               bool                    `json:"thread_memory_used"`
	HistoricalRegistryMatchesCount int                     `json:"historical_registry_matches_count"`
	HistoricalContextUsed          bool                    `json:"historical_context_used"`
	MatchesByType                  map[string][]TypedMatch `json:"matches_by_type,omitempty"`
	MergeApplied                   bool                    `json:"merge_applied"`
}

// ClassifyResult holds the knowledge lookup for a classification.
type ClassifyResult struct {
	Classification Classification           `json:"classification"`
	IndexUsed      *string                  `json:"index_used"`
	QueryMethod    *string                  `json:"query_method"`
	ResultsCount   int                      `json:"results_count"`
	Results        []map[string]interface{} `json:"results"`
	FormattedText  string                   `json:"formatted_text"`
	Error          string                   `json:"error,omitempty"`
}

type SummarizeInfo struct {
	ResponseLength     int            `json:"response_length,omitempty"`
	Classification     Classification `json:"classification,omitempty"`
	HasClassifyResults bool           `json:"has_classify_results,omitempty"`
	Error              string         `json:"error,omitempty"`
	FallbackUsed       bool           `json:"fallback_used,omitempty"`
}

// ResolveThreadID returns threadID when set, otherwise a stable id derived
// from the query and, when known, the user.
func ResolveThreadID(threadID *string, userID *int64, query string) string {
	if threadID != nil && *threadID != "" {
		return *threadID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(query))
	bucket := h.Sum32() % 10000
	if userID != nil {
		return fmt.Sprintf("user_%d_thread_%d", *userID, bucket)
	}
	return fmt.Sprintf("thread_%d", bucket)
}
