// Package ocap runs the query graph: keyword extraction and thread memory in
// parallel, then analysis, knowledge lookup and the final summary.
package ocap

import (
	"encoding/json"

	"ocap-agent/internal/models"
	threadmemory "ocap-agent/internal/workers/ocap/thread-memory"
)

// Input starts a graph run. ThreadID is already resolved by the caller.
type Input struct {
	Query         string
	WorkflowRunID string
	ThreadID      string
	UserID        *int64
}

// State accumulates node outputs. Extract and memory write disjoint fields,
// so the parallel stage needs no locking.
type State struct {
	Input

	Keywords         []string
	RegistryMatches  []models.RegistryMatch
	QuerySpecSummary string

	Memory threadmemory.Output

	Classification models.Classification
	Analysis       *models.Analysis
	Classify       *models.ClassifyResult
	Summarize      *models.SummarizeInfo
	Response       string
}

// Metadata is the merged per-run metadata stored with the workflow state.
type Metadata struct {
	WorkflowRunID             string                      `json:"workflow_run_id"`
	ThreadID                  string                      `json:"thread_id"`
	UserID                    *int64                      `json:"user_id,omitempty"`
	RegistryMatches           []models.RegistryMatch      `json:"registry_matches"`
	QuerySpecSummary          string                      `json:"query_spec_summary"`
	ThreadMemorySummary       *string                     `json:"thread_memory_summary"`
	ThreadMemoryAvailable     bool                        `json:"thread_memory_available"`
	WorkflowCount             int                         `json:"workflow_count"`
	HistoricalRegistryMatches []models.HistoricalWorkflow `json:"historical_registry_matches"`
	SummaryFallback           bool                        `json:"summary_fallback,omitempty"`
	ThreadMemoryError         string                      `json:"thread_memory_error,omitempty"`
	Analysis                  *models.Analysis            `json:"analysis,omitempty"`
	Classify                  *models.ClassifyResult      `json:"classify,omitempty"`
	Summarize                 *models.SummarizeInfo       `json:"summarize,omitempty"`
}

func (s *State) Metadata() Metadata {
	matches := s.RegistryMatches
	if matches == nil {
		matches = []models.RegistryMatch{}
	}
	historical := s.Memory.HistoricalRegistryMatches
	if historical == nil {
		historical = []models.HistoricalWorkflow{}
	}
	return Metadata{
		WorkflowRunID:             s.WorkflowRunID,
		ThreadID:                  s.ThreadID,
		UserID:                    s.UserID,
		RegistryMatches:           matches,
		QuerySpecSummary:          s.QuerySpecSummary,
		ThreadMemorySummary:       s.Memory.ThreadMemorySummary,
		ThreadMemoryAvailable:     s.Memory.ThreadMemoryAvailable,
		WorkflowCount:             s.Memory.WorkflowCount,
		HistoricalRegistryMatches: historical,
		SummaryFallback:           s.Memory.SummaryFallback,
		ThreadMemoryError:         s.Memory.ThreadMemoryError,
		Analysis:                  s.Analysis,
		Classify:                  s.Classify,
		Summarize:                 s.Summarize,
	}
}

// ClassificationPtr is nil until the analyze step has run.
func (s *State) ClassificationPtr() *string {
	if s.Classification == "" {
		return nil
	}
	c := string(s.Classification)
	return &c
}

// Record converts a finished run into the form kept in thread memory.
func (s *State) Record() (*models.WorkflowRecord, error) {
	meta, err := json.Marshal(s.Metadata())
	if err != nil {
		return nil, err
	}
	keywords := s.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	return &models.WorkflowRecord{
		WorkflowRunID:   s.WorkflowRunID,
		ThreadID:        s.ThreadID,
		Query:           s.Query,
		Response:        s.Response,
		Classification:  s.ClassificationPtr(),
		Keywords:        keywords,
		Metadata:        meta,
		ClassifyResults: s.Classify,
	}, nil
}
