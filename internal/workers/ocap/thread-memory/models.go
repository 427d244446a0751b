// internal/workers/ocap/thread-memory/models.go
package threadmemory

import "ocap-agent/internal/models"

type Input struct {
	Query    string  `json:"query"`
	ThreadID *string `json:"thread_id,omitempty"`
	UserID   *int64  `json:"user_id,omitempty"`
}

type Output struct {
	ThreadMemorySummary       *string                     `json:"thread_memory_summary"`
	ThreadMemoryAvailable     bool                        `json:"thread_memory_available"`
	WorkflowCount             int                         `json:"workflow_count"`
	ThreadID                  string                      `json:"thread_id,omitempty"`
	HistoricalRegistryMatches []models.HistoricalWorkflow `json:"historical_registry_matches"`
	SummaryFallback           bool                        `json:"summary_fallback,omitempty"`
	ThreadMemoryError         string                      `json:"thread_memory_error,omitempty"`
}
