// internal/workers/ocap/process-query/models.go
package processquery

type Input struct {
	Query    string  `json:"query"`
	ThreadID *string `json:"thread_id,omitempty"`
	UserID   *int64  `json:"user_id,omitempty"`
}
