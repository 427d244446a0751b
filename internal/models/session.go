package models

import "time"

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionArchived SessionStatus = "archived"
	SessionClosed   SessionStatus = "closed"
)

// Session is one conversation thread of a user.
type Session struct {
	ThreadID       string        `json:"thread_id" db:"thread_id"`
	UserID         int64         `json:"user_id" db:"user_id"`
	Title          *string       `json:"title,omitempty" db:"title"`
	Status         SessionStatus `json:"status" db:"status"`
	MessageCount   int           `json:"message_count" db:"message_count"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
	LastActivityAt time.Time     `json:"last_activity_at" db:"last_activity_at"`
}

type WorkflowStatus string

const (
	WorkflowPending    WorkflowStatus = "pending"
	WorkflowProcessing WorkflowStatus = "processing"
	WorkflowCompleted  WorkflowStatus = "completed"
	WorkflowFailed     WorkflowStatus = "failed"
)

// WorkflowExecution tracks one run of the query graph.
type WorkflowExecution struct {
	ID             string         `json:"id" db:"id"`
	ThreadID       string         `json:"thread_id" db:"thread_id"`
	UserID         int64          `json:"user_id" db:"user_id"`
	Query          string         `json:"query" db:"query"`
	Response       *string        `json:"response,omitempty" db:"response"`
	Status         WorkflowStatus `json:"status" db:"status"`
	Classification *string        `json:"classification,omitempty" db:"classification"`
	ErrorMessage   *string        `json:"error_message,omitempty" db:"error_message"`
	StartedAt      time.Time      `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	DurationMs     *int64         `json:"duration_ms,omitempty" db:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// WorkflowUpdate carries the fields written when a run finishes. Nil fields
// are left untouched.
type WorkflowUpdate struct {
	Status         WorkflowStatus `json:"status"`
	Response       *string        `json:"response,omitempty"`
	Classification *string        `json:"classification,omitempty"`
	ErrorMessage   *string        `json:"error_message,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	DurationMs     *int64         `json:"duration_ms,omitempty"`
}
