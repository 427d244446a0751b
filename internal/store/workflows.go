package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"ocap-agent/internal/common/database"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/models"
)

const workflowColumns = `id, thread_id, user_id, query, response, status, classification, error_message,
	started_at, completed_at, duration_ms, created_at, updated_at`

type WorkflowStore struct {
	db *database.PostgresClient
}

func NewWorkflowStore(db *database.PostgresClient) *WorkflowStore {
	return &WorkflowStore{db: db}
}

// Create records a new run. Re-submitting the same id is a no-op.
func (s *WorkflowStore) Create(ctx context.Context, w *models.WorkflowExecution) error {
	status := w.Status
	if status == "" {
		status = models.WorkflowPending
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO workflow_executions (id, thread_id, user_id, query, status, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW(), NOW())
		ON CONFLICT (id) DO NOTHING`,
		w.ID, w.ThreadID, w.UserID, w.Query, string(status),
	)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Update writes the outcome of a run. Nil fields keep their stored value.
func (s *WorkflowStore) Update(ctx context.Context, id string, u models.WorkflowUpdate) error {
	res, err := s.db.Exec(ctx, `
		UPDATE workflow_executions SET
			status = $2,
			response = COALESCE($3, response),
			classification = COALESCE($4, classification),
			error_message = COALESCE($5, error_message),
			completed_at = COALESCE($6, completed_at),
			duration_ms = COALESCE($7, duration_ms),
			updated_at = NOW()
		WHERE id = $1`,
		id, string(u.Status), u.Response, u.Classification, u.ErrorMessage, u.CompletedAt, u.DurationMs,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("workflow_update", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewRecordNotFoundError("Workflow execution", id)
	}
	return nil
}

func (s *WorkflowStore) Get(ctx context.Context, id string) (*models.WorkflowExecution, error) {
	row := s.db.QueryRow(ctx, `SELECT `+workflowColumns+` FROM workflow_executions WHERE id = $1`, id)
	w, err := scanWorkflow(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRecordNotFoundError("Workflow execution", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("workflow_get", err)
	}
	return w, nil
}

// ListByThread returns the newest runs of a thread first.
func (s *WorkflowStore) ListByThread(ctx context.Context, threadID string, limit int) ([]*models.WorkflowExecution, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+workflowColumns+` FROM workflow_executions
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, threadID, limit)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("workflow_list", err)
	}
	defer rows.Close()

	var out []*models.WorkflowExecution
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("workflow_list", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("workflow_list", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWorkflow(row scanner) (*models.WorkflowExecution, error) {
	var w models.WorkflowExecution
	var status string
	err := row.Scan(&w.ID, &w.ThreadID, &w.UserID, &w.Query, &w.Response, &status, &w.Classification,
		&w.ErrorMessage, &w.StartedAt, &w.CompletedAt, &w.DurationMs, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = models.WorkflowStatus(status)
	return &w, nil
}
