package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"ocap-agent/internal/common/database"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/models"
)

type SessionStore struct {
	db *database.PostgresClient
}

func NewSessionStore(db *database.PostgresClient) *SessionStore {
	return &SessionStore{db: db}
}

// Touch creates the session for threadID, or bumps its activity timestamps.
// A new session starts at one message; an existing one gains one only when
// increment is set.
func (s *SessionStore) Touch(ctx context.Context, threadID string, userID int64, increment bool) error {
	inc := 0
	if increment {
		inc = 1
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (thread_id, user_id, status, message_count, created_at, updated_at, last_activity_at)
		VALUES ($1, $2, $3, 1, NOW(), NOW(), NOW())
		ON CONFLICT (thread_id) DO UPDATE SET
			last_activity_at = NOW(),
			updated_at = NOW(),
			message_count = sessions.message_count + $4`,
		threadID, userID, string(models.SessionActive), inc,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("session_upsert", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, threadID string) (*models.Session, error) {
	var sess models.Session
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT thread_id, user_id, title, status, message_count, created_at, updated_at, last_activity_at
		FROM sessions WHERE thread_id = $1`, threadID,
	).Scan(&sess.ThreadID, &sess.UserID, &sess.Title, &status, &sess.MessageCount,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.LastActivityAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRecordNotFoundError("Session", threadID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("session_get", err)
	}
	sess.Status = models.SessionStatus(status)
	return &sess, nil
}
