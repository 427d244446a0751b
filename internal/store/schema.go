// Package store persists users, sessions and workflow executions in Postgres
// and keeps per-thread workflow memory in Redis.
package store

// Schema is applied at startup. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              SERIAL PRIMARY KEY,
		email           VARCHAR(255) NOT NULL,
		username        VARCHAR(255) NOT NULL,
		full_name       VARCHAR(255),
		hashed_password VARCHAR(255) NOT NULL,
		is_active       BOOLEAN NOT NULL DEFAULT TRUE,
		is_superuser    BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMP NOT NULL DEFAULT NOW(),
		CONSTRAINT users_email_key UNIQUE (email),
		CONSTRAINT users_username_key UNIQUE (username)
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		thread_id        VARCHAR(255) PRIMARY KEY,
		user_id          INTEGER NOT NULL REFERENCES users(id),
		title            VARCHAR(255),
		status           VARCHAR(32) NOT NULL DEFAULT 'active',
		message_count    INTEGER NOT NULL DEFAULT 0,
		created_at       TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMP NOT NULL DEFAULT NOW(),
		last_activity_at TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_user_id ON sessions (user_id)`,
	`CREATE INDEX IF NOT EXISTS ix_sessions_last_activity_at ON sessions (last_activity_at)`,
	`CREATE TABLE IF NOT EXISTS workflow_executions (
		id             UUID PRIMARY KEY,
		thread_id      VARCHAR(255) NOT NULL REFERENCES sessions(thread_id) ON DELETE CASCADE,
		user_id        INTEGER NOT NULL REFERENCES users(id),
		query          TEXT NOT NULL,
		response       TEXT,
		status         VARCHAR(32) NOT NULL DEFAULT 'pending',
		classification VARCHAR(64),
		error_message  TEXT,
		started_at     TIMESTAMP NOT NULL DEFAULT NOW(),
		completed_at   TIMESTAMP,
		duration_ms    INTEGER,
		created_at     TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMP NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_workflow_executions_thread_id ON workflow_executions (thread_id)`,
	`CREATE INDEX IF NOT EXISTS ix_workflow_executions_status ON workflow_executions (status)`,
	`CREATE INDEX IF NOT EXISTS ix_workflow_executions_created_at ON workflow_executions (created_at)`,
}
