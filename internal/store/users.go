package store

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/lib/pq"

	"ocap-agent/internal/common/database"
	"ocap-agent/internal/common/errors"
	"ocap-agent/internal/models"
)

const userColumns = `id, email, username, full_name, hashed_password, is_active, is_superuser, created_at, updated_at`

type UserStore struct {
	db *database.PostgresClient
}

func NewUserStore(db *database.PostgresClient) *UserStore {
	return &UserStore{db: db}
}

// Create inserts u and fills in its generated columns. Duplicate email or
// username come back as conflict errors.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (email, username, full_name, hashed_password, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		u.Email, u.Username, u.FullName, u.HashedPassword, u.IsActive, u.IsSuperuser,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case "users_email_key":
			return errors.NewEmailRegisteredError(u.Email)
		case "users_username_key":
			return errors.NewUsernameTakenError(u.Username)
		}
	}
	return errors.NewDatabaseInsertFailedError(err)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getOne(ctx, "id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "email", `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getOne(ctx, "username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// GetByUsernameOrEmail prefers a username match over an email match.
func (s *UserStore) GetByUsernameOrEmail(ctx context.Context, login string) (*models.User, error) {
	return s.getOne(ctx, "login", `
		SELECT `+userColumns+` FROM users
		WHERE username = $1 OR email = $1
		ORDER BY (username = $1) DESC
		LIMIT 1`, login)
}

func (s *UserStore) getOne(ctx context.Context, key, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Username, &u.FullName, &u.HashedPassword,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewRecordNotFoundError("User", key)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("user_by_"+key, err)
	}
	return &u, nil
}
