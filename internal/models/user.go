package models

import "time"

// User is an account row. HashedPassword never leaves the service.
type User struct {
	ID             int64     `json:"id" db:"id"`
	Email          string    `json:"email" db:"email"`
	Username       string    `json:"username" db:"username"`
	FullName       *string   `json:"full_name" db:"full_name"`
	HashedPassword string    `json:"-" db:"hashed_password"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	IsSuperuser    bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

type UserCreate struct {
	Email    string  `json:"email" validate:"required,email"`
	Username string  `json:"username" validate:"required"`
	Password string  `json:"password" validate:"required"`
	FullName *string `json:"full_name,omitempty"`
}

// UserLogin accepts either the username or the email in Username.
type UserLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}
