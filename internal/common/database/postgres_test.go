package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := NewPostgresFromDB(db)
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS a (id int)",
		"CREATE TABLE IF NOT EXISTS b (id int)",
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(stmts[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(stmts[1])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, client.EnsureSchema(context.Background(), stmts))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	client := NewPostgresFromDB(db)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = client.EnsureSchema(context.Background(), []string{"CREATE TABLE IF NOT EXISTS a (id int)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema statement 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}
