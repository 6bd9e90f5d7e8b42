package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/types"
)

func newUserMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func userRow(user types.User) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "username", "password_hash", "is_active", "is_staff", "date_joined", "last_login",
	}).AddRow(user.ID, user.Email, user.Username, user.PasswordHash,
		user.IsActive, user.IsStaff, user.DateJoined, user.LastLogin)
}

func TestUserGetByEmailLowercasesArgument(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users\s+WHERE email = \$1`).
		WithArgs("alice@example.com").
		WillReturnRows(userRow(types.User{
			ID: 1, Email: "alice@example.com", Username: "alice42",
			IsActive: true, DateJoined: time.Now(),
		}))

	user, err := repo.GetByEmail(context.Background(), "Alice@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByIDNotFound(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(`SELECT .+ FROM users\s+WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "username", "password_hash", "is_active", "is_staff", "date_joined", "last_login",
		}))

	_, err := repo.GetByID(context.Background(), 404)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newUserMock(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.User{
		Email: "a@x.com", Username: "alice42", PasswordHash: "hash", IsActive: true,
	})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserSetLastLogin(t *testing.T) {
	repo, mock := newUserMock(t)

	at := time.Now()
	mock.ExpectExec(`UPDATE users SET last_login = \$1 WHERE id = \$2`).
		WithArgs(at, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetLastLogin(context.Background(), 1, at))
	require.NoError(t, mock.ExpectationsWereMet())
}
