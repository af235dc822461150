package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careerlink-auth/internal/model"
	repo "careerlink-auth/internal/repository"
)

const selectUser = `SELECT id, first_name, last_name, email, password_hash, role, created_at, password_reset_token_hash, password_reset_expires_at FROM users`

var userRowColumns = []string{
	"id", "first_name", "last_name", "email", "password_hash", "role", "created_at",
	"password_reset_token_hash", "password_reset_expires_at",
}

func newMockRepo(t *testing.T) (repo.UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return repo.NewPostgresUserRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestPostgresUserRepository_Create(t *testing.T) {
	r, mock := newMockRepo(t)

	id := uuid.New()
	createdAt := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users (first_name, last_name, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`)).
		WithArgs("Ana", "Kay", "ana@example.com", "hash", "student", createdAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	nid, err := r.Create(context.Background(), &model.User{
		FirstName:    "Ana",
		LastName:     "Kay",
		Email:        "ana@example.com",
		PasswordHash: "hash",
		Role:         model.RoleStudent,
		CreatedAt:    createdAt,
	})
	require.NoError(t, err)
	require.Equal(t, id, nid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_Create_DuplicateEmail(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := r.Create(context.Background(), &model.User{Email: "ana@example.com"})
	require.ErrorIs(t, err, repo.ErrEmailTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_Create_OtherError(t *testing.T) {
	r, mock := newMockRepo(t)

	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).WillReturnError(boom)

	_, err := r.Create(context.Background(), &model.User{Email: "ana@example.com"})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repo.ErrEmailTaken)
}

func TestPostgresUserRepository_FindByEmail_Success(t *testing.T) {
	r, mock := newMockRepo(t)

	id := uuid.New()
	createdAt := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(id.String(), "Ana", "Kay", "ana@example.com", "hash", "company", createdAt, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectUser + ` WHERE email = $1`)).
		WithArgs("ana@example.com").WillReturnRows(rows)

	u, err := r.FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, model.RoleCompany, u.Role)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Nil(t, u.PasswordResetTokenHash)
	assert.Nil(t, u.PasswordResetExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_FindByResetTokenHash(t *testing.T) {
	r, mock := newMockRepo(t)

	id := uuid.New()
	expires := time.Date(2025, 5, 10, 9, 10, 0, 0, time.UTC)
	rows := sqlmock.NewRows(userRowColumns).
		AddRow(id.String(), "Ana", "Kay", "ana@example.com", "hash", "student", time.Now(), "abc123", expires)
	mock.ExpectQuery(regexp.QuoteMeta(selectUser + ` WHERE password_reset_token_hash = $1`)).
		WithArgs("abc123").WillReturnRows(rows)

	u, err := r.FindByResetTokenHash(context.Background(), "abc123")
	require.NoError(t, err)
	require.NotNil(t, u.PasswordResetTokenHash)
	assert.Equal(t, "abc123", *u.PasswordResetTokenHash)
	require.NotNil(t, u.PasswordResetExpiresAt)
	assert.True(t, expires.Equal(*u.PasswordResetExpiresAt))
}

func TestPostgresUserRepository_FindByID_NotFound(t *testing.T) {
	r, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectUser + ` WHERE id = $1`)).
		WithArgs(sqlmock.AnyArg()).WillReturnError(sql.ErrNoRows)

	_, err := r.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, repo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUserRepository_List(t *testing.T) {
	r, mock := newMockRepo(t)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow(uuid.NewString(), "Ana", "Kay", "ana@example.com", "h1", "student", time.Now(), nil, nil).
		AddRow(uuid.NewString(), "Bo", "Lee", "bo@example.com", "h2", "admin", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectUser + ` ORDER BY created_at`)).WillReturnRows(rows)

	users, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, model.RoleAdmin, users[1].Role)
}

func TestPostgresUserRepository_Updates(t *testing.T) {
	id := uuid.New()
	expires := time.Date(2025, 5, 10, 9, 10, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		args  []any
		call  func(repo.UserRepository) error
	}{
		{
			name:  "update password",
			query: `UPDATE users SET password_hash = $1 WHERE id = $2`,
			args:  []any{"newhash", id},
			call: func(r repo.UserRepository) error {
				return r.UpdatePassword(context.Background(), id, "newhash")
			},
		},
		{
			name:  "set reset token",
			query: `UPDATE users SET password_reset_token_hash = $1, password_reset_expires_at = $2 WHERE id = $3`,
			args:  []any{"tokenhash", expires, id},
			call: func(r repo.UserRepository) error {
				return r.SetResetToken(context.Background(), id, "tokenhash", expires)
			},
		},
		{
			name:  "clear reset token",
			query: `UPDATE users SET password_reset_token_hash = NULL, password_reset_expires_at = NULL WHERE id = $1`,
			args:  []any{id},
			call: func(r repo.UserRepository) error {
				return r.ClearResetToken(context.Background(), id)
			},
		},
		{
			name:  "reset password",
			query: `UPDATE users SET password_hash = $1, password_reset_token_hash = NULL, password_reset_expires_at = NULL WHERE id = $2 AND password_reset_token_hash = $3`,
			args:  []any{"newhash", id, "tokenhash"},
			call: func(r repo.UserRepository) error {
				return r.ResetPassword(context.Background(), id, "tokenhash", "newhash")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, mock := newMockRepo(t)
			args := make([]driver.Value, 0, len(tt.args))
			for _, a := range tt.args {
				args = append(args, matchArg{a})
			}

			mock.ExpectExec(regexp.QuoteMeta(tt.query)).WithArgs(args...).WillReturnResult(sqlmock.NewResult(0, 1))
			require.NoError(t, tt.call(r))

			mock.ExpectExec(regexp.QuoteMeta(tt.query)).WillReturnResult(sqlmock.NewResult(0, 0))
			require.ErrorIs(t, tt.call(r), repo.ErrNotFound)

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// matchArg compares against the driver value the repository actually sends.
type matchArg struct{ want any }

func (m matchArg) Match(v driver.Value) bool {
	switch want := m.want.(type) {
	case uuid.UUID:
		return v == want.String()
	case time.Time:
		got, ok := v.(time.Time)
		return ok && got.Equal(want)
	default:
		return v == want
	}
}
