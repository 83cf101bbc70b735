package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/atinyakov/GuardPine/internal/common"
)

func setupUserMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresUserRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestUserExists_True(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.UserExists(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Errorf("expected user to exist, got false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUserExists_Error(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`)).
		WithArgs("alice").
		WillReturnError(errors.New("query failed"))

	if _, err := repo.UserExists(context.Background(), "alice"); err == nil {
		t.Errorf("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name    string
		execErr error
		wantErr error
	}{
		{"success", nil, nil},
		{"duplicate", &pq.Error{Code: pqUniqueViolation}, common.ErrAlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, cleanup := setupUserMock(t)
			defer cleanup()

			exp := mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, pwd_hash) VALUES ($1, $2)`)).
				WithArgs("alice", []byte("hash"))
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.CreateUser(context.Background(), "alice", []byte("hash"))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestCreateUser_NotRetriedOnConnectionLoss(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (id, pwd_hash) VALUES ($1, $2)`)).
		WithArgs("alice", []byte("hash")).
		WillReturnError(&pq.Error{Code: "08006"})

	err := repo.CreateUser(context.Background(), "alice", []byte("hash"))
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "08006" {
		t.Errorf("expected the connection error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetUser(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, pwd_hash, created_at FROM users WHERE id = $1`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pwd_hash", "created_at"}).AddRow("alice", []byte("h"), created))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, pwd_hash, created_at FROM users WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pwd_hash", "created_at"}))

	u, err := repo.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.ID != "alice" || string(u.PasswordHash) != "h" || !u.CreatedAt.Equal(created) {
		t.Errorf("unexpected user: %+v", u)
	}

	if _, err := repo.GetUser(context.Background(), "ghost"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdatePassword_NotFound(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET pwd_hash = $2 WHERE id = $1`)).
		WithArgs("ghost", []byte("h")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), "ghost", []byte("h"))
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEraseUser_Cascade(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	for _, stmt := range eraseStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 2))
	}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.EraseUser(context.Background(), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEraseUser_MissingUserRollsBack(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	for _, stmt := range eraseStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.EraseUser(context.Background(), "ghost")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestEraseUser_FailureRollsBack(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(eraseStatements[0])).WithArgs("alice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(eraseStatements[1])).WithArgs("alice").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := repo.EraseUser(context.Background(), "alice"); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
