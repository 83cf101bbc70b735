package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/models"
)

// PostgresUserRepository implements account and metadata persistence using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// UserExists checks whether a user with the specified id exists in the database.
func (s *PostgresUserRepository) UserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`,
			id,
		).Scan(&exists)
	})
	return exists, mapError("UserExists", err)
}

// CreateUser inserts a new user. It fails with common.ErrAlreadyExists when id is taken.
func (s *PostgresUserRepository) CreateUser(ctx context.Context, id string, pwdHash []byte) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, pwd_hash) VALUES ($1, $2)`,
		id, pwdHash,
	)
	return mapError("CreateUser", err)
}

// GetUser loads the account row of id.
func (s *PostgresUserRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.DB.QueryRowContext(ctx,
			`SELECT id, pwd_hash, created_at FROM users WHERE id = $1`,
			id,
		).Scan(&u.ID, &u.PasswordHash, &u.CreatedAt)
	})
	if err != nil {
		return nil, mapError("GetUser", err)
	}
	return &u, nil
}

// UpdatePassword replaces the password digest of id.
func (s *PostgresUserRepository) UpdatePassword(ctx context.Context, id string, pwdHash []byte) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx,
			`UPDATE users SET pwd_hash = $2 WHERE id = $1`,
			id, pwdHash,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("UpdatePassword", err)
}

// eraseStatements delete everything a user owns or is referenced by, the
// user row last. The foreign keys cascade as well; the explicit statements
// keep erasure independent of the schema's ON DELETE clauses.
var eraseStatements = []string{
	`DELETE FROM relations WHERE from_user_id = $1 OR to_user_id = $1`,
	`DELETE FROM favorites WHERE user_id = $1`,
	`DELETE FROM reminders WHERE user_id = $1`,
	`DELETE FROM activities WHERE user_id = $1`,
	`DELETE FROM permissions WHERE grantor_id = $1 OR grantee_id = $1`,
	`DELETE FROM user_meta WHERE user_id = $1`,
}

// EraseUser deletes the user and every row referencing it in one transaction.
// It fails with common.ErrNotFound when the user does not exist, leaving
// nothing deleted.
func (s *PostgresUserRepository) EraseUser(ctx context.Context, id string) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return db.WithTx(ctx, s.DB, func(ctx context.Context, tx db.DBTX) error {
			for _, stmt := range eraseStatements {
				if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
					return err
				}
			}
			res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
			if err != nil {
				return err
			}
			return requireAffected(res)
		})
	})
	return mapError("EraseUser", err)
}
