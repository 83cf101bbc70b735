package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
)

// PostgresPermissionRepository persists permission edges. An edge
// (grantor, grantee) lets grantee act with grantor's authority.
type PostgresPermissionRepository struct {
	DB *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgresPermissionRepository.
func NewPostgresPermissionRepository(db *sql.DB) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{DB: db}
}

// AddPermission inserts the edge and reports whether it was new.
func (s *PostgresPermissionRepository) AddPermission(ctx context.Context, grantor, grantee string) (bool, error) {
	var added bool
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx,
			`INSERT INTO permissions (grantor_id, grantee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			grantor, grantee,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		added = n > 0
		return err
	})
	return added, mapError("AddPermission", err)
}

// RemovePermission deletes the edge, failing with common.ErrNotFound when it is absent.
func (s *PostgresPermissionRepository) RemovePermission(ctx context.Context, grantor, grantee string) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx,
			`DELETE FROM permissions WHERE grantor_id = $1 AND grantee_id = $2`,
			grantor, grantee,
		)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("RemovePermission", err)
}

// HasPermission reports whether the edge exists.
func (s *PostgresPermissionRepository) HasPermission(ctx context.Context, grantor, grantee string) (bool, error) {
	var ok bool
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.DB.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM permissions WHERE grantor_id = $1 AND grantee_id = $2)`,
			grantor, grantee,
		).Scan(&ok)
	})
	return ok, mapError("HasPermission", err)
}

// Grantees lists the users grantor has given its authority to, oldest first.
func (s *PostgresPermissionRepository) Grantees(ctx context.Context, grantor string) ([]string, error) {
	ids, err := s.listIDs(ctx,
		`SELECT grantee_id FROM permissions WHERE grantor_id = $1 ORDER BY created_at, grantee_id`,
		grantor,
	)
	return ids, mapError("Grantees", err)
}

// Grantors lists the users whose authority grantee holds, oldest first.
func (s *PostgresPermissionRepository) Grantors(ctx context.Context, grantee string) ([]string, error) {
	ids, err := s.listIDs(ctx,
		`SELECT grantor_id FROM permissions WHERE grantee_id = $1 ORDER BY created_at, grantor_id`,
		grantee,
	)
	return ids, mapError("Grantors", err)
}

func (s *PostgresPermissionRepository) listIDs(ctx context.Context, query, arg string) ([]string, error) {
	var ids []string
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()

		ids = ids[:0]
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	return ids, err
}
