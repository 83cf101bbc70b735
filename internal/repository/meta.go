package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/atinyakov/GuardPine/internal/db"
)

// PostgresMetaRepository stores the per-user metadata document as one row
// per key, so writers of different keys never overwrite each other.
type PostgresMetaRepository struct {
	DB *sql.DB
}

// NewPostgresMetaRepository creates a new PostgresMetaRepository.
func NewPostgresMetaRepository(db *sql.DB) *PostgresMetaRepository {
	return &PostgresMetaRepository{DB: db}
}

// GetMeta returns the value stored under key, or nil when the key is unset.
func (s *PostgresMetaRepository) GetMeta(ctx context.Context, userID, key string) (*string, error) {
	var value *string
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		err := s.DB.QueryRowContext(ctx,
			`SELECT value FROM user_meta WHERE user_id = $1 AND key = $2`,
			userID, key,
		).Scan(&value)
		if err == sql.ErrNoRows {
			value = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, mapError("GetMeta", err)
	}
	return value, nil
}

// GetMetaKeys returns the set values among keys.
func (s *PostgresMetaRepository) GetMetaKeys(ctx context.Context, userID string, keys []string) (map[string]string, error) {
	var values map[string]string
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx,
			`SELECT key, value FROM user_meta WHERE user_id = $1 AND key = ANY($2)`,
			userID, pq.Array(keys),
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		values = make(map[string]string, len(keys))
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return err
			}
			values[k] = v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapError("GetMetaKeys", err)
	}
	return values, nil
}

// SetMeta upserts a single key.
func (s *PostgresMetaRepository) SetMeta(ctx context.Context, userID, key, value string) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		_, err := s.DB.ExecContext(ctx,
			`INSERT INTO user_meta (user_id, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`,
			userID, key, value,
		)
		return err
	})
	return mapError("SetMeta", err)
}
