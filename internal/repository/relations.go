package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/models"
)

// PostgresRelationRepository persists relative links.
type PostgresRelationRepository struct {
	DB *sql.DB
}

// NewPostgresRelationRepository creates a new PostgresRelationRepository.
func NewPostgresRelationRepository(db *sql.DB) *PostgresRelationRepository {
	return &PostgresRelationRepository{DB: db}
}

// ListRelations returns the relations owned by fromUserID together with the
// relatives' names and avatars.
func (s *PostgresRelationRepository) ListRelations(ctx context.Context, fromUserID string) ([]models.RelationView, error) {
	var views []models.RelationView
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx, `
			SELECT r.id, r.to_user_id, n.value, a.value, r.relation
			FROM relations r
			LEFT JOIN user_meta n ON n.user_id = r.to_user_id AND n.key = 'name'
			LEFT JOIN user_meta a ON a.user_id = r.to_user_id AND a.key = 'avatar'
			WHERE r.from_user_id = $1
			ORDER BY r.id
		`, fromUserID)
		if err != nil {
			return err
		}
		defer rows.Close()

		views = []models.RelationView{}
		for rows.Next() {
			var v models.RelationView
			if err := rows.Scan(&v.ID, &v.ToUserID, &v.Name, &v.Avatar, &v.Relation); err != nil {
				return err
			}
			views = append(views, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapError("ListRelations", err)
	}
	return views, nil
}

// GetRelation loads a relation by id.
func (s *PostgresRelationRepository) GetRelation(ctx context.Context, id int64) (*models.Relation, error) {
	var rel models.Relation
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.DB.QueryRowContext(ctx,
			`SELECT id, from_user_id, to_user_id, relation FROM relations WHERE id = $1`,
			id,
		).Scan(&rel.ID, &rel.FromUserID, &rel.ToUserID, &rel.Relation)
	})
	if err != nil {
		return nil, mapError("GetRelation", err)
	}
	return &rel, nil
}

// CreateRelation inserts rel and returns the stored row. A non-nil grant is
// written in the same transaction, so either both rows exist or neither does.
// The insert is not retried: a lost connection may already have committed it.
func (s *PostgresRelationRepository) CreateRelation(ctx context.Context, rel models.Relation, grant *models.Grant) (*models.Relation, error) {
	const insertRelation = `INSERT INTO relations (from_user_id, to_user_id, relation) VALUES ($1, $2, $3) RETURNING id`

	var err error
	if grant == nil {
		err = s.DB.QueryRowContext(ctx, insertRelation, rel.FromUserID, rel.ToUserID, rel.Relation).Scan(&rel.ID)
	} else {
		err = db.WithTx(ctx, s.DB, func(ctx context.Context, tx db.DBTX) error {
			if err := tx.QueryRowContext(ctx, insertRelation, rel.FromUserID, rel.ToUserID, rel.Relation).Scan(&rel.ID); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO permissions (grantor_id, grantee_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				grant.Grantor, grant.Grantee,
			)
			return err
		})
	}
	if err != nil {
		return nil, mapError("CreateRelation", err)
	}
	return &rel, nil
}

// UpdateRelation relabels a relation and returns the stored row.
func (s *PostgresRelationRepository) UpdateRelation(ctx context.Context, id int64, relation string) (*models.Relation, error) {
	var rel models.Relation
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return s.DB.QueryRowContext(ctx,
			`UPDATE relations SET relation = $2 WHERE id = $1 RETURNING id, from_user_id, to_user_id, relation`,
			id, relation,
		).Scan(&rel.ID, &rel.FromUserID, &rel.ToUserID, &rel.Relation)
	})
	if err != nil {
		return nil, mapError("UpdateRelation", err)
	}
	return &rel, nil
}

// DeleteRelation removes a relation by id.
func (s *PostgresRelationRepository) DeleteRelation(ctx context.Context, id int64) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx, `DELETE FROM relations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("DeleteRelation", err)
}
