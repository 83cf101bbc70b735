package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/models"
)

// PostgresFavoriteRepository persists bookmarked articles.
type PostgresFavoriteRepository struct {
	DB *sql.DB
}

// NewPostgresFavoriteRepository creates a new PostgresFavoriteRepository.
func NewPostgresFavoriteRepository(db *sql.DB) *PostgresFavoriteRepository {
	return &PostgresFavoriteRepository{DB: db}
}

const favoriteColumns = `id, user_id, time_stamp, article_id`

func scanFavorite(row interface{ Scan(...any) error }, f *models.Favorite) error {
	return row.Scan(&f.ID, &f.UserID, &f.TimeStamp, &f.ArticleID)
}

// ListFavorites returns the favorites of userID, newest first.
func (s *PostgresFavoriteRepository) ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error) {
	var favorites []models.Favorite
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx,
			`SELECT `+favoriteColumns+` FROM favorites WHERE user_id = $1 ORDER BY time_stamp DESC, id DESC`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		favorites = []models.Favorite{}
		for rows.Next() {
			var f models.Favorite
			if err := scanFavorite(rows, &f); err != nil {
				return err
			}
			favorites = append(favorites, f)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapError("ListFavorites", err)
	}
	return favorites, nil
}

// GetFavorite loads a favorite by id.
func (s *PostgresFavoriteRepository) GetFavorite(ctx context.Context, id int64) (*models.Favorite, error) {
	var f models.Favorite
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanFavorite(s.DB.QueryRowContext(ctx,
			`SELECT `+favoriteColumns+` FROM favorites WHERE id = $1`, id), &f)
	})
	if err != nil {
		return nil, mapError("GetFavorite", err)
	}
	return &f, nil
}

// CreateFavorite inserts f and returns the stored row.
func (s *PostgresFavoriteRepository) CreateFavorite(ctx context.Context, f models.Favorite) (*models.Favorite, error) {
	var stored models.Favorite
	err := scanFavorite(s.DB.QueryRowContext(ctx,
		`INSERT INTO favorites (user_id, time_stamp, article_id) VALUES ($1, $2, $3) RETURNING `+favoriteColumns,
		f.UserID, f.TimeStamp, f.ArticleID,
	), &stored)
	if err != nil {
		return nil, mapError("CreateFavorite", err)
	}
	return &stored, nil
}

// UpdateFavorite rewrites the article and timestamp of f.ID and returns the stored row.
func (s *PostgresFavoriteRepository) UpdateFavorite(ctx context.Context, f models.Favorite) (*models.Favorite, error) {
	var stored models.Favorite
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanFavorite(s.DB.QueryRowContext(ctx,
			`UPDATE favorites SET article_id = $2, time_stamp = $3 WHERE id = $1 RETURNING `+favoriteColumns,
			f.ID, f.ArticleID, f.TimeStamp,
		), &stored)
	})
	if err != nil {
		return nil, mapError("UpdateFavorite", err)
	}
	return &stored, nil
}

// DeleteFavorite removes a favorite by id.
func (s *PostgresFavoriteRepository) DeleteFavorite(ctx context.Context, id int64) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx, `DELETE FROM favorites WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("DeleteFavorite", err)
}
