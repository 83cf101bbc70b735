package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/models"
)

// PostgresActivityRepository persists activities.
type PostgresActivityRepository struct {
	DB *sql.DB
}

// NewPostgresActivityRepository creates a new PostgresActivityRepository.
func NewPostgresActivityRepository(db *sql.DB) *PostgresActivityRepository {
	return &PostgresActivityRepository{DB: db}
}

const activityColumns = `id, user_id, creator, name, description, situation, start_time, end_time`

func scanActivity(row interface{ Scan(...any) error }, a *models.Activity) error {
	return row.Scan(&a.ID, &a.UserID, &a.Creator, &a.Name, &a.Description, &a.Situation, &a.StartTime, &a.EndTime)
}

// ListActivities returns the activities of userID ordered by start time.
func (s *PostgresActivityRepository) ListActivities(ctx context.Context, userID string) ([]models.Activity, error) {
	var activities []models.Activity
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx,
			`SELECT `+activityColumns+` FROM activities WHERE user_id = $1 ORDER BY start_time, id`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		activities = []models.Activity{}
		for rows.Next() {
			var a models.Activity
			if err := scanActivity(rows, &a); err != nil {
				return err
			}
			activities = append(activities, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapError("ListActivities", err)
	}
	return activities, nil
}

// GetActivity loads an activity by id.
func (s *PostgresActivityRepository) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	var a models.Activity
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanActivity(s.DB.QueryRowContext(ctx,
			`SELECT `+activityColumns+` FROM activities WHERE id = $1`, id), &a)
	})
	if err != nil {
		return nil, mapError("GetActivity", err)
	}
	return &a, nil
}

// CreateActivity inserts a and returns the stored row.
func (s *PostgresActivityRepository) CreateActivity(ctx context.Context, a models.Activity) (*models.Activity, error) {
	var stored models.Activity
	err := scanActivity(s.DB.QueryRowContext(ctx, `
		INSERT INTO activities (user_id, creator, name, description, situation, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+activityColumns,
		a.UserID, a.Creator, a.Name, a.Description, a.Situation, a.StartTime, a.EndTime,
	), &stored)
	if err != nil {
		return nil, mapError("CreateActivity", err)
	}
	return &stored, nil
}

// UpdateActivity rewrites every mutable column of a.ID, the owner included,
// and returns the stored row.
func (s *PostgresActivityRepository) UpdateActivity(ctx context.Context, a models.Activity) (*models.Activity, error) {
	var stored models.Activity
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanActivity(s.DB.QueryRowContext(ctx, `
			UPDATE activities
			SET user_id = $2, name = $3, description = $4, situation = $5, start_time = $6, end_time = $7
			WHERE id = $1
			RETURNING `+activityColumns,
			a.ID, a.UserID, a.Name, a.Description, a.Situation, a.StartTime, a.EndTime,
		), &stored)
	})
	if err != nil {
		return nil, mapError("UpdateActivity", err)
	}
	return &stored, nil
}

// DeleteActivity removes an activity by id.
func (s *PostgresActivityRepository) DeleteActivity(ctx context.Context, id int64) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx, `DELETE FROM activities WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("DeleteActivity", err)
}
