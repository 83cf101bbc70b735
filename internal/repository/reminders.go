package repository

import (
	"context"
	"database/sql"

	"github.com/atinyakov/GuardPine/internal/db"
	"github.com/atinyakov/GuardPine/internal/models"
)

// PostgresReminderRepository persists reminders.
type PostgresReminderRepository struct {
	DB *sql.DB
}

// NewPostgresReminderRepository creates a new PostgresReminderRepository.
func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{DB: db}
}

const reminderColumns = `id, user_id, creator, content, creation_time, modification_time, notification_time`

func scanReminder(row interface{ Scan(...any) error }, r *models.Reminder) error {
	return row.Scan(&r.ID, &r.UserID, &r.Creator, &r.Content, &r.CreationTime, &r.ModificationTime, &r.NotificationTime)
}

// ListReminders returns the reminders of userID in creation order.
func (s *PostgresReminderRepository) ListReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		rows, err := s.DB.QueryContext(ctx,
			`SELECT `+reminderColumns+` FROM reminders WHERE user_id = $1 ORDER BY creation_time, id`,
			userID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		reminders = []models.Reminder{}
		for rows.Next() {
			var r models.Reminder
			if err := scanReminder(rows, &r); err != nil {
				return err
			}
			reminders = append(reminders, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, mapError("ListReminders", err)
	}
	return reminders, nil
}

// GetReminder loads a reminder by id.
func (s *PostgresReminderRepository) GetReminder(ctx context.Context, id int64) (*models.Reminder, error) {
	var r models.Reminder
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanReminder(s.DB.QueryRowContext(ctx,
			`SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id), &r)
	})
	if err != nil {
		return nil, mapError("GetReminder", err)
	}
	return &r, nil
}

// CreateReminder inserts r and returns the stored row.
func (s *PostgresReminderRepository) CreateReminder(ctx context.Context, r models.Reminder) (*models.Reminder, error) {
	var stored models.Reminder
	err := scanReminder(s.DB.QueryRowContext(ctx, `
		INSERT INTO reminders (user_id, creator, content, creation_time, modification_time, notification_time)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+reminderColumns,
		r.UserID, r.Creator, r.Content, r.CreationTime, r.ModificationTime, r.NotificationTime,
	), &stored)
	if err != nil {
		return nil, mapError("CreateReminder", err)
	}
	return &stored, nil
}

// UpdateReminder rewrites the mutable columns of r.ID and returns the stored row.
func (s *PostgresReminderRepository) UpdateReminder(ctx context.Context, r models.Reminder) (*models.Reminder, error) {
	var stored models.Reminder
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		return scanReminder(s.DB.QueryRowContext(ctx, `
			UPDATE reminders SET content = $2, modification_time = $3, notification_time = $4
			WHERE id = $1
			RETURNING `+reminderColumns,
			r.ID, r.Content, r.ModificationTime, r.NotificationTime,
		), &stored)
	})
	if err != nil {
		return nil, mapError("UpdateReminder", err)
	}
	return &stored, nil
}

// DeleteReminder removes a reminder by id.
func (s *PostgresReminderRepository) DeleteReminder(ctx context.Context, id int64) error {
	err := db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := s.DB.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	return mapError("DeleteReminder", err)
}
