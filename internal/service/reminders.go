package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

// ReminderRepository defines reminder persistence.
type ReminderRepository interface {
	ListReminders(ctx context.Context, userID string) ([]models.Reminder, error)
	GetReminder(ctx context.Context, id int64) (*models.Reminder, error)
	CreateReminder(ctx context.Context, r models.Reminder) (*models.Reminder, error)
	UpdateReminder(ctx context.Context, r models.Reminder) (*models.Reminder, error)
	DeleteReminder(ctx context.Context, id int64) error
}

// NewReminder is the payload of a reminder creation. UserID names the owner
// when it is not the caller; missing times default to now.
type NewReminder struct {
	UserID           string     `json:"user_id"`
	Content          string     `json:"content"`
	CreationTime     *time.Time `json:"creation_time"`
	NotificationTime *time.Time `json:"notification_time"`
}

// ReminderPatch is the payload of a reminder update. Nil fields are kept,
// except ModificationTime which defaults to now.
type ReminderPatch struct {
	ID               int64      `json:"id"`
	Content          *string    `json:"content"`
	ModificationTime *time.Time `json:"modification_time"`
	NotificationTime *time.Time `json:"notification_time"`
}

// ReminderService implements reminder CRUD on behalf of a caller.
type ReminderService struct {
	repo   ReminderRepository
	owners owners
	clock  clock.Clock
}

// NewReminderService constructs a ReminderService.
func NewReminderService(repo ReminderRepository, users UserChecker, authz Authorizer, clk clock.Clock) *ReminderService {
	return &ReminderService{repo: repo, owners: owners{users: users, authz: authz}, clock: clk}
}

// List returns the reminders of owner, or of caller when owner is empty.
func (s *ReminderService) List(ctx context.Context, caller, owner string) ([]models.Reminder, error) {
	owner, err := s.owners.resolve(ctx, caller, owner)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReminders(ctx, owner)
}

// Create stores a reminder created by caller.
func (s *ReminderService) Create(ctx context.Context, caller string, in NewReminder) (*models.Reminder, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	owner, err := s.owners.resolve(ctx, caller, in.UserID)
	if err != nil {
		return nil, err
	}

	created := s.clock.Now().UTC()
	if in.CreationTime != nil {
		created = *in.CreationTime
	}
	creator := caller
	return s.repo.CreateReminder(ctx, models.Reminder{
		UserID:           owner,
		Creator:          &creator,
		Content:          in.Content,
		CreationTime:     created,
		ModificationTime: created,
		NotificationTime: in.NotificationTime,
	})
}

// Update applies patch to a reminder the caller may act on.
func (s *ReminderService) Update(ctx context.Context, caller string, patch ReminderPatch) (*models.Reminder, error) {
	stored, err := s.repo.GetReminder(ctx, patch.ID)
	if err != nil {
		return nil, notFound("reminder", patch.ID, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return nil, err
	}

	if patch.Content != nil {
		if strings.TrimSpace(*patch.Content) == "" {
			return nil, fmt.Errorf("%w: content is required", common.ErrValidation)
		}
		stored.Content = *patch.Content
	}
	stored.ModificationTime = s.clock.Now().UTC()
	if patch.ModificationTime != nil {
		stored.ModificationTime = *patch.ModificationTime
	}
	if patch.NotificationTime != nil {
		stored.NotificationTime = patch.NotificationTime
	}
	return s.repo.UpdateReminder(ctx, *stored)
}

// Delete removes a reminder the caller may act on.
func (s *ReminderService) Delete(ctx context.Context, caller string, id int64) error {
	stored, err := s.repo.GetReminder(ctx, id)
	if err != nil {
		return notFound("reminder", id, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return err
	}
	return s.repo.DeleteReminder(ctx, id)
}
