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

// ActivityRepository defines activity persistence.
type ActivityRepository interface {
	ListActivities(ctx context.Context, userID string) ([]models.Activity, error)
	GetActivity(ctx context.Context, id int64) (*models.Activity, error)
	CreateActivity(ctx context.Context, a models.Activity) (*models.Activity, error)
	UpdateActivity(ctx context.Context, a models.Activity) (*models.Activity, error)
	DeleteActivity(ctx context.Context, id int64) error
}

// NewActivity is the payload of an activity creation.
type NewActivity struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Situation   models.Progress `json:"situation"`
	UserID      string          `json:"user_id"`
	StartTime   *time.Time      `json:"startTime"`
	EndTime     *time.Time      `json:"endTime"`
}

// ActivityPatch is the payload of an activity update; nil fields are kept.
// A UserID moves the activity to another owner the caller may act as.
type ActivityPatch struct {
	ID          int64            `json:"id"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Situation   *models.Progress `json:"situation"`
	UserID      *string          `json:"user_id"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
}

// ActivityService implements activity CRUD on behalf of a caller.
type ActivityService struct {
	repo   ActivityRepository
	owners owners
	clock  clock.Clock
}

// NewActivityService constructs an ActivityService.
func NewActivityService(repo ActivityRepository, users UserChecker, authz Authorizer, clk clock.Clock) *ActivityService {
	return &ActivityService{repo: repo, owners: owners{users: users, authz: authz}, clock: clk}
}

// List returns the activities of owner, or of caller when owner is empty.
func (s *ActivityService) List(ctx context.Context, caller, owner string) ([]models.Activity, error) {
	owner, err := s.owners.resolve(ctx, caller, owner)
	if err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, owner)
}

// Create stores an activity created by caller. The situation defaults to todo
// and missing times to now.
func (s *ActivityService) Create(ctx context.Context, caller string, in NewActivity) (*models.Activity, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
	}
	if in.Situation == "" {
		in.Situation = models.ProgressTodo
	}
	if !in.Situation.Valid() {
		return nil, fmt.Errorf("%w: unknown situation %q", common.ErrValidation, in.Situation)
	}
	owner, err := s.owners.resolve(ctx, caller, in.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	a := models.Activity{
		UserID:      owner,
		Creator:     &caller,
		Name:        in.Name,
		Description: in.Description,
		Situation:   in.Situation,
		StartTime:   now,
		EndTime:     now,
	}
	if in.StartTime != nil {
		a.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		a.EndTime = *in.EndTime
	}
	if a.EndTime.Before(a.StartTime) {
		return nil, fmt.Errorf("%w: endTime before startTime", common.ErrValidation)
	}
	return s.repo.CreateActivity(ctx, a)
}

// Update applies patch to an activity the caller may act on.
func (s *ActivityService) Update(ctx context.Context, caller string, patch ActivityPatch) (*models.Activity, error) {
	stored, err := s.repo.GetActivity(ctx, patch.ID)
	if err != nil {
		return nil, notFound("activity", patch.ID, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return nil, err
	}

	if patch.UserID != nil && *patch.UserID != stored.UserID {
		owner, err := s.owners.resolve(ctx, caller, *patch.UserID)
		if err != nil {
			return nil, err
		}
		stored.UserID = owner
	}
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("%w: name is required", common.ErrValidation)
		}
		stored.Name = *patch.Name
	}
	if patch.Description != nil {
		stored.Description = *patch.Description
	}
	if patch.Situation != nil {
		if !patch.Situation.Valid() {
			return nil, fmt.Errorf("%w: unknown situation %q", common.ErrValidation, *patch.Situation)
		}
		stored.Situation = *patch.Situation
	}
	if patch.StartTime != nil {
		stored.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		stored.EndTime = *patch.EndTime
	}
	if stored.EndTime.Before(stored.StartTime) {
		return nil, fmt.Errorf("%w: endTime before startTime", common.ErrValidation)
	}
	return s.repo.UpdateActivity(ctx, *stored)
}

// Delete removes an activity the caller may act on.
func (s *ActivityService) Delete(ctx context.Context, caller string, id int64) error {
	stored, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return notFound("activity", id, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return err
	}
	return s.repo.DeleteActivity(ctx, id)
}
