package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

// RelationRepository defines relation persistence.
type RelationRepository interface {
	ListRelations(ctx context.Context, fromUserID string) ([]models.RelationView, error)
	GetRelation(ctx context.Context, id int64) (*models.Relation, error)
	// CreateRelation stores rel and, when grant is non-nil, the permission
	// edge in the same transaction.
	CreateRelation(ctx context.Context, rel models.Relation, grant *models.Grant) (*models.Relation, error)
	UpdateRelation(ctx context.Context, id int64, relation string) (*models.Relation, error)
	DeleteRelation(ctx context.Context, id int64) error
}

// FavoriteLister lists favorites on behalf of a caller.
type FavoriteLister interface {
	List(ctx context.Context, caller, owner string) ([]models.FavoriteView, error)
}

// ActivityLister lists activities on behalf of a caller.
type ActivityLister interface {
	List(ctx context.Context, caller, owner string) ([]models.Activity, error)
}

// NewRelation is the payload of a relation creation. Permission also lets
// the relative act as the caller.
type NewRelation struct {
	ToUserID   string `json:"to_user_id"`
	Relation   string `json:"relation"`
	Permission bool   `json:"permission"`
}

// RelationPatch relabels a relation.
type RelationPatch struct {
	ID       int64  `json:"id"`
	Relation string `json:"relation"`
}

// RelationService implements relative links on behalf of a caller.
type RelationService struct {
	repo       RelationRepository
	owners     owners
	favorites  FavoriteLister
	activities ActivityLister
}

// NewRelationService constructs a RelationService.
func NewRelationService(repo RelationRepository, users UserChecker, authz Authorizer) *RelationService {
	return &RelationService{repo: repo, owners: owners{users: users, authz: authz}}
}

// WithDetails enables ListVerbose.
func (s *RelationService) WithDetails(favorites FavoriteLister, activities ActivityLister) *RelationService {
	s.favorites, s.activities = favorites, activities
	return s
}

// List returns the relatives of owner, or of caller when owner is empty.
func (s *RelationService) List(ctx context.Context, caller, owner string) ([]models.RelationView, error) {
	owner, err := s.owners.resolve(ctx, caller, owner)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRelations(ctx, owner)
}

// ListVerbose is List with each relative's favorites and activities. They
// are read as caller, so a relative who has not granted caller its
// authority is listed with null favorites and activities.
func (s *RelationService) ListVerbose(ctx context.Context, caller, owner string) ([]models.RelativeView, error) {
	if s.favorites == nil || s.activities == nil {
		return nil, errors.New("relation details are not configured")
	}
	views, err := s.List(ctx, caller, owner)
	if err != nil {
		return nil, err
	}

	out := make([]models.RelativeView, 0, len(views))
	for _, v := range views {
		rv := models.RelativeView{RelationView: v}
		favorites, err := s.favorites.List(ctx, caller, v.ToUserID)
		switch {
		case errors.Is(err, common.ErrForbidden):
		case err != nil:
			return nil, err
		default:
			rv.Favorites = append([]models.FavoriteView{}, favorites...)
		}
		activities, err := s.activities.List(ctx, caller, v.ToUserID)
		switch {
		case errors.Is(err, common.ErrForbidden):
		case err != nil:
			return nil, err
		default:
			rv.Activities = append([]models.Activity{}, activities...)
		}
		out = append(out, rv)
	}
	return out, nil
}

// Create links caller to a relative.
func (s *RelationService) Create(ctx context.Context, caller string, in NewRelation) (*models.Relation, error) {
	if caller == "" {
		return nil, common.ErrUnauthenticated
	}
	if err := ensureUser(ctx, s.owners.users, in.ToUserID); err != nil {
		return nil, err
	}
	if in.ToUserID == caller {
		return nil, fmt.Errorf("%w: cannot relate to oneself", common.ErrValidation)
	}
	var grant *models.Grant
	if in.Permission {
		grant = &models.Grant{Grantor: caller, Grantee: in.ToUserID}
	}
	return s.repo.CreateRelation(ctx, models.Relation{
		FromUserID: caller,
		ToUserID:   in.ToUserID,
		Relation:   strings.TrimSpace(in.Relation),
	}, grant)
}

// Update relabels a relation the caller may act on.
func (s *RelationService) Update(ctx context.Context, caller string, patch RelationPatch) (*models.Relation, error) {
	stored, err := s.repo.GetRelation(ctx, patch.ID)
	if err != nil {
		return nil, notFound("relation", patch.ID, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.FromUserID); err != nil {
		return nil, err
	}
	return s.repo.UpdateRelation(ctx, patch.ID, strings.TrimSpace(patch.Relation))
}

// Delete removes a relation the caller may act on.
func (s *RelationService) Delete(ctx context.Context, caller string, id int64) error {
	stored, err := s.repo.GetRelation(ctx, id)
	if err != nil {
		return notFound("relation", id, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.FromUserID); err != nil {
		return err
	}
	return s.repo.DeleteRelation(ctx, id)
}
