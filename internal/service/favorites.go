package service

import (
	"context"
	"fmt"

	"github.com/juju/clock"
	"go.uber.org/zap"

	"github.com/atinyakov/GuardPine/internal/common"
	"github.com/atinyakov/GuardPine/internal/models"
)

// FavoriteRepository defines favorite persistence.
type FavoriteRepository interface {
	ListFavorites(ctx context.Context, userID string) ([]models.Favorite, error)
	GetFavorite(ctx context.Context, id int64) (*models.Favorite, error)
	CreateFavorite(ctx context.Context, f models.Favorite) (*models.Favorite, error)
	UpdateFavorite(ctx context.Context, f models.Favorite) (*models.Favorite, error)
	DeleteFavorite(ctx context.Context, id int64) error
}

// ArticleFetcher resolves the details of a bookmarked article.
type ArticleFetcher interface {
	Article(ctx context.Context, articleID int64) (*models.ArticleDetails, error)
}

// NewFavorite is the payload of a favorite creation.
type NewFavorite struct {
	UserID    string `json:"user_id"`
	ArticleID int64  `json:"articleId"`
}

// FavoritePatch points an existing favorite at another article.
type FavoritePatch struct {
	ID        int64 `json:"id"`
	ArticleID int64 `json:"articleId"`
}

// FavoriteService implements favorite CRUD on behalf of a caller.
type FavoriteService struct {
	repo     FavoriteRepository
	owners   owners
	articles ArticleFetcher
	clock    clock.Clock
	log      *zap.Logger
}

// NewFavoriteService constructs a FavoriteService. articles may be nil, in
// which case listed favorites carry no details.
func NewFavoriteService(repo FavoriteRepository, users UserChecker, authz Authorizer, articles ArticleFetcher, clk clock.Clock, log *zap.Logger) *FavoriteService {
	return &FavoriteService{
		repo:     repo,
		owners:   owners{users: users, authz: authz},
		articles: articles,
		clock:    clk,
		log:      log,
	}
}

// List returns the favorites of owner, or of caller when owner is empty,
// with article details resolved. Details that cannot be fetched are null.
func (s *FavoriteService) List(ctx context.Context, caller, owner string) ([]models.FavoriteView, error) {
	owner, err := s.owners.resolve(ctx, caller, owner)
	if err != nil {
		return nil, err
	}
	favorites, err := s.repo.ListFavorites(ctx, owner)
	if err != nil {
		return nil, err
	}

	views := make([]models.FavoriteView, 0, len(favorites))
	for _, f := range favorites {
		view := models.FavoriteView{ID: f.ID, TimeStamp: f.TimeStamp, ArticleID: f.ArticleID}
		if s.articles != nil {
			details, err := s.articles.Article(ctx, f.ArticleID)
			if err != nil {
				s.log.Warn("article details unavailable", zap.Int64("article", f.ArticleID), zap.Error(err))
			} else {
				view.Details = details
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Create bookmarks an article for the resolved owner.
func (s *FavoriteService) Create(ctx context.Context, caller string, in NewFavorite) (*models.Favorite, error) {
	if in.ArticleID <= 0 {
		return nil, fmt.Errorf("%w: articleId is required", common.ErrValidation)
	}
	owner, err := s.owners.resolve(ctx, caller, in.UserID)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateFavorite(ctx, models.Favorite{
		UserID:    owner,
		TimeStamp: s.clock.Now().UTC(),
		ArticleID: in.ArticleID,
	})
}

// Update re-points a favorite the caller may act on.
func (s *FavoriteService) Update(ctx context.Context, caller string, patch FavoritePatch) (*models.Favorite, error) {
	if patch.ArticleID <= 0 {
		return nil, fmt.Errorf("%w: articleId is required", common.ErrValidation)
	}
	stored, err := s.repo.GetFavorite(ctx, patch.ID)
	if err != nil {
		return nil, notFound("favorite", patch.ID, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return nil, err
	}
	stored.ArticleID = patch.ArticleID
	stored.TimeStamp = s.clock.Now().UTC()
	return s.repo.UpdateFavorite(ctx, *stored)
}

// Delete removes a favorite the caller may act on.
func (s *FavoriteService) Delete(ctx context.Context, caller string, id int64) error {
	stored, err := s.repo.GetFavorite(ctx, id)
	if err != nil {
		return notFound("favorite", id, err)
	}
	if err := s.owners.authorize(ctx, caller, stored.UserID); err != nil {
		return err
	}
	return s.repo.DeleteFavorite(ctx, id)
}
