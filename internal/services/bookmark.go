package services

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// BookmarkRepository defines persistence operations for bookmarks.
type BookmarkRepository interface {
	Create(ctx context.Context, bookmark types.Bookmark) (types.Bookmark, error)
	Get(ctx context.Context, userID, restaurantID primitive.ObjectID) (types.Bookmark, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.Bookmark, error)
	Delete(ctx context.Context, userID, restaurantID primitive.ObjectID) error
}

// BookmarkService encapsulates bookmark use-cases.
type BookmarkService struct {
	repo BookmarkRepository
}

func NewBookmarkService(repo BookmarkRepository) *BookmarkService {
	return &BookmarkService{repo: repo}
}

// Create saves the restaurant for the user. Bookmarking twice returns
// the existing entry instead of duplicating it.
func (s *BookmarkService) Create(ctx context.Context, userID, restaurantID primitive.ObjectID) (types.Bookmark, error) {
	existing, err := s.repo.Get(ctx, userID, restaurantID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.Bookmark{}, err
	}
	return s.repo.Create(ctx, types.Bookmark{
		UserID:       userID,
		RestaurantID: restaurantID,
	})
}

func (s *BookmarkService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.Bookmark, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes the caller's bookmark of the restaurant. The predicate
// is the (user, restaurant) pair, so users can only ever remove their
// own entries.
func (s *BookmarkService) Delete(ctx context.Context, userID, restaurantID primitive.ObjectID) error {
	return s.repo.Delete(ctx, userID, restaurantID)
}
