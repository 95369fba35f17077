package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// MenuRepository defines persistence operations for menu items.
type MenuRepository interface {
	Create(ctx context.Context, menu types.Menu) (types.Menu, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Menu, error)
	ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params store.ListParams) ([]types.Menu, int64, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MenuService encapsulates menu use-cases.
type MenuService struct {
	repo  MenuRepository
	media MediaRemover
}

func NewMenuService(repo MenuRepository, media MediaRemover) *MenuService {
	return &MenuService{repo: repo, media: media}
}

func (s *MenuService) Create(ctx context.Context, menu types.Menu) (types.Menu, error) {
	return s.repo.Create(ctx, menu)
}

func (s *MenuService) GetByID(ctx context.Context, id primitive.ObjectID) (types.Menu, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MenuService) ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params store.ListParams) ([]types.Menu, int64, error) {
	return s.repo.ListByRestaurant(ctx, restaurantID, params)
}

// Update applies a partial update scoped to the menu's restaurant and
// returns the fresh document. A menu id paired with the wrong
// restaurant reads as missing.
func (s *MenuService) Update(ctx context.Context, menuID, restaurantID primitive.ObjectID, fields bson.M) (types.Menu, error) {
	menu, err := s.repo.GetByID(ctx, menuID)
	if err != nil {
		return types.Menu{}, err
	}
	if menu.RestaurantID != restaurantID {
		return types.Menu{}, store.ErrNotFound
	}
	if err := s.repo.UpdateFields(ctx, menuID, fields); err != nil {
		return types.Menu{}, err
	}
	return s.repo.GetByID(ctx, menuID)
}

// Delete removes a menu item scoped to its restaurant; a menu id paired
// with the wrong restaurant reads as missing. Stored media is deleted
// first and any storage failure aborts the delete.
func (s *MenuService) Delete(ctx context.Context, menuID, restaurantID primitive.ObjectID) error {
	menu, err := s.repo.GetByID(ctx, menuID)
	if err != nil {
		return err
	}
	if menu.RestaurantID != restaurantID {
		return store.ErrNotFound
	}
	if err := s.media.DeleteAll(ctx, menu.Media); err != nil {
		return err
	}
	return s.repo.Delete(ctx, menuID)
}
