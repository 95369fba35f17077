package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// RestaurantRepository defines persistence operations for restaurants.
type RestaurantRepository interface {
	Create(ctx context.Context, restaurant types.Restaurant) (types.Restaurant, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error)
	GetDetail(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error)
	List(ctx context.Context, params store.ListParams) ([]types.Restaurant, int64, error)
	Featured(ctx context.Context) ([]types.Restaurant, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	UpdateAggregates(ctx context.Context, id primitive.ObjectID, rating float64, totalDelta int) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MediaRemover deletes stored media objects behind their public URLs.
type MediaRemover interface {
	DeleteAll(ctx context.Context, media []types.Media) error
}

// RestaurantService encapsulates restaurant use-cases.
type RestaurantService struct {
	repo  RestaurantRepository
	media MediaRemover
}

func NewRestaurantService(repo RestaurantRepository, media MediaRemover) *RestaurantService {
	return &RestaurantService{repo: repo, media: media}
}

func (s *RestaurantService) Create(ctx context.Context, restaurant types.Restaurant) (types.Restaurant, error) {
	return s.repo.Create(ctx, restaurant)
}

func (s *RestaurantService) GetByID(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RestaurantService) GetDetail(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error) {
	return s.repo.GetDetail(ctx, id)
}

func (s *RestaurantService) List(ctx context.Context, params store.ListParams) ([]types.Restaurant, int64, error) {
	return s.repo.List(ctx, params)
}

func (s *RestaurantService) Featured(ctx context.Context) ([]types.Restaurant, error) {
	return s.repo.Featured(ctx)
}

// Update applies a partial update and returns the fresh detail view.
func (s *RestaurantService) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (types.Restaurant, error) {
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return types.Restaurant{}, err
	}
	return s.repo.GetDetail(ctx, id)
}

// Delete removes the restaurant's stored media first and aborts on the
// first storage failure, so the document survives until its objects
// are gone.
func (s *RestaurantService) Delete(ctx context.Context, id primitive.ObjectID) error {
	restaurant, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.media.DeleteAll(ctx, restaurant.Media); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
