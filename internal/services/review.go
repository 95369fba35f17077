package services

import (
	"context"
	"errors"
	"math"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	Create(ctx context.Context, review types.Review) (types.Review, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Review, error)
	List(ctx context.Context, params store.ListParams) ([]types.Review, int64, error)
	ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params store.ListParams) ([]types.Review, int64, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, params store.ListParams) ([]types.Review, int64, error)
	Recent(ctx context.Context) ([]types.Review, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// RestaurantAggregator is the slice of the restaurant repository the
// review service needs to maintain denormalized ratings.
type RestaurantAggregator interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error)
	UpdateAggregates(ctx context.Context, id primitive.ObjectID, rating float64, totalDelta int) error
}

// ReviewService encapsulates review use-cases, including incremental
// maintenance of each restaurant's rating and review count.
type ReviewService struct {
	reviews     ReviewRepository
	restaurants RestaurantAggregator
	media       MediaRemover
}

func NewReviewService(reviews ReviewRepository, restaurants RestaurantAggregator, media MediaRemover) *ReviewService {
	return &ReviewService{reviews: reviews, restaurants: restaurants, media: media}
}

// roundRating rounds half away from zero to one decimal place.
func roundRating(value float64) float64 {
	return math.Round(value*10) / 10
}

// Create inserts the review, then folds its rating into the
// restaurant's running average. A missing restaurant is skipped
// silently; the review still exists. The read-modify-write on the
// aggregates is not transactional, so concurrent reviews can race.
func (s *ReviewService) Create(ctx context.Context, review types.Review) (types.Review, error) {
	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		return types.Review{}, err
	}

	restaurant, err := s.restaurants.GetByID(ctx, created.RestaurantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return created, nil
		}
		return types.Review{}, err
	}

	n := restaurant.TotalReviews
	newTotal := n + 1
	newAvg := roundRating((restaurant.Rating*float64(n) + float64(created.Rating)) / float64(newTotal))
	if err := s.restaurants.UpdateAggregates(ctx, restaurant.ID, newAvg, 1); err != nil {
		return types.Review{}, err
	}
	return created, nil
}

func (s *ReviewService) GetByID(ctx context.Context, id primitive.ObjectID) (types.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

func (s *ReviewService) List(ctx context.Context, params store.ListParams) ([]types.Review, int64, error) {
	return s.reviews.List(ctx, params)
}

func (s *ReviewService) ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params store.ListParams) ([]types.Review, int64, error) {
	return s.reviews.ListByRestaurant(ctx, restaurantID, params)
}

func (s *ReviewService) ListByUser(ctx context.Context, userID primitive.ObjectID, params store.ListParams) ([]types.Review, int64, error) {
	return s.reviews.ListByUser(ctx, userID, params)
}

func (s *ReviewService) Recent(ctx context.Context) ([]types.Review, error) {
	return s.reviews.Recent(ctx)
}

// Update edits the caller's own review. The restaurant aggregates are
// deliberately left untouched even when the rating changes; only
// create and delete maintain them.
func (s *ReviewService) Update(ctx context.Context, id, actorID primitive.ObjectID, fields bson.M) (types.Review, error) {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return types.Review{}, err
	}
	if review.UserID != actorID {
		return types.Review{}, ErrForbidden
	}
	if err := s.reviews.UpdateFields(ctx, id, fields); err != nil {
		return types.Review{}, err
	}
	return s.reviews.GetByID(ctx, id)
}

// Delete removes a review owned by the actor (admins may remove any).
// Stored media is deleted first and any storage failure aborts the
// whole delete. The review removal and the aggregate rollback are then
// issued concurrently; a failure in either leaves the aggregates
// stale, which is accepted.
func (s *ReviewService) Delete(ctx context.Context, id, actorID primitive.ObjectID, isAdmin bool) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if review.UserID != actorID && !isAdmin {
		return ErrForbidden
	}

	if err := s.media.DeleteAll(ctx, review.Media); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.reviews.Delete(gctx, id)
	})
	g.Go(func() error {
		restaurant, err := s.restaurants.GetByID(gctx, review.RestaurantID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		n := restaurant.TotalReviews
		newTotal := n - 1
		newAvg := 0.0
		if newTotal > 0 {
			newAvg = roundRating((restaurant.Rating*float64(n) - float64(review.Rating)) / float64(newTotal))
		}
		return s.restaurants.UpdateAggregates(gctx, restaurant.ID, newAvg, -1)
	})
	return g.Wait()
}
