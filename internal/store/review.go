package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/foodmap/apiserver/internal/db"
	"github.com/foodmap/apiserver/types"
)

const recentReviewCount = 10

// ReviewRepository handles persistence for reviews.
type ReviewRepository struct {
	db *db.DB
}

func NewReviewRepository(db *db.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func reviewUserLookup() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionUsers,
			"localField":   "user_id",
			"foreignField": "_id",
			"as":           "user",
			"pipeline": []bson.D{
				{{Key: "$project", Value: bson.M{
					"name":     1,
					"username": 1,
					"avatar":   1,
				}}},
			},
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$user",
			"preserveNullAndEmptyArrays": true,
		}}},
	}
}

func reviewRestaurantLookup() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionRestaurants,
			"localField":   "restaurant_id",
			"foreignField": "_id",
			"as":           "restaurant",
			"pipeline": []bson.D{
				{{Key: "$project", Value: bson.M{
					"name":   1,
					"avatar": 1,
				}}},
			},
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$restaurant",
			"preserveNullAndEmptyArrays": true,
		}}},
	}
}

func (r *ReviewRepository) Create(ctx context.Context, review types.Review) (types.Review, error) {
	review = types.NewReview(review)
	if _, err := r.db.Reviews().InsertOne(ctx, review); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

func (r *ReviewRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Review, error) {
	var review types.Review
	err := r.db.Reviews().FindOne(ctx, bson.M{"_id": id}).Decode(&review)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// listPage runs one paged review query and the matching count
// concurrently, appending the given lookup stages after the page is cut.
func (r *ReviewRepository) listPage(ctx context.Context, filter bson.M, params ListParams, lookups []bson.D) ([]types.Review, int64, error) {
	pipeline := []bson.D{
		{{Key: "$match", Value: filter}},
		params.sortStage(),
		{{Key: "$skip", Value: params.Skip()}},
		{{Key: "$limit", Value: int64(params.Limit)}},
	}
	pipeline = append(pipeline, lookups...)

	var (
		reviews []types.Review
		total   int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor, err := r.db.Reviews().Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &reviews)
	})
	g.Go(func() error {
		var err error
		total, err = r.db.Reviews().CountDocuments(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if reviews == nil {
		reviews = []types.Review{}
	}
	return reviews, total, nil
}

// List returns one page of all reviews with both the restaurant and the
// authoring user joined.
func (r *ReviewRepository) List(ctx context.Context, params ListParams) ([]types.Review, int64, error) {
	params = params.Normalize()

	filter := bson.M{}
	if bucket := ratingBucket(params.Rating); bucket != nil {
		filter["rating"] = bucket
	}

	lookups := append(reviewRestaurantLookup(), reviewUserLookup()...)
	return r.listPage(ctx, filter, params, lookups)
}

// ListByRestaurant returns one page of a restaurant's reviews with the
// authoring users joined, plus the total count.
func (r *ReviewRepository) ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params ListParams) ([]types.Review, int64, error) {
	params = params.Normalize()

	filter := bson.M{"restaurant_id": restaurantID}
	if bucket := ratingBucket(params.Rating); bucket != nil {
		filter["rating"] = bucket
	}

	return r.listPage(ctx, filter, params, reviewUserLookup())
}

// ListByUser returns one page of one user's reviews with the reviewed
// restaurants joined.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, params ListParams) ([]types.Review, int64, error) {
	params = params.Normalize()

	filter := bson.M{"user_id": userID}
	return r.listPage(ctx, filter, params, reviewRestaurantLookup())
}

// Recent returns the ten newest reviews across all restaurants with
// both the restaurant and the authoring user joined.
func (r *ReviewRepository) Recent(ctx context.Context) ([]types.Review, error) {
	pipeline := []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$limit", Value: recentReviewCount}},
	}
	pipeline = append(pipeline, reviewRestaurantLookup()...)
	pipeline = append(pipeline, reviewUserLookup()...)

	cursor, err := r.db.Reviews().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reviews []types.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []types.Review{}
	}
	return reviews, nil
}

// UpdateFields applies a partial $set update and bumps updated_at.
func (r *ReviewRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{"updated_at": time.Now()}
	for key, value := range fields {
		set[key] = value
	}
	result, err := r.db.Reviews().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.db.Reviews().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
