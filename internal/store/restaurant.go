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

const featuredCount = 10

// RestaurantRepository handles persistence for restaurants.
type RestaurantRepository struct {
	db *db.DB
}

func NewRestaurantRepository(db *db.DB) *RestaurantRepository {
	return &RestaurantRepository{db: db}
}

func restaurantLookups() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionBookmarks,
			"localField":   "_id",
			"foreignField": "restaurant_id",
			"as":           "bookmarks",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionMenus,
			"localField":   "_id",
			"foreignField": "restaurant_id",
			"as":           "menus",
		}}},
	}
}

func (r *RestaurantRepository) Create(ctx context.Context, restaurant types.Restaurant) (types.Restaurant, error) {
	restaurant = types.NewRestaurant(restaurant)
	if _, err := r.db.Restaurants().InsertOne(ctx, restaurant); err != nil {
		return types.Restaurant{}, err
	}
	return restaurant, nil
}

func (r *RestaurantRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error) {
	var restaurant types.Restaurant
	err := r.db.Restaurants().FindOne(ctx, bson.M{"_id": id}).Decode(&restaurant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Restaurant{}, ErrNotFound
		}
		return types.Restaurant{}, err
	}
	return restaurant, nil
}

// GetDetail returns one restaurant with its bookmarks and menus joined.
func (r *RestaurantRepository) GetDetail(ctx context.Context, id primitive.ObjectID) (types.Restaurant, error) {
	pipeline := []bson.D{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}
	pipeline = append(pipeline, restaurantLookups()...)

	cursor, err := r.db.Restaurants().Aggregate(ctx, pipeline)
	if err != nil {
		return types.Restaurant{}, err
	}
	defer cursor.Close(ctx)

	var restaurants []types.Restaurant
	if err := cursor.All(ctx, &restaurants); err != nil {
		return types.Restaurant{}, err
	}
	if len(restaurants) == 0 {
		return types.Restaurant{}, ErrNotFound
	}
	return restaurants[0], nil
}

// List returns one page of restaurants plus the total matching the
// filter. Search matches the name and address; Rating narrows to one
// star bucket. The page query and the count run concurrently.
func (r *RestaurantRepository) List(ctx context.Context, params ListParams) ([]types.Restaurant, int64, error) {
	params = params.Normalize()

	filter := bson.M{}
	if params.Search != "" {
		search := caseInsensitive(params.Search)
		filter["$or"] = []bson.M{
			{"name": search},
			{"address": search},
		}
	}
	if bucket := ratingBucket(params.Rating); bucket != nil {
		filter["rating"] = bucket
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: filter}},
		params.sortStage(),
		{{Key: "$skip", Value: params.Skip()}},
		{{Key: "$limit", Value: int64(params.Limit)}},
	}
	pipeline = append(pipeline, restaurantLookups()...)

	var (
		restaurants []types.Restaurant
		total       int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor, err := r.db.Restaurants().Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &restaurants)
	})
	g.Go(func() error {
		var err error
		total, err = r.db.Restaurants().CountDocuments(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if restaurants == nil {
		restaurants = []types.Restaurant{}
	}
	return restaurants, total, nil
}

// Featured returns the ten highest rated restaurants with their
// bookmarks and menus joined.
func (r *RestaurantRepository) Featured(ctx context.Context) ([]types.Restaurant, error) {
	pipeline := []bson.D{
		{{Key: "$sort", Value: bson.D{{Key: "rating", Value: -1}}}},
		{{Key: "$limit", Value: featuredCount}},
	}
	pipeline = append(pipeline, restaurantLookups()...)

	cursor, err := r.db.Restaurants().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var restaurants []types.Restaurant
	if err := cursor.All(ctx, &restaurants); err != nil {
		return nil, err
	}
	if restaurants == nil {
		restaurants = []types.Restaurant{}
	}
	return restaurants, nil
}

// UpdateFields applies a partial $set update and bumps updated_at.
func (r *RestaurantRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{"updated_at": time.Now()}
	for key, value := range fields {
		set[key] = value
	}
	result, err := r.db.Restaurants().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAggregates sets the precomputed rating and shifts the review
// count by totalDelta in one update.
func (r *RestaurantRepository) UpdateAggregates(ctx context.Context, id primitive.ObjectID, rating float64, totalDelta int) error {
	update := bson.M{
		"$set": bson.M{"rating": rating, "updated_at": time.Now()},
		"$inc": bson.M{"total_reviews": totalDelta},
	}
	_, err := r.db.Restaurants().UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *RestaurantRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.db.Restaurants().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
