package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/foodmap/apiserver/internal/db"
	"github.com/foodmap/apiserver/types"
)

// BookmarkRepository handles persistence for bookmarks.
type BookmarkRepository struct {
	db *db.DB
}

func NewBookmarkRepository(db *db.DB) *BookmarkRepository {
	return &BookmarkRepository{db: db}
}

func (r *BookmarkRepository) Create(ctx context.Context, bookmark types.Bookmark) (types.Bookmark, error) {
	bookmark = types.NewBookmark(bookmark)
	if _, err := r.db.Bookmarks().InsertOne(ctx, bookmark); err != nil {
		return types.Bookmark{}, err
	}
	return bookmark, nil
}

// Get returns the bookmark for one (user, restaurant) pair.
func (r *BookmarkRepository) Get(ctx context.Context, userID, restaurantID primitive.ObjectID) (types.Bookmark, error) {
	var bookmark types.Bookmark
	filter := bson.M{"user_id": userID, "restaurant_id": restaurantID}
	err := r.db.Bookmarks().FindOne(ctx, filter).Decode(&bookmark)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Bookmark{}, ErrNotFound
		}
		return types.Bookmark{}, err
	}
	return bookmark, nil
}

// ListByUser returns all of one user's bookmarks with the bookmarked
// restaurants joined, newest first.
func (r *BookmarkRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]types.Bookmark, error) {
	pipeline := []bson.D{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionRestaurants,
			"localField":   "restaurant_id",
			"foreignField": "_id",
			"as":           "restaurants",
		}}},
	}

	cursor, err := r.db.Bookmarks().Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var bookmarks []types.Bookmark
	if err := cursor.All(ctx, &bookmarks); err != nil {
		return nil, err
	}
	if bookmarks == nil {
		bookmarks = []types.Bookmark{}
	}
	return bookmarks, nil
}

// Delete removes the bookmark identified by the (user, restaurant)
// pair, so a user can only ever unbookmark their own entry.
func (r *BookmarkRepository) Delete(ctx context.Context, userID, restaurantID primitive.ObjectID) error {
	filter := bson.M{"user_id": userID, "restaurant_id": restaurantID}
	result, err := r.db.Bookmarks().DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
