package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bookmark is a (user, restaurant) pair representing a saved restaurant.
type Bookmark struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID       primitive.ObjectID `json:"user_id" bson:"user_id"`
	RestaurantID primitive.ObjectID `json:"restaurant_id" bson:"restaurant_id"`

	// Restaurants is populated by the restaurant lookup on read paths.
	Restaurants []Restaurant `json:"restaurants,omitempty" bson:"restaurants,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewBookmark fills default fields for a partially specified bookmark.
func NewBookmark(bookmark Bookmark) Bookmark {
	now := time.Now()
	if bookmark.ID.IsZero() {
		bookmark.ID = primitive.NewObjectID()
	}
	if bookmark.CreatedAt.IsZero() {
		bookmark.CreatedAt = now
	}
	if bookmark.UpdatedAt.IsZero() {
		bookmark.UpdatedAt = now
	}
	return bookmark
}
