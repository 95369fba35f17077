package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewUser is the public slice of the authoring user joined into reviews.
type ReviewUser struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Username string             `json:"username" bson:"username"`
	Avatar   string             `json:"avatar" bson:"avatar"`
}

// ReviewRestaurant is the public slice of the restaurant joined into
// recent-review listings.
type ReviewRestaurant struct {
	ID     primitive.ObjectID `json:"_id" bson:"_id"`
	Name   string             `json:"name" bson:"name"`
	Avatar string             `json:"avatar" bson:"avatar"`
}

// Review represents a rated write-up of one restaurant by one user.
type Review struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	RestaurantID primitive.ObjectID `json:"restaurant_id,omitempty" bson:"restaurant_id,omitempty"`
	UserID       primitive.ObjectID `json:"user_id,omitempty" bson:"user_id,omitempty"`

	Rating  int     `json:"rating" bson:"rating"`
	Content string  `json:"content" bson:"content"`
	Media   []Media `json:"media" bson:"media"`

	// User and Restaurant are populated by lookups on read paths.
	User       *ReviewUser       `json:"user,omitempty" bson:"user,omitempty"`
	Restaurant *ReviewRestaurant `json:"restaurant,omitempty" bson:"restaurant,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewReview fills default fields for a partially specified review.
func NewReview(review Review) Review {
	now := time.Now()
	if review.ID.IsZero() {
		review.ID = primitive.NewObjectID()
	}
	if review.Rating == 0 {
		review.Rating = 5
	}
	if review.Media == nil {
		review.Media = []Media{}
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	if review.UpdatedAt.IsZero() {
		review.UpdatedAt = now
	}
	return review
}
