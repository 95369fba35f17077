package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Menu is a priced item offered by exactly one restaurant.
type Menu struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	RestaurantID primitive.ObjectID `json:"restaurant_id" bson:"restaurant_id"`

	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	Price       float64 `json:"price" bson:"price"`
	Media       []Media `json:"media" bson:"media"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewMenu fills default fields for a partially specified menu item.
func NewMenu(menu Menu) Menu {
	now := time.Now()
	if menu.ID.IsZero() {
		menu.ID = primitive.NewObjectID()
	}
	if menu.Media == nil {
		menu.Media = []Media{}
	}
	if menu.CreatedAt.IsZero() {
		menu.CreatedAt = now
	}
	if menu.UpdatedAt.IsZero() {
		menu.UpdatedAt = now
	}
	return menu
}
