package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Weekday names accepted in weekly opening hours.
var DaysOfWeek = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// ValidDayOfWeek reports whether day names a weekday.
func ValidDayOfWeek(day string) bool {
	for _, d := range DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// WeeklyOpeningHours is one named weekday with open/close times.
type WeeklyOpeningHours struct {
	DayOfWeek string `json:"day_of_week" bson:"day_of_week"`
	Open      string `json:"open" bson:"open"`
	Close     string `json:"close" bson:"close"`
}

// SpecialOpeningDay overrides the weekly schedule for a single date.
type SpecialOpeningDay struct {
	Date  time.Time `json:"date" bson:"date"`
	Open  string    `json:"open" bson:"open"`
	Close string    `json:"close" bson:"close"`
	Note  string    `json:"note" bson:"note"`
}

// Restaurant represents a listed restaurant.
//
// Rating is the arithmetic mean of all live reviews rounded to one decimal,
// and TotalReviews their count. Both are maintained incrementally by the
// review mutation paths rather than recomputed on read.
type Restaurant struct {
	ID primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`

	Name        string `json:"name" bson:"name"`
	Avatar      string `json:"avatar" bson:"avatar"`
	Description string `json:"description" bson:"description"`
	Address     string `json:"address" bson:"address"`
	PhoneNumber string `json:"phone_number" bson:"phone_number"`
	Website     string `json:"website" bson:"website"`

	Rating       float64 `json:"rating" bson:"rating"`
	TotalReviews int     `json:"total_reviews" bson:"total_reviews"`

	Media              []Media              `json:"media" bson:"media"`
	WeeklyOpeningHours []WeeklyOpeningHours `json:"weekly_opening_hours" bson:"weekly_opening_hours"`
	SpecialOpeningDays []SpecialOpeningDay  `json:"special_opening_days" bson:"special_opening_days"`

	// Bookmarks and Menus are populated by lookups on read paths.
	Bookmarks []Bookmark `json:"bookmarks,omitempty" bson:"bookmarks,omitempty"`
	Menus     []Menu     `json:"menus,omitempty" bson:"menus,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewRestaurant fills default fields for a partially specified restaurant.
func NewRestaurant(restaurant Restaurant) Restaurant {
	now := time.Now()
	if restaurant.ID.IsZero() {
		restaurant.ID = primitive.NewObjectID()
	}
	if restaurant.Media == nil {
		restaurant.Media = []Media{}
	}
	if restaurant.WeeklyOpeningHours == nil {
		restaurant.WeeklyOpeningHours = []WeeklyOpeningHours{}
	}
	if restaurant.SpecialOpeningDays == nil {
		restaurant.SpecialOpeningDays = []SpecialOpeningDay{}
	}
	if restaurant.CreatedAt.IsZero() {
		restaurant.CreatedAt = now
	}
	if restaurant.UpdatedAt.IsZero() {
		restaurant.UpdatedAt = now
	}
	return restaurant
}
