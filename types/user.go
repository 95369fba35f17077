package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VerifyStatus tracks the email verification state of an account.
type VerifyStatus int

const (
	VerifyUnverified VerifyStatus = iota
	VerifyVerified
	VerifyBanned
)

// User represents an account in the system.
// The password hash and the token/expiry pairs are never exposed in
// API responses; repositories project them away on read paths.
type User struct {
	ID primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`

	Name        string    `json:"name" bson:"name"`
	Email       string    `json:"email" bson:"email"`
	DateOfBirth time.Time `json:"date_of_birth" bson:"date_of_birth"`

	// Password stores the bcrypt hash, never the plaintext.
	Password string `json:"-" bson:"password"`

	EmailVerifyToken        string     `json:"-" bson:"email_verify_token"`
	EmailVerifyExpiredAt    *time.Time `json:"-" bson:"email_verify_expired_at"`
	ForgotPasswordToken     string     `json:"-" bson:"forgot_password_token"`
	ForgotPasswordExpiredAt *time.Time `json:"-" bson:"forgot_password_expired_at"`

	Verify   VerifyStatus `json:"verify" bson:"verify"`
	Bio      string       `json:"bio" bson:"bio"`
	Username string       `json:"username" bson:"username"`
	Avatar   string       `json:"avatar" bson:"avatar"`
	Cover    string       `json:"cover" bson:"cover"`

	RoleID RoleType `json:"role_id" bson:"role_id"`

	// IsActive is 1 for live accounts and 0 for soft-deleted ones.
	IsActive  int  `json:"is_active" bson:"is_active"`
	IsDeleted bool `json:"is_deleted" bson:"is_deleted"`

	// Role is populated by the role lookup on read paths; it is never
	// written to the users collection.
	Role *Role `json:"role,omitempty" bson:"role,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// NewUser fills default fields for a partially specified user.
func NewUser(user User) User {
	now := time.Now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.DateOfBirth.IsZero() {
		user.DateOfBirth = now
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	if user.IsActive == 0 {
		user.IsActive = 1
	}
	return user
}
