package types

import "go.mongodb.org/mongo-driver/bson/primitive"

// RoleType is a fixed numeric capability tier referenced by every user.
type RoleType int

const (
	RoleUser RoleType = iota
	RoleAdmin
)

// ValidRoleType reports whether value is a member of the role enumeration.
func ValidRoleType(value RoleType) bool {
	return value == RoleUser || value == RoleAdmin
}

// Role pairs a numeric role identifier with a unique display name.
type Role struct {
	ID       primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	RoleID   RoleType           `json:"role_id" bson:"role_id"`
	RoleName string             `json:"role_name" bson:"role_name"`
}

// NewRole fills default fields for a partially specified role.
func NewRole(role Role) Role {
	if role.ID.IsZero() {
		role.ID = primitive.NewObjectID()
	}
	return role
}
