package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/foodmap/apiserver/internal/db"
	"github.com/foodmap/apiserver/types"
)

// RoleRepository handles persistence for roles.
type RoleRepository struct {
	db *db.DB
}

func NewRoleRepository(db *db.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) Create(ctx context.Context, role types.Role) (types.Role, error) {
	role = types.NewRole(role)
	if _, err := r.db.Roles().InsertOne(ctx, role); err != nil {
		return types.Role{}, err
	}
	return role, nil
}

// Upsert writes the role keyed by its numeric identifier, creating it
// when absent. Used by seeding.
func (r *RoleRepository) Upsert(ctx context.Context, role types.Role) error {
	filter := bson.M{"role_id": role.RoleID}
	update := bson.M{"$set": bson.M{"role_name": role.RoleName}}
	opts := options.Update().SetUpsert(true)
	_, err := r.db.Roles().UpdateOne(ctx, filter, update, opts)
	return err
}

func (r *RoleRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Role, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *RoleRepository) GetByRoleID(ctx context.Context, roleID types.RoleType) (types.Role, error) {
	return r.findOne(ctx, bson.M{"role_id": roleID})
}

func (r *RoleRepository) GetByName(ctx context.Context, roleName string) (types.Role, error) {
	return r.findOne(ctx, bson.M{"role_name": roleName})
}

func (r *RoleRepository) findOne(ctx context.Context, filter bson.M) (types.Role, error) {
	var role types.Role
	err := r.db.Roles().FindOne(ctx, filter).Decode(&role)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Role{}, ErrNotFound
		}
		return types.Role{}, err
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]types.Role, error) {
	opts := options.Find().SetSort(bson.D{{Key: "role_id", Value: 1}})
	cursor, err := r.db.Roles().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var roles []types.Role
	if err := cursor.All(ctx, &roles); err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []types.Role{}
	}
	return roles, nil
}

func (r *RoleRepository) Update(ctx context.Context, id primitive.ObjectID, roleName string) error {
	result, err := r.db.Roles().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"role_name": roleName}})
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RoleRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.db.Roles().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
