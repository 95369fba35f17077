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

// userSecretProjection strips credential material from read-path results.
var userSecretProjection = bson.D{{Key: "$project", Value: bson.M{
	"password":                   0,
	"email_verify_token":         0,
	"email_verify_expired_at":    0,
	"forgot_password_token":      0,
	"forgot_password_expired_at": 0,
	"role.__v":                   0,
}}}

func userRoleLookup() []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.CollectionRoles,
			"localField":   "role_id",
			"foreignField": "role_id",
			"as":           "role",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$role",
			"preserveNullAndEmptyArrays": true,
		}}},
	}
}

// UserRepository handles persistence for users.
type UserRepository struct {
	db *db.DB
}

func NewUserRepository(db *db.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	user = types.NewUser(user)
	if _, err := r.db.Users().InsertOne(ctx, user); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// GetByID returns the raw document including credential fields. It is for
// internal use only; API read paths go through GetDetail.
func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) GetByForgotPasswordToken(ctx context.Context, token string) (types.User, error) {
	return r.findOne(ctx, bson.M{"forgot_password_token": token})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var user types.User
	err := r.db.Users().FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

// GetDetail returns one user with the role joined in and credential
// fields projected away.
func (r *UserRepository) GetDetail(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	pipeline := []bson.D{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}
	pipeline = append(pipeline, userRoleLookup()...)
	pipeline = append(pipeline, userSecretProjection)

	cursor, err := r.db.Users().Aggregate(ctx, pipeline)
	if err != nil {
		return types.User{}, err
	}
	defer cursor.Close(ctx)

	var users []types.User
	if err := cursor.All(ctx, &users); err != nil {
		return types.User{}, err
	}
	if len(users) == 0 {
		return types.User{}, ErrNotFound
	}
	return users[0], nil
}

// List returns one page of users with their roles joined, together with
// the total count matching the filter. The page query and the count run
// concurrently.
func (r *UserRepository) List(ctx context.Context, params ListParams, isActive *int) ([]types.User, int64, error) {
	params = params.Normalize()

	filter := bson.M{}
	if isActive != nil {
		filter["is_active"] = *isActive
	}
	if params.Search != "" {
		search := caseInsensitive(params.Search)
		filter["$or"] = []bson.M{
			{"name": search},
			{"email": search},
			{"username": search},
		}
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: filter}},
		params.sortStage(),
		{{Key: "$skip", Value: params.Skip()}},
		{{Key: "$limit", Value: int64(params.Limit)}},
	}
	pipeline = append(pipeline, userRoleLookup()...)
	pipeline = append(pipeline, userSecretProjection)

	var (
		users []types.User
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor, err := r.db.Users().Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &users)
	})
	g.Go(func() error {
		var err error
		total, err = r.db.Users().CountDocuments(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if users == nil {
		users = []types.User{}
	}
	return users, total, nil
}

// UpdateFields applies a partial $set update and bumps updated_at.
func (r *UserRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{"updated_at": time.Now()}
	for key, value := range fields {
		set[key] = value
	}
	result, err := r.db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the account inactive instead of removing the document.
func (r *UserRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	return r.UpdateFields(ctx, id, bson.M{"is_active": 0})
}

func (r *UserRepository) SetForgotPasswordToken(ctx context.Context, id primitive.ObjectID, token string, expiredAt time.Time) error {
	return r.UpdateFields(ctx, id, bson.M{
		"forgot_password_token":      token,
		"forgot_password_expired_at": expiredAt,
	})
}

// SetPassword stores a new bcrypt hash and clears any pending reset token.
func (r *UserRepository) SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return r.UpdateFields(ctx, id, bson.M{
		"password":                   hash,
		"forgot_password_token":      "",
		"forgot_password_expired_at": nil,
	})
}
