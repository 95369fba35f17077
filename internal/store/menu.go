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

// MenuRepository handles persistence for menu items.
type MenuRepository struct {
	db *db.DB
}

func NewMenuRepository(db *db.DB) *MenuRepository {
	return &MenuRepository{db: db}
}

func (r *MenuRepository) Create(ctx context.Context, menu types.Menu) (types.Menu, error) {
	menu = types.NewMenu(menu)
	if _, err := r.db.Menus().InsertOne(ctx, menu); err != nil {
		return types.Menu{}, err
	}
	return menu, nil
}

func (r *MenuRepository) GetByID(ctx context.Context, id primitive.ObjectID) (types.Menu, error) {
	var menu types.Menu
	err := r.db.Menus().FindOne(ctx, bson.M{"_id": id}).Decode(&menu)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Menu{}, ErrNotFound
		}
		return types.Menu{}, err
	}
	return menu, nil
}

// ListByRestaurant returns one page of a restaurant's menu items plus
// the total count. The page query and the count run concurrently.
func (r *MenuRepository) ListByRestaurant(ctx context.Context, restaurantID primitive.ObjectID, params ListParams) ([]types.Menu, int64, error) {
	params = params.Normalize()

	filter := bson.M{"restaurant_id": restaurantID}
	if params.Search != "" {
		filter["name"] = caseInsensitive(params.Search)
	}

	pipeline := []bson.D{
		{{Key: "$match", Value: filter}},
		params.sortStage(),
		{{Key: "$skip", Value: params.Skip()}},
		{{Key: "$limit", Value: int64(params.Limit)}},
	}

	var (
		menus []types.Menu
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor, err := r.db.Menus().Aggregate(gctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &menus)
	})
	g.Go(func() error {
		var err error
		total, err = r.db.Menus().CountDocuments(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if menus == nil {
		menus = []types.Menu{}
	}
	return menus, total, nil
}

// UpdateFields applies a partial $set update and bumps updated_at.
func (r *MenuRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	set := bson.M{"updated_at": time.Now()}
	for key, value := range fields {
		set[key] = value
	}
	result, err := r.db.Menus().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MenuRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.db.Menus().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
