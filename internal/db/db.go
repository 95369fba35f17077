package db

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/foodmap/apiserver/config"
)

const defaultPingTimeout = 5 * time.Second

// Collection names used by the repositories.
const (
	CollectionUsers       = "users"
	CollectionRoles       = "roles"
	CollectionRestaurants = "restaurants"
	CollectionReviews     = "reviews"
	CollectionBookmarks   = "bookmarks"
	CollectionMenus       = "menus"
)

// DB wraps the Mongo client and the application database.
type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

func Open(ctx context.Context, cfg config.Config) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Database.URI))
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &DB{
		client:   client,
		database: client.Database(cfg.Database.DBName),
	}, nil
}

// Close disconnects the underlying client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// Database exposes the underlying database handle.
func (d *DB) Database() *mongo.Database {
	return d.database
}

func (d *DB) Users() *mongo.Collection       { return d.database.Collection(CollectionUsers) }
func (d *DB) Roles() *mongo.Collection       { return d.database.Collection(CollectionRoles) }
func (d *DB) Restaurants() *mongo.Collection { return d.database.Collection(CollectionRestaurants) }
func (d *DB) Reviews() *mongo.Collection     { return d.database.Collection(CollectionReviews) }
func (d *DB) Bookmarks() *mongo.Collection   { return d.database.Collection(CollectionBookmarks) }
func (d *DB) Menus() *mongo.Collection       { return d.database.Collection(CollectionMenus) }
