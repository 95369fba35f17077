package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/internal/db"
	"github.com/foodmap/apiserver/internal/handlers"
	"github.com/foodmap/apiserver/internal/mail"
	"github.com/foodmap/apiserver/internal/mq"
	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/storage"
	"github.com/foodmap/apiserver/internal/store"
)

// Server wraps the HTTP server, the router, and the shared clients that
// need closing on shutdown.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *db.DB
	broker     mq.Backend
}

// New constructs a fully wired Server: database, object storage, mail
// channel, repositories, services, and routes.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	database, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStore, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = database.Close(ctx)
		return nil, err
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		_ = database.Close(ctx)
		return nil, err
	}

	broker, mailer, err := newMailer(ctx, cfg)
	if err != nil {
		_ = database.Close(ctx)
		return nil, err
	}

	userRepo := store.NewUserRepository(database)
	restaurantRepo := store.NewRestaurantRepository(database)
	reviewRepo := store.NewReviewRepository(database)
	menuRepo := store.NewMenuRepository(database)
	bookmarkRepo := store.NewBookmarkRepository(database)
	roleRepo := store.NewRoleRepository(database)

	tokenService := services.NewTokenService(cfg.JWT)
	uploadService := services.NewUploadService(objectStore, cfg.Storage.PublicURL)
	userService := services.NewUserService(userRepo, tokenService, mailer, cfg.ClientURL, cfg.JWT.ResetTTL)
	restaurantService := services.NewRestaurantService(restaurantRepo, uploadService)
	reviewService := services.NewReviewService(reviewRepo, restaurantRepo, uploadService)
	menuService := services.NewMenuService(menuRepo, uploadService)
	bookmarkService := services.NewBookmarkService(bookmarkRepo)
	roleService := services.NewRoleService(roleRepo)

	auth := handlers.RequireAuth(tokenService, userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.NotFound(handlers.NotFound)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			handlers.UserRouter(r, userService, auth)
			handlers.UserReviewRouter(r, reviewService, auth)
		})
		r.Route("/restaurants", func(r chi.Router) {
			handlers.RestaurantRouter(r, restaurantService, uploadService, auth)
			handlers.RestaurantMenuRouter(r, menuService, auth)
		})
		r.Route("/reviews", func(r chi.Router) {
			handlers.ReviewRouter(r, reviewService, restaurantService, uploadService, auth)
		})
		r.Route("/menu", func(r chi.Router) {
			handlers.MenuRouter(r, menuService, restaurantService, uploadService, auth)
		})
		r.Route("/bookmarks", func(r chi.Router) {
			handlers.BookmarkRouter(r, bookmarkService, restaurantService, auth)
		})
		r.Route("/roles", func(r chi.Router) {
			handlers.RoleRouter(r, roleService, auth)
		})
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         database,
		broker:     broker,
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	default:
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return storage.NewStorage(client), nil
	}
}

// newMailer picks the broker-backed mailer when a broker is configured
// and falls back to the log mailer otherwise.
func newMailer(ctx context.Context, cfg config.Config) (mq.Backend, mail.Mailer, error) {
	switch cfg.MQ.Backend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		return client, mail.NewMQMailer(mq.New(client), cfg.Mail.Channel, cfg.Mail.From), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, nil, err
		}
		return client, mail.NewMQMailer(mq.New(client), cfg.Mail.Channel, cfg.Mail.From), nil
	case "":
		return nil, mail.LogMailer{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	log.Printf("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the shared clients.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		if cerr := s.broker.Close(); err == nil {
			err = cerr
		}
	}
	if s.db != nil {
		if cerr := s.db.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
