package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
)

// BookmarkHandler provides HTTP handlers for bookmarks.
type BookmarkHandler struct {
	bookmarkService   *services.BookmarkService
	restaurantService *services.RestaurantService
}

func NewBookmarkHandler(bookmarkService *services.BookmarkService, restaurantService *services.RestaurantService) *BookmarkHandler {
	return &BookmarkHandler{
		bookmarkService:   bookmarkService,
		restaurantService: restaurantService,
	}
}

// BookmarkRouter registers bookmark routes on the given router. All of
// them act on the authenticated user's own bookmarks.
func BookmarkRouter(r chi.Router, bookmarkService *services.BookmarkService, restaurantService *services.RestaurantService, auth func(http.Handler) http.Handler) {
	handler := NewBookmarkHandler(bookmarkService, restaurantService)

	r.Use(auth)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Delete("/{restaurantID}", handler.Delete)
}

func (h *BookmarkHandler) restaurantExists(id string) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		objID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil
		}
		_, err = h.restaurantService.GetByID(ctx, objID)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("restaurant does not exist")
		}
		return err
	})
}

type bookmarkCreateRequest struct {
	RestaurantID string `json:"restaurant_id"`
}

func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req bookmarkCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("restaurant_id",
			validate.Required(req.RestaurantID),
			validate.ObjectID(req.RestaurantID),
			h.restaurantExists(req.RestaurantID))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	restaurantID, _ := primitive.ObjectIDFromHex(req.RestaurantID)
	bookmark, err := h.bookmarkService.Create(r.Context(), actor.ID, restaurantID)
	if err != nil {
		writeServiceError(w, err, "failed to create bookmark")
		return
	}
	writeJSON(w, http.StatusCreated, DataResponse{Message: "create bookmark success", Data: bookmark})
}

func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bookmarks, err := h.bookmarkService.ListByUser(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err, "failed to list bookmarks")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: bookmarks})
}

func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bookmarkService.Delete(r.Context(), actor.ID, restaurantID); err != nil {
		writeServiceError(w, err, "failed to delete bookmark")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete bookmark success"})
}
