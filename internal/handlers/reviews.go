package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

// ReviewHandler provides HTTP handlers for reviews.
type ReviewHandler struct {
	reviewService     *services.ReviewService
	restaurantService *services.RestaurantService
	uploadService     *services.UploadService
}

func NewReviewHandler(reviewService *services.ReviewService, restaurantService *services.RestaurantService, uploadService *services.UploadService) *ReviewHandler {
	return &ReviewHandler{
		reviewService:     reviewService,
		restaurantService: restaurantService,
		uploadService:     uploadService,
	}
}

// ReviewRouter registers review routes on the given router.
func ReviewRouter(r chi.Router, reviewService *services.ReviewService, restaurantService *services.RestaurantService, uploadService *services.UploadService, auth func(http.Handler) http.Handler) {
	handler := NewReviewHandler(reviewService, restaurantService, uploadService)

	r.Get("/recent", handler.Recent)
	r.Get("/{restaurantID}", handler.ListByRestaurant)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Post("/", handler.Create)
		r.Post("/upload/{restaurantID}", handler.Upload)
		r.Patch("/{reviewID}", handler.Update)
		r.Delete("/{reviewID}", handler.Delete)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth, RequireAdmin)
		r.Get("/", handler.List)
	})
}

// UserReviewRouter registers the per-user review listing under the
// users mount.
func UserReviewRouter(r chi.Router, reviewService *services.ReviewService, auth func(http.Handler) http.Handler) {
	handler := &ReviewHandler{reviewService: reviewService}
	r.With(auth).Get("/{userID}/reviews", handler.ListByUser)
}

// restaurantExists fails when the id does not resolve to a restaurant.
func (h *ReviewHandler) restaurantExists(id string) validate.Rule {
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

type reviewCreateRequest struct {
	RestaurantID string        `json:"restaurant_id"`
	Rating       int           `json:"rating"`
	Content      string        `json:"content"`
	Media        []types.Media `json:"media"`
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req reviewCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("restaurant_id",
			validate.Required(req.RestaurantID),
			validate.ObjectID(req.RestaurantID),
			h.restaurantExists(req.RestaurantID)).
		Field("content", validate.Length(req.Content, 0, 2000)).
		Field("media", validMedia(req.Media))
	if req.Rating != 0 {
		schema.Field("rating", validate.Range(req.Rating, 1, 5))
	}
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	restaurantID, _ := primitive.ObjectIDFromHex(req.RestaurantID)
	review, err := h.reviewService.Create(r.Context(), types.Review{
		RestaurantID: restaurantID,
		UserID:       actor.ID,
		Rating:       req.Rating,
		Content:      req.Content,
		Media:        req.Media,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create review")
		return
	}
	writeJSON(w, http.StatusCreated, DataResponse{Message: "create review success", Data: review})
}

func (h *ReviewHandler) ListByRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := parseListParams(r, "created_at", "updated_at", "rating")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, total, err := h.reviewService.ListByRestaurant(r.Context(), restaurantID, params)
	if err != nil {
		writeServiceError(w, err, "failed to list reviews")
		return
	}
	writeList(w, reviews, params, total)
}

// List returns one page of all reviews. Admin only.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r, "created_at", "updated_at", "rating")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, total, err := h.reviewService.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, err, "failed to list reviews")
		return
	}
	writeList(w, reviews, params, total)
}

// ListByUser returns one page of the reviews written by one user.
func (h *ReviewHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseObjectIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := parseListParams(r, "created_at", "updated_at", "rating")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, total, err := h.reviewService.ListByUser(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, err, "failed to list reviews")
		return
	}
	writeList(w, reviews, params, total)
}

func (h *ReviewHandler) Recent(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviewService.Recent(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list recent reviews")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: reviews})
}

type reviewUpdateRequest struct {
	Rating  *int           `json:"rating"`
	Content *string        `json:"content"`
	Media   *[]types.Media `json:"media"`
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseObjectIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req reviewUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := bson.M{}
	schema := validate.New()
	if req.Rating != nil {
		schema.Field("rating", validate.Range(*req.Rating, 1, 5))
		fields["rating"] = *req.Rating
	}
	if req.Content != nil {
		schema.Field("content", validate.Length(*req.Content, 0, 2000))
		fields["content"] = *req.Content
	}
	if req.Media != nil {
		schema.Field("media", validMedia(*req.Media))
		fields["media"] = *req.Media
	}
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	review, err := h.reviewService.Update(r.Context(), id, actor.ID, fields)
	if err != nil {
		writeServiceError(w, err, "failed to update review")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update review success", Data: review})
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseObjectIDParam(r, "reviewID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	isAdmin := actor.RoleID == types.RoleAdmin
	if err := h.reviewService.Delete(r.Context(), id, actor.ID, isAdmin); err != nil {
		writeServiceError(w, err, "failed to delete review")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete review success"})
}

// Upload stores review media scoped to an existing restaurant.
func (h *ReviewHandler) Upload(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.restaurantService.GetByID(r.Context(), restaurantID); err != nil {
		writeServiceError(w, err, "failed to load restaurant")
		return
	}

	uploadMedia(w, r, h.uploadService, services.UploadReview)
}
