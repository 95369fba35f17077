package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// userFromContext returns the authenticated user injected by RequireAuth.
func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok {
		return types.User{}, errors.New("missing user")
	}
	return user, nil
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// ValidationErrorResponse is the 422 payload with per-field messages.
type ValidationErrorResponse struct {
	Status  int                  `json:"status"`
	Message string               `json:"message"`
	Errors  validate.FieldErrors `json:"errors"`
}

// Pagination echoes the resolved paging values with the total count.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// ListResponse is the paginated list envelope.
type ListResponse struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// DataResponse is the mutation/detail envelope.
type DataResponse struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: status, Message: message})
}

func writeValidationErrors(w http.ResponseWriter, errs validate.FieldErrors) {
	writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{
		Status:  http.StatusUnprocessableEntity,
		Message: "validation error",
		Errors:  errs,
	})
}

func writeList(w http.ResponseWriter, data any, params store.ListParams, total int64) {
	writeJSON(w, http.StatusOK, ListResponse{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// NotFound is the JSON handler for unmatched routes.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "route not found")
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseListParams reads the shared paging/sorting/search query
// parameters. A sort field outside the allow-list falls back to
// created_at rather than erroring.
func parseListParams(r *http.Request, allowedSortFields ...string) (store.ListParams, error) {
	params := store.ListParams{}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return store.ListParams{}, errors.New("invalid page")
		}
		params.Page = page
	}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return store.ListParams{}, errors.New("invalid limit")
		}
		params.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("rating")); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil || rating < 1 || rating > 5 {
			return store.ListParams{}, errors.New("invalid rating")
		}
		params.Rating = rating
	}

	sortBy := strings.TrimSpace(query.Get("sortBy"))
	for _, allowed := range allowedSortFields {
		if sortBy == allowed {
			params.SortBy = sortBy
			break
		}
	}
	params.SortOrder = strings.ToLower(strings.TrimSpace(query.Get("sortOrder")))
	params.Search = strings.TrimSpace(query.Get("search"))

	return params.Normalize(), nil
}

func parseObjectIDParam(r *http.Request, name string) (primitive.ObjectID, error) {
	raw := chi.URLParam(r, name)
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, errors.New("invalid " + name)
	}
	return id, nil
}
