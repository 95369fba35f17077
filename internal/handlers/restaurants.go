package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

// RestaurantHandler provides HTTP handlers for restaurants.
type RestaurantHandler struct {
	restaurantService *services.RestaurantService
	uploadService     *services.UploadService
}

func NewRestaurantHandler(restaurantService *services.RestaurantService, uploadService *services.UploadService) *RestaurantHandler {
	return &RestaurantHandler{
		restaurantService: restaurantService,
		uploadService:     uploadService,
	}
}

// RestaurantRouter registers restaurant routes on the given router.
func RestaurantRouter(r chi.Router, restaurantService *services.RestaurantService, uploadService *services.UploadService, auth func(http.Handler) http.Handler) {
	handler := NewRestaurantHandler(restaurantService, uploadService)

	r.Get("/", handler.List)
	r.Get("/featured", handler.Featured)
	r.Get("/{restaurantID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(auth, RequireAdmin)
		r.Post("/", handler.Create)
		r.Post("/uploads", handler.Upload)
		r.Patch("/{restaurantID}", handler.Update)
		r.Delete("/{restaurantID}", handler.Delete)
	})
}

// validOpeningHours checks every weekly entry in one rule so the whole
// slice reads as a single field in the 422 payload.
func validOpeningHours(hours []types.WeeklyOpeningHours) validate.Rule {
	return validate.Func(func(context.Context) error {
		for i, entry := range hours {
			if !types.ValidDayOfWeek(entry.DayOfWeek) {
				return fmt.Errorf("entry %d: %q is not a weekday", i, entry.DayOfWeek)
			}
			if strings.TrimSpace(entry.Open) == "" || strings.TrimSpace(entry.Close) == "" {
				return fmt.Errorf("entry %d: open and close are required", i)
			}
		}
		return nil
	})
}

func validMedia(media []types.Media) validate.Rule {
	return validate.Func(func(context.Context) error {
		for i, m := range media {
			if strings.TrimSpace(m.URL) == "" {
				return fmt.Errorf("entry %d: url is required", i)
			}
			if m.MediaType != types.MediaTypeImage && m.MediaType != types.MediaTypeVideo {
				return fmt.Errorf("entry %d: invalid media type", i)
			}
		}
		return nil
	})
}

type restaurantCreateRequest struct {
	Name               string                     `json:"name"`
	Avatar             string                     `json:"avatar"`
	Description        string                     `json:"description"`
	Address            string                     `json:"address"`
	PhoneNumber        string                     `json:"phone_number"`
	Website            string                     `json:"website"`
	Media              []types.Media              `json:"media"`
	WeeklyOpeningHours []types.WeeklyOpeningHours `json:"weekly_opening_hours"`
	SpecialOpeningDays []types.SpecialOpeningDay  `json:"special_opening_days"`
}

func (h *RestaurantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req restaurantCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)

	schema := validate.New().
		Field("name", validate.Required(req.Name), validate.Length(req.Name, 1, 255)).
		Field("address", validate.Required(req.Address), validate.Length(req.Address, 1, 500)).
		Field("website", validate.URL(req.Website)).
		Field("avatar", validate.URL(req.Avatar)).
		Field("media", validMedia(req.Media)).
		Field("weekly_opening_hours", validOpeningHours(req.WeeklyOpeningHours))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	restaurant, err := h.restaurantService.Create(r.Context(), types.Restaurant{
		Name:               req.Name,
		Avatar:             req.Avatar,
		Description:        req.Description,
		Address:            req.Address,
		PhoneNumber:        req.PhoneNumber,
		Website:            req.Website,
		Media:              req.Media,
		WeeklyOpeningHours: req.WeeklyOpeningHours,
		SpecialOpeningDays: req.SpecialOpeningDays,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create restaurant")
		return
	}
	writeJSON(w, http.StatusCreated, DataResponse{Message: "create restaurant success", Data: restaurant})
}

func (h *RestaurantHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r, "created_at", "updated_at", "name", "rating", "total_reviews")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	restaurants, total, err := h.restaurantService.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, err, "failed to list restaurants")
		return
	}
	writeList(w, restaurants, params, total)
}

func (h *RestaurantHandler) Featured(w http.ResponseWriter, r *http.Request) {
	restaurants, err := h.restaurantService.Featured(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list featured restaurants")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: restaurants})
}

func (h *RestaurantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	restaurant, err := h.restaurantService.GetDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to load restaurant")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: restaurant})
}

type restaurantUpdateRequest struct {
	Name               *string                     `json:"name"`
	Avatar             *string                     `json:"avatar"`
	Description        *string                     `json:"description"`
	Address            *string                     `json:"address"`
	PhoneNumber        *string                     `json:"phone_number"`
	Website            *string                     `json:"website"`
	Media              *[]types.Media              `json:"media"`
	WeeklyOpeningHours *[]types.WeeklyOpeningHours `json:"weekly_opening_hours"`
	SpecialOpeningDays *[]types.SpecialOpeningDay  `json:"special_opening_days"`
}

func (h *RestaurantHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req restaurantUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := bson.M{}
	schema := validate.New()
	if req.Name != nil {
		schema.Field("name", validate.Required(*req.Name), validate.Length(*req.Name, 1, 255))
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Avatar != nil {
		schema.Field("avatar", validate.URL(*req.Avatar))
		fields["avatar"] = *req.Avatar
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Address != nil {
		schema.Field("address", validate.Required(*req.Address), validate.Length(*req.Address, 1, 500))
		fields["address"] = strings.TrimSpace(*req.Address)
	}
	if req.PhoneNumber != nil {
		fields["phone_number"] = *req.PhoneNumber
	}
	if req.Website != nil {
		schema.Field("website", validate.URL(*req.Website))
		fields["website"] = *req.Website
	}
	if req.Media != nil {
		schema.Field("media", validMedia(*req.Media))
		fields["media"] = *req.Media
	}
	if req.WeeklyOpeningHours != nil {
		schema.Field("weekly_opening_hours", validOpeningHours(*req.WeeklyOpeningHours))
		fields["weekly_opening_hours"] = *req.WeeklyOpeningHours
	}
	if req.SpecialOpeningDays != nil {
		fields["special_opening_days"] = *req.SpecialOpeningDays
	}
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	restaurant, err := h.restaurantService.Update(r.Context(), id, fields)
	if err != nil {
		writeServiceError(w, err, "failed to update restaurant")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update restaurant success", Data: restaurant})
}

func (h *RestaurantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.restaurantService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete restaurant")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete restaurant success"})
}

func (h *RestaurantHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uploadMedia(w, r, h.uploadService, services.UploadRestaurant)
}
