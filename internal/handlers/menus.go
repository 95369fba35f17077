package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

// MenuHandler provides HTTP handlers for menu items.
type MenuHandler struct {
	menuService       *services.MenuService
	restaurantService *services.RestaurantService
	uploadService     *services.UploadService
}

func NewMenuHandler(menuService *services.MenuService, restaurantService *services.RestaurantService, uploadService *services.UploadService) *MenuHandler {
	return &MenuHandler{
		menuService:       menuService,
		restaurantService: restaurantService,
		uploadService:     uploadService,
	}
}

// MenuRouter registers menu routes on the given router. Listing and
// creation are keyed by restaurant; updates and deletes name both the
// menu and its owning restaurant.
func MenuRouter(r chi.Router, menuService *services.MenuService, restaurantService *services.RestaurantService, uploadService *services.UploadService, auth func(http.Handler) http.Handler) {
	handler := NewMenuHandler(menuService, restaurantService, uploadService)

	r.Get("/{restaurantID}", handler.ListByRestaurant)

	r.Group(func(r chi.Router) {
		r.Use(auth, RequireAdmin)
		r.Post("/uploads", handler.Upload)
		r.Post("/{restaurantID}", handler.Create)
		r.Patch("/{menuID}/restaurants/{restaurantID}", handler.Update)
		r.Delete("/{menuID}/restaurants/{restaurantID}", handler.Delete)
	})
}

// RestaurantMenuRouter registers the restaurant-scoped menu mutation
// routes under the restaurants mount.
func RestaurantMenuRouter(r chi.Router, menuService *services.MenuService, auth func(http.Handler) http.Handler) {
	handler := &MenuHandler{menuService: menuService}

	r.Group(func(r chi.Router) {
		r.Use(auth, RequireAdmin)
		r.Patch("/{restaurantID}/menus/{menuID}", handler.Update)
		r.Delete("/{restaurantID}/menus/{menuID}", handler.Delete)
	})
}

func (h *MenuHandler) restaurantExists(id string) validate.Rule {
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

type menuCreateRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       float64       `json:"price"`
	Media       []types.Media `json:"media"`
}

// Create adds a menu item to the restaurant named in the path.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req menuCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	schema := validate.New().
		Field("restaurant_id", h.restaurantExists(restaurantID.Hex())).
		Field("name", validate.Required(req.Name), validate.Length(req.Name, 1, 255)).
		Field("price", validate.Positive(req.Price)).
		Field("media", validMedia(req.Media))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	menu, err := h.menuService.Create(r.Context(), types.Menu{
		RestaurantID: restaurantID,
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		Media:        req.Media,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create menu")
		return
	}
	writeJSON(w, http.StatusCreated, DataResponse{Message: "create menu success", Data: menu})
}

func (h *MenuHandler) ListByRestaurant(w http.ResponseWriter, r *http.Request) {
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params, err := parseListParams(r, "created_at", "updated_at", "name", "price")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	menus, total, err := h.menuService.ListByRestaurant(r.Context(), restaurantID, params)
	if err != nil {
		writeServiceError(w, err, "failed to list menus")
		return
	}
	writeList(w, menus, params, total)
}

type menuUpdateRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Price       *float64       `json:"price"`
	Media       *[]types.Media `json:"media"`
}

// Update edits a menu item scoped to the restaurant named in the path.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	menuID, err := parseObjectIDParam(r, "menuID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req menuUpdateRequest
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
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Price != nil {
		schema.Field("price", validate.Positive(*req.Price))
		fields["price"] = *req.Price
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

	menu, err := h.menuService.Update(r.Context(), menuID, restaurantID, fields)
	if err != nil {
		writeServiceError(w, err, "failed to update menu")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update menu success", Data: menu})
}

func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	menuID, err := parseObjectIDParam(r, "menuID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	restaurantID, err := parseObjectIDParam(r, "restaurantID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.menuService.Delete(r.Context(), menuID, restaurantID); err != nil {
		writeServiceError(w, err, "failed to delete menu")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete menu success"})
}

func (h *MenuHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uploadMedia(w, r, h.uploadService, services.UploadMenu)
}
