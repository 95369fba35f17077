package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

// RoleHandler provides admin-only HTTP handlers for roles.
type RoleHandler struct {
	roleService *services.RoleService
}

func NewRoleHandler(roleService *services.RoleService) *RoleHandler {
	return &RoleHandler{roleService: roleService}
}

// RoleRouter registers role routes on the given router.
func RoleRouter(r chi.Router, roleService *services.RoleService, auth func(http.Handler) http.Handler) {
	handler := NewRoleHandler(roleService)

	r.Use(auth, RequireAdmin)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{roleID}", handler.Get)
	r.Patch("/{roleID}", handler.Update)
	r.Delete("/{roleID}", handler.Delete)
}

// roleNameUnique fails when the display name is already taken.
func (h *RoleHandler) roleNameUnique(name string) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		if name == "" {
			return nil
		}
		_, err := h.roleService.GetByName(ctx, name)
		if err == nil {
			return errors.New("is already taken")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
}

// roleIDFree fails when the numeric identifier is already assigned.
func (h *RoleHandler) roleIDFree(roleID int) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		_, err := h.roleService.GetByRoleID(ctx, types.RoleType(roleID))
		if err == nil {
			return errors.New("is already taken")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
}

type roleCreateRequest struct {
	RoleID   int    `json:"role_id"`
	RoleName string `json:"role_name"`
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RoleName = strings.TrimSpace(req.RoleName)

	schema := validate.New().
		Field("role_id",
			validate.Range(req.RoleID, int(types.RoleUser), int(types.RoleAdmin)),
			h.roleIDFree(req.RoleID)).
		Field("role_name",
			validate.Required(req.RoleName),
			validate.Length(req.RoleName, 1, 50),
			h.roleNameUnique(req.RoleName))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	role, err := h.roleService.Create(r.Context(), types.Role{
		RoleID:   types.RoleType(req.RoleID),
		RoleName: req.RoleName,
	})
	if err != nil {
		writeServiceError(w, err, "failed to create role")
		return
	}
	writeJSON(w, http.StatusCreated, DataResponse{Message: "create role success", Data: role})
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to list roles")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: roles})
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.roleService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to load role")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: role})
}

type roleUpdateRequest struct {
	RoleName string `json:"role_name"`
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req roleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RoleName = strings.TrimSpace(req.RoleName)

	schema := validate.New().
		Field("role_name",
			validate.Required(req.RoleName),
			validate.Length(req.RoleName, 1, 50),
			h.roleNameUnique(req.RoleName))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	role, err := h.roleService.Update(r.Context(), id, req.RoleName)
	if err != nil {
		writeServiceError(w, err, "failed to update role")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update role success", Data: role})
}

func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "roleID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.roleService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete role")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete role success"})
}
