package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/internal/validate"
	"github.com/foodmap/apiserver/types"
)

// UserHandler provides HTTP handlers for accounts and auth flows.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers account routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, auth func(http.Handler) http.Handler) {
	handler := NewUserHandler(userService)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh-token", handler.RefreshToken)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/verify-forgot-password", handler.VerifyForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Put("/change-password", handler.ChangePassword)
		r.Get("/me", handler.MyProfile)
		r.Patch("/me", handler.UpdateMyProfile)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth, RequireAdmin)
		r.Get("/", handler.List)
		r.Get("/{userID}", handler.Get)
		r.Patch("/{userID}", handler.Update)
		r.Delete("/{userID}", handler.Delete)
	})
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	DateOfBirth     string `json:"date_of_birth"`
}

// emailUnique fails when another account already owns the email.
func (h *UserHandler) emailUnique(email string) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		if email == "" {
			return nil
		}
		_, err := h.userService.GetByEmail(ctx, email)
		if err == nil {
			return errors.New("is already taken")
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
}

// emailExists fails when no account owns the email.
func (h *UserHandler) emailExists(email string) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		if email == "" {
			return nil
		}
		_, err := h.userService.GetByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("does not exist")
		}
		return err
	})
}

// usernameUnique fails when another account already owns the username.
func (h *UserHandler) usernameUnique(username string, selfEmail string) validate.Rule {
	return validate.Func(func(ctx context.Context) error {
		if username == "" {
			return nil
		}
		owner, err := h.userService.GetByUsername(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if owner.Email == selfEmail {
			return nil
		}
		return errors.New("is already taken")
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	var dob time.Time
	schema := validate.New().
		Field("name", validate.Required(req.Name), validate.Length(req.Name, 1, 100)).
		Field("email", validate.Required(req.Email), validate.Email(req.Email), h.emailUnique(req.Email)).
		Field("password", validate.Required(req.Password), validate.Length(req.Password, 6, 50)).
		Field("confirm_password",
			validate.Required(req.ConfirmPassword),
			validate.Equal(req.ConfirmPassword, req.Password, "must match password")).
		Field("date_of_birth", validate.Func(func(context.Context) error {
			if req.DateOfBirth == "" {
				return nil
			}
			parsed, err := time.Parse(time.RFC3339, req.DateOfBirth)
			if err != nil {
				return errors.New("must be an ISO 8601 date")
			}
			dob = parsed
			return nil
		}))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	user, pair, err := h.userService.SignUp(r.Context(), services.SignUpInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: dob,
	})
	if err != nil {
		writeServiceError(w, err, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, DataResponse{
		Message: "register success",
		Data:    map[string]any{"user": user, "tokens": pair},
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	schema := validate.New().
		Field("email", validate.Required(req.Email), validate.Email(req.Email)).
		Field("password", validate.Required(req.Password))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	user, pair, err := h.userService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{
		Message: "login success",
		Data:    map[string]any{"user": user, "tokens": pair},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("refresh_token", validate.Required(req.RefreshToken))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	pair, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err, "failed to refresh token")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: pair})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	schema := validate.New().
		Field("email", validate.Required(req.Email), validate.Email(req.Email), h.emailExists(req.Email))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, err, "failed to send reset email")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "check your email to reset password"})
}

type verifyForgotPasswordRequest struct {
	ForgotPasswordToken string `json:"forgot_password_token"`
}

func (h *UserHandler) VerifyForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req verifyForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("forgot_password_token", validate.Required(req.ForgotPasswordToken))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	if _, err := h.userService.VerifyForgotPasswordToken(r.Context(), req.ForgotPasswordToken); err != nil {
		writeServiceError(w, err, "failed to verify token")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "token is valid"})
}

type resetPasswordRequest struct {
	ForgotPasswordToken string `json:"forgot_password_token"`
	Password            string `json:"password"`
	ConfirmPassword     string `json:"confirm_password"`
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("forgot_password_token", validate.Required(req.ForgotPasswordToken)).
		Field("password", validate.Required(req.Password), validate.Length(req.Password, 6, 50)).
		Field("confirm_password",
			validate.Required(req.ConfirmPassword),
			validate.Equal(req.ConfirmPassword, req.Password, "must match password"))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.ForgotPasswordToken, req.Password); err != nil {
		writeServiceError(w, err, "failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "reset password success"})
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	schema := validate.New().
		Field("old_password", validate.Required(req.OldPassword)).
		Field("password", validate.Required(req.Password), validate.Length(req.Password, 6, 50)).
		Field("confirm_password",
			validate.Required(req.ConfirmPassword),
			validate.Equal(req.ConfirmPassword, req.Password, "must match password"))
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	if err := h.userService.ChangePassword(r.Context(), actor.ID, req.OldPassword, req.Password); err != nil {
		writeServiceError(w, err, "failed to change password")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "change password success"})
}

func (h *UserHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.userService.GetDetail(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: user})
}

type updateProfileRequest struct {
	Name        *string `json:"name"`
	Bio         *string `json:"bio"`
	Username    *string `json:"username"`
	Avatar      *string `json:"avatar"`
	Cover       *string `json:"cover"`
	DateOfBirth *string `json:"date_of_birth"`
}

func (h *UserHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := bson.M{}
	schema := validate.New()
	if req.Name != nil {
		schema.Field("name", validate.Required(*req.Name), validate.Length(*req.Name, 1, 100))
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Bio != nil {
		schema.Field("bio", validate.Length(*req.Bio, 0, 500))
		fields["bio"] = *req.Bio
	}
	if req.Username != nil {
		schema.Field("username",
			validate.Length(*req.Username, 3, 50),
			h.usernameUnique(*req.Username, actor.Email))
		fields["username"] = *req.Username
	}
	if req.Avatar != nil {
		schema.Field("avatar", validate.URL(*req.Avatar))
		fields["avatar"] = *req.Avatar
	}
	if req.Cover != nil {
		schema.Field("cover", validate.URL(*req.Cover))
		fields["cover"] = *req.Cover
	}
	if req.DateOfBirth != nil {
		schema.Field("date_of_birth", validate.Func(func(context.Context) error {
			parsed, err := time.Parse(time.RFC3339, *req.DateOfBirth)
			if err != nil {
				return errors.New("must be an ISO 8601 date")
			}
			fields["date_of_birth"] = parsed
			return nil
		}))
	}
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := h.userService.Update(r.Context(), actor.ID, fields)
	if err != nil {
		writeServiceError(w, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update profile success", Data: user})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r, "created_at", "updated_at", "name", "email")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var isActive *int
	if raw := strings.TrimSpace(r.URL.Query().Get("is_active")); raw != "" {
		switch raw {
		case "0":
			zero := 0
			isActive = &zero
		case "1":
			one := 1
			isActive = &one
		default:
			writeError(w, http.StatusBadRequest, "invalid is_active")
			return
		}
	}

	users, total, err := h.userService.List(r.Context(), params, isActive)
	if err != nil {
		writeServiceError(w, err, "failed to list users")
		return
	}
	writeList(w, users, params, total)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: user})
}

type adminUpdateUserRequest struct {
	Name     *string `json:"name"`
	RoleID   *int    `json:"role_id"`
	Verify   *int    `json:"verify"`
	IsActive *int    `json:"is_active"`
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req adminUpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fields := bson.M{}
	schema := validate.New()
	if req.Name != nil {
		schema.Field("name", validate.Required(*req.Name), validate.Length(*req.Name, 1, 100))
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.RoleID != nil {
		schema.Field("role_id", validate.Range(*req.RoleID, int(types.RoleUser), int(types.RoleAdmin)))
		fields["role_id"] = types.RoleType(*req.RoleID)
	}
	if req.Verify != nil {
		schema.Field("verify", validate.Range(*req.Verify, int(types.VerifyUnverified), int(types.VerifyBanned)))
		fields["verify"] = types.VerifyStatus(*req.Verify)
	}
	if req.IsActive != nil {
		schema.Field("is_active", validate.Range(*req.IsActive, 0, 1))
		fields["is_active"] = *req.IsActive
	}
	if errs := schema.Validate(r.Context()); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if len(fields) == 0 {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := h.userService.Update(r.Context(), id, fields)
	if err != nil {
		writeServiceError(w, err, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "update user success", Data: user})
}

// Delete soft-deletes the account; the document stays for audit and
// the user simply can no longer sign in.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.SoftDelete(r.Context(), id); err != nil {
		writeServiceError(w, err, "failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Message: "delete user success"})
}
