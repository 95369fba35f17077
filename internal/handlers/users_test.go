package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/internal/mail"
	"github.com/foodmap/apiserver/internal/services"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

type memUserRepo struct {
	users map[primitive.ObjectID]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: map[primitive.ObjectID]types.User{}}
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user = types.NewUser(user)
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetByForgotPasswordToken(_ context.Context, token string) (types.User, error) {
	for _, user := range m.users {
		if user.ForgotPasswordToken != "" && user.ForgotPasswordToken == token {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) GetDetail(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	user, err := m.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (m *memUserRepo) List(_ context.Context, _ store.ListParams, isActive *int) ([]types.User, int64, error) {
	out := []types.User{}
	for _, user := range m.users {
		if isActive != nil && user.IsActive != *isActive {
			continue
		}
		user.Password = ""
		out = append(out, user)
	}
	return out, int64(len(out)), nil
}

func (m *memUserRepo) UpdateFields(_ context.Context, id primitive.ObjectID, fields bson.M) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if name, ok := fields["name"].(string); ok {
		user.Name = name
	}
	if isActive, ok := fields["is_active"].(int); ok {
		user.IsActive = isActive
	}
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsActive = 0
	user.IsDeleted = true
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetForgotPasswordToken(_ context.Context, id primitive.ObjectID, token string, expiredAt time.Time) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ForgotPasswordToken = token
	user.ForgotPasswordExpiredAt = &expiredAt
	m.users[id] = user
	return nil
}

func (m *memUserRepo) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = hash
	user.ForgotPasswordToken = ""
	user.ForgotPasswordExpiredAt = nil
	m.users[id] = user
	return nil
}

type userFixture struct {
	router  chi.Router
	repo    *memUserRepo
	tokens  *services.TokenService
	service *services.UserService
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	repo := newMemUserRepo()
	tokens := services.NewTokenService(config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   5 * time.Minute,
	})
	service := services.NewUserService(repo, tokens, mail.LogMailer{}, "http://localhost:3000", 5*time.Minute)

	router := chi.NewRouter()
	router.Route("/v1/users", func(r chi.Router) {
		UserRouter(r, service, RequireAuth(tokens, service))
	})
	return &userFixture{router: router, repo: repo, tokens: tokens, service: service}
}

// seedUser inserts an account directly and returns it with a signed
// access token.
func (f *userFixture) seedUser(t *testing.T, email string, role types.RoleType) (types.User, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user, err := f.repo.Create(context.Background(), types.User{
		Name:     "Seeded",
		Email:    email,
		Password: string(hash),
		RoleID:   role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := f.tokens.Issue(user.ID, types.TokenAccess)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return user, token
}

func (f *userFixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterValidation(t *testing.T) {
	f := newUserFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name":  "Mai",
		"email": "not-an-email",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}

	var resp ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message != "validation error" {
		t.Fatalf("message = %q", resp.Message)
	}
	for _, field := range []string{"email", "password", "confirm_password"} {
		if _, ok := resp.Errors[field]; !ok {
			t.Fatalf("missing %s error, got %v", field, resp.Errors)
		}
	}
	if _, ok := resp.Errors["name"]; ok {
		t.Fatalf("name should have passed, got %v", resp.Errors)
	}
}

func TestRegisterRejectsTakenEmail(t *testing.T) {
	f := newUserFixture(t)
	f.seedUser(t, "mai@example.com", types.RoleUser)

	rec := f.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name":             "Mai",
		"email":            "mai@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	var resp ValidationErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Errors["email"].Message; got != "is already taken" {
		t.Fatalf("email message = %q", got)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newUserFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name":             "Mai",
		"email":            "mai@example.com",
		"password":         "secret123",
		"confirm_password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email":    "mai@example.com",
		"password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/v1/users/login", "", map[string]string{
		"email":    "mai@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad login status = %d, want 400", rec.Code)
	}
}

func TestMyProfileRequiresAuth(t *testing.T) {
	f := newUserFixture(t)
	user, token := f.seedUser(t, "mai@example.com", types.RoleUser)

	if rec := f.do(t, http.MethodGet, "/v1/users/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/users/me", "garbage", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d, want 401", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1/users/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data types.User `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.ID != user.ID {
		t.Fatalf("profile id = %v, want %v", resp.Data.ID, user.ID)
	}
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	f := newUserFixture(t)
	_, access := f.seedUser(t, "mai@example.com", types.RoleUser)

	rec := f.do(t, http.MethodPost, "/v1/users/refresh-token", "", map[string]string{
		"refresh_token": access,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSoftDeletedTokenIsRejected(t *testing.T) {
	f := newUserFixture(t)
	user, token := f.seedUser(t, "mai@example.com", types.RoleUser)

	if err := f.repo.SoftDelete(context.Background(), user.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if rec := f.do(t, http.MethodGet, "/v1/users/me", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAdminListUsers(t *testing.T) {
	f := newUserFixture(t)
	_, userToken := f.seedUser(t, "user@example.com", types.RoleUser)
	_, adminToken := f.seedUser(t, "admin@example.com", types.RoleAdmin)

	if rec := f.do(t, http.MethodGet, "/v1/users/", userToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: status = %d, want 403", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1/users/", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data       []types.User `json:"data"`
		Pagination Pagination   `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pagination.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("total = %d len = %d, want 2/2", resp.Pagination.Total, len(resp.Data))
	}
	if resp.Pagination.Page != 1 || resp.Pagination.Limit != 10 {
		t.Fatalf("pagination defaults = %+v", resp.Pagination)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	f := newUserFixture(t)
	target, _ := f.seedUser(t, "user@example.com", types.RoleUser)
	_, adminToken := f.seedUser(t, "admin@example.com", types.RoleAdmin)

	rec := f.do(t, http.MethodPatch, "/v1/users/"+target.ID.Hex(), adminToken, map[string]any{
		"is_active": 7,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("out-of-range is_active: status = %d, want 422", rec.Code)
	}

	rec = f.do(t, http.MethodPatch, "/v1/users/"+target.ID.Hex(), adminToken, map[string]any{
		"name": "Renamed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := f.repo.users[target.ID].Name; got != "Renamed" {
		t.Fatalf("name = %q, want Renamed", got)
	}
}

func TestAdminDeleteIsSoft(t *testing.T) {
	f := newUserFixture(t)
	target, _ := f.seedUser(t, "user@example.com", types.RoleUser)
	_, adminToken := f.seedUser(t, "admin@example.com", types.RoleAdmin)

	rec := f.do(t, http.MethodDelete, "/v1/users/"+target.ID.Hex(), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	stored, ok := f.repo.users[target.ID]
	if !ok {
		t.Fatal("document was removed, want soft delete")
	}
	if stored.IsActive != 0 {
		t.Fatal("account still active after delete")
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := bearerToken(req); err == nil {
		t.Fatal("expected error for missing header")
	}

	req.Header.Set("Authorization", "Basic abc")
	if _, err := bearerToken(req); err == nil {
		t.Fatal("expected error for non-bearer scheme")
	}

	req.Header.Set("Authorization", "bearer tok123")
	token, err := bearerToken(req)
	if err != nil || token != "tok123" {
		t.Fatalf("got %q, %v", token, err)
	}
}
