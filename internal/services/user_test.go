package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/internal/mail"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

type fakeUserRepo struct {
	users map[primitive.ObjectID]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[primitive.ObjectID]types.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	user = types.NewUser(user)
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByForgotPasswordToken(_ context.Context, token string) (types.User, error) {
	for _, user := range f.users {
		if user.ForgotPasswordToken != "" && user.ForgotPasswordToken == token {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetDetail(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	user, err := f.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (f *fakeUserRepo) List(_ context.Context, _ store.ListParams, isActive *int) ([]types.User, int64, error) {
	var out []types.User
	for _, user := range f.users {
		if isActive != nil && user.IsActive != *isActive {
			continue
		}
		out = append(out, user)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) UpdateFields(_ context.Context, id primitive.ObjectID, fields bson.M) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if name, ok := fields["name"].(string); ok {
		user.Name = name
	}
	if bio, ok := fields["bio"].(string); ok {
		user.Bio = bio
	}
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsActive = 0
	user.IsDeleted = true
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetForgotPasswordToken(_ context.Context, id primitive.ObjectID, token string, expiredAt time.Time) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.ForgotPasswordToken = token
	user.ForgotPasswordExpiredAt = &expiredAt
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetPassword(_ context.Context, id primitive.ObjectID, hash string) error {
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = hash
	user.ForgotPasswordToken = ""
	user.ForgotPasswordExpiredAt = nil
	f.users[id] = user
	return nil
}

type recordingMailer struct {
	sent []mail.Message
	fail bool
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.fail {
		return errors.New("broker down")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newUserFixture() (*UserService, *fakeUserRepo, *recordingMailer) {
	repo := newFakeUserRepo()
	mailer := &recordingMailer{}
	tokens := NewTokenService(config.JWTConfig{
		Secret:     "test-secret",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
		ResetTTL:   5 * time.Minute,
	})
	svc := NewUserService(repo, tokens, mailer, "http://localhost:3000", 5*time.Minute)
	return svc, repo, mailer
}

func TestSignUpHashesPasswordAndDefaultsRole(t *testing.T) {
	svc, repo, _ := newUserFixture()

	user, pair, err := svc.SignUp(context.Background(), SignUpInput{
		Name:     "Mai",
		Email:    "mai@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected a token pair")
	}
	if user.Password != "" {
		t.Fatal("password hash leaked on the returned user")
	}
	if user.RoleID != types.RoleUser {
		t.Fatalf("role = %d, want RoleUser", user.RoleID)
	}

	stored := repo.users[user.ID]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("secret123")); err != nil {
		t.Fatalf("stored password is not a matching bcrypt hash: %v", err)
	}
}

func TestSignInErrors(t *testing.T) {
	svc, repo, _ := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "nobody@example.com", "secret123"); !errors.Is(err, ErrLoginIncorrect) {
		t.Fatalf("unknown email: got %v, want ErrLoginIncorrect", err)
	}
	if _, _, err := svc.SignIn(ctx, "mai@example.com", "wrong"); !errors.Is(err, ErrLoginIncorrect) {
		t.Fatalf("wrong password: got %v, want ErrLoginIncorrect", err)
	}
	if _, _, err := svc.SignIn(ctx, "mai@example.com", "secret123"); err != nil {
		t.Fatalf("valid sign in: %v", err)
	}

	if err := repo.SoftDelete(ctx, user.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "mai@example.com", "secret123"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("inactive account: got %v, want ErrAccountInactive", err)
	}
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()

	_, pair, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if _, err := svc.RefreshToken(ctx, pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token as refresh: got %v, want ErrInvalidToken", err)
	}
	if _, err := svc.RefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("valid refresh: %v", err)
	}
}

func TestForgotPasswordFlow(t *testing.T) {
	svc, repo, mailer := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if err := svc.ForgotPassword(ctx, "mai@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	stored := repo.users[user.ID]
	if stored.ForgotPasswordToken == "" || stored.ForgotPasswordExpiredAt == nil {
		t.Fatal("reset token was not persisted")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "mai@example.com" || msg.Template != "forgot-password" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !strings.Contains(msg.Data["link"], stored.ForgotPasswordToken) {
		t.Fatalf("reset link %q does not carry the token", msg.Data["link"])
	}

	if err := svc.ResetPassword(ctx, stored.ForgotPasswordToken, "newsecret"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	stored = repo.users[user.ID]
	if stored.ForgotPasswordToken != "" {
		t.Fatal("token was not cleared after reset")
	}
	if _, _, err := svc.SignIn(ctx, "mai@example.com", "newsecret"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestForgotPasswordSwallowsMailFailure(t *testing.T) {
	svc, repo, mailer := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	mailer.fail = true
	if err := svc.ForgotPassword(ctx, "mai@example.com"); err != nil {
		t.Fatalf("mail failure must not surface: %v", err)
	}
	if repo.users[user.ID].ForgotPasswordToken == "" {
		t.Fatal("token must still be persisted")
	}
}

func TestVerifyForgotPasswordTokenExpiry(t *testing.T) {
	svc, repo, _ := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := svc.ForgotPassword(ctx, "mai@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}

	stored := repo.users[user.ID]
	if _, err := svc.VerifyForgotPasswordToken(ctx, stored.ForgotPasswordToken); err != nil {
		t.Fatalf("fresh token: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	if err := repo.SetForgotPasswordToken(ctx, user.ID, stored.ForgotPasswordToken, past); err != nil {
		t.Fatalf("set token: %v", err)
	}
	if _, err := svc.VerifyForgotPasswordToken(ctx, stored.ForgotPasswordToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired token: got %v, want ErrTokenExpired", err)
	}

	if _, err := svc.VerifyForgotPasswordToken(ctx, "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token: got %v, want ErrInvalidToken", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	if err := svc.ChangePassword(ctx, user.ID, "wrong", "newsecret"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("got %v, want ErrPasswordMismatch", err)
	}
	if err := svc.ChangePassword(ctx, user.ID, "secret123", "newsecret"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "mai@example.com", "newsecret"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
}

func TestSoftDeleteDeactivates(t *testing.T) {
	svc, repo, _ := newUserFixture()
	ctx := context.Background()

	user, _, err := svc.SignUp(ctx, SignUpInput{Name: "Mai", Email: "mai@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := svc.SoftDelete(ctx, user.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	stored := repo.users[user.ID]
	if stored.IsActive != 0 || !stored.IsDeleted {
		t.Fatalf("account not deactivated: %+v", stored)
	}
}

func TestTokenParseRejectsWrongKindAndSecret(t *testing.T) {
	tokens := NewTokenService(config.JWTConfig{Secret: "one", AccessTTL: time.Hour, RefreshTTL: time.Hour, ResetTTL: time.Hour})
	other := NewTokenService(config.JWTConfig{Secret: "two", AccessTTL: time.Hour, RefreshTTL: time.Hour, ResetTTL: time.Hour})
	userID := primitive.NewObjectID()

	access, err := tokens.Issue(userID, types.TokenAccess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	got, err := tokens.Parse(access, types.TokenAccess)
	if err != nil || got != userID {
		t.Fatalf("parse own token: id=%v err=%v", got, err)
	}
	if _, err := tokens.Parse(access, types.TokenRefresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong kind: got %v, want ErrInvalidToken", err)
	}
	if _, err := other.Parse(access, types.TokenAccess); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: got %v, want ErrInvalidToken", err)
	}
}
