package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/foodmap/apiserver/internal/mail"
	"github.com/foodmap/apiserver/internal/store"
	"github.com/foodmap/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user types.User) (types.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByForgotPasswordToken(ctx context.Context, token string) (types.User, error)
	GetDetail(ctx context.Context, id primitive.ObjectID) (types.User, error)
	List(ctx context.Context, params store.ListParams, isActive *int) ([]types.User, int64, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	SetForgotPasswordToken(ctx context.Context, id primitive.ObjectID, token string, expiredAt time.Time) error
	SetPassword(ctx context.Context, id primitive.ObjectID, hash string) error
}

// SignUpInput carries the fields accepted at registration.
type SignUpInput struct {
	Name        string
	Email       string
	Password    string
	DateOfBirth time.Time
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo      UserRepository
	tokens    *TokenService
	mailer    mail.Mailer
	clientURL string
	resetTTL  time.Duration
}

func NewUserService(repo UserRepository, tokens *TokenService, mailer mail.Mailer, clientURL string, resetTTL time.Duration) *UserService {
	return &UserService{
		repo:      repo,
		tokens:    tokens,
		mailer:    mailer,
		clientURL: clientURL,
		resetTTL:  resetTTL,
	}
}

// SignUp creates an account and signs the first token pair. Email
// uniqueness is enforced by the request validation layer before this
// is called.
func (s *UserService) SignUp(ctx context.Context, input SignUpInput) (types.User, TokenPair, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, TokenPair{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Name:        input.Name,
		Email:       input.Email,
		Password:    string(hashed),
		DateOfBirth: input.DateOfBirth,
		RoleID:      types.RoleUser,
	})
	if err != nil {
		return types.User{}, TokenPair{}, err
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return types.User{}, TokenPair{}, err
	}
	user.Password = ""
	return user, pair, nil
}

// SignIn verifies credentials and returns a token pair. Unknown email
// and wrong password both map to ErrLoginIncorrect.
func (s *UserService) SignIn(ctx context.Context, email, password string) (types.User, TokenPair, error) {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, TokenPair{}, ErrLoginIncorrect
		}
		return types.User{}, TokenPair{}, err
	}
	if user.IsActive == 0 {
		return types.User{}, TokenPair{}, ErrAccountInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return types.User{}, TokenPair{}, ErrLoginIncorrect
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return types.User{}, TokenPair{}, err
	}
	user.Password = ""
	return user, pair, nil
}

// RefreshToken exchanges a valid refresh token for a fresh pair.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (TokenPair, error) {
	userID, err := s.tokens.Parse(refreshToken, types.TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if user.IsActive == 0 {
		return TokenPair{}, ErrAccountInactive
	}
	return s.tokens.IssuePair(user.ID)
}

// ForgotPassword persists a short-lived reset token on the account and
// emails a reset link. Mail failures are logged, not surfaced; the
// token is already stored and the client sees the same response either
// way.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(user.ID, types.TokenResetPassword)
	if err != nil {
		return err
	}
	expiredAt := time.Now().Add(s.resetTTL)
	if err := s.repo.SetForgotPasswordToken(ctx, user.ID, token, expiredAt); err != nil {
		return err
	}

	msg := mail.Message{
		To:       user.Email,
		Subject:  "Reset your password",
		Template: "forgot-password",
		Data: map[string]string{
			"name": user.Name,
			"link": fmt.Sprintf("%s/reset-password?token=%s", s.clientURL, token),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Printf("forgot-password mail for %s failed: %v", user.Email, err)
	}
	return nil
}

// VerifyForgotPasswordToken checks that the token is validly signed,
// still owned by an account, and not past its persisted expiry.
func (s *UserService) VerifyForgotPasswordToken(ctx context.Context, token string) (types.User, error) {
	if _, err := s.tokens.Parse(token, types.TokenResetPassword); err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByForgotPasswordToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidToken
		}
		return types.User{}, err
	}
	if user.ForgotPasswordExpiredAt == nil || time.Now().After(*user.ForgotPasswordExpiredAt) {
		return types.User{}, ErrTokenExpired
	}
	return user, nil
}

// ResetPassword sets a new password for the account owning the reset
// token and clears the token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.VerifyForgotPasswordToken(ctx, token)
	if err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, user.ID, string(hashed))
}

// ChangePassword verifies the old password before storing a new hash.
func (s *UserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, oldPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)); err != nil {
		return ErrPasswordMismatch
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, user.ID, string(hashed))
}

// GetByID returns the raw account document, credential fields included.
// Used by the auth middleware; API reads go through GetDetail.
func (s *UserService) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetDetail returns one account with its role joined and secrets
// projected away.
func (s *UserService) GetDetail(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	return s.repo.GetDetail(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *UserService) List(ctx context.Context, params store.ListParams, isActive *int) ([]types.User, int64, error) {
	return s.repo.List(ctx, params, isActive)
}

// Update applies a partial update and returns the fresh detail view.
func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, fields bson.M) (types.User, error) {
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return types.User{}, err
	}
	return s.repo.GetDetail(ctx, id)
}

// SoftDelete deactivates the account without removing its document.
func (s *UserService) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	return s.repo.SoftDelete(ctx, id)
}
