package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/foodmap/apiserver/config"
	"github.com/foodmap/apiserver/types"
)

// ErrInvalidToken is returned when a token fails verification or its
// kind does not match the expected one.
var ErrInvalidToken = errors.New("invalid token")

// TokenClaims carries the signed subject plus the token kind, so a
// refresh token can never pass as an access token.
type TokenClaims struct {
	UserID    string          `json:"user_id"`
	TokenType types.TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the access/refresh pair returned by sign-in and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService issues and verifies the HS256 tokens used by the API.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		resetTTL:   cfg.ResetTTL,
	}
}

func (s *TokenService) ttl(kind types.TokenKind) time.Duration {
	switch kind {
	case types.TokenRefresh:
		return s.refreshTTL
	case types.TokenResetPassword, types.TokenEmailVerify:
		return s.resetTTL
	default:
		return s.accessTTL
	}
}

// Issue signs a token of the given kind for the user.
func (s *TokenService) Issue(userID primitive.ObjectID, kind types.TokenKind) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID:    userID.Hex(),
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl(kind))),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// IssuePair signs an access and a refresh token for the user.
func (s *TokenService) IssuePair(userID primitive.ObjectID) (TokenPair, error) {
	access, err := s.Issue(userID, types.TokenAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.Issue(userID, types.TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Parse verifies a token of the expected kind and returns its subject.
func (s *TokenService) Parse(tokenString string, kind types.TokenKind) (primitive.ObjectID, error) {
	claims := TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return primitive.NilObjectID, ErrInvalidToken
	}
	if claims.TokenType != kind {
		return primitive.NilObjectID, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidToken
	}
	return id, nil
}
