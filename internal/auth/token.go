// Package auth provides credential signing, verification, and request
// identity binding.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/store"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when no credential was presented.
	ErrMissingToken = errors.New("authentication error: no token provided")

	// ErrInvalidToken is returned when the credential fails verification.
	ErrInvalidToken = errors.New("authentication error: invalid token")

	// ErrExpiredToken is returned when the credential has expired.
	ErrExpiredToken = errors.New("authentication error: token expired")

	// ErrUnknownUser is returned when a verified credential names an
	// identity that no longer exists.
	ErrUnknownUser = errors.New("authentication error: user not found")
)

// Claims is the JWT payload binding a token to a user identity.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies user credentials.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service with the given signing secret and
// token lifetime.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue signs a new token for the user.
func (t *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the bound user ID.
func (t *TokenService) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// Authenticator resolves a presented credential to a durable user identity.
type Authenticator struct {
	tokens *TokenService
	repo   store.Repository
}

// NewAuthenticator creates an authenticator over the token service and
// user store.
func NewAuthenticator(tokens *TokenService, repo store.Repository) *Authenticator {
	return &Authenticator{tokens: tokens, repo: repo}
}

// Authenticate verifies the credential and loads the user it names.
// Failures map to the credential error taxonomy: missing, invalid, expired,
// or unknown identity.
func (a *Authenticator) Authenticate(ctx context.Context, raw string) (*domain.User, error) {
	userID, err := a.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", userID, err)
	}
	if user == nil {
		return nil, ErrUnknownUser
	}
	return user, nil
}
