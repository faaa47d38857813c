package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campuslink/campuslink/internal/domain"
)

type contextKey int

const userKey contextKey = iota

// UserFromContext extracts the authenticated user from the request context.
func UserFromContext(ctx context.Context) *domain.User {
	if u, ok := ctx.Value(userKey).(*domain.User); ok {
		return u
	}
	return nil
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware authenticates each request with a bearer token and injects the
// resolved user into the context. Banned users may only issue read requests.
func Middleware(authenticator *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				writeAuthError(w, err)
				return
			}

			if user.Banned && r.Method != http.MethodGet {
				http.Error(w, `{"error":"your account has been restricted, you can only view content"}`, http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case errors.Is(err, ErrMissingToken):
		http.Error(w, `{"error":"access token required"}`, http.StatusUnauthorized)
	case errors.Is(err, ErrExpiredToken):
		http.Error(w, `{"error":"token expired"}`, http.StatusUnauthorized)
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnknownUser):
		http.Error(w, `{"error":"invalid token"}`, http.StatusForbidden)
	default:
		slog.Error("Authentication failed", "error", err)
		http.Error(w, `{"error":"authentication error"}`, http.StatusInternalServerError)
	}
}
