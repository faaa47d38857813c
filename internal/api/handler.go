// Package api provides HTTP handlers for the CampusLink API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/store"
)

// Notifier dispatches a durable notification plus its realtime events to
// the recipient's personal channel.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, sender domain.UserView, kind domain.NotificationKind, refs domain.NotificationRefs) (*domain.Notification, error)
}

// Handler provides common handler dependencies and utilities.
type Handler struct {
	repo     store.Repository
	tokens   *auth.TokenService
	notifier Notifier
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, tokens *auth.TokenService, notifier Notifier) *Handler {
	return &Handler{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// userView resolves a user ID to its public view. Missing users resolve to
// a view carrying only the ID, so stale references never fail a listing.
func (h *Handler) userView(ctx context.Context, userID string) domain.UserView {
	user, err := h.repo.GetUser(ctx, userID)
	if err != nil || user == nil {
		return domain.UserView{ID: userID}
	}
	return user.View()
}
