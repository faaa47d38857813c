package api

import (
	"log/slog"
	"net/http"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RegisterNotificationRoutes mounts the authenticated notification endpoints.
func (h *Handler) RegisterNotificationRoutes(r chi.Router) {
	r.Get("/api/notifications", h.listNotifications)
	r.Get("/api/notifications/unread-count", h.notificationUnreadCount)
	r.Put("/api/notifications/read-all", h.markAllNotificationsRead)
	r.Put("/api/notifications/{id}/read", h.markNotificationRead)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	notifications, err := h.repo.ListNotifications(r.Context(), caller.ID, 50)
	if err != nil {
		slog.Error("Failed to list notifications", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}

	// Senders repeat across notifications; resolve each once.
	senders := make(map[string]domain.UserView)
	views := make([]domain.NotificationView, 0, len(notifications))
	for _, n := range notifications {
		sender, ok := senders[n.SenderID]
		if !ok {
			sender = h.userView(r.Context(), n.SenderID)
			senders[n.SenderID] = sender
		}
		views = append(views, n.View(sender))
	}

	JSON(w, http.StatusOK, views)
}

func (h *Handler) notificationUnreadCount(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	count, err := h.repo.UnreadNotificationCount(r.Context(), caller.ID)
	if err != nil {
		slog.Error("Failed to count notifications", "error", err)
		Error(w, http.StatusInternalServerError, "failed to count notifications")
		return
	}

	JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	notificationID := chi.URLParam(r, "id")

	n, err := h.repo.GetNotification(r.Context(), notificationID)
	if err != nil {
		slog.Error("Failed to load notification", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if n == nil {
		Error(w, http.StatusNotFound, "notification not found")
		return
	}
	if n.RecipientID != caller.ID {
		Error(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := h.repo.MarkNotificationRead(r.Context(), notificationID); err != nil {
		slog.Error("Failed to mark notification read", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update notification")
		return
	}

	n.Read = true
	JSON(w, http.StatusOK, n.View(h.userView(r.Context(), n.SenderID)))
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	if err := h.repo.MarkAllNotificationsRead(r.Context(), caller.ID); err != nil {
		slog.Error("Failed to mark notifications read", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"message": "all notifications marked as read"})
}
