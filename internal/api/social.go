package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// RegisterSocialRoutes mounts the authenticated post, comment, and follow
// endpoints. These are the HTTP-side callers of the notification dispatcher.
func (h *Handler) RegisterSocialRoutes(r chi.Router) {
	r.Post("/api/posts", h.createPost)
	r.Post("/api/posts/{postId}/like", h.likePost)
	r.Post("/api/posts/{postId}/comments", h.createComment)

	r.Post("/api/follows/{userId}", h.sendFollowRequest)
	r.Get("/api/follows/requests", h.incomingFollowRequests)
	r.Get("/api/follows/following", h.following)
	r.Get("/api/follows/followers", h.followers)
	r.Put("/api/follows/{id}/accept", h.acceptFollowRequest)
	r.Put("/api/follows/{id}/reject", h.rejectFollowRequest)
}

type contentRequest struct {
	Content string `json:"content"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}

	post := &domain.Post{
		ID:        uuid.New().String(),
		AuthorID:  caller.ID,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreatePost(r.Context(), post); err != nil {
		slog.Error("Failed to create post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create post")
		return
	}

	JSON(w, http.StatusCreated, post)
}

func (h *Handler) likePost(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	postID := chi.URLParam(r, "postId")

	post, err := h.repo.GetPost(r.Context(), postID)
	if err != nil {
		slog.Error("Failed to load post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to like post")
		return
	}
	if post == nil {
		Error(w, http.StatusNotFound, "post not found")
		return
	}

	liked, err := h.repo.LikePost(r.Context(), postID, caller.ID)
	if err != nil {
		slog.Error("Failed to like post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to like post")
		return
	}

	// Notify the author on first like only; liking your own post is silent.
	if liked && post.AuthorID != caller.ID {
		refs := domain.NotificationRefs{PostID: postID}
		if _, err := h.notifier.Notify(r.Context(), post.AuthorID, caller.View(), domain.NotificationLike, refs); err != nil {
			slog.Error("Failed to dispatch like notification", "post_id", postID, "error", err)
		}
	}

	JSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	postID := chi.URLParam(r, "postId")

	var req contentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}

	post, err := h.repo.GetPost(r.Context(), postID)
	if err != nil {
		slog.Error("Failed to load post", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create comment")
		return
	}
	if post == nil {
		Error(w, http.StatusNotFound, "post not found")
		return
	}

	comment := &domain.Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		AuthorID:  caller.ID,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreateComment(r.Context(), comment); err != nil {
		slog.Error("Failed to create comment", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create comment")
		return
	}

	if post.AuthorID != caller.ID {
		refs := domain.NotificationRefs{PostID: postID, CommentID: comment.ID}
		if _, err := h.notifier.Notify(r.Context(), post.AuthorID, caller.View(), domain.NotificationComment, refs); err != nil {
			slog.Error("Failed to dispatch comment notification", "post_id", postID, "error", err)
		}
	}

	JSON(w, http.StatusCreated, comment)
}

type followView struct {
	ID        string          `json:"id"`
	Sender    domain.UserView `json:"sender"`
	Receiver  domain.UserView `json:"receiver"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *Handler) followView(r *http.Request, f *domain.Follow) followView {
	return followView{
		ID:        f.ID,
		Sender:    h.userView(r.Context(), f.SenderID),
		Receiver:  h.userView(r.Context(), f.ReceiverID),
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
	}
}

func (h *Handler) followViews(r *http.Request, follows []*domain.Follow) []followView {
	views := make([]followView, 0, len(follows))
	for _, f := range follows {
		views = append(views, h.followView(r, f))
	}
	return views
}

func (h *Handler) sendFollowRequest(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	receiverID := chi.URLParam(r, "userId")

	if receiverID == caller.ID {
		Error(w, http.StatusBadRequest, "cannot follow yourself")
		return
	}

	receiver, err := h.repo.GetUser(r.Context(), receiverID)
	if err != nil {
		slog.Error("Failed to load receiver", "error", err)
		Error(w, http.StatusInternalServerError, "failed to send follow request")
		return
	}
	if receiver == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	active, err := h.repo.HasActiveFollow(r.Context(), caller.ID, receiverID)
	if err != nil {
		slog.Error("Failed to check follow state", "error", err)
		Error(w, http.StatusInternalServerError, "failed to send follow request")
		return
	}
	if active {
		Error(w, http.StatusBadRequest, "request already sent or already following")
		return
	}

	now := time.Now()
	follow := &domain.Follow{
		ID:         uuid.New().String(),
		SenderID:   caller.ID,
		ReceiverID: receiverID,
		Status:     domain.FollowPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.repo.CreateFollow(r.Context(), follow); err != nil {
		slog.Error("Failed to create follow request", "error", err)
		Error(w, http.StatusInternalServerError, "failed to send follow request")
		return
	}

	refs := domain.NotificationRefs{FollowID: follow.ID}
	if _, err := h.notifier.Notify(r.Context(), receiverID, caller.View(), domain.NotificationFollowRequest, refs); err != nil {
		slog.Error("Failed to dispatch follow notification", "follow_id", follow.ID, "error", err)
	}

	JSON(w, http.StatusCreated, h.followView(r, follow))
}

func (h *Handler) incomingFollowRequests(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	follows, err := h.repo.ListIncomingRequests(r.Context(), caller.ID)
	if err != nil {
		slog.Error("Failed to list follow requests", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list follow requests")
		return
	}
	JSON(w, http.StatusOK, h.followViews(r, follows))
}

func (h *Handler) following(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	follows, err := h.repo.ListFollowing(r.Context(), caller.ID)
	if err != nil {
		slog.Error("Failed to list following", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list following")
		return
	}
	JSON(w, http.StatusOK, h.followViews(r, follows))
}

func (h *Handler) followers(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	follows, err := h.repo.ListFollowers(r.Context(), caller.ID)
	if err != nil {
		slog.Error("Failed to list followers", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list followers")
		return
	}
	JSON(w, http.StatusOK, h.followViews(r, follows))
}

// resolveFollowRequest handles accept and reject, which share every check:
// the request must exist, be addressed to the caller, and still be pending.
func (h *Handler) resolveFollowRequest(w http.ResponseWriter, r *http.Request, status string, kind domain.NotificationKind) {
	caller := auth.UserFromContext(r.Context())
	followID := chi.URLParam(r, "id")

	follow, err := h.repo.GetFollow(r.Context(), followID)
	if err != nil {
		slog.Error("Failed to load follow request", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update follow request")
		return
	}
	if follow == nil {
		Error(w, http.StatusNotFound, "request not found")
		return
	}
	if follow.ReceiverID != caller.ID {
		Error(w, http.StatusForbidden, "forbidden")
		return
	}
	if follow.Status != domain.FollowPending {
		Error(w, http.StatusBadRequest, "request already processed")
		return
	}

	if err := h.repo.UpdateFollowStatus(r.Context(), followID, status); err != nil {
		slog.Error("Failed to update follow status", "error", err)
		Error(w, http.StatusInternalServerError, "failed to update follow request")
		return
	}
	follow.Status = status

	refs := domain.NotificationRefs{FollowID: follow.ID}
	if _, err := h.notifier.Notify(r.Context(), follow.SenderID, caller.View(), kind, refs); err != nil {
		slog.Error("Failed to dispatch follow notification", "follow_id", follow.ID, "error", err)
	}

	JSON(w, http.StatusOK, h.followView(r, follow))
}

func (h *Handler) acceptFollowRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveFollowRequest(w, r, domain.FollowAccepted, domain.NotificationFollowAccept)
}

func (h *Handler) rejectFollowRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveFollowRequest(w, r, domain.FollowRejected, domain.NotificationFollowReject)
}
