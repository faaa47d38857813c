package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/store"
	"github.com/go-chi/chi/v5"
)

// RegisterChatRoutes mounts the authenticated chat endpoints.
func (h *Handler) RegisterChatRoutes(r chi.Router) {
	r.Post("/api/chat/conversations/{userId}", h.openConversation)
	r.Get("/api/chat/conversations", h.listConversations)
	r.Get("/api/chat/conversations/{conversationId}/messages", h.getMessages)
	r.Get("/api/chat/users", h.chatUsers)
}

type conversationView struct {
	ID               string              `json:"id"`
	Participants     []domain.UserView   `json:"participants"`
	LastMessage      *domain.MessageView `json:"last_message,omitempty"`
	LastMessageAt    string              `json:"last_message_at,omitempty"`
	UnreadCount      int                 `json:"unread_count"`
	OtherParticipant domain.UserView     `json:"other_participant"`
}

func (h *Handler) conversationView(ctx context.Context, conv *domain.Conversation, viewerID string) conversationView {
	viewA := h.userView(ctx, conv.ParticipantA)
	viewB := h.userView(ctx, conv.ParticipantB)

	view := conversationView{
		ID:           conv.ID,
		Participants: []domain.UserView{viewA, viewB},
	}
	if conv.OtherParticipant(viewerID) == conv.ParticipantA {
		view.OtherParticipant = viewA
	} else {
		view.OtherParticipant = viewB
	}
	if !conv.LastMessageAt.IsZero() {
		view.LastMessageAt = conv.LastMessageAt.UTC().Format(time.RFC3339)
	}

	if conv.LastMessageID != "" {
		if msg, err := h.repo.GetMessage(ctx, conv.LastMessageID); err == nil && msg != nil {
			sender := viewA
			if msg.SenderID == viewB.ID {
				sender = viewB
			}
			view.LastMessage = &domain.MessageView{
				ID:             msg.ID,
				ConversationID: msg.ConversationID,
				Sender:         sender,
				Content:        msg.Content,
				IsRead:         msg.IsRead,
				CreatedAt:      msg.CreatedAt,
			}
		}
	}

	count, err := h.repo.UnreadMessageCount(ctx, conv.ID, viewerID)
	if err != nil {
		slog.Warn("Failed to compute unread count", "conversation_id", conv.ID, "error", err)
	}
	view.UnreadCount = count

	return view
}

func (h *Handler) openConversation(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	peerID := chi.URLParam(r, "userId")

	peer, err := h.repo.GetUser(r.Context(), peerID)
	if err != nil {
		slog.Error("Failed to load peer", "error", err)
		Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}
	if peer == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	conv, err := h.repo.FindOrCreateConversation(r.Context(), caller.ID, peerID)
	if err != nil {
		if errors.Is(err, store.ErrSelfConversation) {
			Error(w, http.StatusBadRequest, "cannot create conversation with yourself")
			return
		}
		slog.Error("Failed to open conversation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to open conversation")
		return
	}

	JSON(w, http.StatusOK, map[string]any{
		"conversation": h.conversationView(r.Context(), conv, caller.ID),
	})
}

func (h *Handler) listConversations(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())

	conversations, err := h.repo.ListConversations(r.Context(), caller.ID)
	if err != nil {
		slog.Error("Failed to list conversations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	views := make([]conversationView, 0, len(conversations))
	for _, conv := range conversations {
		views = append(views, h.conversationView(r.Context(), conv, caller.ID))
	}

	JSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (h *Handler) getMessages(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversationId")

	conv, err := h.repo.GetConversation(r.Context(), conversationID)
	if err != nil {
		slog.Error("Failed to load conversation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	if conv == nil {
		Error(w, http.StatusNotFound, "conversation not found")
		return
	}
	if !conv.HasParticipant(caller.ID) {
		Error(w, http.StatusForbidden, "access denied")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	messages, err := h.repo.ListMessages(r.Context(), conversationID, page, limit)
	if err != nil {
		slog.Error("Failed to list messages", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	messageIDs := make([]string, len(messages))
	for i, msg := range messages {
		messageIDs[i] = msg.ID
	}
	receipts, err := h.repo.ReadReceipts(r.Context(), messageIDs)
	if err != nil {
		slog.Warn("Failed to load read receipts", "conversation_id", conversationID, "error", err)
		receipts = map[string][]domain.ReadReceipt{}
	}

	senders := map[string]domain.UserView{
		conv.ParticipantA: h.userView(r.Context(), conv.ParticipantA),
		conv.ParticipantB: h.userView(r.Context(), conv.ParticipantB),
	}

	views := make([]domain.MessageView, 0, len(messages))
	for _, msg := range messages {
		readBy := receipts[msg.ID]
		if readBy == nil {
			readBy = []domain.ReadReceipt{}
		}
		views = append(views, domain.MessageView{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			Sender:         senders[msg.SenderID],
			Content:        msg.Content,
			ReadBy:         readBy,
			IsRead:         msg.IsRead,
			CreatedAt:      msg.CreatedAt,
		})
	}

	// Fetching a page marks it read, mirroring a client opening the thread.
	if _, err := h.repo.MarkConversationRead(r.Context(), conversationID, caller.ID); err != nil {
		slog.Warn("Failed to mark conversation read", "conversation_id", conversationID, "error", err)
	}

	JSON(w, http.StatusOK, map[string]any{
		"messages": views,
		"page":     page,
		"limit":    limit,
		"hasMore":  len(messages) == limit,
	})
}

type chatUserView struct {
	domain.UserView
	Bio   string `json:"bio,omitempty"`
	Major string `json:"major,omitempty"`
}

func (h *Handler) chatUsers(w http.ResponseWriter, r *http.Request) {
	caller := auth.UserFromContext(r.Context())
	search := r.URL.Query().Get("search")

	users, err := h.repo.SearchUsers(r.Context(), caller.ID, search, 20)
	if err != nil {
		slog.Error("Failed to search users", "error", err)
		Error(w, http.StatusInternalServerError, "failed to search users")
		return
	}

	views := make([]chatUserView, 0, len(users))
	for _, user := range users {
		views = append(views, chatUserView{UserView: user.View(), Bio: user.Bio, Major: user.Major})
	}

	JSON(w, http.StatusOK, map[string]any{"users": views})
}
