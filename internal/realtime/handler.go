package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/coder/websocket"
)

// Handler upgrades HTTP requests to realtime sessions and dispatches their
// inbound events.
type Handler struct {
	authenticator *auth.Authenticator
	registry      *Registry
	chat          *ChatService
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new realtime connection handler.
func NewHandler(authenticator *auth.Authenticator, registry *Registry, chat *ChatService, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		authenticator: authenticator,
		registry:      registry,
		chat:          chat,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade. The
// credential is resolved before the upgrade; a rejected credential
// terminates the connection attempt with no event handling.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.BearerToken(r)
	}

	user, err := h.authenticator.Authenticate(r.Context(), token)
	if err != nil {
		rejectCredential(w, err)
		return
	}
	if user.Banned {
		http.Error(w, "account suspended", http.StatusForbidden)
		return
	}

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", user.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", user.ID)
		}
	}()

	sess := h.registry.Register(user.View())
	defer h.registry.Unregister(sess)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		h.writeLoop(ctx, ws, sess)
	}()

	h.readLoop(ctx, ws, sess)
	slog.Info("Realtime session ended", "user_id", user.ID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// writeLoop drains the session's outbound stream to the socket.
func (h *Handler) writeLoop(ctx context.Context, ws *websocket.Conn, sess *Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sess.Outbound():
			if err := ws.Write(ctx, websocket.MessageText, frame); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err, "user_id", sess.User.ID)
				}
				return
			}
		}
	}
}

// readLoop processes inbound events in receipt order, one at a time.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sess *Session) {
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", sess.User.ID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", sess.User.ID)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			sess.Send(EventError, ErrorPayload{Message: ErrInvalidMessage.Error()})
			continue
		}

		h.dispatch(ctx, sess, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, sess *Session, env Envelope) {
	switch env.Event {
	case EventJoinConversation:
		var conversationID string
		if err := json.Unmarshal(env.Data, &conversationID); err != nil {
			sess.Send(EventError, ErrorPayload{Message: ErrInvalidMessage.Error()})
			return
		}
		if err := h.chat.Join(ctx, sess, conversationID); err != nil {
			h.reportError(sess, env.Event, err)
		}

	case EventLeaveConversation:
		var conversationID string
		if err := json.Unmarshal(env.Data, &conversationID); err != nil {
			return
		}
		h.chat.Leave(sess, conversationID)

	case EventSendMessage:
		var payload SendMessagePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			sess.Send(EventError, ErrorPayload{Message: ErrInvalidMessage.Error()})
			return
		}
		if err := h.chat.SendMessage(ctx, sess, payload.ConversationID, payload.Content); err != nil {
			h.reportError(sess, env.Event, err)
		}

	case EventMarkAsRead:
		var payload MarkAsReadPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			sess.Send(EventError, ErrorPayload{Message: ErrInvalidMessage.Error()})
			return
		}
		if err := h.chat.MarkRead(ctx, sess, payload.ConversationID); err != nil {
			h.reportError(sess, env.Event, err)
		}

	case EventTyping:
		var payload TypingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			// Typing is best-effort; malformed input is dropped.
			return
		}
		h.chat.Typing(sess, payload.ConversationID, payload.IsTyping)

	default:
		slog.Debug("Unknown realtime event", "event", env.Event, "user_id", sess.User.ID)
	}
}

// reportError surfaces a request failure to the originating session only.
func (h *Handler) reportError(sess *Session, event string, err error) {
	if errors.Is(err, ErrInvalidMessage) || errors.Is(err, ErrNotParticipant) {
		sess.Send(EventError, ErrorPayload{Message: err.Error()})
		return
	}
	slog.Error("Realtime request failed", "event", event, "user_id", sess.User.ID, "error", err)
	sess.Send(EventError, ErrorPayload{Message: "internal error"})
}

func rejectCredential(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrExpiredToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnknownUser):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		slog.Error("WebSocket authentication failed", "error", err)
		http.Error(w, "authentication error", http.StatusInternalServerError)
	}
}
