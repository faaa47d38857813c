package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/store"
)

var (
	// ErrInvalidMessage is returned when a request payload is missing its
	// conversation identifier or content.
	ErrInvalidMessage = errors.New("invalid message data")

	// ErrNotParticipant is returned when the caller is not a participant
	// of the named conversation, or the conversation does not exist. The
	// two cases are deliberately indistinguishable.
	ErrNotParticipant = errors.New("conversation not found or access denied")
)

// Notifier creates a durable notification and emits it, plus a recomputed
// unread count, to the recipient's personal channel.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, sender domain.UserView, kind domain.NotificationKind, refs domain.NotificationRefs) (*domain.Notification, error)
}

// ChatService coordinates room membership and the per-send fan-out:
// validate, authorize, persist, broadcast, then notify.
type ChatService struct {
	repo     store.Repository
	registry *Registry
	notifier Notifier
}

// NewChatService creates the chat service over the store, the session
// registry, and the notification dispatcher.
func NewChatService(repo store.Repository, registry *Registry, notifier Notifier) *ChatService {
	return &ChatService{repo: repo, registry: registry, notifier: notifier}
}

// authorize loads the conversation and checks the user is a participant.
func (c *ChatService) authorize(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return nil, ErrNotParticipant
	}
	conv, err := c.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	if conv == nil || !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// Join adds the session to the conversation's channel after verifying the
// caller is a participant, then acknowledges the join to the caller only.
func (c *ChatService) Join(ctx context.Context, sess *Session, conversationID string) error {
	if _, err := c.authorize(ctx, conversationID, sess.User.ID); err != nil {
		return err
	}
	c.registry.Join(sess, ConversationChannel(conversationID))
	sess.Send(EventJoinedConversation, conversationID)
	return nil
}

// Leave removes the session from the conversation's channel. Leaving a
// channel the session is not in is a no-op.
func (c *ChatService) Leave(sess *Session, conversationID string) {
	c.registry.Leave(sess, ConversationChannel(conversationID))
}

// SendMessage runs the fan-out for one send request: persist the message,
// broadcast it to the conversation channel, signal the other participant's
// personal channel, and create a notification unless they are actively
// viewing the conversation.
func (c *ChatService) SendMessage(ctx context.Context, sess *Session, conversationID, content string) error {
	if conversationID == "" || strings.TrimSpace(content) == "" {
		return ErrInvalidMessage
	}

	conv, err := c.authorize(ctx, conversationID, sess.User.ID)
	if err != nil {
		return err
	}

	msg, err := c.repo.AppendMessage(ctx, conversationID, sess.User.ID, content)
	if err != nil {
		if errors.Is(err, store.ErrEmptyContent) {
			return ErrInvalidMessage
		}
		return fmt.Errorf("persist message: %w", err)
	}

	view := domain.MessageView{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Sender:         sess.User,
		Content:        msg.Content,
		ReadBy:         []domain.ReadReceipt{},
		IsRead:         msg.IsRead,
		CreatedAt:      msg.CreatedAt,
	}

	c.registry.Emit(ConversationChannel(conversationID), EventNewMessage, view)

	recipient := conv.OtherParticipant(sess.User.ID)
	c.registry.Emit(UserChannel(recipient), EventMessageReceived, MessageReceivedPayload{
		ConversationID: conversationID,
		Message:        view,
	})

	// Suppress the notification while the recipient is actively viewing
	// the thread. A failure past this point never unwinds the delivered
	// message.
	if !c.registry.IsViewing(conversationID, recipient) {
		refs := domain.NotificationRefs{ConversationID: conversationID, MessageID: msg.ID}
		if _, err := c.notifier.Notify(ctx, recipient, sess.User, domain.NotificationMessage, refs); err != nil {
			slog.Error("Failed to create message notification",
				"conversation_id", conversationID,
				"recipient_id", recipient,
				"error", err)
		}
	}

	return nil
}

// MarkRead marks every unread message from the other participant as read
// and tells them who read the conversation. Idempotent.
func (c *ChatService) MarkRead(ctx context.Context, sess *Session, conversationID string) error {
	conv, err := c.authorize(ctx, conversationID, sess.User.ID)
	if err != nil {
		return err
	}

	if _, err := c.repo.MarkConversationRead(ctx, conversationID, sess.User.ID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	recipient := conv.OtherParticipant(sess.User.ID)
	c.registry.Emit(UserChannel(recipient), EventMessagesRead, MessagesReadPayload{
		ConversationID: conversationID,
		ReadBy:         sess.User.ID,
	})
	return nil
}

// Typing relays an ephemeral typing indicator to the other sessions in the
// conversation channel. Best-effort: malformed input is ignored, nothing is
// persisted, and there is no failure path.
func (c *ChatService) Typing(sess *Session, conversationID string, isTyping bool) {
	if conversationID == "" {
		return
	}
	c.registry.EmitExcept(ConversationChannel(conversationID), sess.ID, EventUserTyping, UserTypingPayload{
		UserID:   sess.User.ID,
		Username: sess.User.Username,
		IsTyping: isTyping,
	})
}
