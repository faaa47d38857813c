// Package realtime provides the websocket transport, the live session
// registry, and the message fan-out engine.
package realtime

import (
	"encoding/json"

	"github.com/campuslink/campuslink/internal/domain"
)

// Inbound event names consumed from clients.
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventMarkAsRead        = "mark_as_read"
	EventTyping            = "typing"
)

// Outbound event names produced for clients.
const (
	EventJoinedConversation = "joined_conversation"
	EventError              = "error"
	EventNewMessage         = "new_message"
	EventMessageReceived    = "message_received"
	EventMessagesRead       = "messages_read"
	EventUserTyping         = "user_typing"
	EventNewNotification    = "new-notification"
	EventUnreadCountUpdate  = "unread-count-update"
)

// UserChannel returns the personal channel key for a user.
func UserChannel(userID string) string {
	return "user_" + userID
}

// ConversationChannel returns the channel key for a conversation.
func ConversationChannel(conversationID string) string {
	return "conversation_" + conversationID
}

// Envelope frames every event on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessagePayload is the client request to send a message.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// MarkAsReadPayload is the client request to mark a conversation read.
type MarkAsReadPayload struct {
	ConversationID string `json:"conversationId"`
}

// TypingPayload is the client typing-state signal.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload carries a request failure back to the originating session.
type ErrorPayload struct {
	Message string `json:"message"`
}

// MessageReceivedPayload is the lightweight per-recipient delivery signal.
type MessageReceivedPayload struct {
	ConversationID string             `json:"conversationId"`
	Message        domain.MessageView `json:"message"`
}

// MessagesReadPayload tells the other participant who read the conversation.
type MessagesReadPayload struct {
	ConversationID string `json:"conversationId"`
	ReadBy         string `json:"readBy"`
}

// UserTypingPayload relays a typing indicator to the conversation.
type UserTypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// UnreadCountPayload carries a recomputed unread notification count.
type UnreadCountPayload struct {
	Count int `json:"count"`
}
