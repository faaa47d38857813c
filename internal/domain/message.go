package domain

import (
	"time"
)

// Message is a single immutable chat message. Only its reader set and
// aggregate read flag mutate after creation, append-only.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ReadReceipt records that a user read a message. The sender of a message
// never appears in its own reader set.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// MessageView is a message with its sender resolved and reader set attached,
// as delivered over the realtime channel and the HTTP API.
type MessageView struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Sender         UserView      `json:"sender"`
	Content        string        `json:"content"`
	ReadBy         []ReadReceipt `json:"read_by"`
	IsRead         bool          `json:"is_read"`
	CreatedAt      time.Time     `json:"created_at"`
}
