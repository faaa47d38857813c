package domain

import (
	"time"
)

// NotificationKind enumerates the closed set of notification triggers.
type NotificationKind string

const (
	NotificationLike          NotificationKind = "like"
	NotificationComment       NotificationKind = "comment"
	NotificationFollowRequest NotificationKind = "follow_request"
	NotificationFollowAccept  NotificationKind = "follow_accept"
	NotificationFollowReject  NotificationKind = "follow_reject"
	NotificationMessage       NotificationKind = "message"
)

// Valid reports whether the kind is one of the known notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationLike, NotificationComment, NotificationFollowRequest,
		NotificationFollowAccept, NotificationFollowReject, NotificationMessage:
		return true
	}
	return false
}

// NotificationRefs carries the optional entity references a notification
// points at. Unused fields stay empty.
type NotificationRefs struct {
	PostID         string
	CommentID      string
	FollowID       string
	ConversationID string
	MessageID      string
}

// Notification is a durable per-recipient event record. It is created
// exactly once per triggering event; only its read flag is ever updated.
type Notification struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	SenderID       string           `json:"sender_id"`
	Kind           NotificationKind `json:"kind"`
	PostID         string           `json:"post_id,omitempty"`
	CommentID      string           `json:"comment_id,omitempty"`
	FollowID       string           `json:"follow_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	MessageID      string           `json:"message_id,omitempty"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationView is a notification with its sender resolved, as emitted
// to the recipient's personal channel and returned by the HTTP API.
type NotificationView struct {
	ID             string           `json:"id"`
	RecipientID    string           `json:"recipient_id"`
	Sender         UserView         `json:"sender"`
	Kind           NotificationKind `json:"kind"`
	PostID         string           `json:"post_id,omitempty"`
	CommentID      string           `json:"comment_id,omitempty"`
	FollowID       string           `json:"follow_id,omitempty"`
	ConversationID string           `json:"conversation_id,omitempty"`
	MessageID      string           `json:"message_id,omitempty"`
	Read           bool             `json:"read"`
	CreatedAt      time.Time        `json:"created_at"`
}

// View resolves the notification against its sender.
func (n *Notification) View(sender UserView) NotificationView {
	return NotificationView{
		ID:             n.ID,
		RecipientID:    n.RecipientID,
		Sender:         sender,
		Kind:           n.Kind,
		PostID:         n.PostID,
		CommentID:      n.CommentID,
		FollowID:       n.FollowID,
		ConversationID: n.ConversationID,
		MessageID:      n.MessageID,
		Read:           n.Read,
		CreatedAt:      n.CreatedAt,
	}
}
