// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
)

var (
	// ErrSelfConversation is returned when a user attempts to open a
	// conversation with themselves.
	ErrSelfConversation = errors.New("cannot create conversation with yourself")

	// ErrEmptyContent is returned when message content trims to empty.
	ErrEmptyContent = errors.New("empty content")
)

// Repository defines the interface for persisting users, conversations,
// messages, notifications, and the social graph.
type Repository interface {
	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUser retrieves a user by ID. Returns (nil, nil) if absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetUserByEmail retrieves a user by email. Returns (nil, nil) if absent.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// SearchUsers returns up to limit users matching the search term by
	// username or email, excluding the given user.
	SearchUsers(ctx context.Context, excludeID, search string, limit int) ([]*domain.User, error)

	// FindOrCreateConversation returns the unique conversation for the
	// unordered pair, creating it if absent. Participant order is
	// irrelevant; concurrent first calls resolve to the same record.
	// Returns ErrSelfConversation when both IDs are equal.
	FindOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error)

	// GetConversation retrieves a conversation by ID. Returns (nil, nil)
	// if absent.
	GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// ListConversations returns the user's conversations, most recently
	// active first.
	ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error)

	// AppendMessage persists a message and then advances the conversation's
	// last-message pointer and activity timestamp. The message row exists
	// before the pointer references it. Returns ErrEmptyContent when the
	// content trims to empty.
	AppendMessage(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error)

	// GetMessage retrieves a message by ID. Returns (nil, nil) if absent.
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)

	// ListMessages returns a page of messages in ascending creation order.
	ListMessages(ctx context.Context, conversationID string, page, limit int) ([]*domain.Message, error)

	// ReadReceipts returns the reader sets for the given messages, keyed
	// by message ID.
	ReadReceipts(ctx context.Context, messageIDs []string) (map[string][]domain.ReadReceipt, error)

	// MarkConversationRead marks every message in the conversation that the
	// reader did not author and has not already read. Idempotent; returns
	// the number of newly marked messages.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// UnreadMessageCount counts messages in the conversation authored by
	// someone else that the viewer has not read.
	UnreadMessageCount(ctx context.Context, conversationID, viewerID string) (int, error)

	// CreateNotification inserts a notification record.
	CreateNotification(ctx context.Context, n *domain.Notification) error

	// GetNotification retrieves a notification by ID. Returns (nil, nil)
	// if absent.
	GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error)

	// ListNotifications returns the recipient's latest notifications.
	ListNotifications(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error)

	// UnreadNotificationCount counts the recipient's unread notifications.
	UnreadNotificationCount(ctx context.Context, recipientID string) (int, error)

	// MarkNotificationRead sets the read flag on one notification.
	MarkNotificationRead(ctx context.Context, notificationID string) error

	// MarkAllNotificationsRead sets the read flag on all of the
	// recipient's unread notifications.
	MarkAllNotificationsRead(ctx context.Context, recipientID string) error

	// PruneReadNotifications deletes read notifications created before the
	// cutoff and returns the number removed.
	PruneReadNotifications(ctx context.Context, before time.Time) (int64, error)

	// CreatePost inserts a post record.
	CreatePost(ctx context.Context, post *domain.Post) error

	// GetPost retrieves a post by ID. Returns (nil, nil) if absent.
	GetPost(ctx context.Context, postID string) (*domain.Post, error)

	// LikePost records a like. Returns true if the like was newly created,
	// false if the user had already liked the post.
	LikePost(ctx context.Context, postID, userID string) (bool, error)

	// CreateComment inserts a comment record.
	CreateComment(ctx context.Context, comment *domain.Comment) error

	// CreateFollow inserts a follow request record.
	CreateFollow(ctx context.Context, follow *domain.Follow) error

	// GetFollow retrieves a follow request by ID. Returns (nil, nil)
	// if absent.
	GetFollow(ctx context.Context, followID string) (*domain.Follow, error)

	// HasActiveFollow reports whether a pending or accepted request
	// already exists from sender to receiver.
	HasActiveFollow(ctx context.Context, senderID, receiverID string) (bool, error)

	// UpdateFollowStatus transitions a follow request to a new status.
	UpdateFollowStatus(ctx context.Context, followID, status string) error

	// ListIncomingRequests returns pending requests addressed to the user.
	ListIncomingRequests(ctx context.Context, receiverID string) ([]*domain.Follow, error)

	// ListFollowing returns accepted requests sent by the user.
	ListFollowing(ctx context.Context, senderID string) ([]*domain.Follow, error)

	// ListFollowers returns accepted requests received by the user.
	ListFollowers(ctx context.Context, receiverID string) ([]*domain.Follow, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
