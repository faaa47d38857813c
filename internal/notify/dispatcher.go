// Package notify creates durable notifications and pushes them to the
// recipient's personal channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/realtime"
	"github.com/campuslink/campuslink/internal/store"
	"github.com/google/uuid"
)

// Publisher is the capability to emit an event to a realtime channel.
type Publisher interface {
	Emit(channel, event string, payload any)
}

// Dispatcher creates one notification row per triggering event and,
// synchronously, emits the populated notification and a freshly recomputed
// unread count to the recipient's personal channel. The message fan-out and
// the HTTP controllers all go through the same path.
type Dispatcher struct {
	repo      store.Repository
	publisher Publisher
}

// NewDispatcher creates a dispatcher over the store and event publisher.
func NewDispatcher(repo store.Repository, publisher Publisher) *Dispatcher {
	return &Dispatcher{repo: repo, publisher: publisher}
}

// Notify persists the notification and emits it to the recipient.
func (d *Dispatcher) Notify(ctx context.Context, recipientID string, sender domain.UserView, kind domain.NotificationKind, refs domain.NotificationRefs) (*domain.Notification, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown notification kind %q", kind)
	}

	n := &domain.Notification{
		ID:             uuid.New().String(),
		RecipientID:    recipientID,
		SenderID:       sender.ID,
		Kind:           kind,
		PostID:         refs.PostID,
		CommentID:      refs.CommentID,
		FollowID:       refs.FollowID,
		ConversationID: refs.ConversationID,
		MessageID:      refs.MessageID,
		CreatedAt:      time.Now(),
	}

	if err := d.repo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	channel := realtime.UserChannel(recipientID)
	d.publisher.Emit(channel, realtime.EventNewNotification, n.View(sender))

	count, err := d.repo.UnreadNotificationCount(ctx, recipientID)
	if err != nil {
		// The notification itself is already delivered; a stale count is
		// tolerable.
		slog.Warn("Failed to recompute unread count", "recipient_id", recipientID, "error", err)
		return n, nil
	}
	d.publisher.Emit(channel, realtime.EventUnreadCountUpdate, realtime.UnreadCountPayload{Count: count})

	return n, nil
}
