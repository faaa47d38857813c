package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
)

const notificationColumns = `id, recipient_id, sender_id, kind, post_id, comment_id, follow_id, conversation_id, message_id, read, created_at`

// CreateNotification inserts a notification record.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
	INSERT INTO notifications (` + notificationColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	read := 0
	if n.Read {
		read = 1
	}

	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.SenderID, string(n.Kind),
		n.PostID, n.CommentID, n.FollowID, n.ConversationID, n.MessageID,
		read, toMillis(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func scanNotification(scan func(...any) error) (*domain.Notification, error) {
	var n domain.Notification
	var kind string
	var read int
	var createdAt int64

	err := scan(
		&n.ID, &n.RecipientID, &n.SenderID, &kind,
		&n.PostID, &n.CommentID, &n.FollowID, &n.ConversationID, &n.MessageID,
		&read, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	n.Kind = domain.NotificationKind(kind)
	n.Read = read != 0
	n.CreatedAt = fromMillis(createdAt)
	return &n, nil
}

// GetNotification retrieves a notification by ID.
func (s *SQLiteStore) GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, notificationID)

	n, err := scanNotification(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification row: %w", err)
	}
	return n, nil
}

// ListNotifications returns the recipient's latest notifications.
func (s *SQLiteStore) ListNotifications(ctx context.Context, recipientID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT ` + notificationColumns + ` FROM notifications
	WHERE recipient_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*domain.Notification
	for rows.Next() {
		n, scanErr := scanNotification(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan notification row: %w", scanErr)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadNotificationCount counts the recipient's unread notifications.
func (s *SQLiteStore) UnreadNotificationCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND read = 0`, recipientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread notification count: %w", err)
	}
	return count, nil
}

// MarkNotificationRead sets the read flag on one notification.
func (s *SQLiteStore) MarkNotificationRead(ctx context.Context, notificationID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE id = ?`, notificationID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead sets the read flag on all of the recipient's
// unread notifications.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, recipientID string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE recipient_id = ? AND read = 0`, recipientID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// PruneReadNotifications deletes read notifications created before the cutoff.
func (s *SQLiteStore) PruneReadNotifications(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read = 1 AND created_at < ?`, toMillis(before))
	if err != nil {
		return 0, fmt.Errorf("prune read notifications: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune rows affected: %w", err)
	}
	return deleted, nil
}
