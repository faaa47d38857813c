package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
)

// CreatePost inserts a post record.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *domain.Post) error {
	query := `INSERT INTO posts (id, author_id, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		post.ID, post.AuthorID, post.Content, toMillis(post.CreatedAt)); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// GetPost retrieves a post by ID.
func (s *SQLiteStore) GetPost(ctx context.Context, postID string) (*domain.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, author_id, content, created_at FROM posts WHERE id = ?`, postID)

	var post domain.Post
	var createdAt int64
	err := row.Scan(&post.ID, &post.AuthorID, &post.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan post row: %w", err)
	}
	post.CreatedAt = fromMillis(createdAt)
	return &post, nil
}

// LikePost records a like, idempotently. Returns true only when the like
// did not already exist.
func (s *SQLiteStore) LikePost(ctx context.Context, postID, userID string) (bool, error) {
	query := `
	INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?)
	ON CONFLICT(post_id, user_id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, postID, userID, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("like post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("like rows affected: %w", err)
	}
	return affected > 0, nil
}

// CreateComment inserts a comment record.
func (s *SQLiteStore) CreateComment(ctx context.Context, comment *domain.Comment) error {
	query := `INSERT INTO comments (id, post_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		comment.ID, comment.PostID, comment.AuthorID, comment.Content, toMillis(comment.CreatedAt)); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// CreateFollow inserts a follow request record.
func (s *SQLiteStore) CreateFollow(ctx context.Context, follow *domain.Follow) error {
	query := `
	INSERT INTO follows (id, sender_id, receiver_id, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		follow.ID, follow.SenderID, follow.ReceiverID, follow.Status,
		toMillis(follow.CreatedAt), toMillis(follow.UpdatedAt)); err != nil {
		return fmt.Errorf("create follow: %w", err)
	}
	return nil
}

const followColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

func scanFollow(scan func(...any) error) (*domain.Follow, error) {
	var f domain.Follow
	var createdAt, updatedAt int64
	if err := scan(&f.ID, &f.SenderID, &f.ReceiverID, &f.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = fromMillis(createdAt)
	f.UpdatedAt = fromMillis(updatedAt)
	return &f, nil
}

// GetFollow retrieves a follow request by ID.
func (s *SQLiteStore) GetFollow(ctx context.Context, followID string) (*domain.Follow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+followColumns+` FROM follows WHERE id = ?`, followID)

	f, err := scanFollow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan follow row: %w", err)
	}
	return f, nil
}

// HasActiveFollow reports whether a pending or accepted request already
// exists from sender to receiver.
func (s *SQLiteStore) HasActiveFollow(ctx context.Context, senderID, receiverID string) (bool, error) {
	query := `
	SELECT COUNT(*) FROM follows
	WHERE sender_id = ? AND receiver_id = ? AND status IN (?, ?)`

	var count int
	err := s.db.QueryRowContext(ctx, query,
		senderID, receiverID, domain.FollowPending, domain.FollowAccepted).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("active follow lookup: %w", err)
	}
	return count > 0, nil
}

// UpdateFollowStatus transitions a follow request to a new status.
func (s *SQLiteStore) UpdateFollowStatus(ctx context.Context, followID, status string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE follows SET status = ?, updated_at = ? WHERE id = ?`,
		status, toMillis(time.Now()), followID); err != nil {
		return fmt.Errorf("update follow status: %w", err)
	}
	return nil
}

func (s *SQLiteStore) listFollows(ctx context.Context, column, userID, status string) ([]*domain.Follow, error) {
	query := `
	SELECT ` + followColumns + ` FROM follows
	WHERE ` + column + ` = ? AND status = ?
	ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	var follows []*domain.Follow
	for rows.Next() {
		f, scanErr := scanFollow(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("scan follow row: %w", scanErr)
		}
		follows = append(follows, f)
	}
	return follows, rows.Err()
}

// ListIncomingRequests returns pending requests addressed to the user.
func (s *SQLiteStore) ListIncomingRequests(ctx context.Context, receiverID string) ([]*domain.Follow, error) {
	return s.listFollows(ctx, "receiver_id", receiverID, domain.FollowPending)
}

// ListFollowing returns accepted requests sent by the user.
func (s *SQLiteStore) ListFollowing(ctx context.Context, senderID string) ([]*domain.Follow, error) {
	return s.listFollows(ctx, "sender_id", senderID, domain.FollowAccepted)
}

// ListFollowers returns accepted requests received by the user.
func (s *SQLiteStore) ListFollowers(ctx context.Context, receiverID string) ([]*domain.Follow, error) {
	return s.listFollows(ctx, "receiver_id", receiverID, domain.FollowAccepted)
}
