package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/google/uuid"
)

const conversationColumns = `id, participant_a, participant_b, last_message_id, last_message_at, created_at`

func scanConversation(scan func(...any) error) (*domain.Conversation, error) {
	var conv domain.Conversation
	var lastMessageID sql.NullString
	var lastMessageAt, createdAt int64

	err := scan(
		&conv.ID, &conv.ParticipantA, &conv.ParticipantB,
		&lastMessageID, &lastMessageAt, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation row: %w", err)
	}

	conv.LastMessageID = lastMessageID.String
	if lastMessageAt > 0 {
		conv.LastMessageAt = fromMillis(lastMessageAt)
	}
	conv.CreatedAt = fromMillis(createdAt)
	return &conv, nil
}

// FindOrCreateConversation returns the unique conversation for an unordered
// participant pair, creating it on first use. The pair_key uniqueness
// constraint makes concurrent first calls converge on one record.
func (s *SQLiteStore) FindOrCreateConversation(ctx context.Context, userA, userB string) (*domain.Conversation, error) {
	if userA == userB {
		return nil, ErrSelfConversation
	}

	pairKey := domain.PairKey(userA, userB)
	now := time.Now()

	insert := `
	INSERT INTO conversations (id, participant_a, participant_b, pair_key, last_message_at, created_at)
	VALUES (?, ?, ?, ?, 0, ?)
	ON CONFLICT(pair_key) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, insert, uuid.New().String(), userA, userB, pairKey, toMillis(now)); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE pair_key = ?`, pairKey)
	conv, err := scanConversation(row.Scan)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation vanished after insert for pair %s", pairKey)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conversationID)
	return scanConversation(row.Scan)
}

// ListConversations returns the user's conversations, most recently active first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	query := `
	SELECT ` + conversationColumns + ` FROM conversations
	WHERE participant_a = ? OR participant_b = ?
	ORDER BY last_message_at DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conv, scanErr := scanConversation(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// AppendMessage persists a message, then advances the conversation's
// last-message pointer. The insert commits before the pointer update so the
// pointer never references a missing message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, conversationID, senderID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	insert := `
	INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at)
	VALUES (?, ?, ?, ?, 0, ?)`
	if _, err := s.db.ExecContext(ctx, insert,
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content, toMillis(msg.CreatedAt)); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	update := `
	UPDATE conversations SET last_message_id = ?, last_message_at = ?
	WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, update, msg.ID, toMillis(msg.CreatedAt), conversationID); err != nil {
		return nil, fmt.Errorf("update conversation pointer: %w", err)
	}

	return msg, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, sender_id, content, is_read, created_at FROM messages WHERE id = ?`, messageID)

	var msg domain.Message
	var isRead int
	var createdAt int64
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &isRead, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	msg.IsRead = isRead != 0
	msg.CreatedAt = fromMillis(createdAt)
	return &msg, nil
}

// ListMessages returns one page of conversation messages in ascending
// creation order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string, page, limit int) ([]*domain.Message, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := `
	SELECT id, conversation_id, sender_id, content, is_read, created_at
	FROM messages
	WHERE conversation_id = ?
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		var isRead int
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &isRead, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.IsRead = isRead != 0
		msg.CreatedAt = fromMillis(createdAt)
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Page is fetched newest-first, returned oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ReadReceipts returns reader sets for the given messages keyed by message ID.
func (s *SQLiteStore) ReadReceipts(ctx context.Context, messageIDs []string) (map[string][]domain.ReadReceipt, error) {
	receipts := make(map[string][]domain.ReadReceipt, len(messageIDs))
	if len(messageIDs) == 0 {
		return receipts, nil
	}

	placeholders := strings.Repeat("?,", len(messageIDs)-1) + "?"
	args := make([]any, len(messageIDs))
	for i, id := range messageIDs {
		args[i] = id
	}

	query := `
	SELECT message_id, user_id, read_at FROM message_reads
	WHERE message_id IN (` + placeholders + `)
	ORDER BY read_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read receipts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var messageID string
		var receipt domain.ReadReceipt
		var readAt int64
		if err := rows.Scan(&messageID, &receipt.UserID, &readAt); err != nil {
			return nil, fmt.Errorf("scan receipt row: %w", err)
		}
		receipt.ReadAt = fromMillis(readAt)
		receipts[messageID] = append(receipts[messageID], receipt)
	}
	return receipts, rows.Err()
}

// MarkConversationRead appends the reader to every unread message not
// authored by them and flips the aggregate flag. Re-invoking with nothing
// new to mark is a no-op.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin mark read: %w", err)
	}
	defer tx.Rollback()

	insert := `
	INSERT INTO message_reads (message_id, user_id, read_at)
	SELECT m.id, ?, ? FROM messages m
	WHERE m.conversation_id = ? AND m.sender_id <> ?
	  AND NOT EXISTS (
		SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?
	  )`

	res, err := tx.ExecContext(ctx, insert, readerID, toMillis(time.Now()), conversationID, readerID, readerID)
	if err != nil {
		return 0, fmt.Errorf("insert read receipts: %w", err)
	}
	marked, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read receipt rows affected: %w", err)
	}

	if marked > 0 {
		update := `
		UPDATE messages SET is_read = 1
		WHERE conversation_id = ? AND sender_id <> ? AND is_read = 0`
		if _, err := tx.ExecContext(ctx, update, conversationID, readerID); err != nil {
			return 0, fmt.Errorf("set read flags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mark read: %w", err)
	}
	return marked, nil
}

// UnreadMessageCount counts messages authored by someone else with no
// reader-set entry for the viewer.
func (s *SQLiteStore) UnreadMessageCount(ctx context.Context, conversationID, viewerID string) (int, error) {
	query := `
	SELECT COUNT(*) FROM messages m
	WHERE m.conversation_id = ? AND m.sender_id <> ?
	  AND NOT EXISTS (
		SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?
	  )`

	var count int
	if err := s.db.QueryRowContext(ctx, query, conversationID, viewerID, viewerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("unread message count: %w", err)
	}
	return count, nil
}
