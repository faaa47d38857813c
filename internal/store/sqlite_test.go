package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo Repository, username string) *domain.User {
	t.Helper()
	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        username + "@campus.test",
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	user := newTestUser(t, repo, "alice")

	got, err := repo.GetUser(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "alice", got.Username)

	got, err = repo.GetUserByEmail(ctx, "alice@campus.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, user.ID, got.ID)

	got, err = repo.GetUser(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSearchUsersExcludesCaller(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	alice := newTestUser(t, repo, "alice")
	newTestUser(t, repo, "alicia")
	newTestUser(t, repo, "bob")

	users, err := repo.SearchUsers(ctx, alice.ID, "ali", 20)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "alicia", users[0].Username)
}

func TestFindOrCreateConversation(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	// Reversed participant order resolves to the same conversation.
	second, err := repo.FindOrCreateConversation(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	_, err = repo.FindOrCreateConversation(ctx, "alice", "alice")
	require.ErrorIs(t, err, ErrSelfConversation)
}

func TestFindOrCreateConversationConcurrent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	// Concurrent first calls from both orderings must converge on one record.
	const workers = 20
	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repo.FindOrCreateConversation(ctx, a, b)
			if err != nil {
				t.Errorf("FindOrCreateConversation failed: %v", err)
				return
			}
			ids <- conv.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	distinct := make(map[string]struct{})
	for id := range ids {
		distinct[id] = struct{}{}
	}
	require.Len(t, distinct, 1)
}

func TestAppendMessage(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	msg, err := repo.AppendMessage(ctx, conv.ID, "alice", "  hello  ")
	require.NoError(t, err)
	require.Equal(t, "hello", msg.Content)
	require.False(t, msg.IsRead)

	_, err = repo.AppendMessage(ctx, conv.ID, "alice", "   ")
	require.ErrorIs(t, err, ErrEmptyContent)

	// The conversation pointer tracks the latest message.
	conv, err = repo.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Equal(t, msg.ID, conv.LastMessageID)
	require.False(t, conv.LastMessageAt.IsZero())
}

func TestListConversationsOrdering(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	first, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := repo.FindOrCreateConversation(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = repo.AppendMessage(ctx, first.ID, "bob", "one")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = repo.AppendMessage(ctx, second.ID, "carol", "two")
	require.NoError(t, err)

	conversations, err := repo.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	require.Equal(t, second.ID, conversations[0].ID)
	require.Equal(t, first.ID, conversations[1].ID)
}

func TestListMessagesPagination(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		msg, err := repo.AppendMessage(ctx, conv.ID, "alice", "msg")
		require.NoError(t, err)
		ids = append(ids, msg.ID)
		time.Sleep(2 * time.Millisecond)
	}

	// Page 1 holds the newest two, returned oldest-first within the page.
	page, err := repo.ListMessages(ctx, conv.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, ids[3], page[0].ID)
	require.Equal(t, ids[4], page[1].ID)

	page, err = repo.ListMessages(ctx, conv.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[0], page[0].ID)
}

func TestMarkConversationRead(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	conv, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
	require.NoError(t, err)

	fromAlice, err := repo.AppendMessage(ctx, conv.ID, "alice", "hi")
	require.NoError(t, err)
	fromBob, err := repo.AppendMessage(ctx, conv.ID, "bob", "hey")
	require.NoError(t, err)

	count, err := repo.UnreadMessageCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// Bob reads; only alice's message is marked, never his own.
	marked, err := repo.MarkConversationRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 1, marked)

	receipts, err := repo.ReadReceipts(ctx, []string{fromAlice.ID, fromBob.ID})
	require.NoError(t, err)
	require.Len(t, receipts[fromAlice.ID], 1)
	require.Equal(t, "bob", receipts[fromAlice.ID][0].UserID)
	require.Empty(t, receipts[fromBob.ID])

	count, err = repo.UnreadMessageCount(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	// Marking again is a no-op.
	marked, err = repo.MarkConversationRead(ctx, conv.ID, "bob")
	require.NoError(t, err)
	require.EqualValues(t, 0, marked)
}

func TestNotificationLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	n := &domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: "bob",
		SenderID:    "alice",
		Kind:        domain.NotificationLike,
		PostID:      "p1",
		CreatedAt:   time.Now(),
	}
	require.NoError(t, repo.CreateNotification(ctx, n))

	count, err := repo.UnreadNotificationCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	list, err := repo.ListNotifications(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, domain.NotificationLike, list[0].Kind)
	require.Equal(t, "p1", list[0].PostID)

	require.NoError(t, repo.MarkNotificationRead(ctx, n.ID))
	count, err = repo.UnreadNotificationCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, count)

	got, err := repo.GetNotification(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateNotification(ctx, &domain.Notification{
			ID:          uuid.New().String(),
			RecipientID: "bob",
			SenderID:    "alice",
			Kind:        domain.NotificationComment,
			CreatedAt:   time.Now(),
		}))
	}

	require.NoError(t, repo.MarkAllNotificationsRead(ctx, "bob"))

	count, err := repo.UnreadNotificationCount(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestPruneReadNotifications(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	old := &domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: "bob",
		SenderID:    "alice",
		Kind:        domain.NotificationLike,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.CreateNotification(ctx, old))
	require.NoError(t, repo.MarkNotificationRead(ctx, old.ID))

	// Unread notifications are never pruned regardless of age.
	oldUnread := &domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: "bob",
		SenderID:    "alice",
		Kind:        domain.NotificationLike,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	require.NoError(t, repo.CreateNotification(ctx, oldUnread))

	removed, err := repo.PruneReadNotifications(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	got, err := repo.GetNotification(ctx, old.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = repo.GetNotification(ctx, oldUnread.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestLikePostIdempotent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	post := &domain.Post{ID: uuid.New().String(), AuthorID: "alice", Content: "hi", CreatedAt: time.Now()}
	require.NoError(t, repo.CreatePost(ctx, post))

	liked, err := repo.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)
	require.True(t, liked)

	liked, err = repo.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)
	require.False(t, liked)
}

func TestFollowLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	follow := &domain.Follow{
		ID:         uuid.New().String(),
		SenderID:   "alice",
		ReceiverID: "bob",
		Status:     domain.FollowPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.CreateFollow(ctx, follow))

	active, err := repo.HasActiveFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, active)

	pending, err := repo.ListIncomingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.UpdateFollowStatus(ctx, follow.ID, domain.FollowAccepted))

	following, err := repo.ListFollowing(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, following, 1)
	followers, err := repo.ListFollowers(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, followers, 1)

	pending, err = repo.ListIncomingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Empty(t, pending)

	// Accepted still counts as active; rejected does not.
	active, err = repo.HasActiveFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, repo.UpdateFollowStatus(ctx, follow.ID, domain.FollowRejected))
	active, err = repo.HasActiveFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	require.False(t, active)
}
