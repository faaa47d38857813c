package notify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/realtime"
	"github.com/campuslink/campuslink/internal/store"
	"github.com/google/uuid"
)

type emitCall struct {
	channel string
	event   string
	payload any
}

type fakePublisher struct {
	calls []emitCall
}

func (f *fakePublisher) Emit(channel, event string, payload any) {
	f.calls = append(f.calls, emitCall{channel: channel, event: event, payload: payload})
}

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestDispatcher_NotifyPersistsAndEmits(t *testing.T) {
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub)

	sender := domain.UserView{ID: "alice", Username: "alice"}
	refs := domain.NotificationRefs{PostID: "p1"}

	n, err := d.Notify(context.Background(), "bob", sender, domain.NotificationLike, refs)
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.PostID != "p1" {
		t.Errorf("Expected post ref p1, got %q", n.PostID)
	}

	stored, err := repo.GetNotification(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected notification to be persisted")
	}
	if stored.Kind != domain.NotificationLike {
		t.Errorf("Expected kind like, got %q", stored.Kind)
	}

	if len(pub.calls) != 2 {
		t.Fatalf("Expected 2 emits, got %d", len(pub.calls))
	}

	first := pub.calls[0]
	if first.channel != realtime.UserChannel("bob") {
		t.Errorf("Expected channel %q, got %q", realtime.UserChannel("bob"), first.channel)
	}
	if first.event != realtime.EventNewNotification {
		t.Errorf("Expected event %q, got %q", realtime.EventNewNotification, first.event)
	}
	view, ok := first.payload.(domain.NotificationView)
	if !ok {
		t.Fatalf("Expected NotificationView payload, got %T", first.payload)
	}
	if view.Sender.ID != "alice" {
		t.Errorf("Expected sender alice, got %q", view.Sender.ID)
	}

	second := pub.calls[1]
	if second.event != realtime.EventUnreadCountUpdate {
		t.Errorf("Expected event %q, got %q", realtime.EventUnreadCountUpdate, second.event)
	}
	count, ok := second.payload.(realtime.UnreadCountPayload)
	if !ok {
		t.Fatalf("Expected UnreadCountPayload, got %T", second.payload)
	}
	if count.Count != 1 {
		t.Errorf("Expected unread count 1, got %d", count.Count)
	}
}

func TestDispatcher_NotifyRejectsUnknownKind(t *testing.T) {
	repo := newTestRepo(t)
	pub := &fakePublisher{}
	d := NewDispatcher(repo, pub)

	_, err := d.Notify(context.Background(), "bob", domain.UserView{ID: "alice"}, "poke", domain.NotificationRefs{})
	if err == nil {
		t.Fatal("Expected error for unknown kind")
	}
	if len(pub.calls) != 0 {
		t.Errorf("Expected no emits, got %d", len(pub.calls))
	}
}

func TestPruneOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	old := &domain.Notification{
		ID:          uuid.New().String(),
		RecipientID: "bob",
		SenderID:    "alice",
		Kind:        domain.NotificationLike,
		CreatedAt:   time.Now().Add(-72 * time.Hour),
	}
	if err := repo.CreateNotification(ctx, old); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if err := repo.MarkNotificationRead(ctx, old.ID); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}

	pruneOnce(ctx, repo, 24*time.Hour)

	got, err := repo.GetNotification(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetNotification failed: %v", err)
	}
	if got != nil {
		t.Error("Expected old read notification to be pruned")
	}
}
