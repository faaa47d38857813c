package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/store"
	"github.com/go-chi/chi/v5"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusNotFound, "not found")

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "not found" {
		t.Errorf("Expected error message, got %v", got["error"])
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(_ context.Context, recipientID string, _ domain.UserView, kind domain.NotificationKind, _ domain.NotificationRefs) (*domain.Notification, error) {
	return &domain.Notification{ID: "n1", RecipientID: recipientID, Kind: kind}, nil
}

func newTestRouter(t *testing.T) (chi.Router, store.Repository) {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewTokenService("test-secret", time.Hour)
	h := NewHandler(repo, tokens, noopNotifier{})

	r := chi.NewRouter()
	h.RegisterAuthRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.NewAuthenticator(tokens, repo)))
		h.RegisterUserRoutes(r)
		h.RegisterChatRoutes(r)
	})
	return r, repo
}

func postJSON(t *testing.T, r chi.Router, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postJSON(t, r, "/api/auth/register", "", registerRequest{
		Username: "alice",
		Email:    "Alice@Campus.Test",
		Password: "hunter22",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created authResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if created.Token == "" {
		t.Error("Expected a token")
	}
	if created.User.Email != "alice@campus.test" {
		t.Errorf("Expected lowercased email, got %q", created.User.Email)
	}

	// Duplicate email is rejected.
	w = postJSON(t, r, "/api/auth/register", "", registerRequest{
		Username: "alice2",
		Email:    "alice@campus.test",
		Password: "hunter22",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	w = postJSON(t, r, "/api/auth/login", "", loginRequest{Email: "alice@campus.test", Password: "hunter22"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = postJSON(t, r, "/api/auth/login", "", loginRequest{Email: "alice@campus.test", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postJSON(t, r, "/api/auth/register", "", registerRequest{
		Username: "alice",
		Email:    "alice@campus.test",
		Password: "short",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestMeRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestOpenConversation(t *testing.T) {
	r, _ := newTestRouter(t)

	register := func(username string) authResponse {
		w := postJSON(t, r, "/api/auth/register", "", registerRequest{
			Username: username,
			Email:    username + "@campus.test",
			Password: "hunter22",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		var resp authResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		return resp
	}

	alice := register("alice")
	bob := register("bob")

	w := postJSON(t, r, "/api/chat/conversations/"+bob.User.ID, alice.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var opened struct {
		Conversation conversationView `json:"conversation"`
	}
	if err := json.NewDecoder(w.Body).Decode(&opened); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if opened.Conversation.OtherParticipant.ID != bob.User.ID {
		t.Errorf("Expected other participant %q, got %q", bob.User.ID, opened.Conversation.OtherParticipant.ID)
	}

	// Opening from the other side resolves to the same conversation.
	w = postJSON(t, r, "/api/chat/conversations/"+alice.User.ID, bob.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var reopened struct {
		Conversation conversationView `json:"conversation"`
	}
	if err := json.NewDecoder(w.Body).Decode(&reopened); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if reopened.Conversation.ID != opened.Conversation.ID {
		t.Errorf("Expected conversation %q, got %q", opened.Conversation.ID, reopened.Conversation.ID)
	}

	// Self conversations are rejected.
	w = postJSON(t, r, "/api/chat/conversations/"+alice.User.ID, alice.Token, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
