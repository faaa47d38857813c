package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/campuslink/campuslink/internal/auth"
	"github.com/campuslink/campuslink/internal/domain"
	"github.com/campuslink/campuslink/internal/shared"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Major    string `json:"major,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  domain.UserView `json:"user"`
}

// RegisterAuthRoutes mounts the unauthenticated auth endpoints.
func (h *Handler) RegisterAuthRoutes(r chi.Router) {
	r.Post("/api/auth/register", h.register)
	r.Post("/api/auth/login", h.login)
}

// RegisterUserRoutes mounts the authenticated user endpoints.
func (h *Handler) RegisterUserRoutes(r chi.Router) {
	r.Get("/api/users/me", h.me)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" || req.Email == "" || len(req.Password) < 6 {
		Error(w, http.StatusBadRequest, "username, email and a password of at least 6 characters are required")
		return
	}

	existing, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Failed to check existing email", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		Error(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Major:        req.Major,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		if shared.IsSQLiteConstraintError(err) {
			Error(w, http.StatusConflict, "email already registered")
			return
		}
		slog.Error("Failed to create user", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	JSON(w, http.StatusCreated, authResponse{Token: token, User: user.View()})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.Error("Failed to load user for login", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	JSON(w, http.StatusOK, authResponse{Token: token, User: user.View()})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		Error(w, http.StatusUnauthorized, "access token required")
		return
	}
	JSON(w, http.StatusOK, user)
}
