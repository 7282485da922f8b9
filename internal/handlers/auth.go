package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"tablebook/internal/auth"
	"tablebook/internal/db"
	"tablebook/internal/model"
	"tablebook/internal/outbox"
	"tablebook/internal/storage"
)

type AuthHandler struct {
	pool      *db.Pool
	users     *storage.UserRepository
	outbox    *outbox.Repository
	logger    *slog.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthHandler(pool *db.Pool, users *storage.UserRepository, outboxRepo *outbox.Repository, logger *slog.Logger, jwtSecret string, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		pool:      pool,
		users:     users,
		outbox:    outboxRepo,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || req.Password == "" || req.FullName == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email, password and full_name required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
	}

	ctx := r.Context()
	tx, err := h.pool.Begin(ctx)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.users.CreateTx(ctx, tx, &user); err != nil {
		if storage.IsDuplicate(err) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "email already registered"})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"user_id":   user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     "auth.user.registered.v1",
		Payload:       payload,
	}); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password required"})
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if storage.IsNotFound(err) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid email or password"})
		return
	}

	token, err := h.issueToken(user)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (h *AuthHandler) issueToken(user model.User) (string, error) {
	now := time.Now()
	return auth.SignHS256(auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		Admin: user.IsAdmin,
		Iat:   now.Unix(),
		Exp:   now.Add(h.tokenTTL).Unix(),
	}, h.jwtSecret)
}
