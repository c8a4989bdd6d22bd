// Package handlers exposes registration, login, and session refresh over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/game-platform/internal/auth/domain"
	"github.com/example/game-platform/internal/auth/store"
	"github.com/example/game-platform/internal/auth/tokens"
	"github.com/example/game-platform/internal/platform/analytics"
	"github.com/example/game-platform/internal/platform/api"
	"github.com/example/game-platform/internal/platform/auth"
	"github.com/example/game-platform/internal/platform/httpserver"
)

const maxBodyBytes = 1 << 20

// Users is the persistence surface the handlers need.
type Users interface {
	CreateUser(ctx context.Context, p store.CreateUserParams) (domain.User, error)
	FindUserByLogin(ctx context.Context, login string) (store.UserRow, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	CreateRefreshSession(ctx context.Context, p store.CreateRefreshSessionParams) error
	GetRefreshSessionByHash(ctx context.Context, tokenHash string) (store.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	ReplaceRefreshSession(ctx context.Context, oldID, newID uuid.UUID, now time.Time) error
}

type Handler struct {
	Log    *zap.Logger
	Users  Users
	Tokens tokens.Service
	Events *analytics.Publisher
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type SessionResponse struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	req, err := decodeJSON[RegisterRequest](r)
	if err != nil {
		api.BadRequest(w, "INVALID_BODY", "Request body must be valid JSON", rid, nil)
		return
	}
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if !isValidEmail(email) {
		api.BadRequest(w, "VALIDATION_EMAIL", "Invalid email", rid, map[string]any{"email": "invalid"})
		return
	}
	if !isValidUsername(username) {
		api.BadRequest(w, "VALIDATION_USERNAME", "Invalid username", rid, map[string]any{"username": "invalid"})
		return
	}
	if len(req.Password) < 8 {
		api.BadRequest(w, "VALIDATION_PASSWORD", "Password too short", rid, map[string]any{"password": "min length 8"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("auth: bcrypt failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	u, err := h.Users.CreateUser(r.Context(), store.CreateUserParams{Email: email, Username: username, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			api.Conflict(w, "USER_ALREADY_EXISTS", "User already exists", rid, nil)
			return
		}
		h.Log.Error("auth: create user failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	resp, err := h.issueTokens(r, u)
	if err != nil {
		h.Log.Error("auth: token issue failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	h.Events.Publish(analytics.SubjectAuthRegistered, "user_registered", u.ID, nil)
	api.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	req, err := decodeJSON[LoginRequest](r)
	if err != nil {
		api.BadRequest(w, "INVALID_BODY", "Request body must be valid JSON", rid, nil)
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" {
		api.BadRequest(w, "VALIDATION_LOGIN", "Login is required", rid, map[string]any{"login": "required"})
		return
	}
	if req.Password == "" {
		api.BadRequest(w, "VALIDATION_PASSWORD", "Password is required", rid, map[string]any{"password": "required"})
		return
	}

	row, err := h.Users.FindUserByLogin(r.Context(), login)
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", rid)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)) != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", rid)
		return
	}

	resp, err := h.issueTokens(r, row.User)
	if err != nil {
		h.Log.Error("auth: token issue failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	h.Events.Publish(analytics.SubjectAuthLoggedIn, "user_logged_in", row.User.ID, nil)
	api.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh: rotates the refresh session and
// returns a fresh token pair.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	req, err := decodeJSON[RefreshRequest](r)
	if err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		api.BadRequest(w, "VALIDATION_REFRESH_TOKEN", "refresh_token is required", rid, map[string]any{"refresh_token": "required"})
		return
	}

	sess, err := h.Users.GetRefreshSessionByHash(r.Context(), tokens.HashToken(strings.TrimSpace(req.RefreshToken)))
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", rid)
		return
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", rid)
		return
	}

	u, err := h.Users.GetUserByID(r.Context(), sess.UserID.String())
	if err != nil {
		h.Log.Error("auth: session user lookup failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	access, exp, err := h.Tokens.NewAccessToken(sess.UserID.String(), now)
	if err != nil {
		api.Internal(w, rid)
		return
	}
	newRaw, newHash, err := tokens.NewRefreshToken()
	if err != nil {
		api.Internal(w, rid)
		return
	}
	newID := uuid.New()
	if err := h.Users.ReplaceRefreshSession(r.Context(), sess.ID, newID, now); err != nil {
		h.Log.Error("auth: session rotation failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}
	if err := h.Users.CreateRefreshSession(r.Context(), store.CreateRefreshSessionParams{
		SessionID: newID,
		UserID:    sess.UserID,
		TokenHash: newHash,
		ExpiresAt: now.Add(h.Tokens.RefreshTokenTTL),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		Now:       now,
	}); err != nil {
		h.Log.Error("auth: session create failed", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
		return
	}

	api.WriteJSON(w, http.StatusOK, SessionResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: newRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

// Logout handles POST /api/auth/logout. Always succeeds; revocation of an
// unknown token is a no-op.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	req, err := decodeJSON[RefreshRequest](r)
	if err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		api.BadRequest(w, "VALIDATION_REFRESH_TOKEN", "refresh_token is required", rid, map[string]any{"refresh_token": "required"})
		return
	}
	sess, err := h.Users.GetRefreshSessionByHash(r.Context(), tokens.HashToken(strings.TrimSpace(req.RefreshToken)))
	if err == nil {
		_ = h.Users.RevokeRefreshSession(r.Context(), sess.ID, time.Now().UTC())
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Me handles GET /api/auth/me behind the bearer middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "AUTH_MISSING", "Missing bearer token", rid)
		return
	}
	u, err := h.Users.GetUserByID(r.Context(), userID)
	if err != nil {
		// Token was valid but the user row is gone; report the id only.
		api.WriteJSON(w, http.StatusOK, map[string]any{"user_id": userID})
		return
	}
	api.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) issueTokens(r *http.Request, u domain.User) (SessionResponse, error) {
	now := time.Now().UTC()
	access, exp, err := h.Tokens.NewAccessToken(u.ID, now)
	if err != nil {
		return SessionResponse{}, err
	}
	refreshRaw, refreshHash, err := tokens.NewRefreshToken()
	if err != nil {
		return SessionResponse{}, err
	}
	sessionID := uuid.New()
	userID, _ := uuid.Parse(u.ID)
	if err := h.Users.CreateRefreshSession(r.Context(), store.CreateRefreshSessionParams{
		SessionID: sessionID,
		UserID:    userID,
		TokenHash: refreshHash,
		ExpiresAt: now.Add(h.Tokens.RefreshTokenTTL),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		Now:       now,
	}); err != nil {
		return SessionResponse{}, err
	}

	return SessionResponse{
		User:         u,
		AccessToken:  access,
		RefreshToken: refreshRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	}, nil
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

func isValidUsername(s string) bool {
	return usernameRe.MatchString(strings.TrimSpace(s))
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// clientIP trusts X-Forwarded-For from the edge when present.
func clientIP(r *http.Request) net.IP {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(parts[0])); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func decodeJSON[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	if dec.More() {
		return v, errors.New("unexpected trailing data")
	}
	return v, nil
}
