// Package handlers exposes rating submission and review listings over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/game-platform/internal/platform/api"
	"github.com/example/game-platform/internal/platform/auth"
	"github.com/example/game-platform/internal/platform/httpserver"
	"github.com/example/game-platform/internal/rating/domain"
	"github.com/example/game-platform/internal/rating/service"
	"github.com/example/game-platform/internal/rating/store"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	Log     *zap.Logger
	Ratings *service.Service
	Store   store.Store
}

// RateRequest accepts either a canonical half-star score or a 1-10 integer.
type RateRequest struct {
	Score    float64 `json:"score"`
	ScoreTen int     `json:"score_ten"`
	Review   string  `json:"review"`
}

// PostRating handles POST /api/games/{gameId}/ratings; the id is the RAWG
// catalog id.
func (h *Handler) PostRating(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "UNAUTHORIZED", "Authentication required", rid)
		return
	}

	req, err := decodeJSON[RateRequest](r)
	if err != nil {
		api.BadRequest(w, "INVALID_BODY", "Request body must be valid JSON", rid, nil)
		return
	}

	score := req.Score
	if score == 0 && req.ScoreTen != 0 {
		score, err = domain.FromTenPoint(req.ScoreTen)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}

	res, err := h.Ratings.RateGame(r.Context(), userID, chi.URLParam(r, "gameId"), score, req.Review)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.WasNewGame {
		status = http.StatusCreated
	}
	api.WriteJSON(w, status, res)
}

// GetRating handles GET /api/games/{gameId}/rating. The optional user_id query
// parameter adds that user's own score to the summary.
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameId")

	summary, err := h.Store.GetSummary(r.Context(), gameID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := struct {
		domain.RatingSummary
		UserScore *float64 `json:"user_score,omitempty"`
	}{RatingSummary: summary}

	if userID := strings.TrimSpace(r.URL.Query().Get("user_id")); userID != "" {
		score, found, err := h.Store.GetUserRating(r.Context(), gameID, userID)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		if found {
			resp.UserScore = &score
		}
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// GameReviews handles GET /api/games/{gameId}/reviews.
// An unknown game yields an empty list.
func (h *Handler) GameReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Store.GameReviews(r.Context(), chi.URLParam(r, "gameId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// UserReviews handles GET /api/users/{userId}/reviews.
func (h *Handler) UserReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.Store.UserReviews(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// MyReviews handles GET /api/me/reviews for the authenticated user.
func (h *Handler) MyReviews(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, "UNAUTHORIZED", "Authentication required", rid)
		return
	}
	reviews, err := h.Store.UserReviews(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"reviews": reviews})
}

// writeDomainError maps pipeline errors onto the shared envelope.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		details := make(map[string]any, len(verr.Fields))
		for f, reason := range verr.Fields {
			details[f] = reason
		}
		api.BadRequest(w, "VALIDATION_FAILED", "Invalid rating submission", rid, details)
	case errors.Is(err, domain.ErrNotFound):
		api.NotFound(w, "GAME_NOT_FOUND", "Game not found", rid)
	case errors.Is(err, domain.ErrExternal):
		h.Log.Error("rating: external catalog failure", zap.Error(err), zap.String("request_id", rid))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "Game catalog is unavailable", rid)
	case errors.Is(err, domain.ErrStorage):
		h.Log.Error("rating: storage failure", zap.Error(err), zap.String("request_id", rid))
		api.Unavailable(w, "STORAGE_UNAVAILABLE", "Could not persist rating, try again", rid)
	default:
		h.Log.Error("rating: unexpected failure", zap.Error(err), zap.String("request_id", rid))
		api.Internal(w, rid)
	}
}

// decodeJSON reads a single JSON value, rejecting trailing garbage.
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
