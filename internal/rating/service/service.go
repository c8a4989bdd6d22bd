// Package service composes the rating pipeline: validate, fetch the external
// catalog record, then run the atomic store transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/game-platform/internal/catalog/rawg"
	"github.com/example/game-platform/internal/platform/analytics"
	"github.com/example/game-platform/internal/rating/domain"
	"github.com/example/game-platform/internal/rating/store"
)

type Service struct {
	Log     *zap.Logger
	Catalog rawg.Provider
	Store   store.Store
	Events  *analytics.Publisher

	// AllowDegraded turns storage failures into an explicit simulated
	// (unpersisted) result instead of an error. Off by default.
	AllowDegraded bool
}

// RateGame validates and executes one rating submission.
//
// Validation happens before any I/O; a failed external fetch or storage write
// aborts the whole operation with nothing committed.
func (s *Service) RateGame(ctx context.Context, userID, rawgID string, score float64, review string) (domain.RateResult, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.RateResult{}, domain.NewValidationError("user_id", "required")
	}
	if strings.TrimSpace(rawgID) == "" {
		return domain.RateResult{}, domain.NewValidationError("rawg_game_id", "required")
	}
	if !domain.ValidScore(score) {
		return domain.RateResult{}, domain.NewValidationError("score",
			fmt.Sprintf("must be between %.1f and %.1f in steps of %.1f", domain.ScoreMin, domain.ScoreMax, domain.ScoreStep))
	}
	if len(review) > domain.MaxReviewLen {
		return domain.RateResult{}, domain.NewValidationError("review",
			fmt.Sprintf("must be at most %d characters", domain.MaxReviewLen))
	}

	gameData, err := s.fetchGame(ctx, rawgID)
	if err != nil {
		return domain.RateResult{}, err
	}

	res, err := s.Store.RateGame(ctx, store.RateParams{
		UserID: userID,
		Game:   gameData,
		Score:  score,
		Review: review,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStorage) && s.AllowDegraded {
			s.Log.Warn("rating stored nowhere, returning simulated result",
				zap.String("rawg_id", rawgID), zap.Error(err))
			return simulatedResult(userID, gameData, score, review), nil
		}
		return domain.RateResult{}, err
	}

	s.Events.Publish(analytics.SubjectRatingSubmitted, "rating_submitted", userID, map[string]any{
		"rawg_id":      rawgID,
		"game_id":      res.Game.ID,
		"score":        score,
		"was_new_game": res.WasNewGame,
	})
	return res, nil
}

// fetchGame pulls the catalog record and maps it to store input.
func (s *Service) fetchGame(ctx context.Context, rawgID string) (store.GameData, error) {
	id, err := strconv.Atoi(rawgID)
	if err != nil {
		return store.GameData{}, domain.NewValidationError("rawg_game_id", "must be a numeric catalog id")
	}

	g, err := s.Catalog.GetGame(ctx, id)
	if err != nil {
		if errors.Is(err, rawg.ErrNotFound) {
			return store.GameData{}, domain.ErrNotFound
		}
		return store.GameData{}, fmt.Errorf("%w: %w", domain.ErrExternal, err)
	}

	data := store.GameData{
		RawgID:      strconv.Itoa(g.ID),
		Name:        g.Name,
		Description: g.BestDescription(),
		CoverPhoto:  g.BackgroundImage,
	}
	if g.Rating > 0 && g.RatingsCount > 0 {
		r := g.Rating
		c := g.RatingsCount
		data.Rating = &r
		data.RatingCount = &c
	}
	return data, nil
}

// simulatedResult is the explicit degraded-mode variant: shaped like a real
// result but never persisted, and marked as such.
func simulatedResult(userID string, g store.GameData, score float64, review string) domain.RateResult {
	now := time.Now().UTC()
	published := score
	game := domain.Game{
		ID:              g.RawgID,
		RawgID:          g.RawgID,
		Name:            g.Name,
		Description:     g.Description,
		CoverPhoto:      g.CoverPhoto,
		RawgRating:      g.Rating,
		RawgRatingCount: g.RatingCount,
		PublishedRating: &published,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return domain.RateResult{
		Game: game,
		UserRating: domain.Rating{
			ID:        "sim-" + uuid.NewString(),
			UserID:    userID,
			GameID:    g.RawgID,
			Score:     score,
			Review:    review,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PublishedRating: published,
		WasNewGame:      true,
		WeightUsed:      0,
		Status:          domain.StatusSimulated,
	}
}
