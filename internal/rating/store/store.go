// Package store persists games and ratings and owns the rating transaction.
package store

import (
	"context"

	"github.com/example/game-platform/internal/rating/domain"
)

// GameData is the external catalog record handed to the rating transaction.
// Rating/RatingCount are the catalog's aggregate at fetch time.
type GameData struct {
	RawgID      string
	Name        string
	Description string
	CoverPhoto  string
	Rating      *float64
	RatingCount *int
}

// RateParams is one validated rating submission.
type RateParams struct {
	UserID string
	Game   GameData
	Score  float64
	Review string
}

// Store is the persistence port for the rating pipeline.
//
// RateGame runs the whole submission atomically: resolve or create the game
// (keyed by local id or RawgID, never two rows per RawgID), upsert the
// caller's rating on (user, game), recompute the published rating from the
// game's fixed baseline plus all current scores, and persist it. Concurrent
// submissions for the same game serialize inside RateGame.
type Store interface {
	RateGame(ctx context.Context, p RateParams) (domain.RateResult, error)

	// GetGame resolves by local id or RawgID.
	GetGame(ctx context.Context, id string) (domain.Game, error)
	GetSummary(ctx context.Context, id string) (domain.RatingSummary, error)
	GetUserRating(ctx context.Context, gameID, userID string) (float64, bool, error)

	// GameReviews lists reviews newest first; an unknown game yields an
	// empty list, not an error.
	GameReviews(ctx context.Context, gameID string) ([]domain.Review, error)
	UserReviews(ctx context.Context, userID string) ([]domain.Review, error)
}
