// Package domain defines the game and rating records shared by the rating
// pipeline, its stores, and its HTTP handlers.
package domain

import "time"

// Game is the locally stored catalog record. RawgID is the join key to the
// external catalog; at most one Game exists per RawgID.
//
// BaselineRating/BaselineCount are the external aggregate captured when the
// record was first created. They never change afterwards and are the only
// external contribution to PublishedRating. RawgRating/RawgRatingCount are
// refreshed on every submission and are display-only.
type Game struct {
	ID              string    `json:"id"`
	RawgID          string    `json:"rawg_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	CoverPhoto      string    `json:"cover_photo,omitempty"`
	RawgRating      *float64  `json:"rawg_rating,omitempty"`
	RawgRatingCount *int      `json:"rawg_rating_count,omitempty"`
	BaselineRating  *float64  `json:"baseline_rating,omitempty"`
	BaselineCount   int       `json:"baseline_count"`
	PublishedRating *float64  `json:"published_rating,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Rating is one user's score for one game. Identity is (UserID, GameID);
// resubmitting replaces the row, it never duplicates it.
type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	GameID    string    `json:"game_id"`
	Score     float64   `json:"score"`
	Review    string    `json:"review,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RatingSummary is the aggregate view served for a game.
type RatingSummary struct {
	GameID          string   `json:"game_id"`
	PublishedRating *float64 `json:"published_rating,omitempty"`
	TotalRatings    int      `json:"total_ratings"`
}

// UserRef identifies the author on a game's review listing.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
}

// GameRef identifies the game on a user's review listing.
type GameRef struct {
	ID         string `json:"id"`
	RawgID     string `json:"rawg_id"`
	Name       string `json:"name"`
	CoverPhoto string `json:"cover_photo,omitempty"`
}

// Review is a rating joined with its author and game, newest first in listings.
type Review struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	Review    string    `json:"review,omitempty"`
	User      UserRef   `json:"user"`
	Game      GameRef   `json:"game"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResultStatus distinguishes committed results from the explicit degraded-mode
// variant that was never persisted.
type ResultStatus string

const (
	StatusPersisted ResultStatus = "persisted"
	StatusSimulated ResultStatus = "simulated"
)

// RateResult is the outcome of one rating submission.
type RateResult struct {
	Game            Game         `json:"game"`
	UserRating      Rating       `json:"user_rating"`
	PublishedRating float64      `json:"published_rating"`
	WasNewGame      bool         `json:"was_new_game"`
	WeightUsed      int          `json:"weight_used"`
	Status          ResultStatus `json:"status"`
}
