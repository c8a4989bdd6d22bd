package domain

import "math"

// Canonical score scale: half-star steps from 0.5 to 5.0.
// Ten-point inputs are converted at the boundary via FromTenPoint.
const (
	ScoreMin  = 0.5
	ScoreMax  = 5.0
	ScoreStep = 0.5

	// MaxReviewLen bounds the free-text review.
	MaxReviewLen = 4000
)

// ValidScore reports whether s is on the canonical scale.
func ValidScore(s float64) bool {
	if s < ScoreMin || s > ScoreMax {
		return false
	}
	steps := s / ScoreStep
	return math.Abs(steps-math.Round(steps)) < 1e-9
}

// FromTenPoint converts a 1-10 integer score to the canonical scale.
func FromTenPoint(s int) (float64, error) {
	if s < 1 || s > 10 {
		return 0, NewValidationError("score_ten", "must be between 1 and 10")
	}
	return float64(s) / 2, nil
}
