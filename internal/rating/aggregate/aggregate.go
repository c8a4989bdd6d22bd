// Package aggregate holds the pure rating math: the external-baseline weight
// brackets and the published-average blend. Nothing here touches storage.
package aggregate

import (
	"github.com/example/game-platform/internal/rating/domain"
)

// Weight maps an external sample count to an integer blend weight in [0, 100].
// One individual user rating always has weight 1.
//
// Brackets:
//
//	0            -> 0
//	1..100       -> max(1, count/10)
//	101..1000    -> 10 + (count-100)/90
//	1001..10000  -> 20 + (count-1000)/300
//	>10000       -> min(100, 50 + (count-10000)/1000)
func Weight(count int) int {
	switch {
	case count <= 0:
		return 0
	case count <= 100:
		w := count / 10
		if w < 1 {
			w = 1
		}
		return w
	case count <= 1000:
		return 10 + (count-100)/90
	case count <= 10000:
		return 20 + (count-1000)/300
	default:
		w := 50 + (count-10000)/1000
		if w > 100 {
			w = 100
		}
		return w
	}
}

// Published computes a game's published rating from its fixed external
// baseline and the current set of user scores.
//
// With a baseline the external block contributes one combined term of weight
// baselineCount and every user score contributes weight 1:
//
//	(baseline*baselineCount + sum(scores)) / (baselineCount + len(scores))
//
// Without a baseline it is the plain mean of the user scores. A nil baseline
// rating or a non-positive count means no baseline. When neither baseline nor
// scores exist the game is unrated and ErrUnrated is returned.
//
// The result is deterministic and independent of score order.
func Published(baselineRating *float64, baselineCount int, scores []float64) (float64, error) {
	hasBaseline := baselineRating != nil && baselineCount > 0

	var sum float64
	for _, s := range scores {
		sum += s
	}

	if hasBaseline {
		total := float64(baselineCount) + float64(len(scores))
		return (*baselineRating*float64(baselineCount) + sum) / total, nil
	}
	if len(scores) == 0 {
		return 0, domain.ErrUnrated
	}
	return sum / float64(len(scores)), nil
}
