package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/game-platform/internal/rating/aggregate"
	"github.com/example/game-platform/internal/rating/domain"
)

// MemoryStore is the in-memory Store twin used for development without
// Postgres and for pipeline tests. Same semantics as the Postgres store,
// one mutex instead of transactions.
type MemoryStore struct {
	mu      sync.Mutex
	games   map[string]*domain.Game              // local id -> game
	byRawg  map[string]string                    // rawg id -> local id
	ratings map[string]map[string]*domain.Rating // game id -> user id -> rating
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[string]*domain.Game),
		byRawg:  make(map[string]string),
		ratings: make(map[string]map[string]*domain.Rating),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) RateGame(_ context.Context, p RateParams) (domain.RateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	// Resolve by local id or rawg id; legacy rows may be keyed by the
	// external id directly.
	game := s.resolve(p.Game.RawgID)

	wasNew := game == nil
	weightUsed := 0
	if wasNew {
		count := 0
		if p.Game.RatingCount != nil {
			count = *p.Game.RatingCount
		}
		game = &domain.Game{
			ID:              uuid.NewString(),
			RawgID:          p.Game.RawgID,
			Name:            p.Game.Name,
			Description:     p.Game.Description,
			CoverPhoto:      p.Game.CoverPhoto,
			RawgRating:      p.Game.Rating,
			RawgRatingCount: p.Game.RatingCount,
			BaselineRating:  p.Game.Rating,
			BaselineCount:   count,
			CreatedAt:       now,
		}
		s.games[game.ID] = game
		s.byRawg[game.RawgID] = game.ID
		weightUsed = aggregate.Weight(count)
	} else {
		// Refresh metadata; the baseline stays as captured at creation.
		game.Name = p.Game.Name
		game.Description = p.Game.Description
		game.CoverPhoto = p.Game.CoverPhoto
		game.RawgRating = p.Game.Rating
		game.RawgRatingCount = p.Game.RatingCount
	}
	game.UpdatedAt = now

	users := s.ratings[game.ID]
	if users == nil {
		users = make(map[string]*domain.Rating)
		s.ratings[game.ID] = users
	}
	r := users[p.UserID]
	if r == nil {
		r = &domain.Rating{
			ID:        uuid.NewString(),
			UserID:    p.UserID,
			GameID:    game.ID,
			CreatedAt: now,
		}
		users[p.UserID] = r
	}
	r.Score = p.Score
	r.Review = p.Review
	r.UpdatedAt = now

	scores := make([]float64, 0, len(users))
	for _, ur := range users {
		scores = append(scores, ur.Score)
	}
	published, err := aggregate.Published(game.BaselineRating, game.BaselineCount, scores)
	if err != nil {
		return domain.RateResult{}, err
	}
	game.PublishedRating = &published

	return domain.RateResult{
		Game:            *game,
		UserRating:      *r,
		PublishedRating: published,
		WasNewGame:      wasNew,
		WeightUsed:      weightUsed,
		Status:          domain.StatusPersisted,
	}, nil
}

// resolve returns the game for a local or rawg id, or nil.
func (s *MemoryStore) resolve(id string) *domain.Game {
	if g, ok := s.games[id]; ok {
		return g
	}
	if localID, ok := s.byRawg[id]; ok {
		return s.games[localID]
	}
	return nil
}

func (s *MemoryStore) GetGame(_ context.Context, id string) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.resolve(id)
	if g == nil {
		return domain.Game{}, domain.ErrNotFound
	}
	return *g, nil
}

func (s *MemoryStore) GetSummary(_ context.Context, id string) (domain.RatingSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.resolve(id)
	if g == nil {
		return domain.RatingSummary{}, domain.ErrNotFound
	}
	return domain.RatingSummary{
		GameID:          g.ID,
		PublishedRating: g.PublishedRating,
		TotalRatings:    len(s.ratings[g.ID]),
	}, nil
}

func (s *MemoryStore) GetUserRating(_ context.Context, gameID, userID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.resolve(gameID)
	if g == nil {
		return 0, false, nil
	}
	r, ok := s.ratings[g.ID][userID]
	if !ok {
		return 0, false, nil
	}
	return r.Score, true, nil
}

func (s *MemoryStore) GameReviews(_ context.Context, gameID string) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.resolve(gameID)
	if g == nil {
		return []domain.Review{}, nil
	}
	out := make([]domain.Review, 0, len(s.ratings[g.ID]))
	for _, r := range s.ratings[g.ID] {
		out = append(out, reviewOf(r, g))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) UserReviews(_ context.Context, userID string) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Review
	for gameID, users := range s.ratings {
		if r, ok := users[userID]; ok {
			out = append(out, reviewOf(r, s.games[gameID]))
		}
	}
	if out == nil {
		out = []domain.Review{}
	}
	sortNewestFirst(out)
	return out, nil
}

func reviewOf(r *domain.Rating, g *domain.Game) domain.Review {
	rev := domain.Review{
		ID:        r.ID,
		Score:     r.Score,
		Review:    r.Review,
		User:      domain.UserRef{ID: r.UserID},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if g != nil {
		rev.Game = domain.GameRef{ID: g.ID, RawgID: g.RawgID, Name: g.Name, CoverPhoto: g.CoverPhoto}
	}
	return rev
}

func sortNewestFirst(reviews []domain.Review) {
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
}
