package store

import (
	"context"
	"math"
	"testing"

	"github.com/example/game-platform/internal/rating/domain"
)

// compile-time interface checks for both implementations
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func ptr(f float64) *float64 { return &f }
func iptr(i int) *int        { return &i }

func witcher(rating *float64, count *int) GameData {
	return GameData{
		RawgID:      "3328",
		Name:        "The Witcher 3: Wild Hunt",
		Description: "Open world RPG",
		CoverPhoto:  "https://example.test/witcher3.jpg",
		Rating:      rating,
		RatingCount: count,
	}
}

func TestRateGame_NewGameCapturesBaseline(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	res, err := s.RateGame(ctx, RateParams{
		UserID: "user-a",
		Game:   witcher(ptr(4.0), iptr(10)),
		Score:  5.0,
	})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if !res.WasNewGame {
		t.Fatal("expected a new game record")
	}
	if res.WeightUsed != 1 {
		t.Fatalf("expected weight 1 for 10 external ratings, got %d", res.WeightUsed)
	}
	want := (4.0*10 + 5.0) / 11
	if math.Abs(res.PublishedRating-want) > 1e-9 {
		t.Fatalf("expected published %.6f, got %.6f", want, res.PublishedRating)
	}
	if res.Game.BaselineRating == nil || *res.Game.BaselineRating != 4.0 || res.Game.BaselineCount != 10 {
		t.Fatal("expected baseline captured at creation")
	}
	if res.Status != domain.StatusPersisted {
		t.Fatalf("expected persisted status, got %q", res.Status)
	}
}

func TestRateGame_IdempotentPerUser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.RateGame(ctx, RateParams{UserID: "user-a", Game: witcher(nil, nil), Score: 3.0})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	second, err := s.RateGame(ctx, RateParams{UserID: "user-a", Game: witcher(nil, nil), Score: 5.0})
	if err != nil {
		t.Fatalf("re-rate: %v", err)
	}

	if second.UserRating.ID != first.UserRating.ID {
		t.Fatal("expected the same rating row to be updated, not a new one")
	}
	if second.PublishedRating != 5.0 {
		t.Fatalf("expected re-rate to replace the score: published %.2f", second.PublishedRating)
	}
	sum, _ := s.GetSummary(ctx, "3328")
	if sum.TotalRatings != 1 {
		t.Fatalf("expected exactly one stored rating, got %d", sum.TotalRatings)
	}
}

func TestRateGame_GameIdentity(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, _ := s.RateGame(ctx, RateParams{UserID: "user-a", Game: witcher(ptr(4.0), iptr(100)), Score: 4.0})
	b, _ := s.RateGame(ctx, RateParams{UserID: "user-b", Game: witcher(ptr(4.1), iptr(120)), Score: 2.0})

	if a.Game.ID != b.Game.ID {
		t.Fatalf("expected one local game per rawg id, got %q and %q", a.Game.ID, b.Game.ID)
	}
	if b.WasNewGame {
		t.Fatal("second submission must reuse the existing record")
	}
}

func TestRateGame_RefreshKeepsBaseline(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.RateGame(ctx, RateParams{UserID: "user-a", Game: witcher(ptr(4.0), iptr(10)), Score: 5.0})
	// External aggregate moved; metadata refreshes but the blend baseline must not.
	res, err := s.RateGame(ctx, RateParams{UserID: "user-b", Game: witcher(ptr(1.0), iptr(5000)), Score: 5.0})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}

	want := (4.0*10 + 5.0 + 5.0) / 12
	if math.Abs(res.PublishedRating-want) > 1e-9 {
		t.Fatalf("expected published %.6f from original baseline, got %.6f", want, res.PublishedRating)
	}
	if res.Game.RawgRating == nil || *res.Game.RawgRating != 1.0 {
		t.Fatal("expected live rawg rating refreshed on the record")
	}
	if res.Game.BaselineRating == nil || *res.Game.BaselineRating != 4.0 || res.Game.BaselineCount != 10 {
		t.Fatal("expected baseline unchanged by refresh")
	}
}

func TestRateGame_NoBaselineMean(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, _ = s.RateGame(ctx, RateParams{UserID: "u1", Game: witcher(nil, nil), Score: 3})
	_, _ = s.RateGame(ctx, RateParams{UserID: "u2", Game: witcher(nil, nil), Score: 4})
	res, err := s.RateGame(ctx, RateParams{UserID: "u3", Game: witcher(nil, nil), Score: 5})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if res.PublishedRating != 4.0 {
		t.Fatalf("expected mean 4.0, got %.2f", res.PublishedRating)
	}
}

func TestRateGame_FirstRatingNoBaseline(t *testing.T) {
	s := NewMemoryStore()
	res, err := s.RateGame(context.Background(), RateParams{UserID: "u1", Game: witcher(nil, nil), Score: 4.5})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if res.PublishedRating != 4.5 {
		t.Fatalf("expected 4.5, got %.2f", res.PublishedRating)
	}
	if res.WeightUsed != 0 {
		t.Fatalf("expected weight 0 with no external data, got %d", res.WeightUsed)
	}
}

func TestGetGame_ByEitherID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	res, _ := s.RateGame(ctx, RateParams{UserID: "u1", Game: witcher(nil, nil), Score: 4})

	byLocal, err := s.GetGame(ctx, res.Game.ID)
	if err != nil {
		t.Fatalf("get by local id: %v", err)
	}
	byRawg, err := s.GetGame(ctx, "3328")
	if err != nil {
		t.Fatalf("get by rawg id: %v", err)
	}
	if byLocal.ID != byRawg.ID {
		t.Fatal("expected both lookups to resolve the same record")
	}
}

func TestGetGame_NotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetGame(context.Background(), "nope"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGameReviews_UnknownGameEmpty(t *testing.T) {
	s := NewMemoryStore()
	reviews, err := s.GameReviews(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 0 {
		t.Fatalf("expected empty review list, got %d", len(reviews))
	}
}

func TestUserReviews(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.RateGame(ctx, RateParams{UserID: "u1", Game: witcher(nil, nil), Score: 4, Review: "great"})
	other := witcher(nil, nil)
	other.RawgID = "1234"
	other.Name = "Stardew Valley"
	_, _ = s.RateGame(ctx, RateParams{UserID: "u1", Game: other, Score: 5, Review: "cozy"})
	_, _ = s.RateGame(ctx, RateParams{UserID: "u2", Game: other, Score: 2})

	reviews, err := s.UserReviews(ctx, "u1")
	if err != nil {
		t.Fatalf("user reviews: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}
	for _, r := range reviews {
		if r.Game.Name == "" {
			t.Fatal("expected game ref populated on user reviews")
		}
	}
}

func TestGetUserRating(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, ok, _ := s.GetUserRating(ctx, "3328", "u1"); ok {
		t.Fatal("expected no rating before submission")
	}
	_, _ = s.RateGame(ctx, RateParams{UserID: "u1", Game: witcher(nil, nil), Score: 3.5})
	score, ok, err := s.GetUserRating(ctx, "3328", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || score != 3.5 {
		t.Fatalf("expected score 3.5, got %v (ok=%v)", score, ok)
	}
}
