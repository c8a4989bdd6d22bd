package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/game-platform/internal/catalog/cache"
	"github.com/example/game-platform/internal/catalog/rawg"
)

type fakeProvider struct {
	game      *rawg.Game
	gameErr   error
	list      *rawg.GameList
	listErr   error
	genres    []rawg.Genre
	calls     int
	lastQuery string
	lastGenre string
}

func (f *fakeProvider) GetGame(_ context.Context, id int) (*rawg.Game, error) {
	f.calls++
	if f.gameErr != nil {
		return nil, f.gameErr
	}
	return f.game, nil
}

func (f *fakeProvider) Search(_ context.Context, q string, _, _ int) (*rawg.GameList, error) {
	f.calls++
	f.lastQuery = q
	return f.list, f.listErr
}

func (f *fakeProvider) Popular(_ context.Context, _, _ int) (*rawg.GameList, error) {
	f.calls++
	return f.list, f.listErr
}

func (f *fakeProvider) GamesByGenre(_ context.Context, genre string, _, _ int) (*rawg.GameList, error) {
	f.calls++
	f.lastGenre = genre
	return f.list, f.listErr
}

func (f *fakeProvider) Genres(_ context.Context) ([]rawg.Genre, error) {
	f.calls++
	return f.genres, f.listErr
}

func newHandler(p rawg.Provider) *Handler {
	return &Handler{
		Log:     zap.NewNop(),
		Catalog: p,
		Cache:   cache.NewTTLCache(time.Minute, nil, ""),
	}
}

func sampleList() *rawg.GameList {
	return &rawg.GameList{
		Count: 2,
		Results: []rawg.Game{
			{ID: 3328, Name: "The Witcher 3", Rating: 4.65, RatingsCount: 7112,
				Genres: []rawg.Genre{{ID: 4, Name: "RPG", Slug: "role-playing-games-rpg"}}},
			{ID: 50734, Name: "Celeste", Rating: 4.4, RatingsCount: 3000},
		},
	}
}

func TestSearchGames_OK(t *testing.T) {
	p := &fakeProvider{list: sampleList()}
	h := newHandler(p)

	req := httptest.NewRequest(http.MethodGet, "/api/games/search?q=witcher", nil)
	rec := httptest.NewRecorder()
	h.SearchGames(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if p.lastQuery != "witcher" {
		t.Fatalf("query = %q", p.lastQuery)
	}
	var page GamePage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || len(page.Games) != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Games[0].RawgID != 3328 || page.Games[0].Genres[0] != "RPG" {
		t.Fatalf("unexpected first game: %+v", page.Games[0])
	}
}

func TestSearchGames_MissingQuery(t *testing.T) {
	h := newHandler(&fakeProvider{})
	req := httptest.NewRequest(http.MethodGet, "/api/games/search", nil)
	rec := httptest.NewRecorder()
	h.SearchGames(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPopularGames_CachesSecondCall(t *testing.T) {
	p := &fakeProvider{list: sampleList()}
	h := newHandler(p)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/games/popular?page=1", nil)
		rec := httptest.NewRecorder()
		h.PopularGames(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
	}
	if p.calls != 1 {
		t.Fatalf("provider calls = %d, want 1 (second served from cache)", p.calls)
	}
}

func TestPopularGames_UpstreamFailure(t *testing.T) {
	p := &fakeProvider{listErr: errors.New("upstream down")}
	h := newHandler(p)

	req := httptest.NewRequest(http.MethodGet, "/api/games/popular", nil)
	rec := httptest.NewRecorder()
	h.PopularGames(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestGetGame_OK(t *testing.T) {
	p := &fakeProvider{game: &rawg.Game{
		ID: 3328, Name: "The Witcher 3", DescriptionRaw: "Open world RPG.",
		Rating: 4.65, RatingsCount: 7112,
		Platforms: []struct {
			Platform rawg.Genre `json:"platform"`
		}{{Platform: rawg.Genre{ID: 1, Name: "PC", Slug: "pc"}}},
	}}
	h := newHandler(p)

	r := chi.NewRouter()
	r.Get("/api/games/{gameId}", h.GetGame)
	req := httptest.NewRequest(http.MethodGet, "/api/games/3328", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var d GameDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Description != "Open world RPG." {
		t.Fatalf("description = %q", d.Description)
	}
	if len(d.Platforms) != 1 || d.Platforms[0] != "PC" {
		t.Fatalf("platforms = %v", d.Platforms)
	}
}

func TestGetGame_NotFound(t *testing.T) {
	p := &fakeProvider{gameErr: rawg.ErrNotFound}
	h := newHandler(p)

	r := chi.NewRouter()
	r.Get("/api/games/{gameId}", h.GetGame)
	req := httptest.NewRequest(http.MethodGet, "/api/games/999999", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetGame_InvalidID(t *testing.T) {
	h := newHandler(&fakeProvider{})

	r := chi.NewRouter()
	r.Get("/api/games/{gameId}", h.GetGame)
	req := httptest.NewRequest(http.MethodGet, "/api/games/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGamesByGenre_PassesSlug(t *testing.T) {
	p := &fakeProvider{list: sampleList()}
	h := newHandler(p)

	r := chi.NewRouter()
	r.Get("/api/genres/{slug}/games", h.GamesByGenre)
	req := httptest.NewRequest(http.MethodGet, "/api/genres/indie/games", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if p.lastGenre != "indie" {
		t.Fatalf("genre = %q", p.lastGenre)
	}
}

func TestGenres_OK(t *testing.T) {
	p := &fakeProvider{genres: []rawg.Genre{{ID: 4, Name: "Action", Slug: "action"}}}
	h := newHandler(p)

	req := httptest.NewRequest(http.MethodGet, "/api/genres", nil)
	rec := httptest.NewRecorder()
	h.Genres(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Genres []rawg.Genre `json:"genres"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Genres) != 1 || resp.Genres[0].Slug != "action" {
		t.Fatalf("genres = %+v", resp.Genres)
	}
}

func TestRandomGame_PicksFromListing(t *testing.T) {
	p := &fakeProvider{list: sampleList()}
	h := newHandler(p)

	req := httptest.NewRequest(http.MethodGet, "/api/games/random", nil)
	rec := httptest.NewRecorder()
	h.RandomGame(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var g GameSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if g.RawgID != 3328 && g.RawgID != 50734 {
		t.Fatalf("picked unknown game: %+v", g)
	}
}
