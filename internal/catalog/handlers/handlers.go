// Package handlers exposes the game catalog over HTTP. List responses are
// served from cache when possible since RAWG data changes slowly.
package handlers

import (
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/game-platform/internal/catalog/cache"
	"github.com/example/game-platform/internal/catalog/rawg"
	"github.com/example/game-platform/internal/platform/analytics"
	"github.com/example/game-platform/internal/platform/api"
	"github.com/example/game-platform/internal/platform/auth"
	"github.com/example/game-platform/internal/platform/httpserver"
)

const (
	defaultPageSize = 20
	maxPageSize     = 40
	randomPageSpan  = 20
)

type Handler struct {
	Log     *zap.Logger
	Catalog rawg.Provider
	Cache   cache.Cache
	Events  *analytics.Publisher
}

// GameSummary is the list-item projection of a catalog game.
type GameSummary struct {
	RawgID     int      `json:"rawg_id"`
	Name       string   `json:"name"`
	CoverPhoto string   `json:"cover_photo,omitempty"`
	Released   string   `json:"released,omitempty"`
	Rating     float64  `json:"rating"`
	Votes      int      `json:"votes"`
	Metacritic int      `json:"metacritic,omitempty"`
	Genres     []string `json:"genres,omitempty"`
}

// GameDetail extends GameSummary with the fields only the detail page shows.
type GameDetail struct {
	GameSummary
	Description string   `json:"description,omitempty"`
	Website     string   `json:"website,omitempty"`
	Platforms   []string `json:"platforms,omitempty"`
	Screenshots []string `json:"screenshots,omitempty"`
}

type GamePage struct {
	Total    int           `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Games    []GameSummary `json:"games"`
}

// SearchGames handles GET /api/games/search?q=...
func (h *Handler) SearchGames(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		api.BadRequest(w, "MISSING_QUERY", "Query parameter q is required", rid, nil)
		return
	}
	page, pageSize := pagination(r)

	h.servePage(w, r, func() (*rawg.GameList, error) {
		return h.Catalog.Search(r.Context(), q, page, pageSize)
	}, page, pageSize)

	uid, _ := auth.UserIDFromContext(r.Context())
	h.Events.Publish(analytics.SubjectSearchPerformed, "search_performed", uid, map[string]any{
		"query": q,
		"page":  page,
	})
}

// PopularGames handles GET /api/games/popular.
func (h *Handler) PopularGames(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pagination(r)
	h.servePage(w, r, func() (*rawg.GameList, error) {
		return h.Catalog.Popular(r.Context(), page, pageSize)
	}, page, pageSize)
}

// GamesByGenre handles GET /api/genres/{slug}/games.
func (h *Handler) GamesByGenre(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		api.BadRequest(w, "MISSING_GENRE", "Genre slug is required", rid, nil)
		return
	}
	page, pageSize := pagination(r)
	h.servePage(w, r, func() (*rawg.GameList, error) {
		return h.Catalog.GamesByGenre(r.Context(), slug, page, pageSize)
	}, page, pageSize)
}

// Genres handles GET /api/genres.
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	key := cacheKey(r)

	var cached []rawg.Genre
	if hit, err := h.cacheGet(r, key, &cached); err == nil && hit {
		api.WriteJSON(w, http.StatusOK, map[string]any{"genres": cached})
		return
	}

	genres, err := h.Catalog.Genres(r.Context())
	if err != nil {
		h.Log.Error("catalog: genres fetch failed", zap.Error(err), zap.String("request_id", rid))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "Game catalog is unavailable", rid)
		return
	}
	h.cacheSet(r, key, genres)
	api.WriteJSON(w, http.StatusOK, map[string]any{"genres": genres})
}

// RandomGame handles GET /api/games/random. It picks a random entry from a
// random page of the popular listing.
func (h *Handler) RandomGame(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	page := 1 + rand.Intn(randomPageSpan)
	list, err := h.Catalog.Popular(r.Context(), page, defaultPageSize)
	if err == nil && len(list.Results) == 0 && page > 1 {
		// Past the end of the listing, page 1 always has results.
		list, err = h.Catalog.Popular(r.Context(), 1, defaultPageSize)
	}
	if err != nil {
		h.Log.Error("catalog: random fetch failed", zap.Error(err), zap.String("request_id", rid))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "Game catalog is unavailable", rid)
		return
	}
	if len(list.Results) == 0 {
		api.NotFound(w, "NO_GAMES", "No games available", rid)
		return
	}
	pick := list.Results[rand.Intn(len(list.Results))]
	api.WriteJSON(w, http.StatusOK, summarize(&pick))
}

// GetGame handles GET /api/games/{gameId}; the id is the RAWG catalog id.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())
	id, err := strconv.Atoi(chi.URLParam(r, "gameId"))
	if err != nil || id <= 0 {
		api.BadRequest(w, "INVALID_GAME_ID", "Game id must be a positive integer", rid, nil)
		return
	}

	key := cacheKey(r)
	var cached GameDetail
	if hit, cerr := h.cacheGet(r, key, &cached); cerr == nil && hit {
		api.WriteJSON(w, http.StatusOK, cached)
		h.publishGameViewed(r, id)
		return
	}

	g, err := h.Catalog.GetGame(r.Context(), id)
	if err != nil {
		if errors.Is(err, rawg.ErrNotFound) {
			api.NotFound(w, "GAME_NOT_FOUND", "Game not found", rid)
			return
		}
		h.Log.Error("catalog: game fetch failed", zap.Int("rawg_id", id), zap.Error(err), zap.String("request_id", rid))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "Game catalog is unavailable", rid)
		return
	}

	detail := detail(g)
	h.cacheSet(r, key, detail)
	api.WriteJSON(w, http.StatusOK, detail)
	h.publishGameViewed(r, id)
}

func (h *Handler) publishGameViewed(r *http.Request, rawgID int) {
	uid, _ := auth.UserIDFromContext(r.Context())
	h.Events.Publish(analytics.SubjectGameViewed, "game_viewed", uid, map[string]any{
		"rawg_id": rawgID,
	})
}

// servePage handles the cache-then-fetch dance shared by all list endpoints.
func (h *Handler) servePage(w http.ResponseWriter, r *http.Request, fetch func() (*rawg.GameList, error), page, pageSize int) {
	rid := httpserver.RequestIDFromContext(r.Context())
	key := cacheKey(r)

	var cached GamePage
	if hit, err := h.cacheGet(r, key, &cached); err == nil && hit {
		api.WriteJSON(w, http.StatusOK, cached)
		return
	}

	list, err := fetch()
	if err != nil {
		h.Log.Error("catalog: list fetch failed", zap.Error(err), zap.String("request_id", rid))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "Game catalog is unavailable", rid)
		return
	}

	resp := GamePage{
		Total:    list.Count,
		Page:     page,
		PageSize: pageSize,
		Games:    make([]GameSummary, 0, len(list.Results)),
	}
	for i := range list.Results {
		resp.Games = append(resp.Games, summarize(&list.Results[i]))
	}
	h.cacheSet(r, key, resp)
	api.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) cacheGet(r *http.Request, key string, dest any) (bool, error) {
	if h.Cache == nil {
		return false, nil
	}
	hit, err := h.Cache.Get(r.Context(), key, dest)
	if err != nil {
		h.Log.Warn("catalog: cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return hit, nil
}

func (h *Handler) cacheSet(r *http.Request, key string, v any) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Set(r.Context(), key, v); err != nil {
		h.Log.Warn("catalog: cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func summarize(g *rawg.Game) GameSummary {
	s := GameSummary{
		RawgID:     g.ID,
		Name:       g.Name,
		CoverPhoto: g.BackgroundImage,
		Released:   g.Released,
		Rating:     g.Rating,
		Votes:      g.RatingsCount,
		Metacritic: g.Metacritic,
	}
	for _, gn := range g.Genres {
		s.Genres = append(s.Genres, gn.Name)
	}
	return s
}

func detail(g *rawg.Game) GameDetail {
	d := GameDetail{
		GameSummary: summarize(g),
		Description: g.BestDescription(),
		Website:     g.Website,
	}
	for _, p := range g.Platforms {
		d.Platforms = append(d.Platforms, p.Platform.Name)
	}
	for _, s := range g.ShortScreenshots {
		d.Screenshots = append(d.Screenshots, s.Image)
	}
	return d
}

func pagination(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// cacheKey is stable per path and query; the query never carries credentials.
func cacheKey(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return "catalog:" + r.URL.Path
	}
	return "catalog:" + r.URL.Path + "?" + r.URL.RawQuery
}
