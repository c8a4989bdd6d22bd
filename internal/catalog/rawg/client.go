package rawg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when the catalog has no game for the given id.
var ErrNotFound = errors.New("rawg: game not found")

type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.rawg.io/api"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Genre is the named lookup shape RAWG uses for genres and platforms.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Game is the shared data block returned by detail and list endpoints.
type Game struct {
	ID              int     `json:"id"`
	Slug            string  `json:"slug"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	DescriptionRaw  string  `json:"description_raw"`
	BackgroundImage string  `json:"background_image"`
	Released        string  `json:"released"`
	Rating          float64 `json:"rating"`
	RatingsCount    int     `json:"ratings_count"`
	Metacritic      int     `json:"metacritic"`
	Website         string  `json:"website"`
	Genres          []Genre `json:"genres"`
	Platforms       []struct {
		Platform Genre `json:"platform"`
	} `json:"platforms"`
	ShortScreenshots []struct {
		Image string `json:"image"`
	} `json:"short_screenshots"`
}

// BestDescription prefers the plain-text description over the HTML one.
func (g *Game) BestDescription() string {
	if d := strings.TrimSpace(g.DescriptionRaw); d != "" {
		return d
	}
	return strings.TrimSpace(g.Description)
}

type GameList struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []Game `json:"results"`
}

type GenreList struct {
	Results []Genre `json:"results"`
}

func (c *Client) GetGame(ctx context.Context, id int) (*Game, error) {
	if id <= 0 {
		return nil, fmt.Errorf("rawg: game id required")
	}
	u := c.url("/games/"+strconv.Itoa(id), nil)

	b, status, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("rawg: status %d body=%q", status, trim(b))
	}
	var out Game
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("rawg: decode error: %w body=%q", err, trim(b))
	}
	return &out, nil
}

// Search queries the catalog by title.
func (c *Client) Search(ctx context.Context, q string, page, pageSize int) (*GameList, error) {
	return c.fetchList(ctx, c.url("/games", url.Values{
		"search":    {q},
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
	}))
}

// Popular returns highly rated games (metacritic 75-100, best rated first).
func (c *Client) Popular(ctx context.Context, page, pageSize int) (*GameList, error) {
	return c.fetchList(ctx, c.url("/games", url.Values{
		"page":       {strconv.Itoa(page)},
		"page_size":  {strconv.Itoa(pageSize)},
		"ordering":   {"-rating"},
		"metacritic": {"75,100"},
	}))
}

// GamesByGenre returns the best rated games in one genre.
func (c *Client) GamesByGenre(ctx context.Context, genre string, page, pageSize int) (*GameList, error) {
	return c.fetchList(ctx, c.url("/games", url.Values{
		"genres":    {genre},
		"page":      {strconv.Itoa(page)},
		"page_size": {strconv.Itoa(pageSize)},
		"ordering":  {"-rating"},
	}))
}

func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	b, status, err := c.fetch(ctx, c.url("/genres", nil))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("rawg: status %d body=%q", status, trim(b))
	}
	var out GenreList
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("rawg: decode error: %w body=%q", err, trim(b))
	}
	return out.Results, nil
}

func (c *Client) url(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}
	return c.BaseURL + path + "?" + q.Encode()
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "game-platform/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, 0, err
	}
	return b, resp.StatusCode, nil
}

func (c *Client) fetchList(ctx context.Context, rawURL string) (*GameList, error) {
	b, status, err := c.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("rawg: status %d body=%q", status, trim(b))
	}
	var out GameList
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("rawg: decode error: %w body=%q", err, trim(b))
	}
	return &out, nil
}

func trim(b []byte) string {
	return string(b[:min(len(b), 200)])
}
