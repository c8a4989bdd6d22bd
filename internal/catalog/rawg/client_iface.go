package rawg

import "context"

// Provider is the port for fetching game data from the RAWG catalog.
type Provider interface {
	GetGame(ctx context.Context, id int) (*Game, error)
	Search(ctx context.Context, q string, page, pageSize int) (*GameList, error)
	Popular(ctx context.Context, page, pageSize int) (*GameList, error)
	GamesByGenre(ctx context.Context, genre string, page, pageSize int) (*GameList, error)
	Genres(ctx context.Context) ([]Genre, error)
}

var _ Provider = (*Client)(nil)
