package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/game-platform/internal/rating/aggregate"
	"github.com/example/game-platform/internal/rating/domain"
)

// PostgresStore is the production Store. The rating pipeline runs as one
// transaction with the game row locked FOR UPDATE, so concurrent submissions
// for the same game serialize and the published rating is never computed from
// a stale rating set.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const gameColumns = `id::text, rawg_id, name, description, cover_photo,
rawg_rating, rawg_rating_count, baseline_rating, baseline_count,
published_rating, created_at, updated_at`

func scanGame(row pgx.Row) (domain.Game, error) {
	var g domain.Game
	err := row.Scan(&g.ID, &g.RawgID, &g.Name, &g.Description, &g.CoverPhoto,
		&g.RawgRating, &g.RawgRatingCount, &g.BaselineRating, &g.BaselineCount,
		&g.PublishedRating, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (s *PostgresStore) RateGame(ctx context.Context, p RateParams) (domain.RateResult, error) {
	res, err := s.rateGameTx(ctx, p)
	if err == nil {
		return res, nil
	}
	// Two first submissions for a brand-new game can race on the rawg_id
	// unique index; the loser re-runs once and finds the row.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return s.rateGameTx(ctx, p)
	}
	return domain.RateResult{}, err
}

func (s *PostgresStore) rateGameTx(ctx context.Context, p RateParams) (domain.RateResult, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.RateResult{}, storageErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	game, err := scanGame(tx.QueryRow(ctx, `
SELECT `+gameColumns+`
FROM games WHERE id::text = $1 OR rawg_id = $1
FOR UPDATE`, p.Game.RawgID))

	wasNew := false
	weightUsed := 0
	switch {
	case err == nil:
		// Refresh metadata in place; the baseline captured at creation is
		// deliberately left untouched.
		if _, err := tx.Exec(ctx, `
UPDATE games
SET name=$2, description=$3, cover_photo=$4, rawg_rating=$5, rawg_rating_count=$6, updated_at=$7
WHERE id=$1::uuid`,
			game.ID, p.Game.Name, p.Game.Description, p.Game.CoverPhoto,
			p.Game.Rating, p.Game.RatingCount, now,
		); err != nil {
			return domain.RateResult{}, storageErr("update game", err)
		}
		game.Name = p.Game.Name
		game.Description = p.Game.Description
		game.CoverPhoto = p.Game.CoverPhoto
		game.RawgRating = p.Game.Rating
		game.RawgRatingCount = p.Game.RatingCount

	case errors.Is(err, pgx.ErrNoRows):
		wasNew = true
		count := 0
		if p.Game.RatingCount != nil {
			count = *p.Game.RatingCount
		}
		weightUsed = aggregate.Weight(count)
		game = domain.Game{
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
		if _, err := tx.Exec(ctx, `
INSERT INTO games (id, rawg_id, name, description, cover_photo,
                   rawg_rating, rawg_rating_count, baseline_rating, baseline_count,
                   created_at, updated_at)
VALUES ($1::uuid,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
			game.ID, game.RawgID, game.Name, game.Description, game.CoverPhoto,
			game.RawgRating, game.RawgRatingCount, game.BaselineRating, game.BaselineCount, now,
		); err != nil {
			// surface unique violations raw so RateGame can retry
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.RateResult{}, err
			}
			return domain.RateResult{}, storageErr("insert game", err)
		}

	default:
		return domain.RateResult{}, storageErr("resolve game", err)
	}
	game.UpdatedAt = now

	rating := domain.Rating{
		UserID: p.UserID,
		GameID: game.ID,
		Score:  p.Score,
		Review: p.Review,
	}
	if err := tx.QueryRow(ctx, `
INSERT INTO ratings (id, user_id, game_id, score, review, created_at, updated_at)
VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $6)
ON CONFLICT (user_id, game_id) DO UPDATE SET
  score = EXCLUDED.score,
  review = EXCLUDED.review,
  updated_at = EXCLUDED.updated_at
RETURNING id::text, created_at, updated_at`,
		uuid.NewString(), p.UserID, game.ID, p.Score, p.Review, now,
	).Scan(&rating.ID, &rating.CreatedAt, &rating.UpdatedAt); err != nil {
		return domain.RateResult{}, storageErr("upsert rating", err)
	}

	rows, err := tx.Query(ctx, `SELECT score FROM ratings WHERE game_id = $1::uuid`, game.ID)
	if err != nil {
		return domain.RateResult{}, storageErr("load scores", err)
	}
	var scores []float64
	for rows.Next() {
		var sc float64
		if err := rows.Scan(&sc); err != nil {
			rows.Close()
			return domain.RateResult{}, storageErr("scan score", err)
		}
		scores = append(scores, sc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.RateResult{}, storageErr("load scores", err)
	}

	published, err := aggregate.Published(game.BaselineRating, game.BaselineCount, scores)
	if err != nil {
		return domain.RateResult{}, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE games SET published_rating=$2, updated_at=$3 WHERE id=$1::uuid`,
		game.ID, published, now,
	); err != nil {
		return domain.RateResult{}, storageErr("publish rating", err)
	}
	game.PublishedRating = &published

	if err := tx.Commit(ctx); err != nil {
		return domain.RateResult{}, storageErr("commit", err)
	}

	return domain.RateResult{
		Game:            game,
		UserRating:      rating,
		PublishedRating: published,
		WasNewGame:      wasNew,
		WeightUsed:      weightUsed,
		Status:          domain.StatusPersisted,
	}, nil
}

func (s *PostgresStore) GetGame(ctx context.Context, id string) (domain.Game, error) {
	g, err := scanGame(s.db.QueryRow(ctx, `
SELECT `+gameColumns+`
FROM games WHERE id::text = $1 OR rawg_id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Game{}, domain.ErrNotFound
		}
		return domain.Game{}, storageErr("get game", err)
	}
	return g, nil
}

func (s *PostgresStore) GetSummary(ctx context.Context, id string) (domain.RatingSummary, error) {
	var sum domain.RatingSummary
	err := s.db.QueryRow(ctx, `
SELECT g.id::text, g.published_rating, COUNT(r.id)
FROM games g
LEFT JOIN ratings r ON r.game_id = g.id
WHERE g.id::text = $1 OR g.rawg_id = $1
GROUP BY g.id, g.published_rating`, id,
	).Scan(&sum.GameID, &sum.PublishedRating, &sum.TotalRatings)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RatingSummary{}, domain.ErrNotFound
		}
		return domain.RatingSummary{}, storageErr("get summary", err)
	}
	return sum, nil
}

func (s *PostgresStore) GetUserRating(ctx context.Context, gameID, userID string) (float64, bool, error) {
	var score float64
	err := s.db.QueryRow(ctx, `
SELECT r.score
FROM ratings r
JOIN games g ON g.id = r.game_id
WHERE (g.id::text = $1 OR g.rawg_id = $1) AND r.user_id = $2::uuid`,
		gameID, userID,
	).Scan(&score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, storageErr("get user rating", err)
	}
	return score, true, nil
}

func (s *PostgresStore) GameReviews(ctx context.Context, gameID string) ([]domain.Review, error) {
	rows, err := s.db.Query(ctx, `
SELECT r.id::text, r.score, r.review, r.created_at, r.updated_at,
       u.id::text, u.username,
       g.id::text, g.rawg_id, g.name, g.cover_photo
FROM ratings r
JOIN games g ON g.id = r.game_id
JOIN users u ON u.id = r.user_id
WHERE g.id::text = $1 OR g.rawg_id = $1
ORDER BY r.created_at DESC`, gameID)
	if err != nil {
		return nil, storageErr("game reviews", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (s *PostgresStore) UserReviews(ctx context.Context, userID string) ([]domain.Review, error) {
	rows, err := s.db.Query(ctx, `
SELECT r.id::text, r.score, r.review, r.created_at, r.updated_at,
       u.id::text, u.username,
       g.id::text, g.rawg_id, g.name, g.cover_photo
FROM ratings r
JOIN games g ON g.id = r.game_id
JOIN users u ON u.id = r.user_id
WHERE r.user_id = $1::uuid
ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, storageErr("user reviews", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func scanReviews(rows pgx.Rows) ([]domain.Review, error) {
	out := []domain.Review{}
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(&rev.ID, &rev.Score, &rev.Review, &rev.CreatedAt, &rev.UpdatedAt,
			&rev.User.ID, &rev.User.Username,
			&rev.Game.ID, &rev.Game.RawgID, &rev.Game.Name, &rev.Game.CoverPhoto,
		); err != nil {
			return nil, storageErr("scan review", err)
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("reviews", err)
	}
	return out, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorage, err)
}
