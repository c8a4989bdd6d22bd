package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	authhandlers "github.com/example/game-platform/internal/auth/handlers"
	authstore "github.com/example/game-platform/internal/auth/store"
	"github.com/example/game-platform/internal/auth/tokens"
	"github.com/example/game-platform/internal/catalog/cache"
	cataloghandlers "github.com/example/game-platform/internal/catalog/handlers"
	"github.com/example/game-platform/internal/catalog/rawg"
	"github.com/example/game-platform/internal/platform/analytics"
	"github.com/example/game-platform/internal/platform/auth"
	"github.com/example/game-platform/internal/platform/config"
	"github.com/example/game-platform/internal/platform/db"
	"github.com/example/game-platform/internal/platform/httpserver"
	"github.com/example/game-platform/internal/platform/logging"
	"github.com/example/game-platform/internal/platform/natsconn"
	"github.com/example/game-platform/internal/platform/run"
	ratinghandlers "github.com/example/game-platform/internal/rating/handlers"
	"github.com/example/game-platform/internal/rating/service"
	ratingstore "github.com/example/game-platform/internal/rating/store"
)

const (
	cacheInvalidateSubject = "catalog.cache.invalidate"
	catalogCacheTTL        = 5 * time.Minute
	accessTokenTTL         = 15 * time.Minute
	refreshTokenTTL        = 30 * 24 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	// Postgres. Optional in development: ratings fall back to the in-memory
	// store and the auth endpoints are not mounted.
	pool := openPool(cfg, log)
	if pool != nil {
		defer pool.Close()
	}

	// NATS for analytics events and cache invalidation.
	var nc *nats.Conn
	var events *analytics.Publisher
	if cfg.NatsURL != "" {
		nc, err = natsconn.Connect(natsconn.Options{URL: cfg.NatsURL})
		if err != nil {
			log.Error("nats connect", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()

		js, err := nc.JetStream()
		if err != nil {
			log.Error("jetstream init", zap.Error(err))
			run.Exit(1)
		}
		events = analytics.New(js, log)
	} else {
		log.Info("NATS_URL not set, analytics events disabled")
	}

	catalogCache := newCatalogCache(cfg, log, nc)
	catalogClient := rawg.New(cfg.Rawg.BaseURL, cfg.Rawg.APIKey)

	var ratings ratingstore.Store
	if pool != nil {
		ratings = ratingstore.NewPostgresStore(pool)
	} else {
		ratings = ratingstore.NewMemoryStore()
	}

	ratingSvc := &service.Service{
		Log:           log,
		Catalog:       catalogClient,
		Store:         ratings,
		Events:        events,
		AllowDegraded: cfg.AllowDegraded,
	}

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		if pool == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}})

	catalogH := &cataloghandlers.Handler{Log: log, Catalog: catalogClient, Cache: catalogCache, Events: events}
	ratingH := &ratinghandlers.Handler{Log: log, Ratings: ratingSvc, Store: ratings}

	r.Route("/api", func(r chi.Router) {
		if pool != nil {
			authH := &authhandlers.Handler{
				Log:   log,
				Users: authstore.Store{DB: pool},
				Tokens: tokens.Service{
					Secret:          []byte(cfg.JWTSecret),
					AccessTokenTTL:  accessTokenTTL,
					RefreshTokenTTL: refreshTokenTTL,
				},
				Events: events,
			}
			r.Post("/auth/register", authH.Register)
			r.Post("/auth/login", authH.Login)
			r.Post("/auth/refresh", authH.Refresh)
			r.Post("/auth/logout", authH.Logout)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireUser(verifier))
				r.Get("/auth/me", authH.Me)
			})
		} else {
			log.Warn("DATABASE_URL not set, auth endpoints disabled")
		}

		// Public read surface.
		r.Get("/games/{gameId}/rating", ratingH.GetRating)
		r.Get("/games/{gameId}/reviews", ratingH.GameReviews)
		r.Get("/users/{userId}/reviews", ratingH.UserReviews)

		// Browsing and rating require a signed-in user.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(verifier))

			r.Get("/games/search", catalogH.SearchGames)
			r.Get("/games/popular", catalogH.PopularGames)
			r.Get("/games/random", catalogH.RandomGame)
			r.Get("/games/{gameId}", catalogH.GetGame)
			r.Get("/genres", catalogH.Genres)
			r.Get("/genres/{slug}/games", catalogH.GamesByGenre)

			r.Post("/games/{gameId}/ratings", ratingH.PostRating)
			r.Get("/me/reviews", ratingH.MyReviews)
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

func openPool(cfg config.AppConfig, log *zap.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using the in-memory rating store")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db open", zap.Error(err))
		run.Exit(1)
	}
	return pool
}

func newCatalogCache(cfg config.AppConfig, log *zap.Logger, nc *nats.Conn) cache.Cache {
	if cfg.RedisURL != "" {
		c, err := cache.NewRedisCache(cfg.RedisURL, catalogCacheTTL)
		if err != nil {
			log.Error("redis cache init", zap.Error(err))
			run.Exit(1)
		}
		return c
	}
	return cache.NewTTLCache(catalogCacheTTL, nc, cacheInvalidateSubject)
}
