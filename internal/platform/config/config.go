// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"os"
	"strings"
)

type HTTPConfig struct {
	Addr string
}

type RawgConfig struct {
	BaseURL string
	APIKey  string
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	HTTP        HTTPConfig

	DatabaseURL string
	RedisURL    string
	NatsURL     string
	JWTSecret   string
	Rawg        RawgConfig

	// AllowDegraded enables the simulated-rating fallback when storage is
	// unavailable. Off by default; rating submissions then fail loudly.
	AllowDegraded bool
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func Load() (AppConfig, error) {
	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		Env:         env("APP_ENV"),
		LogLevel:    env("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Addr: env("HTTP_ADDR"),
		},
		DatabaseURL: env("DATABASE_URL"),
		RedisURL:    env("REDIS_URL"),
		NatsURL:     env("NATS_URL"),
		JWTSecret:   env("JWT_SECRET"),
		Rawg: RawgConfig{
			BaseURL: env("RAWG_BASE_URL"),
			APIKey:  env("RAWG_API_KEY"),
		},
		AllowDegraded: env("ALLOW_DEGRADED") == "1",
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "game-platform"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET is required")
	}
	if cfg.Rawg.APIKey == "" && cfg.IsProduction() {
		return AppConfig{}, errors.New("RAWG_API_KEY is required in production")
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
