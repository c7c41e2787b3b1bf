// Package config loads service configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the service reads from its environment.
// Parsed once in main; immutable afterwards.
type Config struct {
	Port    int    `env:"PORT" envDefault:"8080"`
	DBPath  string `env:"DB_PATH" envDefault:"data/identity.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// JWTSecret signs session tokens. Required — the service refuses to
	// start without it. Generate with: openssl rand -hex 32
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`

	// BcryptCost tunes the password hashing work factor. Values below
	// the safe floor fall back to the default (see auth.NewPasswordService).
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	// FrontendURL is the base for links the service hands out: the
	// password-reset URL and the post-OAuth redirect target.
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

// Load parses the environment into a Config and validates the parts that
// cannot have a sensible default.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("config: JWT_SECRET is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: invalid PORT %d", cfg.Port)
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}
	return cfg, nil
}

// GoogleEnabled reports whether Google sign-in is configured. When false,
// the server still starts but does not register the /auth/google routes.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
