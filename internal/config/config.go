// Package config loads server configuration from the environment.
//
// CONFIGURATION SOURCES (in precedence order):
//  1. Real environment variables (set by the deployment)
//  2. A .env file in the working directory (local development convenience)
//  3. Defaults baked in below
//
// godotenv only fills in variables that aren't already set, so a deployed
// environment always wins over a stray .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults. JWT_SECRET has no default on purpose — a guessable signing key
// means forgeable sessions, so the server refuses to start without one.
const (
	defaultPort          = 8080
	defaultDBPath        = "data/bloghub.db"
	defaultTokenTTL      = 24 * time.Hour
	defaultResetTokenTTL = time.Hour
	defaultBcryptCost    = 12
	minSecretLength      = 16
)

// Config holds everything the server needs to run.
type Config struct {
	Port          int
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration // session token lifetime
	ResetTokenTTL time.Duration // password-reset token lifetime
	BcryptCost    int
}

// Load reads configuration, applying .env then defaults.
func Load() (Config, error) {
	// Ignore the error: a missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		Port:          defaultPort,
		DBPath:        defaultDBPath,
		TokenTTL:      defaultTokenTTL,
		ResetTokenTTL: defaultResetTokenTTL,
		BcryptCost:    defaultBcryptCost,
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if len(cfg.JWTSecret) < minSecretLength {
		return Config{}, fmt.Errorf("config: JWT_SECRET must be set and at least %d characters", minSecretLength)
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid TOKEN_TTL %q: %w", v, err)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("RESET_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid RESET_TOKEN_TTL %q: %w", v, err)
		}
		cfg.ResetTokenTTL = d
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}
