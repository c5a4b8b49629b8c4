// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, identity provider) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the VentiGrow console server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicBaseURL prefixes public blob locators (avatar URLs).
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis): provider sessions, one-time tokens, session events
	RedisURL string `env:"REDIS_URL,required,notEmpty"`

	// Cryptographic keys for access token signing
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH,required,notEmpty"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH,required,notEmpty"`

	// Blob storage (BoltDB file holding avatars)
	BlobPath string `env:"BLOB_PATH" envDefault:"./data/blobs.db"`

	// Identity provider policy
	ClientID                 string `env:"CLIENT_ID"                  envDefault:"console"`
	RequireEmailConfirmation bool   `env:"REQUIRE_EMAIL_CONFIRMATION" envDefault:"true"`
	ConfirmURL               string `env:"CONFIRM_URL"                envDefault:"http://localhost:3000/verify"`

	// ResetURL is the default password recovery page. Empty means PublicBaseURL + ResetPath.
	ResetURL string `env:"RESET_URL"`

	// LogoutGrace bounds how long the session manager waits for the provider's
	// signed_out event before transitioning locally.
	LogoutGrace time.Duration `env:"LOGOUT_GRACE" envDefault:"3s"`

	// Greenhouse telemetry
	SensorPollInterval time.Duration `env:"SENSOR_POLL_INTERVAL" envDefault:"30s"`

	// Cross-Origin Resource Sharing (comma separated origins)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// ResetPath is the console page that completes a password recovery.
const ResetPath = "/reset-password"

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.LogoutGrace <= 0 {
		return nil, fmt.Errorf("config: LOGOUT_GRACE must be positive, got %s", cfg.LogoutGrace)
	}

	if cfg.SensorPollInterval < time.Second {
		return nil, fmt.Errorf("config: SENSOR_POLL_INTERVAL must be at least 1s, got %s", cfg.SensorPollInterval)
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.ResetURL == "" {
		cfg.ResetURL = cfg.PublicBaseURL + ResetPath
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedirectOrigins are the origins mailed links may point at: the public base
// URL plus every configured CORS origin.
func (c *Config) RedirectOrigins() []string {
	return append([]string{c.PublicBaseURL}, c.AllowedOrigins()...)
}

// AllowedOrigins returns the trimmed, non-empty entries of ExtraOrigins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
