// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. In development a local
'.env' file is preloaded with 'joho/godotenv' so the same variables can live on disk.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, services) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// minSecretLength is the minimum byte length of a JWT signing secret.
const minSecretLength = 32

// # Configuration Schema

// Config holds all runtime configuration for the Warden API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL  string        `env:"DATABASE_URL,required"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Token signing
	JWT JWTConfig `envPrefix:"JWT_"`

	// RefreshRotation replaces the refresh token on every refresh call.
	RefreshRotation  bool          `env:"REFRESH_ROTATION"  envDefault:"false"`
	RevokedRetention time.Duration `env:"REVOKED_RETENTION" envDefault:"720h"`
	SweepSchedule    string        `env:"SWEEP_SCHEDULE"    envDefault:"@every 1h"`

	// Account security policy
	BcryptCost       int           `env:"BCRYPT_COST"       envDefault:"12"`
	LockoutThreshold int           `env:"LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration  time.Duration `env:"LOCKOUT_DURATION"  envDefault:"2h"`
	VerificationTTL  time.Duration `env:"VERIFICATION_TTL"  envDefault:"24h"`
	ResetTTL         time.Duration `env:"RESET_TTL"         envDefault:"1h"`

	// Role cache in front of the role store
	RoleCacheTTL  time.Duration `env:"ROLE_CACHE_TTL"  envDefault:"30s"`
	RoleCacheSize int           `env:"ROLE_CACHE_SIZE" envDefault:"256"`

	// Login throttling
	LoginRatePerMinute   int  `env:"LOGIN_RATE_PER_MINUTE"  envDefault:"10"`
	DistributedRateLimit bool `env:"DISTRIBUTED_RATE_LIMIT" envDefault:"false"`

	// Notification outbox (Redis list consumed by the mailer)
	NotifyQueue string `env:"NOTIFY_QUEUE" envDefault:"warden:notifications"`

	// OAuth providers
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// JWTConfig holds signing secrets and lifetimes.
type JWTConfig struct {
	AccessSecret  string        `env:"ACCESS_SECRET,required"`
	RefreshSecret string        `env:"REFRESH_SECRET,required"`
	Issuer        string        `env:"ISSUER"      envDefault:"warden"`
	AccessTTL     time.Duration `env:"ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL    time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// OAuthConfig holds provider credentials. A provider with an empty client id is disabled.
type OAuthConfig struct {
	RedirectBase       string `env:"REDIRECT_BASE" envDefault:"http://localhost:8080/api/v1/auth/oauth"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// A missing .env file is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations that would run with weak security settings.
func (c *Config) Validate() error {
	var problems []string

	if len(c.JWT.AccessSecret) < minSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_ACCESS_SECRET must be at least %d bytes", minSecretLength))
	}
	if len(c.JWT.RefreshSecret) < minSecretLength {
		problems = append(problems, fmt.Sprintf("JWT_REFRESH_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		problems = append(problems, "JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Sprintf("BCRYPT_COST must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.LockoutThreshold < 1 {
		problems = append(problems, "LOCKOUT_THRESHOLD must be positive")
	}
	if c.StoreTimeout <= 0 {
		problems = append(problems, "STORE_TIMEOUT must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
