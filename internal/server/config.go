// Package server provides configuration helpers that define runtime defaults
// and sanitization for the chat relay service.
package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig defines the parameters for per-connection message rate
// limiting.
type RateLimitConfig struct {
	// Nested under the RateLimit field, so the variables resolve to
	// RATE_LIMIT_BURST and RATE_LIMIT_REFILL_INTERVAL.
	Burst          int           `envconfig:"BURST" default:"5"`
	RefillInterval time.Duration `envconfig:"REFILL_INTERVAL" default:"1s"`
}

// Config holds the server configuration, including the security controls for
// logins and WebSocket upgrades.
type Config struct {
	Port             string          `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins   []string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize   int64           `envconfig:"MAX_MESSAGE_SIZE" default:"4096"`
	RateLimit        RateLimitConfig
	UsersFile        string          `envconfig:"USERS_FILE" default:"users.json"`
	LogDir           string          `envconfig:"LOG_DIR" default:"logs"`
	MaxLoginAttempts int             `envconfig:"MAX_LOGIN_ATTEMPTS" default:"3"`
	LockoutDuration  time.Duration   `envconfig:"LOCKOUT_DURATION" default:"5m"`
	ShutdownTimeout  time.Duration   `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// sanitizeConfig replaces unusable values with the defaults so a partially
// set environment never produces a server that cannot accept connections.
func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:8080"}
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.UsersFile == "" {
		cfg.UsersFile = "users.json"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
	if cfg.MaxLoginAttempts <= 0 {
		cfg.MaxLoginAttempts = 3
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 5 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return cfg
}

// NewConfig creates a Config populated with the default values.
func NewConfig() *Config {
	cfg := sanitizeConfig(Config{})
	return &cfg
}

// NewConfigFromEnv builds the configuration from environment variables,
// falling back to defaults for anything unset.
func NewConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	sanitized := sanitizeConfig(cfg)
	return &sanitized, nil
}
