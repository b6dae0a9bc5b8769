// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides them.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Addr        string
	Environment string

	// GrantSigningKey signs the PIN access grants.
	GrantSigningKey string
	// GrantTTL is how long an unlocked gate stays open.
	GrantTTL time.Duration

	// AdminToken authenticates the fleet endpoints (unlock, deactivate,
	// provisioning). Empty disables them.
	AdminToken string

	// PinAttemptWindow and PinMaxFailures shape the attempt limiter.
	PinAttemptWindow time.Duration
	PinMaxFailures   int

	Database DatabaseConfig
	Redis    RedisConfig
}

// DatabaseConfig holds PostgreSQL settings. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis settings. An empty URL keeps the attempt limiter
// in-process.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv reads configuration from GUARDTAG_* environment variables.
func FromEnv() Config {
	return Config{
		Addr:            envOr("GUARDTAG_ADDR", ":8080"),
		Environment:     envOr("GUARDTAG_ENV", "development"),
		GrantSigningKey: envOr("GUARDTAG_GRANT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		GrantTTL:        envDuration("GUARDTAG_GRANT_TTL", 15*time.Minute),
		AdminToken:      os.Getenv("GUARDTAG_ADMIN_TOKEN"),

		PinAttemptWindow: envDuration("GUARDTAG_PIN_ATTEMPT_WINDOW", 15*time.Minute),
		PinMaxFailures:   envInt("GUARDTAG_PIN_MAX_FAILURES", 5),

		Database: DatabaseConfig{
			URL:             os.Getenv("GUARDTAG_DATABASE_URL"),
			MaxOpenConns:    envInt("GUARDTAG_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("GUARDTAG_DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("GUARDTAG_DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("GUARDTAG_REDIS_URL"),
			PoolSize:     envInt("GUARDTAG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("GUARDTAG_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("GUARDTAG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("GUARDTAG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("GUARDTAG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
