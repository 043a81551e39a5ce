package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds all configuration for the hub daemon.
type Config struct {
	Server       ServerConfig
	Hub          HubConfig
	Orchestrator OrchestratorConfig
	Database     DatabaseConfig
	Redis        RedisConfig
}

type ServerConfig struct {
	Port      int
	Env       string
	TokenHash string
	// RateLimit caps intent requests per client per minute.
	RateLimit int
}

type HubConfig struct {
	BaseURL       string
	BridgeURL     string
	ForceFallback bool
	BridgeTimeout time.Duration
	HTTPTimeout   time.Duration
	SessionID     string
}

type OrchestratorConfig struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
	OverlayGrace   time.Duration
	CountedTTL     time.Duration
}

// DatabaseConfig is optional. An empty URL disables job history.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional. An empty URL keeps the counted set in memory.
type RedisConfig struct {
	URL string
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	bridgeURL := os.Getenv("HUB_BRIDGE_URL")

	cfg := &Config{
		Server: ServerConfig{
			Port:      envInt("HUBD_PORT", 8095),
			Env:       envString("HUBD_ENV", "development"),
			TokenHash: os.Getenv("HUBD_TOKEN_HASH"),
			RateLimit: envInt("HUBD_RATE_LIMIT", 60),
		},
		Hub: HubConfig{
			BaseURL:       os.Getenv("HUB_BASE_URL"),
			BridgeURL:     bridgeURL,
			ForceFallback: envBool("HUB_FORCE_FALLBACK", bridgeURL == ""),
			BridgeTimeout: envDuration("HUB_BRIDGE_TIMEOUT", 1200*time.Millisecond),
			HTTPTimeout:   envDuration("HUB_HTTP_TIMEOUT", 10*time.Second),
			SessionID:     envString("HUB_SESSION_ID", uuid.NewString()),
		},
		Orchestrator: OrchestratorConfig{
			PollInterval:   envDuration("HUB_POLL_INTERVAL", 500*time.Millisecond),
			StatusInterval: envDuration("HUB_STATUS_INTERVAL", 5*time.Second),
			OverlayGrace:   envDuration("HUB_OVERLAY_GRACE", 1300*time.Millisecond),
			CountedTTL:     envDuration("HUB_COUNTED_TTL", 24*time.Hour),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Hub.BaseURL == "" {
		return fmt.Errorf("HUB_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Hub.BaseURL, "http://") && !strings.HasPrefix(c.Hub.BaseURL, "https://") {
		return fmt.Errorf("HUB_BASE_URL must start with http:// or https://, got %q", c.Hub.BaseURL)
	}

	if c.Hub.BridgeURL != "" &&
		!strings.HasPrefix(c.Hub.BridgeURL, "ws://") && !strings.HasPrefix(c.Hub.BridgeURL, "wss://") {
		return fmt.Errorf("HUB_BRIDGE_URL must start with ws:// or wss://, got %q", c.Hub.BridgeURL)
	}
	if !c.Hub.ForceFallback && c.Hub.BridgeURL == "" {
		return fmt.Errorf("HUB_BRIDGE_URL is required when HUB_FORCE_FALLBACK is false")
	}

	if c.Hub.BridgeTimeout <= 0 {
		return fmt.Errorf("HUB_BRIDGE_TIMEOUT must be positive, got %s", c.Hub.BridgeTimeout)
	}
	if c.Orchestrator.PollInterval <= 0 {
		return fmt.Errorf("HUB_POLL_INTERVAL must be positive, got %s", c.Orchestrator.PollInterval)
	}
	if c.Orchestrator.StatusInterval <= 0 {
		return fmt.Errorf("HUB_STATUS_INTERVAL must be positive, got %s", c.Orchestrator.StatusInterval)
	}

	if c.Database.URL != "" &&
		!strings.HasPrefix(c.Database.URL, "postgres://") && !strings.HasPrefix(c.Database.URL, "postgresql://") {
		return fmt.Errorf("DATABASE_URL must be a postgres:// URL")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
