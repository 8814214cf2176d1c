package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Server
	ServerAddr string
	Env        string // "development" or "production"

	// URLs
	AppBaseURL string

	// Static files
	StaticDir string

	// Data directory for file-backed stores (sessions, users, room logs)
	DataDir string

	// Hub tuning
	HistoryTail    int           // lines replayed to a newly joined connection
	SendBuffer     int           // per-connection outbound queue size
	AuthTimeout    time.Duration // bound on session validation during handshake
	MessagesPerMin int           // per-user inbound message rate limit

	// Sessions
	SessionStore string // "file" or "redis"
	RedisURL     string // e.g., "redis://localhost:6379"
	SessionTTL   time.Duration

	// Optional Postgres user directory
	DatabaseURL string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string // OAuth callback URL
	StateSigningKey    string // HMAC key for the OAuth state token
	OAuthEnabled       bool
}

// Load reads configuration from environment variables.
// In production these come from the host, in dev from .env via docker-compose.
func Load() (*Config, error) {
	cfg := &Config{
		ServerAddr: getEnvOrDefault("SERVER_ADDR", "0.0.0.0:8080"),
		Env:        getEnvOrDefault("APP_ENV", "development"),
		AppBaseURL: getEnvOrDefault("APP_BASE_URL", "http://localhost:8080"),
		StaticDir:  getEnvOrDefault("STATIC_DIR", "static"),
		DataDir:    getEnvOrDefault("DATA_DIR", "data"),
	}

	var err error
	if cfg.HistoryTail, err = intEnv("HISTORY_TAIL", 100); err != nil {
		return nil, err
	}
	if cfg.SendBuffer, err = intEnv("SEND_BUFFER", 256); err != nil {
		return nil, err
	}
	if cfg.MessagesPerMin, err = intEnv("MESSAGES_PER_MIN", 300); err != nil {
		return nil, err
	}
	if cfg.AuthTimeout, err = durationEnv("AUTH_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}

	cfg.SessionStore = getEnvOrDefault("SESSION_STORE", "file") // "file" or "redis"
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = getEnvOrDefault("GOOGLE_REDIRECT_URL", cfg.AppBaseURL+"/oauth2callback")
	cfg.StateSigningKey = os.Getenv("STATE_SIGNING_KEY")
	cfg.OAuthEnabled = cfg.GoogleClientID != "" && cfg.GoogleClientSecret != ""

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.HistoryTail < 0 {
		return fmt.Errorf("HISTORY_TAIL must not be negative")
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("SEND_BUFFER must be at least 1")
	}
	if c.SessionStore != "file" && c.SessionStore != "redis" {
		return fmt.Errorf("SESSION_STORE must be \"file\" or \"redis\", got %q", c.SessionStore)
	}
	if c.SessionStore == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when SESSION_STORE=redis")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func intEnv(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
