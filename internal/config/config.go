package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Broadcast backend selection values.
const (
	BroadcastMemory = "memory"
	BroadcastRedis  = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string // PostgreSQL; when empty the SQLite store is used
	SQLitePath  string
	RedisURL    string

	// BroadcastBackend selects the fan-out layer: "memory" (default,
	// single-process) or "redis" (externally shared).
	BroadcastBackend string

	// AllowedOrigins lists origins permitted for CORS and WebSocket
	// upgrades. "*" allows all.
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		RedisURL:         os.Getenv("REDIS_URL"),
		BroadcastBackend: getEnv("BROADCAST_BACKEND", BroadcastMemory),
	}

	// Parse allowed origins (comma-separated)
	origins := getEnv("ALLOWED_ORIGINS", "*")
	for _, entry := range strings.Split(origins, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
		}
	}

	// In production, require a real database
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" {
			panic("DATABASE_URL is required in production")
		}
	}
	if cfg.BroadcastBackend == BroadcastRedis && cfg.RedisURL == "" {
		panic("REDIS_URL is required when BROADCAST_BACKEND=redis")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
