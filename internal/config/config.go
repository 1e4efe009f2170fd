package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Store backend: "redis", "supabase", "pocketbase" or "sqlite"
	Backend       string
	RedisURL      string
	DatabaseURL   string
	PocketBaseURL string
	SQLitePath    string

	// Sync engine
	SyncMode       string // "poll" or "push"
	PollInterval   time.Duration
	RosterInterval time.Duration
	FetchLimit     int

	// Bots
	GeminiAPIKey       string
	TriggerProbability float64
	TypingDelay        time.Duration

	// Admin dashboard credentials (password as bcrypt hash)
	AdminUser         string
	AdminPasswordHash string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		Backend:            getEnv("BACKEND", "sqlite"),
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		PocketBaseURL:      getEnv("POCKETBASE_URL", "http://127.0.0.1:8090"),
		SQLitePath:         os.Getenv("SQLITE_PATH"),
		SyncMode:           getEnv("SYNC_MODE", "push"),
		PollInterval:       getDuration("POLL_INTERVAL", 3*time.Second),
		RosterInterval:     getDuration("ROSTER_INTERVAL", 30*time.Second),
		FetchLimit:         getInt("FETCH_LIMIT", 100),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		TriggerProbability: getFloat("BOT_TRIGGER_PROBABILITY", 0.6),
		TypingDelay:        getDuration("BOT_TYPING_DELAY", 1500*time.Millisecond),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash:  os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	// In production, require explicit backend config and admin credentials
	if cfg.Env == "production" {
		switch cfg.Backend {
		case "redis":
			if cfg.RedisURL == "" {
				panic("REDIS_URL is required with BACKEND=redis in production")
			}
		case "supabase":
			if cfg.DatabaseURL == "" {
				panic("DATABASE_URL is required with BACKEND=supabase in production")
			}
		}
		if cfg.AdminPasswordHash == "" {
			panic("ADMIN_PASSWORD_HASH is required in production")
		}
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

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
