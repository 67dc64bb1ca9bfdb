// Package config handles loading and validation of application configuration
// from environment variables. Supports .env files via godotenv.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port        int
	Environment string // "development" | "staging" | "production"

	// Database. Empty in development falls back to the in-memory store.
	DatabaseURL string

	// Redis (reverse-geocode cache). Empty disables caching.
	RedisURL string

	// Security
	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPM   int

	// External collaborators
	LocationIQKey     string
	LocationIQURL     string
	GeminiAPIKey      string
	GeminiURL         string
	GeminiModel       string
	GmailSendURL      string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthTokenURL     string

	// Per-call timeout for the geocoding/classification/mail upstreams
	UpstreamTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-in-production"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000"), ","),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", 60),

		LocationIQKey: getEnv("LOCATIONIQ_API_KEY", ""),
		LocationIQURL: getEnv("LOCATIONIQ_URL", "https://us1.locationiq.com/v1/reverse"),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiURL:    getEnv("GEMINI_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		GmailSendURL:      getEnv("GMAIL_SEND_URL", "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"),
		OAuthClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthTokenURL:     getEnv("GOOGLE_TOKEN_URL", "https://oauth2.googleapis.com/token"),

		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 20)) * time.Second,
	}

	// Validate required fields in production
	if cfg.Environment == "production" {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTSecret == "dev-secret-change-in-production" {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required in production")
		}
		if cfg.LocationIQKey == "" {
			return nil, fmt.Errorf("LOCATIONIQ_API_KEY is required in production")
		}
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}
