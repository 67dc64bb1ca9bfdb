package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("port %d want 8080", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Fatalf("environment %q", cfg.Environment)
	}
	if cfg.GeminiModel != "gemini-1.5-flash" {
		t.Fatalf("model %q", cfg.GeminiModel)
	}
	if cfg.UpstreamTimeout != 20*time.Second {
		t.Fatalf("timeout %v", cfg.UpstreamTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "5")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port %d", cfg.Port)
	}
	if cfg.RateLimitRPM != 5 {
		t.Fatalf("rate limit %d", cfg.RateLimitRPM)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Fatalf("model %q", cfg.GeminiModel)
	}
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("production without DATABASE_URL should fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/civiclens")
	t.Setenv("JWT_SECRET", "real-secret")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("LOCATIONIQ_API_KEY", "key")

	if _, err := Load(); err != nil {
		t.Fatalf("production with secrets should load: %v", err)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	if got := getEnvInt("TEST_INT", 42); got != 42 {
		t.Fatalf("malformed int should fall back, got %d", got)
	}
}
