package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	for _, k := range []string{"DB_HOST", "DB_PORT", "DB_NAME", "REDIS_ADDR", "LOG_LEVEL", "AUTH_JWT_SECRET", "HTTP_ADDR", "IDEMPOTENCY_TTL"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}
	if cfg.Database.Database != "agrikonek" {
		t.Errorf("Expected DB_NAME default 'agrikonek', got '%s'", cfg.Database.Database)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("Expected HTTP_ADDR default ':8080', got '%s'", cfg.HTTP.Addr)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Errorf("Expected IDEMPOTENCY_TTL default 24h, got %s", cfg.IdempotencyTTL)
	}
	if cfg.Auth.JWTSecret != "" {
		t.Errorf("AUTH_JWT_SECRET must not have a default")
	}
	if !cfg.SeedFallbackEnabled {
		t.Errorf("Expected seed fallback enabled by default")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_NAME", "agri_test")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("NOTIFY_WORKERS", "not-a-number")
	t.Setenv("SEED_FALLBACK_ENABLED", "false")

	cfg := Load()

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 || cfg.Database.Database != "agri_test" {
		t.Errorf("database env not applied: %+v", cfg.Database)
	}
	if !cfg.Redis.Enabled || !cfg.MQTT.Enabled {
		t.Errorf("Expected redis and mqtt enabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected LOG_LEVEL 'debug', got '%s'", cfg.Log.Level)
	}
	if cfg.Notify.Workers != 4 {
		t.Errorf("Expected invalid NOTIFY_WORKERS to fall back to 4, got %d", cfg.Notify.Workers)
	}
	if cfg.SeedFallbackEnabled {
		t.Errorf("Expected seed fallback disabled")
	}
}

func TestValidate_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	cfg := Load()

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AUTH_JWT_SECRET") {
		t.Fatalf("Expected missing secret error, got %v", err)
	}

	cfg.Auth.JWTSecret = strings.Repeat("k", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	if got := c.DSN(); got != "host=h port=1 user=u password=p dbname=d sslmode=disable" {
		t.Errorf("unexpected dsn %q", got)
	}
}
