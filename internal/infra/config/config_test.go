package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "ecotrack-accounts" {
		t.Fatalf("unexpected app name %q", cfg.App.Name)
	}
	if cfg.Store.Driver != "firestore" || cfg.Store.Collection != "users" {
		t.Fatalf("unexpected store settings %+v", cfg.Store)
	}
	if !cfg.HTTP.RequireAuth {
		t.Fatalf("expected require_auth to default to true")
	}
	if cfg.JWT.AccessTokenTTL != time.Hour {
		t.Fatalf("expected access token ttl 1h, got %s", cfg.JWT.AccessTokenTTL)
	}
	if cfg.Compensation.MaxAttempts != 3 {
		t.Fatalf("expected 3 compensation attempts, got %d", cfg.Compensation.MaxAttempts)
	}
	if cfg.Compensation.Timeout != 10*time.Second {
		t.Fatalf("expected 10s compensation timeout, got %s", cfg.Compensation.Timeout)
	}
	if len(cfg.HTTP.AllowedOrigins) != 0 {
		t.Fatalf("expected no CORS origins by default, got %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("ECOTRACK_STORE_DRIVER", "postgres")
	t.Setenv("ECOTRACK_APP_PORT", "9091")
	t.Setenv("ECOTRACK_RATE_LIMIT_LOGIN_MAX_ATTEMPTS", "9")
	t.Setenv("ECOTRACK_COMPENSATION_INITIAL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Store.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.Store.Driver)
	}
	if cfg.App.Port != 9091 {
		t.Fatalf("expected port 9091, got %d", cfg.App.Port)
	}
	if cfg.RateLimit.LoginMaxAttempts != 9 {
		t.Fatalf("expected 9 login attempts, got %d", cfg.RateLimit.LoginMaxAttempts)
	}
	if cfg.Compensation.InitialInterval != 250*time.Millisecond {
		t.Fatalf("expected 250ms interval, got %s", cfg.Compensation.InitialInterval)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ECOTRACK_STORE_DRIVER", "mongo")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestValidateRequiresKeysInProduction(t *testing.T) {
	cfg := &AppConfig{
		App:   AppSettings{Env: "production"},
		Store: StoreSettings{Driver: "firestore", Collection: "users"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when production runs without a key directory")
	}

	cfg.JWT.KeyDirectory = "/etc/ecotrack/keys"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
