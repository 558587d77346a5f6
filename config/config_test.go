package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Schedule != "0 2 * * *" {
		t.Errorf("Schedule: got %q, want %q", cfg.Schedule, "0 2 * * *")
	}
	if cfg.NavigationTimeout != 30*time.Second {
		t.Errorf("NavigationTimeout: got %v, want 30s", cfg.NavigationTimeout)
	}
	if cfg.SelectorTimeout != 12*time.Second {
		t.Errorf("SelectorTimeout: got %v, want 12s", cfg.SelectorTimeout)
	}
	if cfg.SnapshotPath != "./data/listings.json" {
		t.Errorf("SnapshotPath: got %q", cfg.SnapshotPath)
	}
	if !cfg.Headless {
		t.Error("Headless should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("MIN_RUN_INTERVAL", "90s")
	t.Setenv("POSTGRES_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr() != ":8081" {
		t.Errorf("Addr: got %q, want :8081", cfg.Addr())
	}
	if cfg.MinRunInterval != 90*time.Second {
		t.Errorf("MinRunInterval: got %v, want 90s", cfg.MinRunInterval)
	}
	if !cfg.PostgresEnabled {
		t.Error("PostgresEnabled should be true")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("RUN_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected an error for an unparseable duration")
	}
}

func TestLoadRejectsLockTTLShorterThanRun(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RUN_TIMEOUT", "5m")
	t.Setenv("REDIS_LOCK_TTL", "3m")
	if _, err := Load(); err == nil {
		t.Error("expected an error when the lock TTL does not cover a run")
	}

	t.Setenv("REDIS_LOCK_TTL", "6m")
	if _, err := Load(); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{
		PostgresHost: "db", PostgresPort: "5432", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "cars", PostgresSSLMode: "disable",
	}
	want := "host=db port=5432 user=u password=p dbname=cars sslmode=disable"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN: got %q, want %q", got, want)
	}
}
