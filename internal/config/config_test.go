package config

import (
	"testing"
	"time"
)

func TestLoadReadsCriticalEnvKeys(t *testing.T) {
	t.Setenv("VISAR_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("VISAR_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBDSN == "" {
		t.Fatal("expected DB DSN to be set")
	}
	if cfg.EmptyRecheckInterval != 60*time.Second {
		t.Fatalf("unexpected empty recheck default: %v", cfg.EmptyRecheckInterval)
	}
}

func TestLoadHonorsLegacyPrefix(t *testing.T) {
	t.Setenv("AR_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("AR_DB_BACKEND", "sqlite")
	t.Setenv("AR_EMPTY_RECHECK_SECONDS", "15")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("unexpected backend: %q", cfg.DBBackend)
	}
	if cfg.EmptyRecheckInterval != 15*time.Second {
		t.Fatalf("unexpected empty recheck interval: %v", cfg.EmptyRecheckInterval)
	}
}

func TestLoadReportsLegacyEnvWarnings(t *testing.T) {
	t.Setenv("VISAR_DB_DSN", "host=localhost user=test dbname=test sslmode=disable")
	t.Setenv("DATABASE_URL", "legacy")
	t.Setenv("TRACING_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.LegacyEnvWarnings) == 0 {
		t.Fatal("expected legacy env warnings")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("VISAR_DB_DSN", "whatever")
	t.Setenv("VISAR_DB_BACKEND", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected unsupported backend to fail")
	}
}

func TestLoadRejectsMissingDSN(t *testing.T) {
	t.Setenv("VISAR_DB_DSN", "")
	t.Setenv("AR_DB_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected missing DSN to fail")
	}
}
