/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., https://api.visar.example)
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Selection behaviour
	EmptyRecheckInterval time.Duration // re-poll hint after no-eligible-content
	SelectTimeout        time.Duration // per-request decision budget

	// Decision cache (Redis)
	CacheEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Event publishing (NATS)
	EventsEnabled bool
	NATSURL       string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	InstanceID        string
	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"VISAR_ENV", "AR_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"VISAR_HTTP_BIND", "AR_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"VISAR_HTTP_PORT", "AR_HTTP_PORT"}, 8080),
		BaseURL:     getEnvAny([]string{"VISAR_BASE_URL", "AR_BASE_URL"}, ""),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"VISAR_DB_BACKEND", "AR_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:       getEnvAny([]string{"VISAR_DB_DSN", "AR_DB_DSN"}, ""),
		MetricsBind: getEnvAny([]string{"VISAR_METRICS_BIND", "AR_METRICS_BIND"}, "127.0.0.1:9000"),

		EmptyRecheckInterval: time.Duration(getEnvIntAny([]string{"VISAR_EMPTY_RECHECK_SECONDS", "AR_EMPTY_RECHECK_SECONDS"}, 60)) * time.Second,
		SelectTimeout:        time.Duration(getEnvIntAny([]string{"VISAR_SELECT_TIMEOUT_SECONDS", "AR_SELECT_TIMEOUT_SECONDS"}, 5)) * time.Second,

		CacheEnabled:  getEnvBoolAny([]string{"VISAR_CACHE_ENABLED", "AR_CACHE_ENABLED"}, false),
		RedisAddr:     getEnvAny([]string{"VISAR_REDIS_ADDR", "AR_REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"VISAR_REDIS_PASSWORD", "AR_REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"VISAR_REDIS_DB", "AR_REDIS_DB"}, 0),

		EventsEnabled: getEnvBoolAny([]string{"VISAR_EVENTS_ENABLED", "AR_EVENTS_ENABLED"}, false),
		NATSURL:       getEnvAny([]string{"VISAR_NATS_URL", "AR_NATS_URL"}, "nats://localhost:4222"),

		TracingEnabled:    getEnvBoolAny([]string{"VISAR_TRACING_ENABLED", "AR_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"VISAR_OTLP_ENDPOINT", "AR_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"VISAR_TRACING_SAMPLE_RATE", "AR_TRACING_SAMPLE_RATE"}, 1.0),

		InstanceID: getEnvAny([]string{"VISAR_INSTANCE_ID", "AR_INSTANCE_ID"}, ""),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("VISAR_DB_DSN or AR_DB_DSN must be provided")
	}

	if cfg.EmptyRecheckInterval <= 0 {
		return nil, fmt.Errorf("VISAR_EMPTY_RECHECK_SECONDS must be positive")
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.CacheEnabled && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("VISAR_REDIS_ADDR must be set when the cache is enabled in production")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":         "use VISAR_ENV (or AR_ENV)",
		"DATABASE_URL":        "use VISAR_DB_DSN (or AR_DB_DSN)",
		"TRACING_ENABLED":     "use VISAR_TRACING_ENABLED (or AR_TRACING_ENABLED)",
		"OTLP_ENDPOINT":       "use VISAR_OTLP_ENDPOINT (or AR_OTLP_ENDPOINT)",
		"TRACING_SAMPLE_RATE": "use VISAR_TRACING_SAMPLE_RATE (or AR_TRACING_SAMPLE_RATE)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
