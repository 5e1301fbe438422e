/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based cache for selection decisions.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/visarlabs/visar/internal/telemetry"
)

// Default TTL values
const (
	// DefaultDecisionTTL bounds how long a decision with no known next
	// change may be served from cache.
	DefaultDecisionTTL = 5 * time.Minute
	// MaxDecisionTTL caps the TTL even when the next boundary is far
	// away, so content edits propagate within this window at worst.
	MaxDecisionTTL = 15 * time.Minute
)

// Key prefixes for Redis cache
const (
	KeyDecision = "visar:cache:decision:" // + content_item_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DecisionTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		DecisionTTL:    DefaultDecisionTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance. An unreachable Redis yields a
// disabled cache, not an error; every lookup then misses.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Client exposes the underlying Redis client for collaborators that
// share the connection, e.g. the expiry dedup store. Nil when disabled.
func (c *Cache) Client() *redis.Client {
	if c == nil || !c.IsAvailable() {
		return nil
	}
	return c.client
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// CachedDecision is the cached outcome of one selection.
type CachedDecision struct {
	ContentItemID string    `json:"content_item_id"`
	VideoID       string    `json:"video_id,omitempty"`
	VideoTitle    string    `json:"video_title,omitempty"`
	StorageKey    string    `json:"storage_key,omitempty"`
	Reason        string    `json:"reason"`
	NextChangeAt  time.Time `json:"next_change_at,omitempty"`
	DecidedAt     time.Time `json:"decided_at"`
}

// GetDecision retrieves a cached decision for a content item.
func (c *Cache) GetDecision(ctx context.Context, contentItemID string) (CachedDecision, bool) {
	var dec CachedDecision
	if !c.IsAvailable() {
		return CachedDecision{}, false
	}

	data, err := c.client.Get(ctx, KeyDecision+contentItemID).Bytes()
	if err == redis.Nil {
		telemetry.CacheMissesTotal.Inc()
		return CachedDecision{}, false
	}
	if err != nil {
		c.handleError(err, "get")
		telemetry.CacheMissesTotal.Inc()
		return CachedDecision{}, false
	}

	if err := json.Unmarshal(data, &dec); err != nil {
		c.logger.Debug().Err(err).Str("content_item", contentItemID).
			Msg("failed to unmarshal cached decision")
		telemetry.CacheMissesTotal.Inc()
		return CachedDecision{}, false
	}

	telemetry.CacheHitsTotal.Inc()
	return dec, true
}

// SetDecision caches a decision until its next change instant, clamped
// to [0, MaxDecisionTTL]. Decisions already at or past their change
// instant are not cached.
func (c *Cache) SetDecision(ctx context.Context, dec CachedDecision) {
	if !c.IsAvailable() {
		return
	}

	ttl := c.config.DecisionTTL
	if ttl <= 0 {
		ttl = DefaultDecisionTTL
	}
	if !dec.NextChangeAt.IsZero() {
		until := time.Until(dec.NextChangeAt)
		if until <= 0 {
			return
		}
		if until < ttl {
			ttl = until
		}
	}
	if ttl > MaxDecisionTTL {
		ttl = MaxDecisionTTL
	}

	data, err := json.Marshal(dec)
	if err != nil {
		c.logger.Error().Err(err).Msg(fmt.Sprintf("marshal decision for %s", dec.ContentItemID))
		return
	}

	if err := c.client.Set(ctx, KeyDecision+dec.ContentItemID, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}

// InvalidateDecision drops the cached decision for one content item.
// Called when the item, its videos or its policy change.
func (c *Cache) InvalidateDecision(ctx context.Context, contentItemID string) {
	if !c.IsAvailable() {
		return
	}
	if err := c.client.Del(ctx, KeyDecision+contentItemID).Err(); err != nil {
		c.handleError(err, "delete")
	}
}

// InvalidateAll drops every cached decision.
func (c *Cache) InvalidateAll(ctx context.Context) {
	if !c.IsAvailable() {
		return
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, KeyDecision+"*", 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return
			}
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
}
