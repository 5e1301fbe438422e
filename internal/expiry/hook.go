/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package expiry watches selection traffic for assets approaching the
// end of their subscription and emits at most one reminder per entity
// per day.
package expiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/telemetry"
)

// EntityType distinguishes what is about to expire.
type EntityType string

const (
	EntityContentItem EntityType = "content_item"
	EntityVideo       EntityType = "video"
)

// Event describes one expiry reminder intent.
type Event struct {
	EntityType    EntityType
	EntityID      string
	ContentItemID string
	ExpiresAt     time.Time
	DayBucket     string // "2006-01-02", UTC day the reminder belongs to
}

// Sink receives reminder intents. Implementations must be fast or
// buffer internally; the hook runs on the request path.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

const (
	dedupKeyPrefix = "visar:expiry:"
	dedupTTL       = 48 * time.Hour
	dayLayout      = "2006-01-02"
)

// Hook observes selection decisions and forwards expiry reminders to a
// sink, deduplicated per (entity, UTC day). Dedup prefers Redis so
// multiple nodes agree; without Redis an in-process map serves one node.
type Hook struct {
	sink   Sink
	client *redis.Client
	logger zerolog.Logger

	mu      sync.Mutex
	seen    map[string]struct{} // local fallback dedup
	seenDay string              // day bucket the map belongs to
}

// NewHook creates an expiry hook. client may be nil.
func NewHook(sink Sink, client *redis.Client, logger zerolog.Logger) *Hook {
	return &Hook{
		sink:   sink,
		client: client,
		logger: logger.With().Str("component", "expiry").Logger(),
		seen:   make(map[string]struct{}),
	}
}

// Observe inspects the content item and its videos after a selection.
// Never fails the caller; dedup errors degrade to local dedup.
func (h *Hook) Observe(ctx context.Context, item models.ContentItem, videos []models.Video, now time.Time) {
	if h.sink == nil {
		return
	}
	now = now.UTC()

	if item.SubscriptionEnd != nil {
		h.check(ctx, Event{
			EntityType:    EntityContentItem,
			EntityID:      item.ID,
			ContentItemID: item.ID,
			ExpiresAt:     item.SubscriptionEnd.UTC(),
			DayBucket:     now.Format(dayLayout),
		}, item.NotifyBeforeExpiryDays, now)
	}

	for _, v := range videos {
		if v.SubscriptionEnd == nil {
			continue
		}
		h.check(ctx, Event{
			EntityType:    EntityVideo,
			EntityID:      v.ID,
			ContentItemID: v.ContentItemID,
			ExpiresAt:     v.SubscriptionEnd.UTC(),
			DayBucket:     now.Format(dayLayout),
		}, v.NotifyBeforeExpiryDays, now)
	}
}

func (h *Hook) check(ctx context.Context, ev Event, notifyDays int, now time.Time) {
	if notifyDays <= 0 {
		notifyDays = 7
	}
	windowStart := ev.ExpiresAt.AddDate(0, 0, -notifyDays)
	// The reminder window is [expiry - notifyDays, expiry); an already
	// expired entity needs no reminder.
	if now.Before(windowStart) || !now.Before(ev.ExpiresAt) {
		return
	}

	if !h.firstToday(ctx, ev) {
		return
	}

	telemetry.ExpiryIntentsTotal.WithLabelValues(string(ev.EntityType)).Inc()
	h.logger.Info().
		Str("entity_type", string(ev.EntityType)).
		Str("entity_id", ev.EntityID).
		Time("expires_at", ev.ExpiresAt).
		Msg("expiry reminder")
	h.sink.Notify(ctx, ev)
}

// firstToday claims the (entity, day) slot. Redis SETNX when available,
// local map otherwise.
func (h *Hook) firstToday(ctx context.Context, ev Event) bool {
	key := fmt.Sprintf("%s%s:%s:%s", dedupKeyPrefix, ev.EntityType, ev.EntityID, ev.DayBucket)

	if h.client != nil {
		ok, err := h.client.SetNX(ctx, key, 1, dedupTTL).Result()
		if err == nil {
			return ok
		}
		h.logger.Debug().Err(err).Str("key", key).Msg("redis dedup failed, using local dedup")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// Keys embed the day bucket, so entries from past days can never
	// match again; drop them when the day rolls over instead of letting
	// the map grow for the life of the process.
	if ev.DayBucket != h.seenDay {
		h.seen = make(map[string]struct{})
		h.seenDay = ev.DayBucket
	}
	if _, dup := h.seen[key]; dup {
		return false
	}
	h.seen[key] = struct{}{}
	return true
}
