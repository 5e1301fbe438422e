/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package expiry

import (
	"context"

	"github.com/visarlabs/visar/internal/events"
)

// Publisher is the slice of the event bus the sink needs.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// BusSink forwards reminder intents onto the event bus, where the
// notification service (or any other consumer) picks them up.
type BusSink struct {
	bus Publisher
}

// NewBusSink creates a sink publishing to bus.
func NewBusSink(bus Publisher) *BusSink {
	return &BusSink{bus: bus}
}

// Notify publishes the reminder as an expiry event.
func (s *BusSink) Notify(_ context.Context, ev Event) {
	s.bus.Publish(events.EventExpiryReminder, events.Payload{
		"entity_type":     string(ev.EntityType),
		"entity_id":       ev.EntityID,
		"content_item_id": ev.ContentItemID,
		"expires_at":      ev.ExpiresAt,
		"day_bucket":      ev.DayBucket,
	})
}
