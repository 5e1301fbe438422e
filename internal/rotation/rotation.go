/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package rotation decides which single video is currently active for a
// content item and advances persisted rotation state over time.
package rotation

import (
	"context"
	"errors"
	"time"

	"github.com/visarlabs/visar/internal/models"
)

// ErrUnavailable indicates a repository or state store collaborator
// failed or timed out. It is the only error callers should surface as a
// request failure; every other outcome is a normal, cacheable result.
var ErrUnavailable = errors.New("rotation collaborator unavailable")

// ErrNotFound indicates the content item does not exist. Repositories
// wrap their missing-record errors in it so callers can distinguish a
// bad identifier from an outage.
var ErrNotFound = errors.New("content item not found")

// ErrManualRotation indicates an explicit rotate-now call was made for a
// policy that does not support manual stepping.
var ErrManualRotation = errors.New("policy does not rotate manually")

// Reason explains how the active video was chosen.
type Reason string

const (
	ReasonPolicyNone        Reason = "policy-none"
	ReasonDateRule          Reason = "policy-date-rule"
	ReasonSequential        Reason = "policy-sequential"
	ReasonCyclic            Reason = "policy-cyclic"
	ReasonRandom            Reason = "policy-random"
	ReasonFallbackDefault   Reason = "fallback-default"
	ReasonNoEligibleContent Reason = "no-eligible-content"
)

// Selection is the outcome of a SelectActiveVideo call. Video is nil
// when no content is currently eligible. NextChangeAt is the earliest
// instant at which the answer may differ; zero means the decision is
// stable until the content itself changes.
type Selection struct {
	Video        *models.Video
	Reason       Reason
	NextChangeAt time.Time
}

// Bundle carries everything the engine needs to decide for one content
// item.
type Bundle struct {
	Item      models.ContentItem
	Videos    []models.Video
	Policy    *models.RotationPolicy
	Schedules []models.Schedule
}

// Repository provides read access to content records and the rotation
// counter.
type Repository interface {
	LoadBundle(ctx context.Context, contentItemID string) (Bundle, error)
	// BumpRotationCounter increments the content item's rotation
	// counter after a successful advance. Best effort.
	BumpRotationCounter(ctx context.Context, contentItemID string) error
}

// StateStore persists rotation state with optimistic concurrency.
type StateStore interface {
	// Load returns the stored state and whether one exists.
	Load(ctx context.Context, contentItemID string) (models.RotationState, bool, error)
	// CompareAndSwap persists next if the stored version still equals
	// expectedVersion. expectedVersion zero means "create". Returns
	// false without error when another writer won the race.
	CompareAndSwap(ctx context.Context, expectedVersion int64, next models.RotationState) (bool, error)
}

// Notifier observes completed decisions, e.g. to emit expiry reminders.
// Implementations must never affect the selection outcome.
type Notifier interface {
	Observe(ctx context.Context, item models.ContentItem, eligible []models.Video, now time.Time)
}
