/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog"

	"github.com/visarlabs/visar/internal/clock"
	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/telemetry"
)

// DefaultEmptyRecheck is how soon callers should re-ask after a
// no-eligible-content decision.
const DefaultEmptyRecheck = 60 * time.Second

// Engine orchestrates eligibility filtering, policy evaluation and
// state persistence to produce the active video for a content item.
type Engine struct {
	repo         Repository
	states       StateStore
	clk          clock.Clock
	notifier     Notifier
	logger       zerolog.Logger
	emptyRecheck time.Duration
}

// New creates a selection engine instance.
func New(repo Repository, states StateStore, clk clock.Clock, logger zerolog.Logger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		repo:         repo,
		states:       states,
		clk:          clk,
		logger:       logger.With().Str("component", "rotation").Logger(),
		emptyRecheck: DefaultEmptyRecheck,
	}
}

// SetNotifier sets the decision observer (expiry reminders).
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// SetEmptyRecheck overrides the re-poll interval returned with
// no-eligible-content decisions.
func (e *Engine) SetEmptyRecheck(d time.Duration) {
	if d > 0 {
		e.emptyRecheck = d
	}
}

// SelectActiveVideo answers "which video is active right now, and when
// does that answer next change" for one content item. Repository errors
// surface as ErrUnavailable; every other outcome is a normal decision.
func (e *Engine) SelectActiveVideo(ctx context.Context, contentItemID string) (Selection, error) {
	return e.selectVideo(ctx, contentItemID, false)
}

// RotateNow forces a Sequential policy one step forward, the explicit
// trigger counterpart to time-based advancement.
func (e *Engine) RotateNow(ctx context.Context, contentItemID string) (Selection, error) {
	return e.selectVideo(ctx, contentItemID, true)
}

func (e *Engine) selectVideo(ctx context.Context, contentItemID string, force bool) (Selection, error) {
	ctx, span := telemetry.StartSpan(ctx, "rotation", "selectVideo")
	defer span.End()
	telemetry.SetSpanAttribute(span, "content_item_id", contentItemID)

	started := time.Now()
	now := e.clk.Now().UTC()

	bundle, err := e.repo.LoadBundle(ctx, contentItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, ErrNotFound) {
			return Selection{}, err
		}
		return Selection{}, fmt.Errorf("%w: load content %s: %v", ErrUnavailable, contentItemID, err)
	}

	if force {
		strategy := models.StrategyNone
		if bundle.Policy != nil {
			strategy, _ = models.ParseStrategy(string(bundle.Policy.Strategy))
		}
		if strategy != models.StrategySequential {
			return Selection{}, ErrManualRotation
		}
	}

	eligible := e.eligibleFor(bundle, now)

	st, haveState, err := e.states.Load(ctx, contentItemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return Selection{}, fmt.Errorf("%w: load state %s: %v", ErrUnavailable, contentItemID, err)
	}

	expected := st.Version
	fresh := !haveState
	if fresh {
		expected = 0
		st = models.RotationState{
			ContentItemID: contentItemID,
			NextChangeAt:  now,
			RandomSeed:    seedFor(contentItemID),
		}
	}

	d := e.decide(bundle, eligible, st, fresh, force, now)

	// Covers state persisted before an expiry took effect: never serve a
	// video whose subscription already ended. Retried at most once.
	if d.video != nil && d.video.Expired(now) {
		eligible = removeVideo(eligible, d.video.ID)
		d = e.decide(bundle, eligible, st, fresh, force, now)
	}

	if d.newState != nil {
		ok, err := e.states.CompareAndSwap(ctx, expected, *d.newState)
		if err != nil {
			telemetry.RecordError(span, err)
			return Selection{}, fmt.Errorf("%w: persist state %s: %v", ErrUnavailable, contentItemID, err)
		}
		if ok {
			telemetry.RotationAdvancesTotal.Inc()
			if err := e.repo.BumpRotationCounter(ctx, contentItemID); err != nil {
				e.logger.Debug().Err(err).Str("content_item", contentItemID).
					Msg("rotation counter bump failed")
			}
		} else {
			// A concurrent request already advanced past the boundary.
			// Reload once and serve the winner's decision; both sides
			// computed the same boundary from the same eligible set.
			telemetry.RotationConflictsTotal.Inc()
			st2, haveState2, err := e.states.Load(ctx, contentItemID)
			if err != nil {
				telemetry.RecordError(span, err)
				return Selection{}, fmt.Errorf("%w: reload state %s: %v", ErrUnavailable, contentItemID, err)
			}
			if haveState2 {
				d = e.decide(bundle, eligible, st2, false, false, now)
				d.newState = nil
			}
		}
	}

	if e.notifier != nil {
		e.notifier.Observe(ctx, bundle.Item, eligible, now)
	}

	telemetry.RotationSelectionDuration.Observe(time.Since(started).Seconds())
	telemetry.RotationSelectionsTotal.WithLabelValues(string(d.reason)).Inc()

	return Selection{Video: d.video, Reason: d.reason, NextChangeAt: d.nextChangeAt}, nil
}

// eligibleFor filters the bundle's videos, treating an expired content
// item as having no candidates at all.
func (e *Engine) eligibleFor(b Bundle, now time.Time) []models.Video {
	if b.Item.SubscriptionEnd != nil && !b.Item.SubscriptionEnd.After(now) {
		return nil
	}
	return Eligible(b.Videos, b.Schedules, now)
}

func removeVideo(videos []models.Video, id string) []models.Video {
	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if v.ID != id {
			out = append(out, v)
		}
	}
	return out
}

// seedFor derives the stable per-item seed material from the content
// item id.
func seedFor(contentItemID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(contentItemID))
	return int64(h.Sum64())
}
