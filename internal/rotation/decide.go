/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"math/rand"
	"time"

	"github.com/visarlabs/visar/internal/clock"
	"github.com/visarlabs/visar/internal/models"
)

// decision is the outcome of evaluating a policy against the eligible
// set. newState is nil when nothing advanced.
type decision struct {
	video        *models.Video
	reason       Reason
	newState     *models.RotationState
	nextChangeAt time.Time
}

// decide applies the rotation policy to the eligible videos. fresh marks
// a synthesized first-ever state; force marks an explicit rotate-now
// trigger. Pure apart from logging: repeated calls with the same inputs
// return the same decision.
func (e *Engine) decide(b Bundle, eligible []models.Video, st models.RotationState, fresh, force bool, now time.Time) decision {
	if len(eligible) == 0 {
		return decision{reason: ReasonNoEligibleContent, nextChangeAt: now.Add(e.emptyRecheck)}
	}

	policy := b.Policy
	strategy := models.StrategyNone
	if policy != nil {
		normalized, exact := models.ParseStrategy(string(policy.Strategy))
		if !exact {
			e.logger.Warn().
				Str("content_item", b.Item.ID).
				Str("strategy", string(policy.Strategy)).
				Str("normalized", string(normalized)).
				Msg("normalized legacy rotation strategy")
		}
		strategy = normalized
	}

	// Date rules take precedence over every strategy.
	if policy != nil {
		if d, ok := e.decideDateRule(b, policy, eligible, now); ok {
			return d
		}
	}

	switch strategy {
	case models.StrategySequential:
		return e.decideOrdered(b, policy, eligible, st, fresh, force, now, ReasonSequential)
	case models.StrategyCyclic:
		return e.decideOrdered(b, policy, eligible, st, fresh, false, now, ReasonCyclic)
	case models.StrategyRandom:
		return e.decideRandom(b, policy, eligible, st, fresh, now)
	case models.StrategyDateRule:
		// No rule matched today; serve the configured fallback.
		video := e.fallbackVideo(b, policy, eligible)
		next := minNonZero(NextEligibilityChange(b.Videos, b.Schedules, now), nextRuleStart(policy, now))
		return decision{video: video, reason: ReasonFallbackDefault, nextChangeAt: next}
	default:
		video := e.pickDefault(b.Item.ID, eligible)
		next := NextEligibilityChange(b.Videos, b.Schedules, now)
		if policy != nil {
			next = minNonZero(next, nextRuleStart(policy, now))
		}
		return decision{video: video, reason: ReasonPolicyNone, nextChangeAt: next}
	}
}

// decideDateRule returns the first matching date-rule override, if any.
func (e *Engine) decideDateRule(b Bundle, policy *models.RotationPolicy, eligible []models.Video, now time.Time) (decision, bool) {
	for _, rule := range policy.DateRules {
		if !rule.Contains(now) {
			continue
		}
		video := findByID(eligible, rule.VideoID)
		if video == nil {
			e.logger.Warn().
				Str("content_item", b.Item.ID).
				Str("video", rule.VideoID).
				Str("date", rule.Start).
				Msg("date rule references an ineligible video, skipping")
			continue
		}
		until, _ := rule.Until()
		return decision{video: video, reason: ReasonDateRule, nextChangeAt: until}, true
	}
	return decision{}, false
}

// decideOrdered implements Sequential and Cyclic: one step per crossed
// boundary, index clamped by modulo so a shrunken eligible list never
// faults.
func (e *Engine) decideOrdered(b Bundle, policy *models.RotationPolicy, eligible []models.Video, st models.RotationState, fresh, force bool, now time.Time, reason Reason) decision {
	n := len(eligible)

	crossed := fresh || force
	if !crossed && !st.NextChangeAt.IsZero() && !now.Before(st.NextChangeAt) {
		crossed = true
	}
	if !crossed {
		idx := clampIndex(st.CurrentIndex, n)
		return decision{video: &eligible[idx], reason: reason, nextChangeAt: st.NextChangeAt}
	}

	idx := 0
	if !fresh {
		idx = clampIndex(st.CurrentIndex+1, n)
	}

	// The advance is attributed to the boundary instant, not to whenever
	// the next request happened to arrive.
	boundary := now
	if !fresh && !st.NextChangeAt.IsZero() && !st.NextChangeAt.After(now) {
		boundary = st.NextChangeAt
	}

	manualOnly := reason == ReasonSequential && (policy == nil || policy.Trigger.IsZero())
	var next time.Time
	if !manualOnly {
		next = e.nextBoundary(policy, b.Item.ID, now)
	}

	newState := st
	newState.ContentItemID = b.Item.ID
	newState.CurrentIndex = idx
	newState.CurrentVideoID = eligible[idx].ID
	newState.NextChangeAt = next
	newState.LastChangedAt = boundary
	newState.Version = st.Version + 1

	return decision{video: &eligible[idx], reason: reason, newState: &newState, nextChangeAt: next}
}

// decideRandom implements the weighted no-repeat draw, seeded from the
// persisted seed and version so replays are reproducible.
func (e *Engine) decideRandom(b Bundle, policy *models.RotationPolicy, eligible []models.Video, st models.RotationState, fresh bool, now time.Time) decision {
	if !fresh && !st.NextChangeAt.IsZero() && now.Before(st.NextChangeAt) {
		if v := findByID(eligible, st.CurrentVideoID); v != nil {
			return decision{video: v, reason: ReasonRandom, nextChangeAt: st.NextChangeAt}
		}
		// The persisted pick dropped out of eligibility mid-cycle
		// (expiry, window close): redraw below.
	}

	noRepeat := 0
	if policy != nil {
		noRepeat = policy.NoRepeatDays
	}
	cutoff := now.AddDate(0, 0, -noRepeat)

	candidates := eligible
	if noRepeat > 0 {
		recent := st.RecentDraws(cutoff)
		unseen := make([]models.Video, 0, len(eligible))
		for _, v := range eligible {
			if _, ok := recent[v.ID]; !ok {
				unseen = append(unseen, v)
			}
		}
		// The no-repeat constraint never empties the draw: with every
		// candidate recently shown, the full eligible set is used.
		if len(unseen) > 0 {
			candidates = unseen
		}
	}

	rng := rand.New(rand.NewSource(mixSeed(st.RandomSeed, st.Version)))
	chosen := weightedDraw(rng, candidates)

	boundary := now
	if !fresh && !st.NextChangeAt.IsZero() && !st.NextChangeAt.After(now) {
		boundary = st.NextChangeAt
	}
	next := e.nextBoundary(policy, b.Item.ID, now)

	newState := st
	newState.ContentItemID = b.Item.ID
	newState.CurrentIndex = indexOf(eligible, chosen.ID)
	newState.CurrentVideoID = chosen.ID
	newState.NextChangeAt = next
	newState.LastChangedAt = boundary
	newState.Version = st.Version + 1
	if noRepeat > 0 {
		newState.PruneHistory(cutoff)
	}
	newState.History = append(newState.History, models.DrawRecord{VideoID: chosen.ID, At: boundary})

	return decision{video: chosen, reason: ReasonRandom, newState: &newState, nextChangeAt: next}
}

// weightedDraw picks one video with probability proportional to its
// rotation weight. candidates must be non-empty.
func weightedDraw(rng *rand.Rand, candidates []models.Video) *models.Video {
	total := 0
	for _, v := range candidates {
		total += v.Weight()
	}
	r := rng.Intn(total)
	for i := range candidates {
		r -= candidates[i].Weight()
		if r < 0 {
			return &candidates[i]
		}
	}
	return &candidates[len(candidates)-1]
}

func indexOf(videos []models.Video, id string) int {
	for i := range videos {
		if videos[i].ID == id {
			return i
		}
	}
	return 0
}

func clampIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func findByID(videos []models.Video, id string) *models.Video {
	if id == "" {
		return nil
	}
	for i := range videos {
		if videos[i].ID == id {
			return &videos[i]
		}
	}
	return nil
}

// pickDefault chooses the designated default video, tolerating zero or
// many default flags deterministically.
func (e *Engine) pickDefault(itemID string, eligible []models.Video) *models.Video {
	var def *models.Video
	count := 0
	for i := range eligible {
		if eligible[i].IsDefault {
			count++
			if def == nil {
				def = &eligible[i]
			}
		}
	}
	if count > 1 {
		e.logger.Warn().Str("content_item", itemID).Int("defaults", count).
			Msg("multiple default videos, using first by rotation order")
	}
	if def != nil {
		return def
	}
	return &eligible[0]
}

// fallbackVideo resolves the policy's default video id, degrading to the
// deterministic default pick when it is missing or ineligible.
func (e *Engine) fallbackVideo(b Bundle, policy *models.RotationPolicy, eligible []models.Video) *models.Video {
	if policy.DefaultVideoID != "" {
		if v := findByID(eligible, policy.DefaultVideoID); v != nil {
			return v
		}
		e.logger.Warn().
			Str("content_item", b.Item.ID).
			Str("default_video", policy.DefaultVideoID).
			Msg("policy default video is not eligible, degrading to first eligible")
	}
	return e.pickDefault(b.Item.ID, eligible)
}

// nextBoundary computes the next trigger boundary, degrading malformed
// triggers to a daily cadence instead of failing the request.
func (e *Engine) nextBoundary(policy *models.RotationPolicy, itemID string, now time.Time) time.Time {
	trig := models.Trigger{}
	if policy != nil {
		trig = policy.Trigger
	}
	next, err := clock.NextBoundary(trig, now)
	if err != nil {
		e.logger.Warn().Err(err).Str("content_item", itemID).
			Msg("invalid rotation trigger, falling back to daily boundary")
		next, _ = clock.NextBoundary(models.Trigger{}, now)
	}
	return next
}

// nextRuleStart returns the earliest future date-rule start, for cache
// expiry of decisions that a future override will change.
func nextRuleStart(policy *models.RotationPolicy, now time.Time) time.Time {
	var next time.Time
	for _, rule := range policy.DateRules {
		start, ok := rule.NextStart(now)
		if !ok {
			continue
		}
		if next.IsZero() || start.Before(next) {
			next = start
		}
	}
	return next
}

func minNonZero(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b
	case b.IsZero():
		return a
	case b.Before(a):
		return b
	default:
		return a
	}
}

// mixSeed derives the per-draw PRNG seed from the stable per-item seed
// and the state version, so each rotation cycle gets a fresh but
// reproducible stream.
func mixSeed(seed, version int64) int64 {
	return seed ^ int64(uint64(version+1)*0x9e3779b97f4a7c15)
}
