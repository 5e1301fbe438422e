/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rotation

import (
	"sort"
	"time"

	"github.com/visarlabs/visar/internal/models"
)

// Eligible returns the subset of videos structurally qualified at now,
// ordered by rotation order ascending with video id as the tie break.
// No side effects; an empty result means the caller must fall back to
// the policy default or report no active content.
func Eligible(videos []models.Video, schedules []models.Schedule, now time.Time) []models.Video {
	byVideo := make(map[string][]models.Schedule, len(schedules))
	for _, s := range schedules {
		byVideo[s.VideoID] = append(byVideo[s.VideoID], s)
	}

	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		if !v.IsActive {
			continue
		}
		if v.Expired(now) {
			continue
		}
		if v.WindowStart != nil && now.Before(*v.WindowStart) {
			continue
		}
		if v.WindowEnd != nil && !now.Before(*v.WindowEnd) {
			continue
		}
		if scheds := byVideo[v.ID]; len(scheds) > 0 && !anyScheduleCovers(scheds, now) {
			continue
		}
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].RotationOrder != out[j].RotationOrder {
			return out[i].RotationOrder < out[j].RotationOrder
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func anyScheduleCovers(scheds []models.Schedule, now time.Time) bool {
	for _, s := range scheds {
		if s.Covers(now) {
			return true
		}
	}
	return false
}

// NextEligibilityChange returns the earliest future instant at which the
// eligibility of any candidate can change: window edges, schedule edges
// and expiries. Zero means eligibility is stable.
func NextEligibilityChange(videos []models.Video, schedules []models.Schedule, now time.Time) time.Time {
	var next time.Time
	consider := func(t time.Time) {
		if t.After(now) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	for _, v := range videos {
		if v.WindowStart != nil {
			consider(*v.WindowStart)
		}
		if v.WindowEnd != nil {
			consider(*v.WindowEnd)
		}
		if v.SubscriptionEnd != nil {
			consider(*v.SubscriptionEnd)
		}
	}
	for _, s := range schedules {
		if s.Status != models.ScheduleActive {
			continue
		}
		consider(s.StartsAt)
		consider(s.EndsAt)
	}
	return next
}
