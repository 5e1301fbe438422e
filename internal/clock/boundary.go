/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/visarlabs/visar/internal/models"
)

// NextBoundary computes the earliest instant strictly after `after` at
// which the trigger fires. A zero trigger means daily at midnight UTC.
// All calendar math is done in UTC.
func NextBoundary(trig models.Trigger, after time.Time) (time.Time, error) {
	after = after.UTC()

	if trig.RRule != "" {
		rr, err := rrule.StrToRRule(trig.RRule)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse rrule %q: %w", trig.RRule, err)
		}
		rr.DTStart(after)
		next := rr.After(after, false)
		if next.IsZero() {
			return time.Time{}, fmt.Errorf("rrule %q yields no future occurrence", trig.RRule)
		}
		return next.UTC(), nil
	}

	if trig.Every > 0 {
		return after.Add(trig.Every), nil
	}

	hh, mm, err := parseTimeOfDay(trig.TimeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	switch {
	case trig.DayOfMonth != nil:
		return nextMonthly(after, *trig.DayOfMonth, hh, mm)
	case trig.DayOfWeek != nil:
		return nextWeekly(after, *trig.DayOfWeek, hh, mm)
	default:
		candidate := time.Date(after.Year(), after.Month(), after.Day(), hh, mm, 0, 0, time.UTC)
		if !candidate.After(after) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil
	}
}

func nextWeekly(after time.Time, weekday, hh, mm int) (time.Time, error) {
	if weekday < 0 || weekday > 6 {
		return time.Time{}, fmt.Errorf("day of week %d out of range", weekday)
	}
	candidate := time.Date(after.Year(), after.Month(), after.Day(), hh, mm, 0, 0, time.UTC)
	for i := 0; i < 8; i++ {
		if int(candidate.Weekday()) == weekday && candidate.After(after) {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no weekly boundary found after %s", after)
}

func nextMonthly(after time.Time, day, hh, mm int) (time.Time, error) {
	if day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("day of month %d out of range", day)
	}
	year, month := after.Year(), after.Month()
	// At most 48 months covers every day/leap-year combination.
	for i := 0; i < 48; i++ {
		candidate := time.Date(year, month, day, hh, mm, 0, 0, time.UTC)
		// time.Date normalizes e.g. Feb 31; skip months without the day.
		if candidate.Day() == day && candidate.After(after) {
			return candidate, nil
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}, fmt.Errorf("no monthly boundary for day %d after %s", day, after)
}

func parseTimeOfDay(s string) (int, int, error) {
	if s == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time of day %q is not HH:MM", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("time of day %q has invalid hour", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("time of day %q has invalid minute", s)
	}
	return hh, mm, nil
}
