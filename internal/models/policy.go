/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"strings"
	"time"
)

// Strategy enumerates the canonical rotation strategies.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategySequential Strategy = "sequential"
	StrategyCyclic     Strategy = "cyclic"
	StrategyRandom     Strategy = "random"
	StrategyDateRule   Strategy = "date_rule"
)

// ParseStrategy normalizes a stored strategy string to a canonical
// Strategy. Legacy vocabulary from older schema versions maps as
// follows: "fixed" is none, "daily" is cyclic, "random_daily" is
// random, "date_specific" is date_rule. The second return value is
// false when the input was not already canonical, so callers can log
// the normalization.
func ParseStrategy(raw string) (Strategy, bool) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case StrategyNone, StrategySequential, StrategyCyclic, StrategyRandom, StrategyDateRule:
		return s, true
	case "fixed", "":
		return StrategyNone, false
	case "daily":
		return StrategyCyclic, false
	case "random_daily":
		return StrategyRandom, false
	case "date_specific":
		return StrategyDateRule, false
	default:
		return StrategyNone, false
	}
}

// Trigger describes when a time-based policy may advance. All fields are
// optional; precedence is RRule, then Every, then the calendar fields.
// A zero trigger means a daily boundary at TimeOfDay 00:00 UTC.
type Trigger struct {
	// RRule is an RFC 5545 recurrence rule, e.g. "FREQ=WEEKLY;BYDAY=MO".
	RRule string `json:"rrule,omitempty"`
	// Every is a fixed interval between boundaries.
	Every time.Duration `json:"every,omitempty"`
	// TimeOfDay is "HH:MM" in UTC.
	TimeOfDay string `json:"time_of_day,omitempty"`
	// DayOfWeek restricts boundaries to one weekday, 0 = Sunday.
	DayOfWeek *int `json:"day_of_week,omitempty"`
	// DayOfMonth restricts boundaries to one day of the month, 1-31.
	// Months without that day are skipped.
	DayOfMonth *int `json:"day_of_month,omitempty"`
}

// IsZero reports whether no trigger field is set.
func (t Trigger) IsZero() bool {
	return t.RRule == "" && t.Every == 0 && t.TimeOfDay == "" && t.DayOfWeek == nil && t.DayOfMonth == nil
}

// DateRule maps an explicit date or date range to a video override.
// Dates are "2006-01-02", interpreted in UTC; End is inclusive and
// defaults to Start.
type DateRule struct {
	Start   string `json:"start"`
	End     string `json:"end,omitempty"`
	VideoID string `json:"video_id"`
}

const dateRuleLayout = "2006-01-02"

func (r DateRule) bounds() (time.Time, time.Time, bool) {
	start, err := time.ParseInLocation(dateRuleLayout, r.Start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end := start
	if r.End != "" {
		parsed, err := time.ParseInLocation(dateRuleLayout, r.End, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	return start, end.AddDate(0, 0, 1), true
}

// Contains reports whether now falls inside the rule's date range.
// Malformed dates never match.
func (r DateRule) Contains(now time.Time) bool {
	start, until, ok := r.bounds()
	if !ok {
		return false
	}
	now = now.UTC()
	return !now.Before(start) && now.Before(until)
}

// Until returns the instant at which the rule's range ends.
func (r DateRule) Until() (time.Time, bool) {
	_, until, ok := r.bounds()
	return until, ok
}

// NextStart returns the rule's start instant when it lies after now.
func (r DateRule) NextStart(now time.Time) (time.Time, bool) {
	start, _, ok := r.bounds()
	if !ok || !start.After(now.UTC()) {
		return time.Time{}, false
	}
	return start, true
}

// RotationPolicy configures how the active video is chosen among the
// eligible candidates of one content item.
type RotationPolicy struct {
	ID            string   `gorm:"type:uuid;primaryKey"`
	ContentItemID string   `gorm:"type:uuid;uniqueIndex"`
	Strategy      Strategy `gorm:"type:varchar(32);not null;default:'none'"`

	Trigger      Trigger `gorm:"type:jsonb;serializer:json"`
	NoRepeatDays int

	// DefaultVideoID is the fallback whenever the strategy yields no
	// eligible candidate.
	DefaultVideoID string `gorm:"type:uuid"`

	// DateRules are checked before every other strategy; the first
	// matching rule wins.
	DateRules []DateRule `gorm:"type:jsonb;serializer:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
