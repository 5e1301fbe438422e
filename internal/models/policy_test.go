package models

import (
	"testing"
	"time"
)

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw   string
		want  Strategy
		exact bool
	}{
		{"none", StrategyNone, true},
		{"sequential", StrategySequential, true},
		{"cyclic", StrategyCyclic, true},
		{"random", StrategyRandom, true},
		{"date_rule", StrategyDateRule, true},
		{" Sequential ", StrategySequential, true},
		{"fixed", StrategyNone, false},
		{"daily", StrategyCyclic, false},
		{"random_daily", StrategyRandom, false},
		{"date_specific", StrategyDateRule, false},
		{"", StrategyNone, false},
		{"garbage", StrategyNone, false},
	}

	for _, tc := range cases {
		got, exact := ParseStrategy(tc.raw)
		if got != tc.want || exact != tc.exact {
			t.Errorf("ParseStrategy(%q) = (%q, %v), want (%q, %v)", tc.raw, got, exact, tc.want, tc.exact)
		}
	}
}

func TestDateRuleContains(t *testing.T) {
	t.Parallel()

	rule := DateRule{Start: "2026-12-24", End: "2026-12-26", VideoID: "vid-x"}

	if rule.Contains(time.Date(2026, 12, 23, 23, 59, 0, 0, time.UTC)) {
		t.Error("day before start should not match")
	}
	if !rule.Contains(time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)) {
		t.Error("start midnight should match")
	}
	if !rule.Contains(time.Date(2026, 12, 26, 23, 59, 59, 0, time.UTC)) {
		t.Error("end day is inclusive")
	}
	if rule.Contains(time.Date(2026, 12, 27, 0, 0, 0, 0, time.UTC)) {
		t.Error("day after end should not match")
	}
}

func TestDateRuleSingleDay(t *testing.T) {
	t.Parallel()

	rule := DateRule{Start: "2026-07-04", VideoID: "vid-x"}
	if !rule.Contains(time.Date(2026, 7, 4, 12, 0, 0, 0, time.UTC)) {
		t.Error("rule with no end should cover its start day")
	}
	until, ok := rule.Until()
	if !ok || !until.Equal(time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected until: %s ok=%v", until, ok)
	}
}

func TestDateRuleMalformedNeverMatches(t *testing.T) {
	t.Parallel()

	rule := DateRule{Start: "not-a-date", VideoID: "vid-x"}
	if rule.Contains(time.Now()) {
		t.Error("malformed rule must not match")
	}
	if _, ok := rule.Until(); ok {
		t.Error("malformed rule has no until")
	}
}

func TestVideoWeightFloor(t *testing.T) {
	t.Parallel()

	if (Video{RotationWeight: 0}).Weight() != 1 {
		t.Error("zero weight should floor to 1")
	}
	if (Video{RotationWeight: -3}).Weight() != 1 {
		t.Error("negative weight should floor to 1")
	}
	if (Video{RotationWeight: 5}).Weight() != 5 {
		t.Error("positive weight should pass through")
	}
}

func TestRotationStateHistory(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	st := RotationState{History: []DrawRecord{
		{VideoID: "old", At: now.AddDate(0, 0, -10)},
		{VideoID: "recent", At: now.AddDate(0, 0, -1)},
	}}

	cutoff := now.AddDate(0, 0, -3)
	recent := st.RecentDraws(cutoff)
	if _, ok := recent["old"]; ok {
		t.Error("old draw should be outside the window")
	}
	if _, ok := recent["recent"]; !ok {
		t.Error("recent draw should be inside the window")
	}

	st.PruneHistory(cutoff)
	if len(st.History) != 1 || st.History[0].VideoID != "recent" {
		t.Errorf("unexpected pruned history: %+v", st.History)
	}
}
