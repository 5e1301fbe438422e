package clock

import (
	"testing"
	"time"

	"github.com/visarlabs/visar/internal/models"
)

func intPtr(v int) *int { return &v }

func TestNextBoundaryDailyDefault(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	got, err := NextBoundary(models.Trigger{}, after)
	if err != nil {
		t.Fatalf("next boundary: %v", err)
	}
	want := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextBoundaryDailyAtTimeOfDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "before today's boundary",
			after: time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "exactly at the boundary rolls to tomorrow",
			after: time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
		{
			name:  "after today's boundary",
			after: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
			want:  time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC),
		},
	}

	trig := models.Trigger{TimeOfDay: "09:30"}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextBoundary(trig, tc.after)
			if err != nil {
				t.Fatalf("next boundary: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNextBoundaryWeekly(t *testing.T) {
	t.Parallel()

	// 2026-03-10 is a Tuesday; next Monday (weekday 1) is 2026-03-16.
	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	trig := models.Trigger{DayOfWeek: intPtr(1), TimeOfDay: "08:00"}

	got, err := NextBoundary(trig, after)
	if err != nil {
		t.Fatalf("next boundary: %v", err)
	}
	want := time.Date(2026, 3, 16, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextBoundaryMonthlySkipsShortMonths(t *testing.T) {
	t.Parallel()

	// Day 31 after January 31 must skip February and land on March 31.
	after := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	trig := models.Trigger{DayOfMonth: intPtr(31)}

	got, err := NextBoundary(trig, after)
	if err != nil {
		t.Fatalf("next boundary: %v", err)
	}
	want := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestNextBoundaryEveryInterval(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := NextBoundary(models.Trigger{Every: 6 * time.Hour}, after)
	if err != nil {
		t.Fatalf("next boundary: %v", err)
	}
	if !got.Equal(after.Add(6 * time.Hour)) {
		t.Fatalf("got %s, want %s", got, after.Add(6*time.Hour))
	}
}

func TestNextBoundaryRRule(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := NextBoundary(models.Trigger{RRule: "FREQ=DAILY;INTERVAL=2"}, after)
	if err != nil {
		t.Fatalf("next boundary: %v", err)
	}
	if !got.After(after) {
		t.Fatalf("boundary %s must be after %s", got, after)
	}
}

func TestNextBoundaryInvalidInputs(t *testing.T) {
	t.Parallel()

	after := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		trig models.Trigger
	}{
		{"bad rrule", models.Trigger{RRule: "FREQ=BOGUS"}},
		{"bad time of day", models.Trigger{TimeOfDay: "25:00"}},
		{"bad weekday", models.Trigger{DayOfWeek: intPtr(9)}},
		{"bad day of month", models.Trigger{DayOfMonth: intPtr(40)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NextBoundary(tc.trig, after); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFakeClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fake := NewFake(start)
	if !fake.Now().Equal(start) {
		t.Fatalf("got %s, want %s", fake.Now(), start)
	}

	fake.Advance(90 * time.Minute)
	if !fake.Now().Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance failed: %s", fake.Now())
	}

	fake.Set(start.AddDate(0, 0, 1))
	if !fake.Now().Equal(start.AddDate(0, 0, 1)) {
		t.Fatalf("set failed: %s", fake.Now())
	}
}
