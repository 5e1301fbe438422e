package rotation

import (
	"testing"
	"time"

	"github.com/visarlabs/visar/internal/models"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEligibleFilters(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	videos := []models.Video{
		{ID: "inactive", IsActive: false},
		{ID: "expired", IsActive: true, SubscriptionEnd: timePtr(now.Add(-time.Hour))},
		{ID: "not-yet", IsActive: true, WindowStart: timePtr(now.Add(time.Hour))},
		{ID: "window-over", IsActive: true, WindowEnd: timePtr(now.Add(-time.Minute))},
		{ID: "ok", IsActive: true},
	}

	got := Eligible(videos, nil, now)
	if len(got) != 1 || got[0].ID != "ok" {
		t.Fatalf("expected only \"ok\", got %+v", got)
	}
}

func TestEligibleWindowEdges(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// Window start is inclusive, window end is exclusive.
	atStart := models.Video{ID: "v", IsActive: true, WindowStart: timePtr(now)}
	if len(Eligible([]models.Video{atStart}, nil, now)) != 1 {
		t.Error("video starting exactly now should be eligible")
	}

	atEnd := models.Video{ID: "v", IsActive: true, WindowEnd: timePtr(now)}
	if len(Eligible([]models.Video{atEnd}, nil, now)) != 0 {
		t.Error("video ending exactly now should not be eligible")
	}
}

func TestEligibleSchedules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	videos := []models.Video{
		{ID: "scheduled", IsActive: true},
		{ID: "unscheduled", IsActive: true},
	}

	covering := models.Schedule{
		ID: "s1", VideoID: "scheduled", Status: models.ScheduleActive,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	}
	past := models.Schedule{
		ID: "s2", VideoID: "scheduled", Status: models.ScheduleActive,
		StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(-2 * time.Hour),
	}
	inactive := models.Schedule{
		ID: "s3", VideoID: "scheduled", Status: models.ScheduleInactive,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour),
	}

	// A video with no schedules is always schedule-eligible.
	got := Eligible(videos, []models.Schedule{covering}, now)
	if len(got) != 2 {
		t.Fatalf("expected both videos, got %+v", got)
	}

	// With only non-covering schedules the video drops out.
	got = Eligible(videos, []models.Schedule{past, inactive}, now)
	if len(got) != 1 || got[0].ID != "unscheduled" {
		t.Fatalf("expected only unscheduled, got %+v", got)
	}
}

func TestEligibleOrdering(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	videos := []models.Video{
		{ID: "c", IsActive: true, RotationOrder: 2},
		{ID: "b", IsActive: true, RotationOrder: 1},
		{ID: "a", IsActive: true, RotationOrder: 1},
	}

	got := Eligible(videos, nil, now)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: got %q, want %q (full: %+v)", i, got[i].ID, id, got)
		}
	}
}

func TestNextEligibilityChange(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	videos := []models.Video{
		{ID: "a", IsActive: true, WindowEnd: timePtr(now.Add(3 * time.Hour))},
		{ID: "b", IsActive: true, WindowStart: timePtr(now.Add(time.Hour))},
		{ID: "c", IsActive: true, SubscriptionEnd: timePtr(now.Add(-time.Hour))},
	}
	schedules := []models.Schedule{
		{ID: "s", VideoID: "a", Status: models.ScheduleActive,
			StartsAt: now.Add(-time.Hour), EndsAt: now.Add(2 * time.Hour)},
		{ID: "planned", VideoID: "a", Status: models.SchedulePlanned,
			StartsAt: now.Add(30 * time.Minute), EndsAt: now.Add(45 * time.Minute)},
	}

	got := NextEligibilityChange(videos, schedules, now)
	// Past expiry and non-active schedules are ignored; earliest future
	// edge is b's window start in one hour.
	if !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("got %s, want %s", got, now.Add(time.Hour))
	}

	if !NextEligibilityChange([]models.Video{{ID: "x", IsActive: true}}, nil, now).IsZero() {
		t.Fatal("stable set should report zero")
	}
}
