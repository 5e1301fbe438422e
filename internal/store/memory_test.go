package store

import (
	"context"
	"testing"
	"time"

	"github.com/visarlabs/visar/internal/models"
)

func TestMemoryStateStore_CreateThenUpdate(t *testing.T) {
	t.Parallel()

	s := NewMemoryStateStore()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if _, ok, err := s.Load(ctx, "item-1"); err != nil || ok {
		t.Fatalf("expected no state yet, ok=%v err=%v", ok, err)
	}

	first := models.RotationState{
		ContentItemID:  "item-1",
		CurrentVideoID: "vid-a",
		NextChangeAt:   now.Add(time.Hour),
		LastChangedAt:  now,
		RandomSeed:     42,
		Version:        1,
	}
	if ok, err := s.CompareAndSwap(ctx, 0, first); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	second := first
	second.CurrentVideoID = "vid-b"
	second.Version = 2
	if ok, err := s.CompareAndSwap(ctx, 1, second); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	st, found, err := s.Load(ctx, "item-1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if st.Version != 2 || st.CurrentVideoID != "vid-b" {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestMemoryStateStore_CreateRace(t *testing.T) {
	t.Parallel()

	s := NewMemoryStateStore()
	ctx := context.Background()

	if ok, err := s.CompareAndSwap(ctx, 0, models.RotationState{ContentItemID: "item-1", Version: 1}); err != nil || !ok {
		t.Fatalf("first create: ok=%v err=%v", ok, err)
	}

	loser := models.RotationState{ContentItemID: "item-1", CurrentVideoID: "other", Version: 1}
	ok, err := s.CompareAndSwap(ctx, 0, loser)
	if err != nil {
		t.Fatalf("racing create returned error: %v", err)
	}
	if ok {
		t.Fatal("racing create should have lost")
	}
}

func TestMemoryStateStore_StaleVersionLoses(t *testing.T) {
	t.Parallel()

	s := NewMemoryStateStore()
	ctx := context.Background()

	if ok, err := s.CompareAndSwap(ctx, 0, models.RotationState{ContentItemID: "item-1", Version: 1}); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}
	if ok, err := s.CompareAndSwap(ctx, 1, models.RotationState{ContentItemID: "item-1", Version: 2}); err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	stale := models.RotationState{ContentItemID: "item-1", CurrentVideoID: "late", Version: 2}
	ok, err := s.CompareAndSwap(ctx, 1, stale)
	if err != nil {
		t.Fatalf("stale swap returned error: %v", err)
	}
	if ok {
		t.Fatal("stale swap should have lost")
	}

	st, _, _ := s.Load(ctx, "item-1")
	if st.CurrentVideoID == "late" {
		t.Fatalf("stale writer overwrote state: %+v", st)
	}
}

func TestMemoryStateStore_HistoryIsolated(t *testing.T) {
	t.Parallel()

	s := NewMemoryStateStore()
	ctx := context.Background()
	now := time.Now().UTC()

	st := models.RotationState{
		ContentItemID: "item-1",
		Version:       1,
		History:       []models.DrawRecord{{VideoID: "vid-a", At: now}},
	}
	if ok, err := s.CompareAndSwap(ctx, 0, st); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	// Mutating the caller's slice after the swap must not leak into
	// the stored copy.
	st.History[0].VideoID = "vid-z"

	got, _, err := s.Load(ctx, "item-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.History[0].VideoID != "vid-a" {
		t.Fatalf("stored history aliased caller slice: %+v", got.History)
	}
}
