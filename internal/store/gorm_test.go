package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/visarlabs/visar/internal/models"
	"github.com/visarlabs/visar/internal/rotation"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.ContentItem{},
		&models.Video{},
		&models.RotationPolicy{},
		&models.Schedule{},
		&models.RotationState{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestContentRepository_LoadBundle(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := context.Background()

	item := models.ContentItem{ID: "item-1", Title: "Lobby Poster"}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}
	videos := []models.Video{
		{ID: "vid-b", ContentItemID: "item-1", Title: "B", RotationOrder: 2, IsActive: true},
		{ID: "vid-a", ContentItemID: "item-1", Title: "A", RotationOrder: 1, IsActive: true},
	}
	if err := db.Create(&videos).Error; err != nil {
		t.Fatalf("create videos: %v", err)
	}
	policy := models.RotationPolicy{
		ID: "pol-1", ContentItemID: "item-1",
		Strategy: models.StrategySequential,
	}
	if err := db.Create(&policy).Error; err != nil {
		t.Fatalf("create policy: %v", err)
	}
	sched := models.Schedule{
		ID: "sch-1", VideoID: "vid-a", Status: models.ScheduleActive,
		StartsAt: time.Now().Add(-time.Hour), EndsAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&sched).Error; err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	repo := NewContentRepository(db)
	bundle, err := repo.LoadBundle(ctx, "item-1")
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}

	if bundle.Item.Title != "Lobby Poster" {
		t.Fatalf("unexpected item: %+v", bundle.Item)
	}
	if len(bundle.Videos) != 2 || bundle.Videos[0].ID != "vid-a" || bundle.Videos[1].ID != "vid-b" {
		t.Fatalf("expected videos ordered by rotation_order, got %+v", bundle.Videos)
	}
	if bundle.Policy == nil || bundle.Policy.Strategy != models.StrategySequential {
		t.Fatalf("expected sequential policy, got %+v", bundle.Policy)
	}
	if len(bundle.Schedules) != 1 || bundle.Schedules[0].ID != "sch-1" {
		t.Fatalf("expected one schedule, got %+v", bundle.Schedules)
	}
}

func TestContentRepository_LoadBundleMissingItem(t *testing.T) {
	t.Parallel()

	repo := NewContentRepository(openTestDB(t))
	_, err := repo.LoadBundle(context.Background(), "nope")
	if !errors.Is(err, rotation.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContentRepository_LoadBundleNoPolicy(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	if err := db.Create(&models.ContentItem{ID: "item-1"}).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	repo := NewContentRepository(db)
	bundle, err := repo.LoadBundle(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("load bundle: %v", err)
	}
	if bundle.Policy != nil {
		t.Fatalf("expected nil policy, got %+v", bundle.Policy)
	}
}

func TestContentRepository_BumpRotationCounter(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	if err := db.Create(&models.ContentItem{ID: "item-1"}).Error; err != nil {
		t.Fatalf("create item: %v", err)
	}

	repo := NewContentRepository(db)
	for i := 0; i < 3; i++ {
		if err := repo.BumpRotationCounter(context.Background(), "item-1"); err != nil {
			t.Fatalf("bump: %v", err)
		}
	}

	var item models.ContentItem
	if err := db.First(&item, "id = ?", "item-1").Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if item.RotationCounter != 3 {
		t.Fatalf("expected counter 3, got %d", item.RotationCounter)
	}
}

func TestStateStore_CreateThenUpdate(t *testing.T) {
	t.Parallel()

	s := NewStateStore(openTestDB(t))
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
	ok, err := s.CompareAndSwap(ctx, 0, first)
	if err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	st, found, err := s.Load(ctx, "item-1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if st.Version != 1 || st.CurrentVideoID != "vid-a" {
		t.Fatalf("unexpected state: %+v", st)
	}

	second := st
	second.CurrentVideoID = "vid-b"
	second.History = []models.DrawRecord{{VideoID: "vid-b", At: now}}
	second.Version = 2
	ok, err = s.CompareAndSwap(ctx, 1, second)
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	st, _, err = s.Load(ctx, "item-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if st.Version != 2 || st.CurrentVideoID != "vid-b" || len(st.History) != 1 {
		t.Fatalf("unexpected updated state: %+v", st)
	}
}

func TestStateStore_CreateRace(t *testing.T) {
	t.Parallel()

	s := NewStateStore(openTestDB(t))
	ctx := context.Background()

	st := models.RotationState{ContentItemID: "item-1", Version: 1}
	if ok, err := s.CompareAndSwap(ctx, 0, st); err != nil || !ok {
		t.Fatalf("first create: ok=%v err=%v", ok, err)
	}

	// A second creator must lose cleanly, not error.
	loser := models.RotationState{ContentItemID: "item-1", CurrentVideoID: "other", Version: 1}
	ok, err := s.CompareAndSwap(ctx, 0, loser)
	if err != nil {
		t.Fatalf("racing create returned error: %v", err)
	}
	if ok {
		t.Fatal("racing create should have lost")
	}
}

func TestStateStore_StaleVersionLoses(t *testing.T) {
	t.Parallel()

	s := NewStateStore(openTestDB(t))
	ctx := context.Background()

	st := models.RotationState{ContentItemID: "item-1", Version: 1}
	if ok, err := s.CompareAndSwap(ctx, 0, st); err != nil || !ok {
		t.Fatalf("create: ok=%v err=%v", ok, err)
	}

	st.Version = 2
	if ok, err := s.CompareAndSwap(ctx, 1, st); err != nil || !ok {
		t.Fatalf("advance: ok=%v err=%v", ok, err)
	}

	// A writer still holding version 1 must be rejected.
	stale := models.RotationState{ContentItemID: "item-1", CurrentVideoID: "stale", Version: 2}
	ok, err := s.CompareAndSwap(ctx, 1, stale)
	if err != nil {
		t.Fatalf("stale write returned error: %v", err)
	}
	if ok {
		t.Fatal("stale write should have lost")
	}

	got, _, _ := s.Load(ctx, "item-1")
	if got.CurrentVideoID == "stale" {
		t.Fatal("stale write must not overwrite winner")
	}
}
