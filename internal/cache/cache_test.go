package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// A cache whose Redis never connected must behave as a transparent miss.
func TestDisabledCacheIsTransparent(t *testing.T) {
	t.Parallel()

	c := &Cache{logger: zerolog.Nop(), config: DefaultConfig(), disabled: true}
	ctx := context.Background()

	if c.IsAvailable() {
		t.Fatal("cache without redis must report unavailable")
	}
	if c.Client() != nil {
		t.Fatal("disabled cache must not expose a client")
	}

	if _, found := c.GetDecision(ctx, "item-1"); found {
		t.Fatal("disabled cache must always miss")
	}

	// None of these may panic or block.
	c.SetDecision(ctx, CachedDecision{ContentItemID: "item-1", VideoID: "vid-a", DecidedAt: time.Now()})
	c.InvalidateDecision(ctx, "item-1")
	c.InvalidateAll(ctx)

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	t.Parallel()

	var c *Cache
	if c.IsAvailable() {
		t.Fatal("nil cache must report unavailable")
	}
	if c.Client() != nil {
		t.Fatal("nil cache must not expose a client")
	}
}
