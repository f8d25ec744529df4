package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type cachedQuote struct {
	PropertyID string `json:"property_id"`
	PriceMinor int64  `json:"price_minor"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := New(mr.Addr(), "", 0, nil)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	want := cachedQuote{PropertyID: "prop-1", PriceMinor: 15000}
	if err := cache.Set(ctx, "pricing:org-1:prop-1", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got cachedQuote
	hit, err := cache.Get(ctx, "pricing:org-1:prop-1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected a hit")
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var got cachedQuote
	hit, err := cache.Get(context.Background(), "pricing:absent", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Fatal("expected a miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", cachedQuote{PropertyID: "p"}, time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(2 * time.Second)

	var got cachedQuote
	hit, err := cache.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if hit {
		t.Fatal("entry survived its TTL")
	}
}

func TestCacheDel(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", cachedQuote{PropertyID: "p"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cache.Del(ctx, "k"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var got cachedQuote
	if hit, _ := cache.Get(ctx, "k", &got); hit {
		t.Fatal("entry survived Del")
	}
}
