package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"johari/api/internal/johari"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	return c, s
}

func testEntry() Entry {
	window := johari.Classify(
		[]string{"witty", "caring", "calm", "logical", "artistic", "patient"},
		[][]string{
			{"witty", "friendly", "calm", "modest", "precise", "grounded"},
			{"caring", "witty", "observant", "soulful", "agile", "generous"},
		},
	)
	return Entry{Window: window, ComputedAt: time.Now().UTC().Truncate(time.Second)}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	entry := testEntry()

	if err := c.Set(ctx, "asmt-1", entry); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok, err := c.Get(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Window.Open) != len(entry.Window.Open) {
		t.Errorf("Open = %v, want %v", got.Window.Open, entry.Window.Open)
	}
	if !got.ComputedAt.Equal(entry.ComputedAt) {
		t.Errorf("ComputedAt = %v, want %v", got.ComputedAt, entry.ComputedAt)
	}
}

func TestRedisCacheMiss(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	_, ok, err := c.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss")
	}
}

func TestRedisCacheExpiresViaTTL(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	c, err := NewRedisCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "asmt-1", testEntry()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected entry to expire")
	}
}

func TestRedisCacheInvalidate(t *testing.T) {
	c, s := setupTestRedis(t)
	defer c.Close()
	defer s.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "asmt-1", testEntry()); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := c.Invalidate(ctx, "asmt-1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	_, ok, err := c.Get(ctx, "asmt-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Fatal("expected entry to be gone after invalidation")
	}
}
