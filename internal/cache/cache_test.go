package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryExactCache_TTL(t *testing.T) {
	c := NewMemoryExactCache(10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	key := "test:key"

	if err := c.Set(ctx, key, []byte("hello"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit || string(got) != "hello" {
		t.Fatalf("expected hit with 'hello', got hit=%v %q", hit, got)
	}

	time.Sleep(30 * time.Millisecond)

	_, hit, err = c.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}
}

func TestMemoryExactCache_NoTTLKeepsEntry(t *testing.T) {
	c := NewMemoryExactCache(5 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Fatalf("entries without ttl must survive cleanup")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestMemoryExactCache_CopiesValue(t *testing.T) {
	c := NewMemoryExactCache(time.Minute)
	defer c.Close()

	ctx := context.Background()
	buf := []byte("abc")
	_ = c.Set(ctx, "k", buf, 0)
	buf[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("cache must not alias the caller's buffer, got %q", got)
	}
}

func TestLRUExactCache_EvictsOldest(t *testing.T) {
	c := NewLRUExactCache(2, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	if _, hit, _ := c.Get(ctx, "k0"); hit {
		t.Fatalf("expected k0 to be evicted")
	}
	if _, hit, _ := c.Get(ctx, "k2"); !hit {
		t.Fatalf("expected k2 to be present")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}

func TestNewExactCacheBackends(t *testing.T) {
	if _, ok := NewExactCache(Config{Backend: BackendLRU, Size: 4}, nil).(*LRUExactCache); !ok {
		t.Fatalf("expected lru backend")
	}

	mem, ok := NewExactCache(Config{Backend: BackendRedis}, nil).(*MemoryExactCache)
	if !ok {
		t.Fatalf("redis without a client should fall back to memory")
	}
	_ = mem.Close()
}

func TestNewExactCacheMemoryKeepsSweepInterval(t *testing.T) {
	mem, ok := NewExactCache(Config{Backend: BackendMemory, TTL: time.Millisecond}, nil).(*MemoryExactCache)
	if !ok {
		t.Fatalf("expected memory backend")
	}
	defer func() { _ = mem.Close() }()

	if mem.sweepEvery != 5*time.Minute {
		t.Fatalf("entry ttl must not drive the sweep interval, got %v", mem.sweepEvery)
	}
}

func TestBuildReplyKey(t *testing.T) {
	one := BuildReplyKey(ModeOne, 9, "Flirty", "hello")
	if one.Count != 0 {
		t.Fatalf("count must not take part in single-reply keys")
	}
	if one.String() != BuildReplyKey(ModeOne, 1, "Flirty", "hello").String() {
		t.Fatalf("single-reply keys must be deterministic")
	}

	many := BuildReplyKey(ModeMany, 4, "Flirty", "hello")
	if many.String() == BuildReplyKey(ModeMany, 5, "Flirty", "hello").String() {
		t.Fatalf("count must change batch keys")
	}
	if many.String() == BuildReplyKey(ModeMany, 4, "Polite", "hello").String() {
		t.Fatalf("tone must change batch keys")
	}
	if many.String() == BuildReplyKey(ModeMany, 4, "Flirty", "hello ").String() {
		t.Fatalf("seed must be hashed verbatim")
	}

	parts, ok := parseReplyKey(many.String())
	if !ok || parts.mode != ModeMany || parts.count != "4" || parts.tone != "Flirty" {
		t.Fatalf("unexpected parse of %q: %#v", many.String(), parts)
	}
	if _, ok := parseReplyKey("exact:a:b"); ok {
		t.Fatalf("foreign keys must not parse")
	}
}

func TestMemoryExactCache_ExpiryUsesClock(t *testing.T) {
	c := NewMemoryExactCache(time.Hour)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_ = c.Set(ctx, "short", []byte("v"), time.Minute)
	_ = c.Set(ctx, "forever", []byte("v"), 0)

	now = now.Add(time.Minute)
	if _, hit, _ := c.Get(ctx, "short"); !hit {
		t.Fatalf("entry must still be live at its deadline")
	}

	now = now.Add(time.Second)
	if _, hit, _ := c.Get(ctx, "short"); hit {
		t.Fatalf("expected miss after the deadline")
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Fatalf("entries without ttl never expire")
	}
	if c.Len() != 1 {
		t.Fatalf("expired entry should be dropped on read, got %d entries", c.Len())
	}
}
