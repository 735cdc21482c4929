package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never
}

func (e memoryEntry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || !now.After(e.expiresAt)
}

// MemoryExactCache is an unbounded in-process cache. Entries written with a
// ttl <= 0 live until Clear or process exit. The sweeper goroutine only
// starts once an entry with a ttl is written.
type MemoryExactCache struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	now   func() time.Time

	sweepEvery time.Duration
	sweepOnce  sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
}

// NewMemoryExactCache creates the cache. sweepEvery <= 0 defaults to 5
// minutes.
func NewMemoryExactCache(sweepEvery time.Duration) *MemoryExactCache {
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Minute
	}
	return &MemoryExactCache{
		items:      make(map[string]memoryEntry),
		now:        time.Now,
		sweepEvery: sweepEvery,
		stop:       make(chan struct{}),
	}
}

func (c *MemoryExactCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if entry.live(c.now()) {
		return entry.value, true, nil
	}

	c.mu.Lock()
	if e, exists := c.items[key]; exists && !e.live(c.now()) {
		delete(c.items, key)
	}
	c.mu.Unlock()
	return nil, false, nil
}

func (c *MemoryExactCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
		c.sweepOnce.Do(func() { go c.sweep() })
	}

	c.mu.Lock()
	c.items[key] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryExactCache) sweep() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		now := c.now()
		c.mu.Lock()
		for k, e := range c.items {
			if !e.live(now) {
				delete(c.items, k)
			}
		}
		c.mu.Unlock()
	}
}

// Close stops the sweeper, if running.
func (c *MemoryExactCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryExactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryExactCache) Clear() {
	c.mu.Lock()
	clear(c.items)
	c.mu.Unlock()
}
