package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUExactCache bounds memory by entry count and, optionally, by age.
// The ttl passed to Set is ignored; the cache-wide ttl applies.
type LRUExactCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewLRUExactCache creates a cache holding at most size entries, each
// evicted ttl after insertion. size <= 0 means unbounded, ttl <= 0 means no
// age-based eviction.
func NewLRUExactCache(size int, ttl time.Duration) *LRUExactCache {
	if size < 0 {
		size = 0
	}
	return &LRUExactCache{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *LRUExactCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *LRUExactCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	c.lru.Add(key, valueCopy)
	return nil
}

// Len returns the number of live entries.
func (c *LRUExactCache) Len() int {
	return c.lru.Len()
}

// Clear drops every entry.
func (c *LRUExactCache) Clear() {
	c.lru.Purge()
}
