package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendLRU    = "lru"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string
	// TTL <= 0 keeps entries for the lifetime of the backend.
	TTL time.Duration
	// Size bounds the lru backend; ignored elsewhere.
	Size   int
	Prefix string
}

// NewExactCache builds the configured backend. Unknown backends and a redis
// backend without a client fall back to the unbounded memory cache.
func NewExactCache(cfg Config, redisClient redis.UniversalClient) ExactCache {
	switch cfg.Backend {
	case BackendRedis:
		if redisClient != nil {
			return NewRedisExactCache(redisClient, cfg.Prefix)
		}
	case BackendLRU:
		return NewLRUExactCache(cfg.Size, cfg.TTL)
	}
	return NewMemoryExactCache(0)
}
