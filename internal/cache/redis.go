package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisExactCache shares memoized replies between gateway instances. Keys
// are namespaced as "<prefix>:<key>".
type RedisExactCache struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisExactCache(rdb redis.UniversalClient, prefix string) *RedisExactCache {
	return &RedisExactCache{rdb: rdb, prefix: prefix}
}

func (c *RedisExactCache) fullKey(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get reports a missing key as a clean miss. Any other Redis failure is
// returned so the caller can log it and carry on as a miss.
func (c *RedisExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, c.fullKey(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("cache: redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set writes without expiry when ttl <= 0.
func (c *RedisExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %s: %w", key, err)
	}
	return nil
}
