package cache

import (
	"context"
	"strings"
	"time"

	"rizzmate-gateway/internal/metrics"
	"rizzmate-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingExactCache decorates an ExactCache with structured logs and the
// per-mode hit counter.
type LoggingExactCache struct {
	inner ExactCache
}

// NewLoggingExactCache returns a cache that logs and records metrics.
func NewLoggingExactCache(inner ExactCache) ExactCache {
	return &LoggingExactCache{inner: inner}
}

func (c *LoggingExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)

	result := "miss"
	switch {
	case err != nil:
		result = "error"
	case ok:
		result = "hit"
		mode := "unknown"
		if parts, parsed := parseReplyKey(key); parsed {
			mode = parts.mode
		}
		metrics.CacheHitsTotal.WithLabelValues(mode).Inc()
	}

	record(ctx, "reply_cache_get", key, start, err, zap.String("cache_result", result))
	return value, ok, err
}

func (c *LoggingExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	record(ctx, "reply_cache_set", key, start, err, zap.Int("bytes", len(value)), zap.Duration("ttl", ttl))
	return err
}

// record logs one cache operation. Failures log at error level, everything
// else at debug.
func record(ctx context.Context, msg, key string, start time.Time, err error, extra ...zap.Field) {
	fields := append([]zap.Field{
		zap.String("cache_key", key),
		zap.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0),
	}, extra...)
	if parts, ok := parseReplyKey(key); ok {
		fields = append(fields, parts.fields()...)
	}

	logger := logging.L(ctx)
	if err != nil {
		logger.Error(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Debug(msg, fields...)
}

type replyKeyParts struct {
	mode  string
	count string
	tone  string
	hash  string
}

func (p replyKeyParts) fields() []zap.Field {
	fs := []zap.Field{
		zap.String("mode", p.mode),
		zap.String("tone", p.tone),
		zap.String("seed_hash", p.hash),
	}
	if p.count != "" {
		fs = append(fs, zap.String("count", p.count))
	}
	return fs
}

// Expecting one:<TONE>:<HASH> or many:<COUNT>:<TONE>:<HASH>
func parseReplyKey(key string) (replyKeyParts, bool) {
	parts := strings.Split(key, ":")
	switch {
	case len(parts) == 3 && parts[0] == ModeOne:
		return replyKeyParts{mode: ModeOne, tone: parts[1], hash: parts[2]}, true
	case len(parts) == 4 && parts[0] == ModeMany:
		return replyKeyParts{mode: ModeMany, count: parts[1], tone: parts[2], hash: parts[3]}, true
	default:
		return replyKeyParts{}, false
	}
}
