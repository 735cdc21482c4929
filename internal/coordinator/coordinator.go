// Package coordinator mediates every outbound call to the text-generation
// provider. For a given cache key it issues at most one concurrent attempt
// loop, bounds each attempt with a hard timeout, retries transient failures
// with exponential backoff and memoizes successful responses.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rizzmate-gateway/internal/cache"
	"rizzmate-gateway/internal/llm"
	"rizzmate-gateway/internal/metrics"
)

type Config struct {
	MaxRetries     int           // retries after the first attempt; 0 disables retrying
	BaseDelay      time.Duration // backoff base (default: 700ms)
	AttemptTimeout time.Duration // hard per-attempt timeout (default: 15s)
	MaxJitter      time.Duration // upper bound of the random jitter (default: 200ms)

	// CacheTTL <= 0 memoizes for the lifetime of the cache backend.
	CacheTTL time.Duration
}

// DefaultConfig is the production retry policy: 3 retries, 700ms base,
// 15s per attempt and up to 200ms jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		BaseDelay:      700 * time.Millisecond,
		AttemptTimeout: 15 * time.Second,
		MaxJitter:      200 * time.Millisecond,
	}
}

// WithDefaults fills unset delays. MaxRetries is taken as given; a negative
// value means no retries.
func (c Config) WithDefaults() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 700 * time.Millisecond
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 15 * time.Second
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	return c
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	cfg    Config
	client llm.Client
	cache  cache.ExactCache
	group  singleflight.Group
	logger *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

type Option func(*Coordinator)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.sleep = sleep }
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func() time.Duration) Option {
	return func(c *Coordinator) { c.jitter = jitter }
}

func New(cfg Config, client llm.Client, responses cache.ExactCache, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()

	c := &Coordinator{
		cfg:    cfg,
		client: client,
		cache:  responses,
		logger: logger.Named("coordinator"),
		sleep:  sleepContext,
	}
	c.jitter = func() time.Duration { return randomJitter(c.cfg.MaxJitter) }

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute returns the provider response for req, memoized under cacheKey.
//
// Concurrent callers with the same key share one attempt loop and observe
// the same outcome. Cancelling ctx detaches only this caller; the loop keeps
// running for the others. The returned response is shared and must not be
// modified.
func (c *Coordinator) Execute(ctx context.Context, req *llm.ChatRequest, cacheKey string) (*llm.ChatResponse, error) {
	if !c.client.HasCredentials() {
		return nil, llm.ErrMissingCredentials
	}

	if resp, ok := c.lookup(ctx, cacheKey); ok {
		return resp, nil
	}
	// A caller that is already gone must not start a flight nobody will read.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.group.DoChan(cacheKey, func() (interface{}, error) {
		return c.run(context.WithoutCancel(ctx), req, cacheKey)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.SharedResultsTotal.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*llm.ChatResponse), nil
	case <-ctx.Done():
		c.logger.Debug("caller detached from in-flight request",
			zap.String("cache_key", cacheKey),
			zap.Error(ctx.Err()),
		)
		return nil, ctx.Err()
	}
}

// run is the body of the shared computation; singleflight drops the key
// once it returns, whatever the outcome.
func (c *Coordinator) run(ctx context.Context, req *llm.ChatRequest, cacheKey string) (*llm.ChatResponse, error) {
	// A flight for this key may have finished between the caller's lookup
	// and this one starting.
	if resp, ok := c.lookup(ctx, cacheKey); ok {
		return resp, nil
	}

	resp, err := c.attemptLoop(ctx, req, cacheKey)
	if err != nil {
		return nil, err
	}

	c.store(ctx, cacheKey, resp)
	return resp, nil
}

func (c *Coordinator) attemptLoop(ctx context.Context, req *llm.ChatRequest, cacheKey string) (*llm.ChatResponse, error) {
	maxAttempts := c.cfg.MaxRetries + 1
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptStart := time.Now()
		resp, err := c.attempt(ctx, req)

		outcome := "ok"
		if err != nil {
			outcome = llm.Code(err)
			if outcome == "" {
				outcome = "error"
			}
		}
		metrics.ProviderAttemptsTotal.WithLabelValues(outcome).Inc()

		c.logger.Debug("provider attempt",
			zap.String("cache_key", cacheKey),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(attemptStart)),
		)

		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !llm.IsRetryable(err) {
			return nil, err
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := c.backoff(err, attempt)
		c.logger.Info("retrying provider request",
			zap.String("cache_key", cacheKey),
			zap.String("reason", outcome),
			zap.Duration("backoff", wait),
			zap.Int("next_attempt", attempt+2),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	c.logger.Warn("provider request exhausted all retries",
		zap.String("cache_key", cacheKey),
		zap.Int("attempts", maxAttempts),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// attempt runs one provider call under the hard per-attempt timeout.
func (c *Coordinator) attempt(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	resp, err := c.client.ChatCompletion(attemptCtx, req)
	if err != nil && llm.KindOf(err) == "" && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &llm.Error{Kind: llm.KindTimeout, Err: err}
	}
	return resp, err
}

func (c *Coordinator) backoff(err error, attempt int) time.Duration {
	var perr *llm.Error
	if errors.As(err, &perr) && perr.Kind == llm.KindRateLimited && perr.RetryAfter > 0 {
		return perr.RetryAfter + c.jitter()
	}
	return computeBackoff(c.cfg.BaseDelay, attempt) + c.jitter()
}

func (c *Coordinator) lookup(ctx context.Context, cacheKey string) (*llm.ChatResponse, bool) {
	if c.cache == nil {
		return nil, false
	}

	raw, ok, err := c.cache.Get(ctx, cacheKey)
	if err != nil || !ok {
		return nil, false
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.logger.Warn("reply_cache_unmarshal_error",
			zap.String("cache_key", cacheKey),
			zap.Error(err),
		)
		return nil, false
	}
	return &resp, true
}

func (c *Coordinator) store(ctx context.Context, cacheKey string, resp *llm.ChatResponse) {
	if c.cache == nil {
		return
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("marshal_response_error", zap.Error(err))
		return
	}
	// Cache is best-effort; the caller still gets the response.
	if err := c.cache.Set(ctx, cacheKey, raw, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("reply_cache_set_error", zap.Error(err))
	}
}
