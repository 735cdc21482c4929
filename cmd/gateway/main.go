package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"rizzmate-gateway/internal/cache"
	"rizzmate-gateway/internal/config"
	"rizzmate-gateway/internal/coordinator"
	"rizzmate-gateway/internal/counters"
	"rizzmate-gateway/internal/generation"
	"rizzmate-gateway/internal/handlers"
	"rizzmate-gateway/internal/history"
	"rizzmate-gateway/internal/httpserver"
	"rizzmate-gateway/internal/insights"
	"rizzmate-gateway/internal/kv"
	"rizzmate-gateway/internal/library"
	"rizzmate-gateway/internal/llm"
	"rizzmate-gateway/internal/metrics"
	"rizzmate-gateway/pkg/logging/logging"
)

// buildAPIKey is the provider credential baked in at build time:
//
//	go build -ldflags "-X main.buildAPIKey=$OPENAI_API_KEY" ./cmd/gateway
var buildAPIKey string

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer func() { _ = logger.Sync() }()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load(getenv("GATEWAY_CONFIG", "gateway.yaml"))
	if err != nil {
		return err
	}
	if cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = buildAPIKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Server.Port),
		zap.String("version_id", cfg.Server.VersionID),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.Duration("cache_ttl", cfg.Cache.TTL),
		zap.String("kv_backend", cfg.Storage.KV),
		zap.String("counters_backend", cfg.Storage.Counters),
		zap.String("llm_base_url", cfg.Provider.BaseURL),
		zap.String("model", cfg.Provider.Model),
		zap.Int("tone_concurrency", cfg.Generation.ToneConcurrency),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
		})
		defer func() { _ = redisClient.Close() }()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.Redis.Addr),
		)
	}

	// ----- Response cache -----
	exactCache := cache.NewExactCache(cache.Config{
		Backend: cfg.Cache.Backend,
		TTL:     cfg.Cache.TTL,
		Size:    cfg.Cache.Size,
		Prefix:  cfg.Cache.Prefix,
	}, redisClientOrNil(redisClient))
	if closer, ok := exactCache.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	exactCache = cache.NewLoggingExactCache(exactCache)

	// ----- LLM client -----
	llmClient, err := llm.NewClient(llm.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
	}, logger)
	if err != nil {
		return err
	}
	if closer, ok := llmClient.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}
	if !llmClient.HasCredentials() {
		logger.Warn("no provider credential configured; generation requests will fail with missing_credentials")
	}

	// ----- Generation -----
	coord := coordinator.New(coordinator.Config{
		MaxRetries:     cfg.Coordinator.MaxRetries,
		BaseDelay:      cfg.Coordinator.BaseDelay,
		AttemptTimeout: cfg.Coordinator.AttemptTimeout,
		MaxJitter:      cfg.Coordinator.MaxJitter,
		CacheTTL:       cfg.Cache.TTL,
	}, llmClient, exactCache, logger)

	gen := generation.NewClient(generation.Config{
		Model:           cfg.Provider.Model,
		Temperature:     cfg.Provider.Temperature,
		TopP:            cfg.Provider.TopP,
		PresencePenalty: cfg.Provider.PresencePenalty,
		DefaultCount:    cfg.Generation.DefaultCount,
		ToneConcurrency: cfg.Generation.ToneConcurrency,
	}, coord, logger)

	// ----- Storage -----
	blobs, err := newKVStore(cfg, redisClient)
	if err != nil {
		return err
	}
	counterStore, closeCounters, err := newCounterStore(cfg, blobs)
	if err != nil {
		return err
	}
	defer closeCounters()

	lines, err := library.Load()
	if err != nil {
		return err
	}

	// ----- Handlers -----
	h := httpserver.Handlers{
		Replies:  handlers.NewReplyHandler(gen, cfg.Server.VersionID),
		Lines:    handlers.NewLinesHandler(lines, counterStore),
		History:  handlers.NewHistoryHandler(history.NewStore(blobs, ""), counterStore),
		Insights: handlers.NewInsightsHandler(insights.NewAnalyzer(gen, logger)),
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, h, httpserver.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway",
		zap.String("addr", srv.Addr),
		zap.Int("library_lines", len(lines)),
		zap.Bool("has_credentials", llmClient.HasCredentials()),
	)

	return serve(srv, logger)
}

// serve runs srv until SIGINT/SIGTERM or a listener failure, then drains
// in-flight requests for up to 10s.
func serve(srv *http.Server, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

func newKVStore(cfg *config.Config, redisClient *redis.Client) (kv.Store, error) {
	if cfg.Storage.KV == "redis" {
		return kv.NewRedisStore(redisClient, cfg.Cache.Prefix+":kv:"), nil
	}
	return kv.NewFileStore(afero.NewOsFs(), cfg.Storage.Dir)
}

func newCounterStore(cfg *config.Config, blobs kv.Store) (counters.Store, func(), error) {
	if cfg.Storage.Counters != "sqlite" {
		return counters.NewBlobStore(blobs, ""), func() {}, nil
	}

	path := cfg.Storage.SQLitePath
	if path == "" {
		path = filepath.Join(cfg.Storage.Dir, "counters.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create counters dir: %w", err)
	}

	store, err := counters.NewSQLiteStore(context.Background(), path)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// redisClientOrNil keeps a nil *redis.Client from becoming a non-nil
// interface value.
func redisClientOrNil(c *redis.Client) redis.UniversalClient {
	if c == nil {
		return nil
	}
	return c
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
