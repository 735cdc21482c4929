// Package config loads gateway settings from an optional YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Provider    ProviderConfig    `yaml:"provider"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Cache       CacheConfig       `yaml:"cache"`
	Redis       RedisConfig       `yaml:"redis"`
	Storage     StorageConfig     `yaml:"storage"`
	Generation  GenerationConfig  `yaml:"generation"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	VersionID      string        `yaml:"version_id"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

type ProviderConfig struct {
	BaseURL         string  `yaml:"base_url"`
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	TopP            float32 `yaml:"top_p"`
	PresencePenalty float32 `yaml:"presence_penalty"`
}

type CoordinatorConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	BaseDelay      time.Duration `yaml:"base_delay"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	MaxJitter      time.Duration `yaml:"max_jitter"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend"` // memory | lru | redis
	TTL     time.Duration `yaml:"ttl"`     // 0 keeps entries for the process lifetime
	Size    int           `yaml:"size"`    // lru only
	Prefix  string        `yaml:"prefix"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	KV         string `yaml:"kv"` // file | redis
	Dir        string `yaml:"dir"`
	Counters   string `yaml:"counters"` // blob | sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

type GenerationConfig struct {
	DefaultCount    int `yaml:"default_count"`
	ToneConcurrency int `yaml:"tone_concurrency"`
}

var (
	cacheBackends    = []string{"memory", "lru", "redis"}
	kvBackends       = []string{"file", "redis"}
	counterBackends  = []string{"blob", "sqlite"}
	maxDefaultCount  = 10
	maxToneFanOut    = 5
	defaultDataDir   = "data"
	defaultRedisAddr = "127.0.0.1:6379"
)

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			VersionID:      "v1",
			RequestTimeout: 90 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Provider: ProviderConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.9,
			TopP:        1,
		},
		Coordinator: CoordinatorConfig{
			MaxRetries:     3,
			BaseDelay:      700 * time.Millisecond,
			AttemptTimeout: 15 * time.Second,
			MaxJitter:      200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend: "memory",
			Size:    1024,
			Prefix:  "rizzmate",
		},
		Redis: RedisConfig{Addr: defaultRedisAddr},
		Storage: StorageConfig{
			KV:       "file",
			Dir:      defaultDataDir,
			Counters: "blob",
		},
		Generation: GenerationConfig{
			DefaultCount:    4,
			ToneConcurrency: 1,
		},
	}
}

// Load reads path over the defaults. A missing file is not an error.
// ${VAR} references in the file are expanded before parsing, and
// environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() {
	c.Server.Port = getenv("PORT", c.Server.Port)
	c.Server.VersionID = getenv("GATEWAY_VERSION", c.Server.VersionID)

	c.Provider.BaseURL = getenv("LLM_BASE_URL", c.Provider.BaseURL)
	c.Provider.APIKey = getenv("OPENAI_API_KEY", c.Provider.APIKey)
	c.Provider.Model = getenv("OPENAI_MODEL", c.Provider.Model)

	c.Cache.Backend = getenv("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.TTL = getDuration("CACHE_TTL", c.Cache.TTL)
	c.Redis.Addr = getenv("REDIS_ADDR", c.Redis.Addr)

	c.Storage.KV = getenv("KV_BACKEND", c.Storage.KV)
	c.Storage.Dir = getenv("DATA_DIR", c.Storage.Dir)
	c.Storage.Counters = getenv("COUNTERS_BACKEND", c.Storage.Counters)
	c.Storage.SQLitePath = getenv("COUNTERS_SQLITE_PATH", c.Storage.SQLitePath)

	c.Generation.ToneConcurrency = getInt("TONE_CONCURRENCY", c.Generation.ToneConcurrency)
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("config: server.port is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("config: provider.base_url is required")
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("config: provider.model is required")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("config: provider.temperature must be within [0, 2], got %v", c.Provider.Temperature)
	}
	if c.Provider.TopP <= 0 || c.Provider.TopP > 1 {
		return fmt.Errorf("config: provider.top_p must be within (0, 1], got %v", c.Provider.TopP)
	}
	if c.Coordinator.MaxRetries < 0 {
		return fmt.Errorf("config: coordinator.max_retries must not be negative")
	}
	if c.Coordinator.AttemptTimeout <= 0 {
		return fmt.Errorf("config: coordinator.attempt_timeout must be positive")
	}
	if !slices.Contains(cacheBackends, c.Cache.Backend) {
		return fmt.Errorf("config: invalid cache.backend %q (valid: %v)", c.Cache.Backend, cacheBackends)
	}
	if !slices.Contains(kvBackends, c.Storage.KV) {
		return fmt.Errorf("config: invalid storage.kv %q (valid: %v)", c.Storage.KV, kvBackends)
	}
	if !slices.Contains(counterBackends, c.Storage.Counters) {
		return fmt.Errorf("config: invalid storage.counters %q (valid: %v)", c.Storage.Counters, counterBackends)
	}
	if c.Generation.DefaultCount < 1 || c.Generation.DefaultCount > maxDefaultCount {
		return fmt.Errorf("config: generation.default_count must be within [1, %d]", maxDefaultCount)
	}
	if c.Generation.ToneConcurrency < 1 || c.Generation.ToneConcurrency > maxToneFanOut {
		return fmt.Errorf("config: generation.tone_concurrency must be within [1, %d]", maxToneFanOut)
	}
	return nil
}

// NeedsRedis reports whether any configured backend talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Cache.Backend == "redis" || c.Storage.KV == "redis"
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
