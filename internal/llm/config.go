package llm

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultCompletionsPath = "/v1/chat/completions"

type Config struct {
	BaseURL string

	// CompletionsPath is appended to BaseURL. Defaults to /v1/chat/completions.
	CompletionsPath string

	// APIKey may be empty; every call then fails with ErrMissingCredentials
	// without touching the network.
	APIKey string

	// Idle connections kept per provider host. Defaults to 16.
	IdleConns int

	HTTPClient *http.Client
}

func (c Config) normalize() (Config, error) {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return c, errors.New("base url is required")
	}
	if c.CompletionsPath == "" {
		c.CompletionsPath = defaultCompletionsPath
	}
	if !strings.HasPrefix(c.CompletionsPath, "/") {
		c.CompletionsPath = "/" + c.CompletionsPath
	}
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.IdleConns <= 0 {
		c.IdleConns = 16
	}
	return c, nil
}

type client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// NewClient creates a provider client. It performs exactly one HTTP exchange
// per ChatCompletion call; retries and timeouts belong to the caller.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, fmt.Errorf("llmclient: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hc := cfg.HTTPClient
	if hc == nil {
		// No client-level timeout: the coordinator bounds each attempt via ctx.
		hc = &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout: 5 * time.Second,
			MaxIdleConns:        cfg.IdleConns,
			MaxIdleConnsPerHost: cfg.IdleConns,
			IdleConnTimeout:     90 * time.Second,
		}}
	}

	return &client{
		endpoint: cfg.BaseURL + cfg.CompletionsPath,
		apiKey:   cfg.APIKey,
		http:     hc,
		logger:   logger.Named("llmclient"),
	}, nil
}

func (c *client) HasCredentials() bool { return c.apiKey != "" }

func (c *client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
