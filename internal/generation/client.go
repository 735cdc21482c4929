// Package generation turns a seed text and a tone into reply suggestions.
// Every provider call goes through an Executor, which owns deduplication,
// retries and memoization; this package only builds prompts and parses
// replies.
package generation

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rizzmate-gateway/internal/cache"
	"rizzmate-gateway/internal/llm"
)

// Executor runs a provider request memoized under cacheKey.
type Executor interface {
	Execute(ctx context.Context, req *llm.ChatRequest, cacheKey string) (*llm.ChatResponse, error)
}

type Config struct {
	Model           string  // default: gpt-4o-mini
	Temperature     float32 // default: 0.9
	TopP            float32 // default: 1
	PresencePenalty float32

	DefaultCount int // replies per batch (default: 4)

	// ToneConcurrency bounds how many tones GenerateAllTones requests at
	// once. 1 (the default) keeps them sequential to stay under provider
	// rate limits.
	ToneConcurrency int
}

func (c Config) WithDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.9
	}
	if c.TopP <= 0 {
		c.TopP = 1
	}
	if c.DefaultCount <= 0 {
		c.DefaultCount = 4
	}
	if c.ToneConcurrency <= 0 {
		c.ToneConcurrency = 1
	}
	return c
}

// Request is one logical generation request. Count is only meaningful for
// batches.
type Request struct {
	Seed  string
	Tone  Tone
	Count int
}

// Key is the memoization key for r.
func (r Request) Key() cache.ReplyKey {
	if r.Count > 0 {
		return cache.BuildReplyKey(cache.ModeMany, r.Count, string(r.Tone), r.Seed)
	}
	return cache.BuildReplyKey(cache.ModeOne, 0, string(r.Tone), r.Seed)
}

type Client struct {
	cfg    Config
	exec   Executor
	logger *zap.Logger
}

func NewClient(cfg Config, exec Executor, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg.WithDefaults(),
		exec:   exec,
		logger: logger.Named("generation"),
	}
}

// DefaultCount is the batch size used when callers pass count <= 0.
func (c *Client) DefaultCount() int {
	return c.cfg.DefaultCount
}

// GenerateOne returns a single short reply.
func (c *Client) GenerateOne(ctx context.Context, seed string, tone Tone) (string, error) {
	req := Request{Seed: seed, Tone: tone}

	resp, err := c.exec.Execute(ctx, c.chatRequest(singlePrompt(seed, tone)), req.Key().String())
	if err != nil {
		return "", err
	}

	out := resp.Text()
	if out == "" {
		return "", &llm.Error{Kind: llm.KindEmptyResult, Message: "provider returned a blank reply"}
	}
	return out, nil
}

// GenerateBatch returns up to count distinct replies from one provider call.
// Fewer replies than requested is not an error; none at all is.
func (c *Client) GenerateBatch(ctx context.Context, seed string, tone Tone, count int) ([]string, error) {
	if count <= 0 {
		count = c.cfg.DefaultCount
	}
	req := Request{Seed: seed, Tone: tone, Count: count}

	resp, err := c.exec.Execute(ctx, c.chatRequest(batchPrompt(seed, tone, count)), req.Key().String())
	if err != nil {
		return nil, err
	}

	var raw string
	if len(resp.Choices) > 0 {
		raw = resp.Choices[0].Message.Content
	}
	lines := splitBatch(raw, count)
	if len(lines) == 0 {
		return nil, &llm.Error{Kind: llm.KindEmptyResult, Message: "provider returned no usable replies"}
	}
	return lines, nil
}

// GenerateAllTones runs GenerateBatch for every tone in Tones order. A tone
// that fails maps to an empty slice; if every tone comes back empty the call
// fails with an empty_result error wrapping the last tone's failure.
func (c *Client) GenerateAllTones(ctx context.Context, seed string, count int) (map[Tone][]string, error) {
	if count <= 0 {
		count = c.cfg.DefaultCount
	}

	results := make(map[Tone][]string, len(Tones))
	var (
		mu      sync.Mutex
		lastErr error
	)

	var g errgroup.Group
	g.SetLimit(c.cfg.ToneConcurrency)

	for _, tone := range Tones {
		// Go blocks while the limit is reached, so this sees a cancellation
		// that happened during the previous tone.
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			lines, err := c.GenerateBatch(ctx, seed, tone, count)
			if err != nil {
				c.logger.Warn("tone generation failed",
					zap.String("tone", string(tone)),
					zap.String("code", llm.Code(err)),
					zap.Error(err),
				)
				lines = []string{}
			}

			mu.Lock()
			results[tone] = lines
			if err != nil {
				lastErr = err
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, lines := range results {
		if len(lines) > 0 {
			return results, nil
		}
	}
	return nil, &llm.Error{Kind: llm.KindEmptyResult, Message: "no tone produced replies", Err: lastErr}
}

// Seed normalizes raw acquired text (typed or recognized from a screenshot)
// into a prompt seed: whitespace runs collapse and only the last maxRunes
// runes are kept, since the latest messages matter most.
func Seed(raw string, maxRunes int) string {
	s := strings.Join(strings.Fields(raw), " ")
	if maxRunes <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) > maxRunes {
		r = r[len(r)-maxRunes:]
	}
	return string(r)
}
