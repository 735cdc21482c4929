package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 20

// ChatCompletion performs a single POST to the provider. Failures come back
// as *Error so the caller can decide whether to retry.
func (c *client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingCredentials
	}
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.statusError(resp)
	}

	out, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("model", out.Model),
		zap.Duration("duration", time.Since(start)),
	}
	if out.Usage != nil {
		fields = append(fields, zap.Int("total_tokens", out.Usage.TotalTokens))
	}
	c.logger.Debug("llm request completed", fields...)
	return out, nil
}

func (c *client) newRequest(ctx context.Context, req *ChatRequest) (*http.Request, error) {
	if req == nil {
		return nil, errors.New("llmclient: request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("llmclient: invalid request: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}
	if len(body) > maxRequestBytes {
		return nil, fmt.Errorf("llmclient: request is %d bytes, limit %d", len(body), maxRequestBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmclient: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

// statusError turns a non-2xx response into a rate_limited or http error.
func (c *client) statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		hint := parseRetryAfter(resp)
		c.logger.Warn("llm provider rate limited", zap.Duration("retry_after", hint))
		return &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, RetryAfter: hint}
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	msg := truncate(string(raw), 200)
	var we wireError
	if json.Unmarshal(raw, &we) == nil && we.Error.Message != "" {
		msg = we.Error.Message
	}

	c.logger.Warn("llm provider error",
		zap.Int("status", resp.StatusCode),
		zap.String("message", msg),
	)
	return HTTPStatus(resp.StatusCode, msg)
}

func decodeResponse(body io.Reader) (*ChatResponse, error) {
	var wr wireResponse
	if err := json.NewDecoder(body).Decode(&wr); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, Message: "decode response", Err: err}
	}
	if len(wr.Choices) == 0 {
		return nil, &Error{Kind: KindEmptyResult, Message: "provider returned no choices"}
	}
	return &ChatResponse{
		ID:      wr.ID,
		Created: time.Unix(wr.Created, 0),
		Model:   wr.Model,
		Choices: wr.Choices,
		Usage:   wr.Usage,
	}, nil
}

// classifyTransportError maps an http.Client error onto the taxonomy. A
// deadline is a timeout; a caller cancellation is returned as-is.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return err
	default:
		return &Error{Kind: KindNetwork, Err: err}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
