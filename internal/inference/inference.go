// Package inference is the HTTP client for the model-serving backend.
//
// The backend is a small local service exposing three endpoints:
// POST /embed (PubMedBERT sentence embeddings), POST /generate
// (instruction-tuned biomedical generation with optional chat history)
// and GET /health. Transient failures are retried with exponential
// backoff, and outbound calls are paced with a token-bucket limiter so
// bulk ingestion cannot starve the single-process model server.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// EmbeddingDim is the dimensionality of the embedding model's output.
// It must match the vector(768) column in the documents table.
const EmbeddingDim = 768

// Config configures the inference client.
type Config struct {
	BaseURL string
	Timeout time.Duration // per-request timeout, 0 means 60s

	// Retry behavior for transient failures.
	MaxRetries      int           // 0 means 3
	InitialInterval time.Duration // 0 means 500ms
	MaxInterval     time.Duration // 0 means 10s

	// RequestsPerSecond paces outbound calls. 0 means 10 rps.
	RequestsPerSecond float64
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 10 * time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}
	return c
}

// Client talks to the inference backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cfg        Config
	logger     *slog.Logger
}

// New creates an inference client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("inference base URL is required")
	}
	cfg = cfg.withDefaults()

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	err := c.withRetry(ctx, "embed", func() error {
		return c.post(ctx, "/embed", embedRequest{Text: text}, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) != EmbeddingDim {
		return nil, fmt.Errorf("embed: backend returned %d dimensions, want %d", len(resp.Embedding), EmbeddingDim)
	}
	return resp.Embedding, nil
}

// HistoryTurn is one prior message passed to the generator.
type HistoryTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	Query       string        `json:"query"`
	Context     string        `json:"context,omitempty"`
	History     []HistoryTurn `json:"history,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type generateResponse struct {
	Answer string `json:"answer"`
}

// Generate asks the backend to answer query grounded in context.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Query == "" {
		return "", fmt.Errorf("generate: empty query")
	}

	var resp generateResponse
	err := c.withRetry(ctx, "generate", func() error {
		return c.post(ctx, "/generate", req, &resp)
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Answer), nil
}

// Health probes GET /health. A non-2xx status or transport error means
// the backend is unavailable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health: backend returned status %d", resp.StatusCode)
	}
	return nil
}

// post encodes body, sends the request and decodes the JSON response.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// retryablePatterns are error substrings treated as transient, matched
// case-insensitively. The backend does not expose typed errors over
// HTTP, so substring matching is the only signal available.
var retryablePatterns = []string{
	"status 429", "status 500", "status 502", "status 503", "status 504",
	"connection refused", "connection reset", "timeout", "temporary",
	"eof",
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// withRetry runs op with pacing and exponential backoff. Each attempt,
// including the first, waits on the rate limiter.
func (c *Client) withRetry(ctx context.Context, name string, op func() error) error {
	var lastErr error
	delay := c.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit wait: %w", name, err)
		}

		err := op()
		if err == nil {
			if attempt > 0 {
				c.logger.Debug("inference call recovered",
					"op", name, "attempts", attempt+1, "elapsed", time.Since(start))
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		c.logger.Debug("retrying inference call",
			"op", name, "attempt", attempt+1, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during retry: %w", name, ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.cfg.MaxInterval)
		}
	}

	return fmt.Errorf("%s after %d retries (elapsed %v): %w",
		name, c.cfg.MaxRetries, time.Since(start).Round(time.Millisecond), lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
