// Package kanjialive provides a resilient client for the Kanji Alive
// RapidAPI endpoints with retrying, caching and response filtering.
package kanjialive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultBaseURL is the RapidAPI gateway for the Kanji Alive API.
	DefaultBaseURL = "https://kanjialive-api.p.rapidapi.com/api/public"

	// DefaultAPIHost is the X-RapidAPI-Host value for the Kanji Alive API.
	DefaultAPIHost = "kanjialive-api.p.rapidapi.com"

	// DefaultTimeout is the per-attempt request timeout.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is how many retries follow a failed first attempt,
	// so the default allows four attempts in total.
	DefaultMaxRetries = 3

	// maxResponseBodySize bounds upstream response reads.
	// Prevents OOM from an unbounded response body.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB
)

// Config carries the settings for a Client. Zero values fall back to the
// package defaults.
type Config struct {
	BaseURL    string
	APIKey     string
	APIHost    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the Kanji Alive API. All methods retry transient failures
// with exponential backoff and honor server Retry-After hints. A Client is
// safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	apiHost    string
	userAgent  string
	maxRetries int

	httpClient *http.Client
	backoff    *BackoffPolicy
	cache      *Cache
	logger     *slog.Logger
	tracer     trace.Tracer

	// retriesTotal counts retry sleeps taken, when metrics are wired.
	retriesTotal prometheus.Counter
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. Tests use this to point at an
// httptest server or to shrink timeouts.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBackoff sets the retry delay policy.
func WithBackoff(p *BackoffPolicy) ClientOption {
	return func(c *Client) {
		c.backoff = p
	}
}

// WithCache enables response caching.
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the structured logger. Request credentials are never
// logged at any level.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracer sets the tracer used to span upstream calls.
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// WithRetryCounter wires a counter that increments once per retry taken.
func WithRetryCounter(counter prometheus.Counter) ClientOption {
	return func(c *Client) {
		c.retriesTotal = counter
	}
}

// NewClient creates a Kanji Alive API client. The API key is required;
// everything else has a default.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIHost == "" {
		cfg.APIHost = DefaultAPIHost
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kanjialive-mcp-server"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("kanjialive"),
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.backoff == nil {
		c.backoff = NewBackoffPolicy(DefaultBackoffInitial, DefaultBackoffCeiling,
			WithBackoffLogger(c.logger))
	}

	return c, nil
}

// SearchBasic looks up kanji by English meaning or Japanese reading.
// The upstream returns an array of per-kanji summaries.
func (c *Client) SearchBasic(ctx context.Context, query string) ([]map[string]interface{}, error) {
	endpoint := "search/" + url.PathEscape(query)
	body, err := c.get(ctx, endpoint, nil, shapeArray)
	if err != nil {
		return nil, err
	}
	return decodeResults(body)
}

// SearchAdvanced looks up kanji with the advanced search parameters
// (readings, radical position, stroke counts, grade, study list).
func (c *Client) SearchAdvanced(ctx context.Context, params url.Values) ([]map[string]interface{}, error) {
	body, err := c.get(ctx, "search/advanced/", params, shapeArray)
	if err != nil {
		return nil, err
	}
	return decodeResults(body)
}

// KanjiDetail fetches the full record for a single kanji character.
// The result is filtered down to the documented fields.
func (c *Client) KanjiDetail(ctx context.Context, character string) (map[string]interface{}, error) {
	endpoint := "kanji/" + url.PathEscape(character)
	body, err := c.get(ctx, endpoint, nil, shapeObject)
	if err != nil {
		return nil, err
	}

	var detail map[string]interface{}
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("decode kanji detail: %w", ErrMalformedResponse)
	}
	return FilterDetail(detail), nil
}

// expectedShape names the JSON shape an endpoint documents.
type expectedShape int

const (
	shapeArray expectedShape = iota
	shapeObject
)

// get performs one logical upstream call: cache lookup, then up to
// maxRetries+1 attempts with backoff between failures.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, shape expectedShape) ([]byte, error) {
	encodedQuery := params.Encode()

	if body, ok := c.cache.Get(endpoint, encodedQuery); ok {
		c.logger.Debug("upstream cache hit", "endpoint", endpoint)
		return body, nil
	}

	ctx, span := c.tracer.Start(ctx, "kanjialive.get",
		trace.WithAttributes(attribute.String("endpoint", endpoint)))
	defer span.End()

	var lastErr error
	attempts := c.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.doAttempt(ctx, endpoint, encodedQuery, shape)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			c.cache.Put(endpoint, encodedQuery, body)
			return body, nil
		}
		lastErr = err

		if !isRetryable(err) {
			c.logger.Warn("upstream call failed",
				"endpoint", endpoint,
				"attempt", attempt,
				"error", err)
			return nil, err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		delay := c.backoff.Delay(attempt, retryAfterHint(err))
		c.logger.Info("retrying upstream call",
			"endpoint", endpoint,
			"attempt", attempt,
			"delay", delay,
			"error", err)
		if c.retriesTotal != nil {
			c.retriesTotal.Inc()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	c.logger.Error("upstream call exhausted retries",
		"endpoint", endpoint,
		"attempts", attempts,
		"error", lastErr)
	return nil, lastErr
}

// doAttempt issues a single HTTP request and validates the response shape.
func (c *Client) doAttempt(ctx context.Context, endpoint, encodedQuery string, shape expectedShape) ([]byte, error) {
	reqURL := c.baseURL + "/" + endpoint
	if encodedQuery != "" {
		reqURL += "?" + encodedQuery
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("X-RapidAPI-Host", c.apiHost)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused; the body
		// of an error response is never surfaced to callers.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp.StatusCode),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	if err := checkShape(body, shape); err != nil {
		return nil, err
	}
	return body, nil
}

// checkShape verifies the body is valid JSON of the documented top-level
// shape. A mismatch is terminal: the endpoint contract is broken, not the
// connection.
func checkShape(body []byte, shape expectedShape) error {
	if !json.Valid(body) {
		return fmt.Errorf("response is not valid json: %w", ErrMalformedResponse)
	}
	for _, b := range body {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '[':
			if shape != shapeArray {
				return fmt.Errorf("expected object, got array: %w", ErrMalformedResponse)
			}
			return nil
		case '{':
			if shape != shapeObject {
				return fmt.Errorf("expected array, got object: %w", ErrMalformedResponse)
			}
			return nil
		default:
			return fmt.Errorf("unexpected top-level json value: %w", ErrMalformedResponse)
		}
	}
	return fmt.Errorf("empty response body: %w", ErrMalformedResponse)
}

// parseRetryAfter reads a Retry-After header given in seconds. HTTP-date
// values are ignored; the backoff policy then computes its own delay.
func parseRetryAfter(v string) *int {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func decodeResults(body []byte) ([]map[string]interface{}, error) {
	var results []map[string]interface{}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decode search results: %w", ErrMalformedResponse)
	}
	return results, nil
}
