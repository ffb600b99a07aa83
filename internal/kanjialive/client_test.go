package kanjialive

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const testAPIKey = "test-rapidapi-key-0000"

// fastBackoff keeps retry tests quick.
func fastBackoff() *BackoffPolicy {
	return NewBackoffPolicy(time.Millisecond, 5*time.Millisecond,
		WithBackoffRand(rand.New(rand.NewSource(1))))
}

func newTestClient(t *testing.T, upstream *httptest.Server, maxRetries int, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithHTTPClient(upstream.Client()),
		WithBackoff(fastBackoff()),
	}
	c, err := NewClient(Config{
		BaseURL:    upstream.URL,
		APIKey:     testAPIKey,
		MaxRetries: maxRetries,
	}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClientSendsAPIHeaders(t *testing.T) {
	var gotKey, gotHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-RapidAPI-Key")
		gotHost = r.Header.Get("X-RapidAPI-Host")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	if _, err := c.SearchBasic(context.Background(), "parent"); err != nil {
		t.Fatalf("SearchBasic failed: %v", err)
	}

	if gotKey != testAPIKey {
		t.Errorf("X-RapidAPI-Key: got %q", gotKey)
	}
	if gotHost != DefaultAPIHost {
		t.Errorf("X-RapidAPI-Host: got %q, want %q", gotHost, DefaultAPIHost)
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 3 {
			http.Error(w, "upstream down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"kanji":{"character":"親"}}]`))
	}))
	defer srv.Close()

	retries := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_retries_total"})
	c := newTestClient(t, srv, 3, WithRetryCounter(retries))

	results, err := c.SearchBasic(context.Background(), "parent")
	if err != nil {
		t.Fatalf("SearchBasic failed after retries: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("results: got %d, want 1", len(results))
	}
	if got := attempts.Load(); got != 4 {
		t.Errorf("attempts: got %d, want 4", got)
	}
	if got := testutil.ToFloat64(retries); got != 3 {
		t.Errorf("retry counter: got %v, want 3", got)
	}
}

func TestClientExhaustsRetries(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 2)

	_, err := c.SearchBasic(context.Background(), "parent")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %T: %v", err, err)
	}
	if ue.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", ue.StatusCode)
	}

	// MaxRetries of 2 means three attempts in total.
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts: got %d, want 3", got)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)

	_, err := c.KanjiDetail(context.Background(), "親")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts: got %d, want 1 (4xx is terminal)", got)
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %T", err)
	}
	if ue.Retryable() {
		t.Error("404 classified as retryable")
	}
}

func TestClientRetriesRateLimit(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 1)

	if _, err := c.SearchBasic(context.Background(), "parent"); err != nil {
		t.Fatalf("SearchBasic failed: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts: got %d, want 2", got)
	}
}

func TestClientMalformedShapeIsTerminal(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		// Search endpoints document an array; an object is a contract break.
		w.Write([]byte(`{"error":"surprise"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 3)

	_, err := c.SearchBasic(context.Background(), "parent")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts: got %d, want 1 (shape mismatch is terminal)", got)
	}
}

func TestClientContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	slow := NewBackoffPolicy(10*time.Second, 30*time.Second,
		WithBackoffRand(rand.New(rand.NewSource(1))))
	c := newTestClient(t, srv, 5, WithBackoff(slow))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.SearchBasic(ctx, "parent")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancellation took %v, retries not interrupted", elapsed)
	}
}

func TestClientErrorsNeverContainAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key: "+r.Header.Get("X-RapidAPI-Key"), http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)

	_, err := c.SearchBasic(context.Background(), "parent")
	if err == nil {
		t.Fatal("expected error")
	}
	if strings.Contains(err.Error(), testAPIKey) {
		t.Errorf("error leaks credential: %v", err)
	}
	if !strings.Contains(err.Error(), "authentication failed") {
		t.Errorf("error not caller-safe: %v", err)
	}
}

func TestClientCachesResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0, WithCache(NewCache(time.Minute)))

	for i := 0; i < 3; i++ {
		if _, err := c.SearchBasic(context.Background(), "parent"); err != nil {
			t.Fatalf("SearchBasic failed: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits: got %d, want 1", got)
	}

	// A different query bypasses the cached entry.
	if _, err := c.SearchBasic(context.Background(), "child"); err != nil {
		t.Fatalf("SearchBasic failed: %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("upstream hits: got %d, want 2", got)
	}
}

func TestClientAdvancedSearchEncodesParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)

	params := url.Values{}
	params.Set("on", "シン")
	params.Set("grade", "2")
	if _, err := c.SearchAdvanced(context.Background(), params); err != nil {
		t.Fatalf("SearchAdvanced failed: %v", err)
	}

	if gotQuery.Get("on") != "シン" {
		t.Errorf("on param: got %q", gotQuery.Get("on"))
	}
	if gotQuery.Get("grade") != "2" {
		t.Errorf("grade param: got %q", gotQuery.Get("grade"))
	}
}

func TestKanjiDetailFiltersUndocumentedFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"kanji": {
				"character": "親",
				"meaning": {"english": "parent"},
				"strokes": {"count": 16, "timings": [0.1, 0.4], "images": ["a.svg"]},
				"onyomi": {"romaji": "shin", "katakana": "シン"},
				"kunyomi": {"romaji": "oya", "hiragana": "おや"},
				"video": {"mp4": "https://example.com/oya.mp4", "source_file": "oya_raw.mov"}
			},
			"radical": {"character": "見", "strokes": 7, "name": {"hiragana": "みる"}, "internal_id": 99},
			"references": {"grade": 2, "kodansha": "1487", "internal_code": "xx"},
			"examples": [{"japanese": "両親", "meaning": {"english": "parents"}, "raw_row": 12}],
			"dictionary_seq": 5541
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)

	detail, err := c.KanjiDetail(context.Background(), "親")
	if err != nil {
		t.Fatalf("KanjiDetail failed: %v", err)
	}

	if _, ok := detail["dictionary_seq"]; ok {
		t.Error("undocumented top-level field survived filtering")
	}

	kanji := detail["kanji"].(map[string]interface{})
	strokes, ok := kanji["strokes"].(float64)
	if !ok {
		t.Fatalf("strokes not flattened to a number: %T %v", kanji["strokes"], kanji["strokes"])
	}
	if strokes != 16 {
		t.Errorf("stroke count lost: %v", strokes)
	}

	video := kanji["video"].(map[string]interface{})
	if _, ok := video["source_file"]; ok {
		t.Error("video source file survived filtering")
	}

	radical := detail["radical"].(map[string]interface{})
	if _, ok := radical["internal_id"]; ok {
		t.Error("radical internal id survived filtering")
	}

	refs := detail["references"].(map[string]interface{})
	if _, ok := refs["internal_code"]; ok {
		t.Error("reference internal code survived filtering")
	}

	examples := detail["examples"].([]interface{})
	if _, ok := examples[0].(map[string]interface{})["raw_row"]; ok {
		t.Error("example raw row survived filtering")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"", nil},
		{"5", intPtr(5)},
		{"0", intPtr(0)},
		{"-1", nil},
		{"Wed, 21 Oct 2026 07:28:00 GMT", nil},
	}

	for _, tt := range tests {
		got := parseRetryAfter(tt.in)
		switch {
		case got == nil && tt.want != nil:
			t.Errorf("parseRetryAfter(%q) = nil, want %d", tt.in, *tt.want)
		case got != nil && tt.want == nil:
			t.Errorf("parseRetryAfter(%q) = %d, want nil", tt.in, *got)
		case got != nil && tt.want != nil && *got != *tt.want:
			t.Errorf("parseRetryAfter(%q) = %d, want %d", tt.in, *got, *tt.want)
		}
	}
}

func intPtr(n int) *int { return &n }
