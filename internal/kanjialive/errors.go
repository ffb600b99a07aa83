package kanjialive

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse indicates the upstream returned 2xx but the body was
// not the JSON shape the endpoint documents. Retrying cannot help, so the
// classifier treats it as terminal.
var ErrMalformedResponse = errors.New("malformed upstream response")

// ErrMissingAPIKey indicates no RapidAPI credential was configured.
var ErrMissingAPIKey = errors.New("rapidapi key is not configured")

// UpstreamError carries the HTTP status of a failed upstream call together
// with a caller-safe message. The raw response body and request headers are
// never included, so the error can be surfaced to MCP clients verbatim.
type UpstreamError struct {
	StatusCode int
	Message    string
	// RetryAfter holds the server's Retry-After hint in seconds, when one
	// was present on a 429 or 5xx response. Nil means no hint.
	RetryAfter *int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("kanji alive api: %s (status %d)", e.Message, e.StatusCode)
}

// Retryable reports whether the failure class can succeed on a later
// attempt: rate limiting and server-side errors can, client errors cannot.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// statusMessage maps an upstream HTTP status to a message safe to show the
// caller.
func statusMessage(status int) string {
	switch {
	case status == 400:
		return "invalid request parameters"
	case status == 401 || status == 403:
		return "authentication failed, check the configured RapidAPI key"
	case status == 404:
		return "no data found for the requested kanji"
	case status == 429:
		return "rate limit exceeded"
	case status >= 500:
		return "upstream service error"
	default:
		return "unexpected upstream response"
	}
}

// isRetryable classifies an error from a single attempt. UpstreamError
// carries its own class; malformed response shapes are terminal; everything
// else reaching here came out of http.Client.Do and wraps a transport-level
// failure (connection refused, DNS, TLS, per-attempt timeout), all of which
// are transient. Caller-context cancellation is checked separately in the
// retry loop, before any delay is taken.
func isRetryable(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Retryable()
	}
	return !errors.Is(err, ErrMalformedResponse)
}

// retryAfterHint extracts the UpstreamError's Retry-After hint, if any.
func retryAfterHint(err error) *int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.RetryAfter
	}
	return nil
}
