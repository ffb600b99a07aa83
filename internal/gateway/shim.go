// Package gateway exposes the MCP Streamable HTTP surface: request
// routing, session registry, response shimming, and server lifecycle.
package gateway

import (
	"bytes"
	"errors"
	"net/http"
	"sync"

	"github.com/kanjialive/kanjialive-mcp-server/internal/mcpserver"
)

// ErrFinalized is returned by Capture writes after Finalize.
var ErrFinalized = errors.New("gateway: response already finalized")

// Exchange is the read side of one HTTP exchange handed to a session
// transport: the method, path, a header clone, and the already-read body.
// The body is finite; GET and DELETE carry an empty one.
type Exchange struct {
	Method string
	Path   string
	Header http.Header
	body   []byte
}

// NewExchange snapshots the request metadata and the given body. The
// caller reads the body beforehand so size limits apply exactly once.
func NewExchange(r *http.Request, body []byte) *Exchange {
	return &Exchange{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		body:   body,
	}
}

// SessionID returns the Mcp-Session-Id header value, or empty.
func (e *Exchange) SessionID() string {
	return e.Header.Get(sessionIDHeader)
}

// Body returns a fresh reader over the exchange body.
func (e *Exchange) Body() *bytes.Reader {
	return bytes.NewReader(e.body)
}

// BodyBytes returns the raw body.
func (e *Exchange) BodyBytes() []byte {
	return e.body
}

// Capture is the write side: it implements mcpserver.ResponseWriter by
// buffering status, headers, and body until Finalize, after which the
// captured response is immutable and can be copied to an
// http.ResponseWriter. Safe for concurrent use.
type Capture struct {
	mu        sync.Mutex
	status    int
	header    http.Header
	body      bytes.Buffer
	finalized bool
}

// NewCapture creates a Capture with status 200 and empty headers.
func NewCapture() *Capture {
	return &Capture{
		status: http.StatusOK,
		header: make(http.Header),
	}
}

// SetStatus records the HTTP status code. Calls after Finalize are
// ignored.
func (c *Capture) SetStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return
	}
	c.status = code
}

// SetHeader records a response header. Calls after Finalize are ignored.
func (c *Capture) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return
	}
	c.header.Set(key, value)
}

// Write appends response body bytes. Returns ErrFinalized once the
// response has been finalized.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return 0, ErrFinalized
	}
	return c.body.Write(p)
}

// Finalize ends the response, optionally appending trailing data first.
// A second Finalize returns ErrFinalized.
func (c *Capture) Finalize(trailing []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finalized {
		return ErrFinalized
	}
	if len(trailing) > 0 {
		c.body.Write(trailing)
	}
	c.finalized = true
	return nil
}

// Finalized reports whether Finalize has been called.
func (c *Capture) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// Status returns the recorded status code.
func (c *Capture) Status() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Header returns the header value for key.
func (c *Capture) Header(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.header.Get(key)
}

// Body returns a copy of the captured body.
func (c *Capture) Body() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.body.Bytes()...)
}

// WriteTo copies the captured response onto w: headers, status, body.
// Headers set directly on w beforehand are preserved unless the capture
// overrides them.
func (c *Capture) WriteTo(w http.ResponseWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, values := range c.header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(c.status)
	if c.body.Len() > 0 {
		_, _ = w.Write(c.body.Bytes())
	}
}

var _ mcpserver.ResponseWriter = (*Capture)(nil)
