package gateway

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCaptureDefaults(t *testing.T) {
	c := NewCapture()

	if c.Status() != http.StatusOK {
		t.Errorf("default status = %d, want 200", c.Status())
	}
	if c.Finalized() {
		t.Error("fresh capture should not be finalized")
	}
	if len(c.Body()) != 0 {
		t.Errorf("fresh capture body = %q, want empty", c.Body())
	}
}

func TestCaptureWriteAndFinalize(t *testing.T) {
	c := NewCapture()
	c.SetStatus(http.StatusAccepted)
	c.SetHeader("Content-Type", "application/json")

	if _, err := c.Write([]byte(`{"a":`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Finalize([]byte(`1}`)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if got := string(c.Body()); got != `{"a":1}` {
		t.Errorf("body = %q, want %q", got, `{"a":1}`)
	}
	if c.Status() != http.StatusAccepted {
		t.Errorf("status = %d, want 202", c.Status())
	}
	if c.Header("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", c.Header("Content-Type"))
	}
}

func TestCaptureFinalizeTwice(t *testing.T) {
	c := NewCapture()
	if err := c.Finalize(nil); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if err := c.Finalize(nil); !errors.Is(err, ErrFinalized) {
		t.Errorf("second Finalize err = %v, want ErrFinalized", err)
	}
}

func TestCaptureImmutableAfterFinalize(t *testing.T) {
	c := NewCapture()
	c.SetStatus(http.StatusOK)
	c.SetHeader("X-Before", "yes")
	if err := c.Finalize([]byte("body")); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if _, err := c.Write([]byte("more")); !errors.Is(err, ErrFinalized) {
		t.Errorf("Write after Finalize err = %v, want ErrFinalized", err)
	}
	c.SetStatus(http.StatusTeapot)
	c.SetHeader("X-After", "yes")

	if c.Status() != http.StatusOK {
		t.Errorf("status mutated after finalize: %d", c.Status())
	}
	if c.Header("X-After") != "" {
		t.Error("header mutated after finalize")
	}
	if got := string(c.Body()); got != "body" {
		t.Errorf("body = %q, want %q", got, "body")
	}
	// Readable repeatedly.
	if got := string(c.Body()); got != "body" {
		t.Errorf("second read body = %q, want %q", got, "body")
	}
}

func TestCaptureWriteTo(t *testing.T) {
	c := NewCapture()
	c.SetStatus(http.StatusNotFound)
	c.SetHeader("Content-Type", "application/json")
	if err := c.Finalize([]byte(`{"missing":true}`)); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	rec := httptest.NewRecorder()
	c.WriteTo(rec)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Body.String(); got != `{"missing":true}` {
		t.Errorf("body = %q", got)
	}
}

func TestExchange(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set(sessionIDHeader, "abc")

	e := NewExchange(req, []byte(`{"jsonrpc":"2.0"}`))

	if e.Method != http.MethodPost {
		t.Errorf("method = %q", e.Method)
	}
	if e.SessionID() != "abc" {
		t.Errorf("session id = %q", e.SessionID())
	}
	if got := string(e.BodyBytes()); got != `{"jsonrpc":"2.0"}` {
		t.Errorf("body = %q", got)
	}

	// Body readers are independent.
	buf := make([]byte, 4)
	if n, _ := e.Body().Read(buf); n != 4 {
		t.Fatalf("read %d bytes", n)
	}
	if n, _ := e.Body().Read(buf); n != 4 {
		t.Errorf("second reader read %d bytes, want fresh reader", n)
	}

	// Header is a clone; mutating the request must not leak in.
	req.Header.Set(sessionIDHeader, "changed")
	if e.SessionID() != "abc" {
		t.Error("exchange header should be a snapshot")
	}
}
