package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/kanjialive/kanjialive-mcp-server/internal/mcpserver"
	"github.com/kanjialive/kanjialive-mcp-server/pkg/mcp"
)

// Streamable HTTP headers.
const (
	sessionIDHeader       = "Mcp-Session-Id"
	protocolVersionHeader = "MCP-Protocol-Version"
)

// DefaultMaxBodyBytes caps a single POST body at 1 MiB.
const DefaultMaxBodyBytes int64 = 1 << 20

// sessionIDPattern matches a canonical UUIDv4 as produced for new
// sessions. Anything else is rejected before any registry lookup.
var sessionIDPattern = regexp.MustCompile(
	`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// TransportFactory builds a fresh session transport with the given
// lifecycle hooks installed.
type TransportFactory func(hooks mcpserver.Hooks) SessionTransport

// handler serves the /mcp endpoint: POST for JSON-RPC messages, GET for
// the SSE notification stream, DELETE for session termination.
type handler struct {
	registry     *Registry
	newTransport TransportFactory
	logger       *slog.Logger
	maxBodyBytes int64
}

// newMCPHandler wires the /mcp routes.
func newMCPHandler(registry *Registry, factory TransportFactory, logger *slog.Logger, maxBodyBytes int64) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	h := &handler{
		registry:     registry,
		newTransport: factory,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.handlePost(w, r)
		case http.MethodGet:
			h.handleGet(w, r)
		case http.MethodDelete:
			h.handleDelete(w, r)
		case http.MethodOptions:
			h.handleOptions(w, r)
		default:
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})
}

// handlePost validates the envelope, resolves or creates the session,
// and hands the message to its transport through a Capture shim.
func (h *handler) handlePost(w http.ResponseWriter, r *http.Request) {
	// Validate content type before reading the body to fail fast.
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/json" {
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeParseError, "Parse error: content type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeProtocolError(w, http.StatusRequestEntityTooLarge, nil,
				mcp.CodeInvalidRequest, "Invalid Request: request body too large")
			return
		}
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeParseError, "Parse error: failed to read request body")
		return
	}

	if len(body) == 0 {
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeParseError, "Parse error: empty request body")
		return
	}
	if !json.Valid(body) {
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeParseError, "Parse error: invalid JSON")
		return
	}

	exchange := NewExchange(r, body)
	id := mcp.ExtractRawID(body)

	// Session ID format is checked before any registry lookup so a
	// malformed ID can never match, shadow, or create state.
	sessionID := exchange.SessionID()
	var transport SessionTransport
	switch {
	case sessionID != "":
		if !sessionIDPattern.MatchString(sessionID) {
			writeProtocolError(w, http.StatusBadRequest, id,
				mcp.CodeInvalidRequest, "Invalid Request: malformed session ID")
			return
		}
		t, ok := h.registry.Lookup(sessionID)
		if !ok {
			writeProtocolError(w, http.StatusNotFound, id,
				mcp.CodeInvalidRequest, "Invalid Request: unknown or expired session")
			return
		}
		transport = t
	default:
		// Without a session ID only the initialize handshake may proceed;
		// it creates the session.
		var envelope struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(body, &envelope)
		if envelope.Method != "initialize" {
			writeProtocolError(w, http.StatusBadRequest, id,
				mcp.CodeInvalidRequest, "Invalid Request: Mcp-Session-Id header required")
			return
		}
		transport = h.newTransport(mcpserver.Hooks{
			OnSessionEstablished: func(id string, t *mcpserver.Transport) {
				h.registry.Add(id, t)
			},
			OnClose: h.registry.Remove,
		})
	}

	capture := NewCapture()
	transport.ServeMessage(r.Context(), exchange.BodyBytes(), capture)

	// An initialize that never established a session leaves an orphan
	// transport; close it so its notification channel is released.
	if sessionID == "" && transport.SessionID() == "" {
		_ = transport.Close(r.Context())
	}

	if r.Context().Err() != nil {
		return // Client disconnected, nothing to write.
	}

	w.Header().Set(protocolVersionHeader, mcpserver.ProtocolVersion)
	capture.WriteTo(w)
}

// handleGet opens the SSE stream for server-initiated messages. The
// stream drains the session transport's notification channel until the
// client disconnects or the session closes.
func (h *handler) handleGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := r.Header.Get(sessionIDHeader)
	if sessionID == "" || !sessionIDPattern.MatchString(sessionID) {
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeInvalidRequest, "Invalid Request: valid Mcp-Session-Id header required")
		return
	}

	transport, found := h.registry.Lookup(sessionID)
	if !found {
		writeProtocolError(w, http.StatusNotFound, nil,
			mcp.CodeInvalidRequest, "Invalid Request: unknown or expired session")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(protocolVersionHeader, mcpserver.ProtocolVersion)
	w.Header().Set(sessionIDHeader, sessionID)

	ctx := r.Context()

	// Initial comment establishes the connection.
	_, _ = fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, open := <-transport.Notifications():
			if !open {
				// Session terminated.
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// handleDelete terminates a session. Closing the transport fires its
// close hook, which removes the registry entry.
func (h *handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(sessionIDHeader)
	if sessionID == "" || !sessionIDPattern.MatchString(sessionID) {
		writeProtocolError(w, http.StatusBadRequest, nil,
			mcp.CodeInvalidRequest, "Invalid Request: valid Mcp-Session-Id header required")
		return
	}

	transport, found := h.registry.Lookup(sessionID)
	if !found {
		writeProtocolError(w, http.StatusNotFound, nil,
			mcp.CodeInvalidRequest, "Invalid Request: unknown or expired session")
		return
	}

	if err := transport.Close(r.Context()); err != nil {
		h.logger.Warn("closing session on DELETE", "session_id", sessionID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleOptions handles CORS preflight requests.
func (h *handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id, MCP-Protocol-Version")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// writeProtocolError writes a structured JSON-RPC error body with the
// given HTTP status. Gateway-level rejections carry a non-2xx status so
// clients can distinguish envelope failures from tool results.
func writeProtocolError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(protocolVersionHeader, mcpserver.ProtocolVersion)
	w.WriteHeader(status)
	_, _ = w.Write(mcp.NewErrorResponse(id, code, message))
}
