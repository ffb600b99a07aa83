package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kanjialive/kanjialive-mcp-server/pkg/mcp"
)

// notifyBufferSize bounds the per-session queue of server-initiated
// messages. A client that never opens the SSE stream must not pin memory.
const notifyBufferSize = 16

// ResponseWriter is the write side a Transport uses to answer one message.
// The HTTP gateway adapts its response machinery to this interface.
//
// SetStatus and SetHeader must be called before the first Write. Finalize
// ends the response; data passed to Finalize is written as a final chunk.
// After Finalize, Write and Finalize return an error.
type ResponseWriter interface {
	SetStatus(code int)
	SetHeader(key, value string)
	Write(p []byte) (int, error)
	Finalize(trailing []byte) error
}

// Hooks lets the session registry observe transport lifecycle events.
// OnSessionEstablished fires when the initialize handshake assigns a
// session ID. OnClose fires when the transport closes itself; a registry
// must register it before handing the transport any message so no close is
// missed.
type Hooks struct {
	OnSessionEstablished func(sessionID string, t *Transport)
	OnClose              func(sessionID string)
}

// Transport is the per-session protocol endpoint. One Transport serves all
// messages of one MCP session, serially or concurrently, and owns the
// session's notification stream.
type Transport struct {
	server *Server
	logger *slog.Logger

	mu          sync.Mutex
	sessionID   string
	initialized bool
	closed      bool
	hooks       Hooks

	// notify is closed by Close under mu; Notify sends under mu, so a send
	// to a closed channel cannot happen.
	notify chan []byte
}

// NewTransport creates a transport bound to the server's registries.
func NewTransport(s *Server) *Transport {
	return &Transport{
		server: s,
		logger: s.logger,
		notify: make(chan []byte, notifyBufferSize),
	}
}

// SetHooks installs lifecycle hooks. The registry calls this before the
// transport sees its first message.
func (t *Transport) SetHooks(h Hooks) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = h
}

// SessionID returns the session ID assigned during initialize, or empty.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Notifications returns the channel of server-initiated messages for the
// session's SSE stream. The channel is closed when the transport closes.
func (t *Transport) Notifications() <-chan []byte {
	return t.notify
}

// Close shuts the transport down. Idempotent. The OnClose hook fires once
// with the session ID so the registry can drop its index entry.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	onClose := t.hooks.OnClose
	close(t.notify)
	t.mu.Unlock()

	if onClose != nil && sessionID != "" {
		onClose(sessionID)
	}

	t.logger.Debug("session transport closed", "session_id", sessionID)
	return nil
}

// ServeMessage handles one client message and writes the outcome to w.
// Notifications get a bodiless 202; calls get a JSON-RPC response. Protocol
// errors are written as JSON-RPC error objects, never panics.
func (t *Transport) ServeMessage(ctx context.Context, body []byte, w ResponseWriter) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.writeError(w, mcp.ExtractRawID(body), mcp.CodeInvalidRequest, "Session is closed")
		return
	}
	t.mu.Unlock()

	msg, err := mcp.WrapMessage(body)
	if err != nil {
		t.writeError(w, mcp.ExtractRawID(body), mcp.CodeInvalidRequest, "Invalid JSON-RPC message")
		return
	}

	req := msg.Request()
	if req == nil {
		// A client should not POST responses at this server.
		t.writeError(w, msg.RawID(), mcp.CodeInvalidRequest, "Expected a JSON-RPC request")
		return
	}

	if msg.IsNotification() {
		t.handleNotification(req.Method)
		w.SetStatus(202)
		if err := w.Finalize(nil); err != nil {
			t.logger.Warn("finalize notification response", "error", err)
		}
		return
	}

	id := msg.RawID()

	t.mu.Lock()
	established := t.sessionID != ""
	t.mu.Unlock()
	if !established && req.Method != "initialize" {
		t.writeError(w, id, mcp.CodeInvalidRequest, "Server not initialized")
		return
	}

	switch req.Method {
	case "initialize":
		t.handleInitialize(msg, w)
	case "ping":
		t.writeResult(w, id, struct{}{})
	case "tools/list":
		t.handleToolsList(w, id)
	case "tools/call":
		t.handleToolsCall(ctx, msg, w)
	case "resources/list":
		t.handleResourcesList(w, id)
	case "resources/read":
		t.handleResourcesRead(msg, w)
	default:
		t.writeError(w, id, mcp.CodeMethodNotFound, "Method not found: "+req.Method)
	}
}

func (t *Transport) handleNotification(method string) {
	switch method {
	case "notifications/initialized":
		t.mu.Lock()
		t.initialized = true
		t.mu.Unlock()
		t.logger.Debug("session initialized", "session_id", t.SessionID())
	default:
		t.logger.Debug("ignoring notification", "method", method)
	}
}

// initializeResult is the wire shape of the initialize response.
type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
	Instructions    string                 `json:"instructions,omitempty"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func (t *Transport) handleInitialize(msg *mcp.Message, w ResponseWriter) {
	id := msg.RawID()

	t.mu.Lock()
	if t.sessionID != "" {
		t.mu.Unlock()
		t.writeError(w, id, mcp.CodeInvalidRequest, "Session already initialized")
		return
	}
	t.sessionID = uuid.NewString()
	sessionID := t.sessionID
	onEstablished := t.hooks.OnSessionEstablished
	t.mu.Unlock()

	// Index the session before the ID reaches the client, so a follow-up
	// request racing the response still finds it.
	if onEstablished != nil {
		onEstablished(sessionID, t)
	}

	result := initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]interface{}{
			"tools":     map[string]interface{}{},
			"resources": map[string]interface{}{},
		},
		ServerInfo:   serverInfo{Name: t.server.name, Version: t.server.version},
		Instructions: t.server.instructions,
	}

	payload, err := mcp.NewResultResponse(id, result)
	if err != nil {
		t.writeError(w, id, mcp.CodeInternalError, "Internal error")
		return
	}

	w.SetHeader("Mcp-Session-Id", sessionID)
	w.SetHeader("Content-Type", "application/json")
	if err := w.Finalize(payload); err != nil {
		t.logger.Warn("finalize initialize response", "error", err)
	}

	t.logger.Info("session established",
		"session_id", sessionID,
		"client", clientName(msg))
}

// clientName extracts clientInfo.name from initialize params, for logging.
func clientName(msg *mcp.Message) string {
	params := msg.ParseParams()
	if params == nil {
		return ""
	}
	info, _ := params["clientInfo"].(map[string]interface{})
	name, _ := info["name"].(string)
	return name
}

// listedTool is the wire shape of one tools/list entry.
type listedTool struct {
	Name        string                 `json:"name"`
	Title       string                 `json:"title,omitempty"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func (t *Transport) handleToolsList(w ResponseWriter, id json.RawMessage) {
	tools := make([]listedTool, 0, len(t.server.tools))
	for _, tool := range t.server.tools {
		tools = append(tools, listedTool{
			Name:        tool.Name,
			Title:       tool.Title,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	t.writeResult(w, id, map[string]interface{}{"tools": tools})
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (t *Transport) handleToolsCall(ctx context.Context, msg *mcp.Message, w ResponseWriter) {
	id := msg.RawID()
	req := msg.Request()

	var params toolCallParams
	if req.Params == nil || json.Unmarshal(req.Params, &params) != nil || params.Name == "" {
		t.writeError(w, id, mcp.CodeInvalidParams, "tools/call requires a tool name")
		return
	}

	tool, ok := t.server.tool(params.Name)
	if !ok {
		t.writeError(w, id, mcp.CodeInvalidParams, "Unknown tool: "+params.Name)
		return
	}

	args := params.Arguments
	if args == nil {
		args = json.RawMessage(`{}`)
	}

	result, err := tool.Handler(ctx, args)
	if err != nil {
		// Tool failures are results, not protocol errors: the client sees
		// the message and can adjust its next call.
		t.logger.Warn("tool call failed",
			"session_id", t.SessionID(),
			"tool", params.Name,
			"error", err)
		t.Notify("notifications/message", map[string]interface{}{
			"level":  "error",
			"logger": params.Name,
			"data":   err.Error(),
		})
		result = TextResult(err.Error())
		result.IsError = true
	}

	t.writeResult(w, id, result)
}

// listedResource is the wire shape of one resources/list entry.
type listedResource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty"`
}

func (t *Transport) handleResourcesList(w ResponseWriter, id json.RawMessage) {
	resources := make([]listedResource, 0, len(t.server.resources))
	for _, r := range t.server.resources {
		resources = append(resources, listedResource{
			URI:         r.URI,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MIMEType,
		})
	}
	t.writeResult(w, id, map[string]interface{}{"resources": resources})
}

type resourceContents struct {
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

func (t *Transport) handleResourcesRead(msg *mcp.Message, w ResponseWriter) {
	id := msg.RawID()

	var params struct {
		URI string `json:"uri"`
	}
	req := msg.Request()
	if req.Params == nil || json.Unmarshal(req.Params, &params) != nil || params.URI == "" {
		t.writeError(w, id, mcp.CodeInvalidParams, "resources/read requires a uri")
		return
	}

	res, ok := t.server.resource(params.URI)
	if !ok {
		t.writeError(w, id, mcp.CodeInvalidParams, "Unknown resource: "+params.URI)
		return
	}

	t.writeResult(w, id, map[string]interface{}{
		"contents": []resourceContents{{
			URI:      res.URI,
			MIMEType: res.MIMEType,
			Text:     string(res.Data),
		}},
	})
}

// Notify queues a server-initiated message for the session's SSE stream.
// When the buffer is full or the transport is closed the message is
// dropped; notifications are advisory.
func (t *Transport) Notify(method string, params interface{}) {
	raw, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	select {
	case t.notify <- raw:
	default:
		t.logger.Debug("notification dropped, buffer full",
			"session_id", t.sessionID,
			"method", method)
	}
}

func (t *Transport) writeResult(w ResponseWriter, id json.RawMessage, result interface{}) {
	payload, err := mcp.NewResultResponse(id, result)
	if err != nil {
		t.writeError(w, id, mcp.CodeInternalError, "Internal error")
		return
	}
	w.SetHeader("Content-Type", "application/json")
	if _, err := w.Write(payload); err != nil {
		t.logger.Warn("write response", "error", err)
		return
	}
	if err := w.Finalize(nil); err != nil {
		t.logger.Warn("finalize response", "error", err)
	}
}

func (t *Transport) writeError(w ResponseWriter, id json.RawMessage, code int, message string) {
	w.SetHeader("Content-Type", "application/json")
	if err := w.Finalize(mcp.NewErrorResponse(id, code, message)); err != nil {
		t.logger.Warn("finalize error response", "error", err)
	}
}
