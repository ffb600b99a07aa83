// Package mcp provides MCP message types and JSON-RPC codec utilities
// for the kanjialive-mcp-server gateway.
package mcp

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// JSON-RPC 2.0 error codes used by the gateway.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message wraps a decoded JSON-RPC message with transport metadata.
// It stores both the raw bytes (for ID extraction and passthrough) and the
// decoded message (for dispatch).
type Message struct {
	// Raw contains the original bytes of the message.
	Raw []byte

	// Decoded contains the parsed JSON-RPC message.
	// The concrete type is either *jsonrpc.Request or *jsonrpc.Response.
	Decoded jsonrpc.Message

	// Timestamp records when the message was received by the gateway.
	Timestamp time.Time

	// ParsedParams contains the parsed params from a JSON-RPC request.
	// Set by ParseParams() for reuse across handlers.
	// Nil if not a request or parsing failed.
	ParsedParams map[string]interface{}
}

// IsRequest returns true if the message is a JSON-RPC request.
func (m *Message) IsRequest() bool {
	if m.Decoded == nil {
		return false
	}
	_, ok := m.Decoded.(*jsonrpc.Request)
	return ok
}

// IsNotification returns true if the message is a request without an ID,
// meaning the sender expects no response.
func (m *Message) IsNotification() bool {
	req := m.Request()
	return req != nil && !req.IsCall()
}

// Method returns the method name if this is a request, empty string otherwise.
func (m *Message) Method() string {
	req := m.Request()
	if req == nil {
		return ""
	}
	return req.Method
}

// Request returns the underlying Request if this is a request message.
// Returns nil if this is not a request.
func (m *Message) Request() *jsonrpc.Request {
	if m.Decoded == nil {
		return nil
	}
	req, _ := m.Decoded.(*jsonrpc.Request)
	return req
}

// ParseParams parses the request params and stores in ParsedParams.
// Safe to call multiple times (no-op if already parsed).
// Returns the parsed params or nil if not a request or parsing fails.
func (m *Message) ParseParams() map[string]interface{} {
	// Already parsed
	if m.ParsedParams != nil {
		return m.ParsedParams
	}

	req := m.Request()
	if req == nil || req.Params == nil {
		return nil
	}

	var params map[string]interface{}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil
	}

	m.ParsedParams = params
	return params
}

// RawID extracts the request ID from the raw message bytes as json.RawMessage.
// This is needed because the SDK's jsonrpc.ID type doesn't marshal correctly
// through interface{}, so we extract the ID directly from the raw JSON.
// Returns nil if no ID is found or if the message could not be parsed.
func (m *Message) RawID() json.RawMessage {
	return ExtractRawID(m.Raw)
}

// ExtractRawID pulls the "id" field out of raw JSON-RPC bytes, preserving
// its original format (number, string, or null).
func ExtractRawID(raw []byte) json.RawMessage {
	if raw == nil {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	return fields["id"]
}
