package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// EncodeMessage serializes a JSON-RPC message to its wire format.
// This delegates to the MCP SDK's jsonrpc package.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeMessage deserializes JSON-RPC wire format data into a Message.
// It returns either a *jsonrpc.Request or *jsonrpc.Response based on the message content.
// This delegates to the MCP SDK's jsonrpc package.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	return jsonrpc.DecodeMessage(data)
}

// WrapMessage decodes raw JSON-RPC bytes and wraps them in a Message struct
// with the current timestamp.
func WrapMessage(raw []byte) (*Message, error) {
	decoded, err := jsonrpc.DecodeMessage(raw)
	if err != nil {
		return nil, err
	}

	return &Message{
		Raw:       raw,
		Decoded:   decoded,
		Timestamp: time.Now(),
	}, nil
}

// errorResponse is the wire shape of a JSON-RPC error response.
// The ID is carried as json.RawMessage because the SDK's jsonrpc.ID type
// doesn't round-trip through interface{} marshalling.
type errorResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   errorDetail     `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// resultResponse is the wire shape of a successful JSON-RPC response.
type resultResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
}

// NewErrorResponse builds a serialized JSON-RPC error response for the given
// raw request ID. A nil ID is encoded as JSON null, which covers parse
// failures where the request ID could not be recovered.
func NewErrorResponse(id json.RawMessage, code int, message string) []byte {
	if id == nil {
		id = json.RawMessage("null")
	}
	resp := errorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   errorDetail{Code: code, Message: message},
	}
	data, err := json.Marshal(resp)
	if err != nil {
		// Unreachable with well-formed raw IDs; fall back rather than panic.
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`)
	}
	return data
}

// NewResultResponse builds a serialized JSON-RPC success response for the
// given raw request ID. The result value is marshalled to JSON.
func NewResultResponse(id json.RawMessage, result interface{}) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	if id == nil {
		id = json.RawMessage("null")
	}
	resp := resultResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  raw,
	}
	return json.Marshal(resp)
}
