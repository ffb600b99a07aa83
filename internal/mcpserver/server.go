// Package mcpserver implements the MCP protocol surface: the initialize
// handshake, tool and resource dispatch, and the per-session transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
)

// ProtocolVersion is the MCP protocol revision this server speaks.
const ProtocolVersion = "2025-06-18"

// KanjiAPI is the upstream surface the tools call. The concrete
// implementation is the retrying kanjialive.Client; tests substitute fakes.
type KanjiAPI interface {
	SearchBasic(ctx context.Context, query string) ([]map[string]interface{}, error)
	SearchAdvanced(ctx context.Context, params url.Values) ([]map[string]interface{}, error)
	KanjiDetail(ctx context.Context, character string) (map[string]interface{}, error)
}

// ContentBlock is one entry in a tool result's content array.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the payload of a tools/call response.
type ToolResult struct {
	Content           []ContentBlock `json:"content"`
	StructuredContent interface{}    `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

// TextResult builds a single-block text result.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ToolHandler executes one tool call. Returned errors become isError
// results with the error text as content, so handlers must only return
// caller-safe messages.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolResult, error)

// Tool describes a registered tool.
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolHandler
}

// Resource describes a registered resource with static content.
type Resource struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	Data        []byte
}

// Server holds the tool and resource registries shared by all session
// transports. It is immutable after construction.
type Server struct {
	name         string
	version      string
	instructions string
	api          KanjiAPI
	logger       *slog.Logger

	tools         []Tool
	toolIndex     map[string]int
	resources     []Resource
	resourceIndex map[string]int
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithInstructions sets the instructions string returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// New creates a Server with the Kanji Alive tools and the static reference
// resources registered.
func New(name, version string, api KanjiAPI, opts ...Option) *Server {
	s := &Server{
		name:          name,
		version:       version,
		api:           api,
		logger:        slog.Default(),
		toolIndex:     make(map[string]int),
		resourceIndex: make(map[string]int),
		instructions:  defaultInstructions,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerKanjiTools()
	s.registerStaticResources()
	return s
}

// RegisterTool adds a tool. Not safe to call once transports exist.
func (s *Server) RegisterTool(t Tool) {
	s.toolIndex[t.Name] = len(s.tools)
	s.tools = append(s.tools, t)
}

// RegisterResource adds a resource. Not safe to call once transports exist.
func (s *Server) RegisterResource(r Resource) {
	s.resourceIndex[r.URI] = len(s.resources)
	s.resources = append(s.resources, r)
}

func (s *Server) tool(name string) (*Tool, bool) {
	i, ok := s.toolIndex[name]
	if !ok {
		return nil, false
	}
	return &s.tools[i], true
}

func (s *Server) resource(uri string) (*Resource, bool) {
	i, ok := s.resourceIndex[uri]
	if !ok {
		return nil, false
	}
	return &s.resources[i], true
}

const defaultInstructions = "Look up Japanese kanji through the Kanji Alive database. " +
	"Use kanjialive_search_basic for simple lookups by English meaning or reading, " +
	"kanjialive_search_advanced for searches by reading, radical, stroke count, grade or study list, " +
	"and kanjialive_get_kanji_details for the full record of a single character " +
	"including stroke order media and example words."
