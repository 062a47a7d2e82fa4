package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Executor is the kernel surface exposed as tools.
type Executor interface {
	Execute(ctx context.Context, code string, silent bool) (string, error)
	Interrupt(ctx context.Context) (string, error)
	Reset()
}

// Server holds the kernel tools and serves them over MCP.
type Server struct {
	log     *slog.Logger
	name    string
	version string
	exec    Executor

	mu    sync.RWMutex
	tools map[string]*tool
	order []string
}

// tool holds tool metadata, its resolved input schema, and its handler.
type tool struct {
	tool     *mcp.Tool
	resolved *jsonschema.Resolved
	handler  mcp.ToolHandler
}

// NewServer creates a server exposing exec under the given implementation
// name and version.
func NewServer(log *slog.Logger, exec Executor, name, version string) (*Server, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		log:     log.With("component", "mcp"),
		name:    name,
		version: version,
		exec:    exec,
		tools:   make(map[string]*tool, 3),
	}

	if err := s.registerKernelTools(); err != nil {
		return nil, err
	}

	return s, nil
}

// AddTool registers a tool. The input schema must describe an object.
func (s *Server) AddTool(
	name, description string,
	schema *jsonschema.Schema,
	handler mcp.ToolHandler,
) error {
	if schema == nil || schema.Type != "object" {
		return fmt.Errorf("tool %q: input schema must describe an object", name)
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: resolve input schema: %w", name, err)
	}

	t := NewTool(name, description, schema)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tools[t.Name]; !exists {
		s.order = append(s.order, t.Name)
	}

	s.tools[t.Name] = &tool{tool: t, resolved: resolved, handler: handler}

	return nil
}

// Tools returns the registered tools in registration order.
func (s *Server) Tools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*mcp.Tool, 0, len(s.order))
	for _, name := range s.order {
		tools = append(tools, s.tools[name].tool)
	}

	return tools
}

// CallTool validates input against the tool's schema and runs the tool.
// Failures are reported in the result, not as an error.
func (s *Server) CallTool(ctx context.Context, name string, input map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	t, exists := s.tools[name]
	s.mu.RUnlock()

	if !exists {
		return ErrorResult("Tool not found: " + name), nil
	}

	if input == nil {
		input = map[string]any{}
	}

	if err := t.resolved.Validate(input); err != nil {
		return ErrorResult("Invalid arguments: " + err.Error()), nil
	}

	inputBytes, err := json.Marshal(input)
	if err != nil {
		//nolint:nilerr // Intentionally return nil error - error is encoded in the result
		return ErrorResult("Failed to marshal input: " + err.Error()), nil
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: inputBytes,
		},
	}

	result, err := t.handler(ctx, req)
	if err != nil {
		//nolint:nilerr // Intentionally return nil error - error is encoded in the result
		return ErrorResult("Tool execution failed: " + err.Error()), nil
	}

	return result, nil
}

// MCPServer builds an MCP SDK server with every registered tool.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: s.name, Version: s.version}, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.order {
		t := s.tools[name]
		server.AddTool(t.tool, t.handler)
	}

	return server
}

// Serve runs the MCP server on stdin/stdout until ctx is done or the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("Serving MCP over stdio", "name", s.name, "version", s.version)

	if err := s.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("run mcp server: %w", err)
	}

	return nil
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil {
		return make(map[string]any), nil
	}

	if len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
