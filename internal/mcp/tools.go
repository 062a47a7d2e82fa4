package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolExecute   = "execute"
	ToolInterrupt = "interrupt"
	ToolReset     = "reset"
)

func (s *Server) registerKernelTools() error {
	executeSchema := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"code": {
				Type:        "string",
				Description: "k source code to evaluate",
			},
			"silent": {
				Type:        "boolean",
				Description: "suppress streamed output",
			},
		},
		Required: []string{"code"},
	}

	tools := []struct {
		name        string
		description string
		schema      *jsonschema.Schema
		handler     mcp.ToolHandler
	}{
		{ToolExecute, "Evaluate k code in the running session and return its output.", executeSchema, s.handleExecute},
		{ToolInterrupt, "Interrupt the command running in the k session.", emptySchema(), s.handleInterrupt},
		{ToolReset, "Restart the k session, discarding all state.", emptySchema(), s.handleReset},
	}

	for _, t := range tools {
		if err := s.AddTool(t.name, t.description, t.schema, t.handler); err != nil {
			return err
		}
	}

	return nil
}

func emptySchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (s *Server) handleExecute(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := ParseArguments(req)
	if err != nil {
		return nil, err
	}

	code, ok := args["code"].(string)
	if !ok {
		return ErrorResult("code must be a string"), nil
	}

	silent, _ := args["silent"].(bool)

	s.log.Debug("Execute tool called", "silent", silent)

	out, err := s.exec.Execute(ctx, code, silent)
	if err != nil {
		return ErrorResult(fmt.Sprintf("k error: %v", err)), nil
	}

	return TextResult(out), nil
}

func (s *Server) handleInterrupt(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("Interrupt tool called")

	out, err := s.exec.Interrupt(ctx)
	if err != nil {
		return ErrorResult(fmt.Sprintf("interrupt failed: %v", err)), nil
	}

	return TextResult(out), nil
}

func (s *Server) handleReset(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("Reset tool called")
	s.exec.Reset()

	return TextResult("session reset"), nil
}
