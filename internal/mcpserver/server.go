// Package mcpserver exposes the tool registry as a Model Context Protocol
// server so external agents can call the same tools directly.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kagent-dev/toolchat/pkg/tools"
)

const (
	ServerName    = "toolchat"
	ServerVersion = "0.1.0"
)

// Executor runs a named tool.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// New builds an MCP server advertising every registered tool.
func New(registry *tools.Registry, executor Executor, log logr.Logger) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	log = log.WithName("mcp")
	for _, tool := range registry.List() {
		s.AddTool(toMCPTool(tool), callHandler(tool.Name(), executor, log))
	}
	return s
}

// ServeStdio serves MCP over stdin/stdout until the input is closed.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func toMCPTool(tool tools.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(tool.Description())}
	for _, p := range tool.Parameters() {
		propOpts := []mcp.PropertyOption{mcp.Required(), mcp.Description(p.Description)}
		switch p.Type {
		case tools.TypeNumber, tools.TypeInteger:
			opts = append(opts, mcp.WithNumber(p.Name, propOpts...))
		case tools.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		case tools.TypeObject:
			opts = append(opts, mcp.WithObject(p.Name, propOpts...))
		case tools.TypeArray:
			opts = append(opts, mcp.WithArray(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}
	return mcp.NewTool(tool.Name(), opts...)
}

// callHandler reports tool failures inside the result so the client model
// can see them.
func callHandler(name string, executor Executor, log logr.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := executor.Execute(ctx, name, req.GetArguments())
		if err != nil {
			log.Info("Tool call failed", "tool", name, "error", err.Error())
			return mcp.NewToolResultError(err.Error()), nil
		}

		text, err := json.Marshal(result)
		if err != nil {
			return mcp.NewToolResultErrorFromErr(fmt.Sprintf("%s returned a result that is not JSON", name), err), nil
		}
		return mcp.NewToolResultStructured(structured(result, text), string(text)), nil
	}
}

// structured returns result as an object, wrapping scalars and arrays as
// {"result": v} since structuredContent must be a JSON object.
func structured(result any, encoded []byte) any {
	if trimmed := bytes.TrimSpace(encoded); len(trimmed) > 0 && trimmed[0] == '{' {
		return result
	}
	return map[string]any{"result": result}
}
