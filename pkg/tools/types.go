package tools

import (
	"context"
)

// Tool defines the interface for invocable tools. In-process and
// out-of-process tools are dispatched the same way.
type Tool interface {
	Name() string
	Description() string
	Parameters() []Parameter
	// Execute runs the tool with already validated arguments and returns a
	// JSON-serializable result.
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Parameter describes one tool argument. Every declared parameter is
// required.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Parameter types understood by the executor.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// BaseTool provides common functionality for tools
type BaseTool struct {
	name        string
	description string
	parameters  []Parameter
}

// NewBaseTool creates a new BaseTool
func NewBaseTool(name, description string, parameters ...Parameter) BaseTool {
	return BaseTool{
		name:        name,
		description: description,
		parameters:  parameters,
	}
}

// Name returns the tool name
func (b *BaseTool) Name() string {
	return b.name
}

// Description returns the tool description
func (b *BaseTool) Description() string {
	return b.description
}

// Parameters returns a copy of the declared parameters
func (b *BaseTool) Parameters() []Parameter {
	out := make([]Parameter, len(b.parameters))
	copy(out, b.parameters)
	return out
}
