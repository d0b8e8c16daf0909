package llm

import (
	"context"
)

// Gateway is the model-facing half of a chat turn.
type Gateway interface {
	// CheckCredentials fails with a configuration error when no credential is
	// configured. It performs no I/O.
	CheckCredentials() error

	// Converse sends a single user turn together with the tool declarations.
	Converse(ctx context.Context, userText string, tools []FunctionDeclaration) (*Turn, error)

	// ConverseWithToolResult replays the user turn, the proposed call and the
	// tool result. Any further tool proposal in the reply is dropped.
	ConverseWithToolResult(ctx context.Context, userText string, call FunctionCall, result any) (*Turn, error)

	// ModelName returns the name of the model being used
	ModelName() string
}

// Turn is a decoded model reply.
type Turn struct {
	Content      string        `json:"content"`
	ProposedCall *FunctionCall `json:"functionCall,omitempty"`
}

// FunctionCall is a tool invocation proposed by the model, with arguments
// already normalized to a structured mapping.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// FunctionDeclaration advertises one tool to the model.
type FunctionDeclaration struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  ParametersSchema `json:"parameters"`
}

// ParametersSchema is the JSON-Schema-like object describing tool parameters.
// Properties and Required are always emitted, even when empty.
type ParametersSchema struct {
	Type       string                    `json:"type"`
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single parameter.
type PropertySchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// NewParametersSchema builds an object schema in which every property is
// required, in the given order.
func NewParametersSchema(names []string, props map[string]PropertySchema) ParametersSchema {
	schema := ParametersSchema{
		Type:       "object",
		Properties: make(map[string]PropertySchema, len(props)),
		Required:   make([]string, 0, len(names)),
	}
	for _, name := range names {
		prop, ok := props[name]
		if !ok {
			continue
		}
		schema.Properties[name] = prop
		schema.Required = append(schema.Required, name)
	}
	return schema
}
