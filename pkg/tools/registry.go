package tools

import (
	"fmt"
	"sync"

	"github.com/kagent-dev/toolchat/pkg/config"
	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
	"github.com/kagent-dev/toolchat/pkg/llm"
)

// Registry is the ordered set of invocable tools. It is populated at startup
// and only read afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools in order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool, len(tools)),
	}
	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistryFromConfig registers the built-in tools followed by every tool
// declared in the configured catalog.
func NewRegistryFromConfig(cfg config.ToolsConfig) (*Registry, error) {
	registered := Builtins()

	if cfg.Catalog != "" {
		catalog, err := config.LoadCatalog(cfg.Catalog)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeConfiguration, "invalid tool catalog", err)
		}
		for _, toolCfg := range catalog.Tools {
			registered = append(registered, NewCommandTool(toolCfg, cfg.ExecutionTimeout))
		}
	}

	return NewRegistry(registered...)
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Resolve retrieves a tool by name
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, apperrors.New(apperrors.ErrCodeNotFound, fmt.Sprintf("tool %s not found", name), nil)
	}
	return tool, nil
}

// List returns all tools in registration order
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Declarations builds the model-facing schema for every tool.
func (r *Registry) Declarations() []llm.FunctionDeclaration {
	tools := r.List()
	decls := make([]llm.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, Declaration(tool))
	}
	return decls
}

// Declaration builds the model-facing schema for one tool.
func Declaration(tool Tool) llm.FunctionDeclaration {
	params := tool.Parameters()
	names := make([]string, 0, len(params))
	props := make(map[string]llm.PropertySchema, len(params))
	for _, p := range params {
		names = append(names, p.Name)
		props[p.Name] = llm.PropertySchema{Type: p.Type, Description: p.Description}
	}

	return llm.FunctionDeclaration{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  llm.NewParametersSchema(names, props),
	}
}
