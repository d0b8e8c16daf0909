package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// Executor validates arguments and dispatches to registered tools.
type Executor struct {
	registry *Registry
	log      logr.Logger
}

// NewExecutor creates a new Executor
func NewExecutor(registry *Registry, log logr.Logger) *Executor {
	return &Executor{
		registry: registry,
		log:      log.WithName("executor"),
	}
}

// Execute runs the named tool. Unknown names fail with UNKNOWN_TOOL, missing
// or mistyped arguments with INVALID_ARGUMENTS. Values are never coerced.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	tool, err := e.registry.Resolve(name)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeUnknownTool, fmt.Sprintf("Unknown function: %s", name), err)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := ValidateArguments(tool.Parameters(), args); err != nil {
		return nil, err
	}

	e.log.V(1).Info("Executing tool", "tool", name)
	result, err := tool.Execute(ctx, args)
	if err != nil {
		if apperrors.CodeOf(err) == "" {
			err = apperrors.New(apperrors.ErrCodeExecutionFailed, fmt.Sprintf("tool %s failed", name), err)
		}
		return nil, err
	}
	return result, nil
}

// ValidateArguments checks that every declared parameter is present and has
// the declared type. Undeclared extra arguments are allowed.
func ValidateArguments(params []Parameter, args map[string]any) error {
	for _, param := range params {
		value, ok := args[param.Name]
		if !ok || value == nil {
			return apperrors.New(apperrors.ErrCodeInvalidArguments,
				fmt.Sprintf("missing required argument %q", param.Name), nil).
				WithDetail("parameter", param.Name)
		}
		if !matchesType(param.Type, value) {
			return apperrors.New(apperrors.ErrCodeInvalidArguments,
				fmt.Sprintf("argument %q must be of type %s, got %T", param.Name, param.Type, value), nil).
				WithDetail("parameter", param.Name).
				WithDetail("expected", param.Type)
		}
	}
	return nil
}

func matchesType(typ string, value any) bool {
	switch typ {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeInteger:
		f, ok := toFloat(value)
		return ok && f == math.Trunc(f)
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		_, ok := value.(map[string]any)
		return ok
	case TypeArray:
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}

// toFloat accepts JSON-decoded numbers and native Go numerics. Strings are
// rejected even when they hold digits.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
