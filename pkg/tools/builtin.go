package tools

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/kagent-dev/toolchat/pkg/errors"
)

// TimeResult is the result of get_time.
type TimeResult struct {
	ISO   string `json:"iso"`
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

const (
	isoLayout   = "2006-01-02T15:04:05.000Z"
	localLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"
)

// GetTimeTool returns the current server time.
type GetTimeTool struct {
	BaseTool
	now func() time.Time
}

// NewGetTimeTool creates a new GetTimeTool
func NewGetTimeTool() *GetTimeTool {
	return &GetTimeTool{
		BaseTool: NewBaseTool("get_time", "Get the current server time"),
		now:      time.Now,
	}
}

func (t *GetTimeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	now := t.now()
	return TimeResult{
		ISO:   now.UTC().Format(isoLayout),
		UTC:   now.UTC().Format(http.TimeFormat),
		Local: now.Local().Format(localLayout),
	}, nil
}

// ArithmeticTool applies a binary operation to parameters a and b.
type ArithmeticTool struct {
	BaseTool
	op func(a, b float64) float64
}

func newArithmeticTool(name, description string, op func(a, b float64) float64) *ArithmeticTool {
	return &ArithmeticTool{
		BaseTool: NewBaseTool(name, description,
			Parameter{Name: "a", Type: TypeNumber, Description: "First number"},
			Parameter{Name: "b", Type: TypeNumber, Description: "Second number"},
		),
		op: op,
	}
}

// NewAddTool creates the add tool
func NewAddTool() *ArithmeticTool {
	return newArithmeticTool("add", "Add two numbers", func(a, b float64) float64 { return a + b })
}

// NewMultiplyTool creates the multiply tool
func NewMultiplyTool() *ArithmeticTool {
	return newArithmeticTool("multiply", "Multiply two numbers", func(a, b float64) float64 { return a * b })
}

func (t *ArithmeticTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	a, okA := toFloat(args["a"])
	b, okB := toFloat(args["b"])
	if !okA || !okB {
		return nil, apperrors.New(apperrors.ErrCodeInvalidArguments, "Arguments must be numbers", nil).
			WithDetail("tool", t.Name())
	}
	return t.op(a, b), nil
}

// Builtins returns the in-process tools in registration order.
func Builtins() []Tool {
	return []Tool{
		NewGetTimeTool(),
		NewAddTool(),
		NewMultiplyTool(),
	}
}
