package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/util"
)

// Func is the signature wrapped by FunctionTool.
type Func func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the declared schema before the function
// runs. Errors come back as *ToolError:
//
//	VALIDATION_ERROR  schema or argument mismatch
//	EXECUTION_ERROR   the function returned a plain error
//
// A *ToolError returned by the function is passed through unchanged.
//
// A FunctionTool holds no mutable state and is safe for concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          Func
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn Func) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct reflects the parameter schema from structType.
func NewFunctionToolFromStruct(name, description string, structType any, fn Func) (*FunctionTool, error) {
	schema, err := util.SchemaFor(structType)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return NewFunctionTool(name, description, schema, fn), nil
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, t.parameters); err != nil {
		toolCtx.LogWarn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	return invoke(toolCtx, t.name, func() (any, error) { return t.fn(toolCtx, args) })
}

// invoke runs fn with the shared logging and error normalisation.
func invoke(toolCtx *core.ToolContext, name string, fn func() (any, error)) (any, error) {
	start := time.Now()

	toolCtx.LogDebug("tool.call.start", "tool", name)

	result, err := fn()
	if err != nil {
		toolCtx.LogError("tool.call.error", "tool", name, "error", err.Error())

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}

		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution}
	}

	toolCtx.LogInfo("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
