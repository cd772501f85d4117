package tool

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/util"
)

// TypedFunc receives arguments already decoded into T.
type TypedFunc[T any] func(toolCtx *core.ToolContext, args T) (any, error)

// TypedTool is a Tool whose schema and argument decoding come from a Go
// struct. Field names follow the `json` tags; `jsonschema:"required"` marks
// required fields and `jsonschema:"description=..."` documents them.
type TypedTool[T any] struct {
	name        string
	description string
	parameters  map[string]any
	fn          TypedFunc[T]
}

// NewTypedTool reflects T into a JSON schema and returns a tool that decodes
// raw model arguments into T. Decoding is weakly typed so "0.05" satisfies a
// float64 field.
func NewTypedTool[T any](name, description string, fn TypedFunc[T]) (*TypedTool[T], error) {
	var zero T

	schema, err := util.SchemaFor(&zero)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return &TypedTool[T]{
		name:        name,
		description: description,
		parameters:  schema,
		fn:          fn,
	}, nil
}

// Name returns the tool name.
func (t *TypedTool[T]) Name() string { return t.name }

// Description returns the description shown to models.
func (t *TypedTool[T]) Description() string { return t.description }

// Parameters returns the reflected schema.
func (t *TypedTool[T]) Parameters() map[string]any { return t.parameters }

// Call checks required fields, decodes args into T and runs the function.
func (t *TypedTool[T]) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	if missing := util.MissingFields(args, t.parameters); len(missing) > 0 {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: missing required fields: %s", strings.Join(missing, ", ")),
			Code:    CodeValidation,
		}
	}

	decoded, err := Decode[T](args)
	if err != nil {
		toolCtx.LogWarn("tool.call.decode_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeValidation}
	}

	return invoke(toolCtx, t.name, func() (any, error) { return t.fn(toolCtx, decoded) })
}

// Decode converts a loosely typed argument map into T using json tags.
func Decode[T any](args map[string]any) (T, error) {
	var out T

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}

	if err := dec.Decode(args); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}

	return out, nil
}
