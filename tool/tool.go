// Package tool implements the function calling surface agents expose to
// models: schema described, argument validated capabilities that run with a
// core.ToolContext.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/util"
)

// ErrToolNotFound is returned when a model calls a tool the agent does not
// carry.
var ErrToolNotFound = errors.New("tool not found")

// Tool is a capability an agent offers to its model.
//
// Parameters returns a JSON schema object that is sent to the provider as
// the function declaration. Call receives the decoded arguments; whatever it
// returns must be JSON serializable because it travels back to the model as
// a function response.
//
// Implementations must be safe for concurrent use: the function executor may
// run several calls of the same tool at once.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Find returns the tool named name from tools.
func Find(tools []Tool, name string) (Tool, error) {
	for _, t := range tools {
		if t.Name() == name {
			return t, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// Registry maps tool names to tools. Configuration files refer to tools by
// name and resolve them here.
type Registry map[string]Tool

// NewRegistry indexes tools by name.
func NewRegistry(tools ...Tool) Registry {
	r := make(Registry, len(tools))
	for _, t := range tools {
		r[t.Name()] = t
	}

	return r
}

// Resolve looks up every name and fails on the first unknown one.
func (r Registry) Resolve(names ...string) ([]Tool, error) {
	out := make([]Tool, 0, len(names))

	for _, n := range names {
		t, ok := r[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, n)
		}

		out = append(out, t)
	}

	return out, nil
}
