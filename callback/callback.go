// Package callback defines the lifecycle hooks an agent runs around itself,
// around each model call and around each tool call.
//
// Hooks of one kind run in registration order. The first hook that returns a
// non-nil value wins and short-circuits the rest:
//
//   - BeforeAgent content skips the agent body and becomes its reply
//   - AfterAgent content is emitted after the body
//   - BeforeModel response skips the model call
//   - AfterModel response replaces the model's response
//   - BeforeTool result skips the tool and becomes its result
//   - AfterTool result replaces the tool's result
//
// An error from any hook aborts the surrounding operation.
package callback

import (
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

// Type names a lifecycle point. It is used as a label in logs and metrics.
type Type string

const (
	// BeforeAgentType runs before an agent body.
	BeforeAgentType Type = "before_agent"
	// AfterAgentType runs after an agent body.
	AfterAgentType Type = "after_agent"
	// BeforeModelType runs before each model call.
	BeforeModelType Type = "before_model"
	// AfterModelType runs after each model call.
	AfterModelType Type = "after_model"
	// BeforeToolType runs before each tool call.
	BeforeToolType Type = "before_tool"
	// AfterToolType runs after each tool call.
	AfterToolType Type = "after_tool"
)

// BeforeAgent runs before the agent body.
type BeforeAgent func(cbCtx *core.CallbackContext) (*core.Content, error)

// AfterAgent runs after the agent body.
type AfterAgent func(cbCtx *core.CallbackContext) (*core.Content, error)

// BeforeModel runs before each model call and may modify req in place.
type BeforeModel func(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error)

// AfterModel runs after each model call.
type AfterModel func(cbCtx *core.CallbackContext, resp *model.Response) (*model.Response, error)

// BeforeTool runs before a tool is invoked.
type BeforeTool func(toolCtx *core.ToolContext, name string, args map[string]any) (map[string]any, error)

// AfterTool runs after a tool returned.
type AfterTool func(toolCtx *core.ToolContext, name string, args map[string]any, result any) (any, error)

// Set groups hooks for all lifecycle points. The zero value is ready to use.
type Set struct {
	BeforeAgent []BeforeAgent
	AfterAgent  []AfterAgent
	BeforeModel []BeforeModel
	AfterModel  []AfterModel
	BeforeTool  []BeforeTool
	AfterTool   []AfterTool
}

// Merge returns a new Set with the hooks of s followed by those of others.
func (s Set) Merge(others ...Set) Set {
	out := Set{
		BeforeAgent: append([]BeforeAgent{}, s.BeforeAgent...),
		AfterAgent:  append([]AfterAgent{}, s.AfterAgent...),
		BeforeModel: append([]BeforeModel{}, s.BeforeModel...),
		AfterModel:  append([]AfterModel{}, s.AfterModel...),
		BeforeTool:  append([]BeforeTool{}, s.BeforeTool...),
		AfterTool:   append([]AfterTool{}, s.AfterTool...),
	}

	for _, o := range others {
		out.BeforeAgent = append(out.BeforeAgent, o.BeforeAgent...)
		out.AfterAgent = append(out.AfterAgent, o.AfterAgent...)
		out.BeforeModel = append(out.BeforeModel, o.BeforeModel...)
		out.AfterModel = append(out.AfterModel, o.AfterModel...)
		out.BeforeTool = append(out.BeforeTool, o.BeforeTool...)
		out.AfterTool = append(out.AfterTool, o.AfterTool...)
	}

	return out
}

// IsEmpty reports whether no hook is registered.
func (s Set) IsEmpty() bool {
	return len(s.BeforeAgent)+len(s.AfterAgent)+len(s.BeforeModel)+
		len(s.AfterModel)+len(s.BeforeTool)+len(s.AfterTool) == 0
}

// RunBeforeAgent executes BeforeAgent hooks until one returns content.
func (s Set) RunBeforeAgent(cbCtx *core.CallbackContext) (*core.Content, error) {
	for _, fn := range s.BeforeAgent {
		c, err := fn(cbCtx)
		if err != nil || c != nil {
			return c, err
		}
	}

	return nil, nil
}

// RunAfterAgent executes AfterAgent hooks until one returns content.
func (s Set) RunAfterAgent(cbCtx *core.CallbackContext) (*core.Content, error) {
	for _, fn := range s.AfterAgent {
		c, err := fn(cbCtx)
		if err != nil || c != nil {
			return c, err
		}
	}

	return nil, nil
}

// RunBeforeModel executes BeforeModel hooks until one returns a response.
func (s Set) RunBeforeModel(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error) {
	for _, fn := range s.BeforeModel {
		r, err := fn(cbCtx, req)
		if err != nil || r != nil {
			return r, err
		}
	}

	return nil, nil
}

// RunAfterModel executes AfterModel hooks until one returns a response.
func (s Set) RunAfterModel(cbCtx *core.CallbackContext, resp *model.Response) (*model.Response, error) {
	for _, fn := range s.AfterModel {
		r, err := fn(cbCtx, resp)
		if err != nil || r != nil {
			return r, err
		}
	}

	return nil, nil
}

// RunBeforeTool executes BeforeTool hooks until one returns a result.
func (s Set) RunBeforeTool(toolCtx *core.ToolContext, name string, args map[string]any) (map[string]any, error) {
	for _, fn := range s.BeforeTool {
		r, err := fn(toolCtx, name, args)
		if err != nil || r != nil {
			return r, err
		}
	}

	return nil, nil
}

// RunAfterTool executes AfterTool hooks until one returns a result.
func (s Set) RunAfterTool(toolCtx *core.ToolContext, name string, args map[string]any, result any) (any, error) {
	for _, fn := range s.AfterTool {
		r, err := fn(toolCtx, name, args, result)
		if err != nil || r != nil {
			return r, err
		}
	}

	return nil, nil
}
