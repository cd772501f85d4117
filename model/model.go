package model

import (
	"context"
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by flows.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// HasTool reports whether a tool with the given name is already declared.
func (r *Request) HasTool(name string) bool {
	for _, t := range r.Tools {
		if t.Function.Name == name {
			return true
		}
	}

	return false
}

// LastUserText returns the text of the last user-role content.
func (r *Request) LastUserText() string {
	for i := len(r.Contents) - 1; i >= 0; i-- {
		if r.Contents[i].Role == core.RoleUser {
			if t := r.Contents[i].Text(); t != "" {
				return t
			}
		}
	}

	return ""
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// NewTextResponse builds a final assistant text response.
func NewTextResponse(text string) Response {
	return Response{
		Content:      core.NewTextContent(core.RoleAssistant, text),
		FinishReason: "stop",
	}
}

// NewToolCallResponse builds a final assistant response requesting tool calls.
func NewToolCallResponse(calls ...core.FunctionCall) Response {
	parts := make([]core.Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}

	return Response{
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: "tool_calls",
	}
}

// Text returns the concatenated text parts of the response.
func (r Response) Text() string { return r.Content.Text() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "gemini", "openai", "anthropic", "ollama", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by flows & agents to drive generation.
//
// Generate streams zero or more partial responses followed by one final
// response on the first channel. A failure is delivered on the error channel
// before both channels are closed.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Resolver maps a model identifier such as "gemini-2.5-flash" to a Model.
type Resolver func(id string) (Model, error)

// StaticResolver resolves identifiers from a fixed map. An entry under "*"
// serves every identifier not listed explicitly.
func StaticResolver(models map[string]Model) Resolver {
	return func(id string) (Model, error) {
		if m, ok := models[id]; ok {
			return m, nil
		}

		if m, ok := models["*"]; ok {
			return m, nil
		}

		return nil, fmt.Errorf("no model registered for %q", id)
	}
}

// Collect drains a Generate call and returns the final response.
func Collect(ctx context.Context, m Model, req Request) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final Response

	for resp := range respCh {
		if !resp.Partial {
			final = resp
		}
	}

	if err, ok := <-errCh; ok && err != nil {
		return Response{}, err
	}

	return final, nil
}
