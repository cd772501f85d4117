// Package ollama implements model.Model against a local Ollama server.
// Identifiers of the form "ollama/<name>" resolve here through the registry.
package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

// DefaultHost is used when neither Options.Host nor OLLAMA_HOST is set.
const DefaultHost = "http://localhost:11434"

// Options configures the Ollama adapter.
type Options struct {
	Model       string
	Host        string
	Temperature float64
	HTTPClient  *http.Client
}

// Model wraps the Ollama chat API.
type Model struct {
	client *api.Client
	opts   Options
}

// NewModel creates an Ollama model. An unparsable host falls back to
// DefaultHost.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:       "llama3.2",
		Host:        DefaultHost,
		Temperature: 0.7,
		HTTPClient:  http.DefaultClient,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	base, err := url.Parse(opts.Host)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(DefaultHost)
	}

	return &Model{client: api.NewClient(base, opts.HTTPClient), opts: opts}
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		tools, err := convertTools(req.Tools)
		if err != nil {
			errCh <- err
			return
		}

		stream := req.Stream
		chatReq := &api.ChatRequest{
			Model:    m.opts.Model,
			Messages: convertMessages(req),
			Stream:   &stream,
			Tools:    tools,
			Options:  map[string]any{"temperature": m.opts.Temperature},
		}

		var (
			text  strings.Builder
			calls []core.FunctionCall
			last  api.ChatResponse
		)

		err = m.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
			last = resp

			if resp.Message.Content != "" {
				text.WriteString(resp.Message.Content)

				if stream {
					out <- model.Response{
						Partial: true,
						Content: core.NewTextContent(core.RoleAssistant, resp.Message.Content),
					}
				}
			}

			for _, tc := range resp.Message.ToolCalls {
				calls = append(calls, convertToolCall(tc, len(calls)))
			}

			return nil
		})
		if err != nil {
			errCh <- fmt.Errorf("ollama api error: %w", err)
			return
		}

		parts := make([]core.Part, 0, len(calls)+1)
		if text.Len() > 0 {
			parts = append(parts, core.TextPart{Text: text.String()})
		}

		for _, c := range calls {
			parts = append(parts, core.FunctionCallPart{FunctionCall: c})
		}

		out <- model.Response{
			Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
			FinishReason: finishReason(last, len(calls) > 0),
			Usage: &model.TokenUsage{
				PromptTokens:     last.PromptEvalCount,
				CompletionTokens: last.EvalCount,
				TotalTokens:      last.PromptEvalCount + last.EvalCount,
			},
		}
	}()

	return out, errCh
}

func finishReason(resp api.ChatResponse, hasCalls bool) string {
	switch {
	case hasCalls:
		return "tool_calls"
	case resp.DoneReason == "" || resp.DoneReason == "stop":
		return "stop"
	default:
		return resp.DoneReason
	}
}

func convertToolCall(tc api.ToolCall, idx int) core.FunctionCall {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", idx)
	}

	args := "{}"
	if b, err := json.Marshal(tc.Function.Arguments); err == nil && string(b) != "null" {
		args = string(b)
	}

	return core.FunctionCall{ID: id, Name: tc.Function.Name, Arguments: args}
}

// convertMessages maps normalized contents to Ollama chat messages. Tool
// responses become separate "tool" messages.
func convertMessages(req model.Request) []api.Message {
	var out []api.Message

	if req.Instructions != "" {
		out = append(out, api.Message{Role: "system", Content: req.Instructions})
	}

	for _, c := range req.Contents {
		switch c.Role {
		case core.RoleTool:
			for _, p := range c.Parts {
				if fr, ok := p.(core.FunctionResponsePart); ok {
					out = append(out, api.Message{
						Role:       "tool",
						Content:    model.FunctionResponseText(fr.FunctionResponse),
						ToolCallID: fr.FunctionResponse.ID,
					})
				}
			}
		case core.RoleAssistant:
			msg := api.Message{Role: "assistant", Content: c.Text()}

			for _, p := range c.Parts {
				fc, ok := p.(core.FunctionCallPart)
				if !ok {
					continue
				}

				args := api.NewToolCallFunctionArguments()
				for k, v := range model.DecodeArguments(fc.FunctionCall.Arguments) {
					args.Set(k, v)
				}

				msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
					ID:       fc.FunctionCall.ID,
					Function: api.ToolCallFunction{Name: fc.FunctionCall.Name, Arguments: args},
				})
			}

			out = append(out, msg)
		case core.RoleSystem:
			out = append(out, api.Message{Role: "system", Content: c.Text()})
		default:
			if text := c.Text(); text != "" {
				out = append(out, api.Message{Role: "user", Content: text})
			}
		}
	}

	return out
}

// convertTools re-encodes tool definitions into Ollama's wire type. Both use
// the OpenAI function-tool JSON layout.
func convertTools(defs []model.ToolDefinition) (api.Tools, error) {
	if len(defs) == 0 {
		return nil, nil
	}

	wire := make([]model.ToolDefinition, len(defs))
	for i, d := range defs {
		d.Type = "function"
		if d.Function.Parameters == nil {
			d.Function.Parameters = map[string]any{"type": "object", "properties": map[string]any{}}
		}

		wire[i] = d
	}

	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode tools: %w", err)
	}

	var tools api.Tools
	if err := json.Unmarshal(b, &tools); err != nil {
		return nil, fmt.Errorf("ollama: decode tools: %w", err)
	}

	return tools, nil
}

// Info returns metadata describing this Ollama model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "ollama",
		SupportsTools: true,
	}
}
