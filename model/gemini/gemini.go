// Package gemini implements model.Model on top of the Google GenAI SDK.
// It is the default backend of the tutorials (gemini-2.5-flash).
package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

// DefaultModel is used when Options.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Options configures the Gemini adapter.
type Options struct {
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     *float32
	MaxOutputTokens int32
}

// Model wraps a genai client. The client is created lazily on first use
// because construction needs a context.
type Model struct {
	opts Options

	mu     sync.Mutex
	client *genai.Client
}

// NewModel creates a Gemini model. Without an explicit APIKey the SDK reads
// GOOGLE_API_KEY / GEMINI_API_KEY.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{Model: DefaultModel}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{opts: opts}
}

// NewModelFromClient wraps an existing client.
func NewModelFromClient(client *genai.Client, optFns ...func(o *Options)) *Model {
	m := NewModel(optFns...)
	m.client = client

	return m
}

func (m *Model) getClient(ctx context.Context) (*genai.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  m.opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if m.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: m.opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	m.client = client

	return client, nil
}

// Generate implements model.Model.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := m.getClient(ctx)
		if err != nil {
			errCh <- err
			return
		}

		contents := convertContents(req.Contents)
		config := m.buildConfig(req)

		if !req.Stream {
			resp, err := client.Models.GenerateContent(ctx, m.opts.Model, contents, config)
			if err != nil {
				errCh <- fmt.Errorf("gemini api error: %w", err)
				return
			}

			var acc accumulator
			acc.add(resp)
			out <- acc.final()

			return
		}

		var acc accumulator

		for resp, err := range client.Models.GenerateContentStream(ctx, m.opts.Model, contents, config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}

			if delta := acc.add(resp); delta != "" {
				out <- model.Response{
					ID:      acc.id,
					Partial: true,
					Content: core.NewTextContent(core.RoleAssistant, delta),
				}
			}
		}

		out <- acc.final()
	}()

	return out, errCh
}

func (m *Model) buildConfig(req model.Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     m.opts.Temperature,
		MaxOutputTokens: m.opts.MaxOutputTokens,
	}

	var system []string
	if req.Instructions != "" {
		system = append(system, req.Instructions)
	}

	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			system = append(system, c.Text())
		}
	}

	if len(system) > 0 {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
		}
	}

	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: convertTools(req.Tools)}}
	}

	return config
}

// accumulator folds streamed chunks into one final response.
type accumulator struct {
	id     string
	text   strings.Builder
	calls  []core.FunctionCall
	finish string
	usage  *model.TokenUsage
}

// add records a chunk and returns its text delta.
func (a *accumulator) add(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	if resp.ResponseID != "" {
		a.id = resp.ResponseID
	}

	if u := resp.UsageMetadata; u != nil {
		a.usage = &model.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	cand := resp.Candidates[0]
	if cand.FinishReason != "" {
		a.finish = string(cand.FinishReason)
	}

	var delta strings.Builder

	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				id = "call_" + uuid.NewString()
			}

			a.calls = append(a.calls, core.FunctionCall{
				ID:        id,
				Name:      p.FunctionCall.Name,
				Arguments: model.EncodeArguments(p.FunctionCall.Args),
			})
		case p.Text != "" && !p.Thought:
			delta.WriteString(p.Text)
		}
	}

	a.text.WriteString(delta.String())

	return delta.String()
}

func (a *accumulator) final() model.Response {
	parts := make([]core.Part, 0, len(a.calls)+1)
	if a.text.Len() > 0 {
		parts = append(parts, core.TextPart{Text: a.text.String()})
	}

	for _, c := range a.calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: c})
	}

	return model.Response{
		ID:           a.id,
		Content:      core.Content{Role: core.RoleAssistant, Parts: parts},
		FinishReason: finishReason(a.finish, len(a.calls) > 0),
		Usage:        a.usage,
	}
}

func finishReason(reason string, hasCalls bool) string {
	if hasCalls {
		return "tool_calls"
	}

	switch genai.FinishReason(reason) {
	case "", genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return strings.ToLower(reason)
	}
}

// convertContents maps normalized contents to genai contents. Gemini calls
// the assistant role "model" and expects function responses in user turns.
func convertContents(contents []core.Content) []*genai.Content {
	var out []*genai.Content

	for _, c := range contents {
		var role string

		switch c.Role {
		case core.RoleSystem:
			continue
		case core.RoleAssistant:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		var parts []*genai.Part

		for _, p := range c.Parts {
			switch part := p.(type) {
			case core.TextPart:
				if part.Text != "" {
					parts = append(parts, &genai.Part{Text: part.Text})
				}
			case core.FunctionCallPart:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   part.FunctionCall.ID,
					Name: part.FunctionCall.Name,
					Args: model.DecodeArguments(part.FunctionCall.Arguments),
				}})
			case core.FunctionResponsePart:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionResponse.ID,
					Name:     part.FunctionResponse.Name,
					Response: model.FunctionResponseMap(part.FunctionResponse),
				}})
			}
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Parts = append(out[n-1].Parts, parts...)
			continue
		}

		out = append(out, &genai.Content{Role: role, Parts: parts})
	}

	return out
}

func convertTools(defs []model.ToolDefinition) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(defs))

	for i, d := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        d.Function.Name,
			Description: d.Function.Description,
		}

		if props, ok := d.Function.Parameters["properties"].(map[string]any); ok && len(props) > 0 {
			decl.Parameters = convertSchema(d.Function.Parameters)
		}

		decls[i] = decl
	}

	return decls
}

// convertSchema translates a JSON schema map into a genai.Schema.
func convertSchema(s map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	if desc, ok := s["description"].(string); ok {
		schema.Description = desc
	}

	switch typeName(s["type"]) {
	case "string":
		schema.Type = genai.TypeString
	case "number":
		schema.Type = genai.TypeNumber
	case "integer":
		schema.Type = genai.TypeInteger
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "array":
		schema.Type = genai.TypeArray
		if items, ok := s["items"].(map[string]any); ok {
			schema.Items = convertSchema(items)
		}
	case "object":
		schema.Type = genai.TypeObject
		if props, ok := s["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				if child, ok := raw.(map[string]any); ok {
					schema.Properties[name] = convertSchema(child)
				}
			}
		}

		schema.Required = model.RequiredFields(s)
	default:
		schema.Type = genai.TypeString
	}

	switch enum := s["enum"].(type) {
	case []string:
		schema.Enum = append(schema.Enum, enum...)
	case []any:
		for _, e := range enum {
			schema.Enum = append(schema.Enum, fmt.Sprint(e))
		}
	}

	return schema
}

// typeName accepts "type": "x" as well as "type": ["x", "null"].
func typeName(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	case []string:
		for _, s := range t {
			if s != "null" {
				return s
			}
		}
	}

	return ""
}

// Info returns metadata describing this Gemini model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "gemini",
		SupportsTools: true,
	}
}
