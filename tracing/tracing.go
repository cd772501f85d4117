// Package tracing records agent runs as OpenTelemetry spans.
//
// Callbacks opens a span per agent invocation with child spans for every
// model call and tool call:
//
//	agent.run (agent.name=...)
//	├── model.call
//	└── tool.call (tool.name=...)
package tracing

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

// Span names and attribute keys.
const (
	SpanAgentRun  = "agent.run"
	SpanModelCall = "model.call"
	SpanToolCall  = "tool.call"

	AttrAgentName    = "agent.name"
	AttrSessionID    = "session.id"
	AttrRunID        = "run.id"
	AttrBranch       = "agent.branch"
	AttrModelName    = "model.name"
	AttrFinishReason = "model.finish_reason"
	AttrPromptTokens = "model.prompt_tokens"
	AttrOutputTokens = "model.completion_tokens"
	AttrToolName     = "tool.name"
	AttrToolCallID   = "tool.call_id"
)

// NewStdoutProvider returns a tracer provider that writes finished spans to
// w as JSON. Callers must Shutdown it.
func NewStdoutProvider(w io.Writer, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	), nil
}

type openSpan struct {
	ctx  context.Context
	span trace.Span
}

// tracker holds the spans opened by before-hooks until the matching
// after-hook ends them.
type tracker struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]openSpan
}

func (t *tracker) put(key string, s openSpan) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.spans[key] = s
}

func (t *tracker) get(key string) (openSpan, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.spans[key]

	return s, ok
}

func (t *tracker) take(key string) (openSpan, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.spans[key]
	delete(t.spans, key)

	return s, ok
}

func scopeKey(runID, branch, agentName string) string {
	return runID + "/" + branch + "/" + agentName
}

// Callbacks returns hooks that trace agent, model and tool activity with
// tracer. They never short-circuit.
func Callbacks(tracer trace.Tracer) callback.Set {
	t := &tracker{tracer: tracer, spans: map[string]openSpan{}}

	return callback.Set{
		BeforeAgent: []callback.BeforeAgent{t.beforeAgent},
		AfterAgent:  []callback.AfterAgent{t.afterAgent},
		BeforeModel: []callback.BeforeModel{t.beforeModel},
		AfterModel:  []callback.AfterModel{t.afterModel},
		BeforeTool:  []callback.BeforeTool{t.beforeTool},
		AfterTool:   []callback.AfterTool{t.afterTool},
	}
}

func (t *tracker) beforeAgent(cbCtx *core.CallbackContext) (*core.Content, error) {
	ctx, span := t.tracer.Start(cbCtx.Context(), SpanAgentRun, trace.WithAttributes(
		attribute.String(AttrAgentName, cbCtx.AgentName()),
		attribute.String(AttrSessionID, cbCtx.SessionID()),
		attribute.String(AttrRunID, cbCtx.RunID()),
		attribute.String(AttrBranch, cbCtx.Branch()),
	))

	t.put("agent/"+scopeKey(cbCtx.RunID(), cbCtx.Branch(), cbCtx.AgentName()), openSpan{ctx: ctx, span: span})

	return nil, nil
}

func (t *tracker) afterAgent(cbCtx *core.CallbackContext) (*core.Content, error) {
	if s, ok := t.take("agent/" + scopeKey(cbCtx.RunID(), cbCtx.Branch(), cbCtx.AgentName())); ok {
		s.span.SetStatus(codes.Ok, "")
		s.span.End()
	}

	return nil, nil
}

// parent returns the context of the enclosing agent span, or fallback.
func (t *tracker) parent(key string, fallback context.Context) context.Context {
	if s, ok := t.get("agent/" + key); ok {
		return s.ctx
	}

	return fallback
}

func (t *tracker) beforeModel(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error) {
	key := scopeKey(cbCtx.RunID(), cbCtx.Branch(), cbCtx.AgentName())

	ctx, span := t.tracer.Start(t.parent(key, cbCtx.Context()), SpanModelCall, trace.WithAttributes(
		attribute.String(AttrAgentName, cbCtx.AgentName()),
		attribute.Int("model.contents", len(req.Contents)),
		attribute.Int("model.tools", len(req.Tools)),
	))

	t.put("model/"+key, openSpan{ctx: ctx, span: span})

	return nil, nil
}

func (t *tracker) afterModel(cbCtx *core.CallbackContext, resp *model.Response) (*model.Response, error) {
	s, ok := t.take("model/" + scopeKey(cbCtx.RunID(), cbCtx.Branch(), cbCtx.AgentName()))
	if !ok {
		return nil, nil
	}

	s.span.SetAttributes(attribute.String(AttrFinishReason, resp.FinishReason))

	if resp.Usage != nil {
		s.span.SetAttributes(
			attribute.Int(AttrPromptTokens, resp.Usage.PromptTokens),
			attribute.Int(AttrOutputTokens, resp.Usage.CompletionTokens),
		)
	}

	s.span.End()

	return nil, nil
}

func (t *tracker) beforeTool(toolCtx *core.ToolContext, name string, _ map[string]any) (map[string]any, error) {
	rc := toolCtx.RunContext()
	key := scopeKey(toolCtx.RunID(), rc.Branch, toolCtx.AgentName())

	ctx, span := t.tracer.Start(t.parent(key, toolCtx.Context()), SpanToolCall, trace.WithAttributes(
		attribute.String(AttrAgentName, toolCtx.AgentName()),
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, toolCtx.FunctionCallID()),
	))

	t.put("tool/"+toolCtx.FunctionCallID(), openSpan{ctx: ctx, span: span})

	return nil, nil
}

func (t *tracker) afterTool(toolCtx *core.ToolContext, _ string, _ map[string]any, result any) (any, error) {
	s, ok := t.take("tool/" + toolCtx.FunctionCallID())
	if !ok {
		return nil, nil
	}

	if err, isErr := result.(error); isErr {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}

	s.span.End()

	return nil, nil
}
