package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

func attr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}

	return attribute.Value{}
}

func TestCallbacks_SpanTree(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: "ping"}),
		model.NewTextResponse("pong"),
	)

	ping := tool.NewFunctionTool("ping", "Answers pong.", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return "pong", nil
	})

	bot := agent.NewModelAgent("bot", llm, func(o *agent.ModelAgentOptions) {
		o.Tools = []tool.Tool{ping}
		o.Callbacks = Callbacks(tp.Tracer("test"))
	})

	res := testutil.RunAgent(t, bot, "ping?")
	require.NoError(t, res.Err)

	ended := sr.Ended()
	require.Len(t, ended, 4)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = append(byName[s.Name()], s)
	}

	require.Len(t, byName[SpanAgentRun], 1)
	require.Len(t, byName[SpanModelCall], 2)
	require.Len(t, byName[SpanToolCall], 1)

	root := byName[SpanAgentRun][0]
	assert.Equal(t, "bot", attr(root, AttrAgentName).AsString())
	assert.Equal(t, "test-session", attr(root, AttrSessionID).AsString())

	for _, s := range append(byName[SpanModelCall], byName[SpanToolCall]...) {
		assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID(), s.Name())
	}

	assert.Equal(t, "ping", attr(byName[SpanToolCall][0], AttrToolName).AsString())
	assert.Equal(t, "stop", attr(byName[SpanModelCall][1], AttrFinishReason).AsString())
}

func TestNewStdoutProvider(t *testing.T) {
	var buf bytes.Buffer

	tp, err := NewStdoutProvider(&buf, "adkpatterns-test")
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "unit")
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name": "unit"`)
	assert.Contains(t, buf.String(), "adkpatterns-test")
}
