package engine

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

func TestEngine_RegisterAndInvoke(t *testing.T) {
	e := New()

	greeter := agent.NewModelAgent("greeter", model.NewScriptedModel("m", model.NewTextResponse("Hello!")),
		func(o *agent.ModelAgentOptions) { o.OutputKey = "greeting" })
	e.Register(greeter)
	e.Register(agent.NewModelAgent("another", model.NewScriptedModel("m")))

	names := []string{}
	for _, a := range e.Agents() {
		names = append(names, a.Name())
	}

	assert.Equal(t, []string{"another", "greeter"}, names)

	runID, events, err := e.InvokeSync(context.Background(), "s1", "greeter", core.NewTextContent(core.RoleUser, "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, "Hello!", core.FinalText(events))

	sess, err := e.Session("s1")
	require.NoError(t, err)

	v, _ := sess.GetState("greeting")
	assert.Equal(t, "Hello!", v)
}

func TestEngine_UnknownAgent(t *testing.T) {
	_, _, _, err := New().Invoke(context.Background(), "s", "nobody", core.NewTextContent(core.RoleUser, "x"))
	assert.ErrorIs(t, err, ErrAgentNotFound)

	assert.Error(t, New().Cancel("missing-run"))
}

func TestEngine_CallbacksAttachToWholeTree(t *testing.T) {
	var modelCalls int32

	e := New(func(o *Options) {
		o.Callbacks = callback.Set{BeforeModel: []callback.BeforeModel{
			func(*core.CallbackContext, *model.Request) (*model.Response, error) {
				atomic.AddInt32(&modelCalls, 1)
				return nil, nil
			},
		}}
	})

	first := agent.NewModelAgent("first", model.NewScriptedModel("a", model.NewTextResponse("one")))
	second := agent.NewModelAgent("second", model.NewScriptedModel("b", model.NewTextResponse("two")))
	e.Register(agent.NewSequentialAgent("pipeline", first, second))

	_, events, err := e.InvokeSync(context.Background(), "s", "pipeline", core.NewTextContent(core.RoleUser, "go"))
	require.NoError(t, err)
	assert.Equal(t, "two", core.FinalText(events))
	assert.EqualValues(t, 2, modelCalls)
}

func TestEngine_SessionsAreShared(t *testing.T) {
	e := New()
	e.Register(agent.NewModelAgent("writer", model.NewScriptedModel("w", model.NewTextResponse("draft")),
		func(o *agent.ModelAgentOptions) { o.OutputKey = "draft" }))

	readerLLM := model.NewScriptedModel("r", model.NewTextResponse("ok"))
	e.Register(agent.NewModelAgent("reader", readerLLM, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText("Read: {draft}")
	}))

	ctx := context.Background()

	_, _, err := e.InvokeSync(ctx, "shared", "writer", core.NewTextContent(core.RoleUser, "write"))
	require.NoError(t, err)

	_, _, err = e.InvokeSync(ctx, "shared", "reader", core.NewTextContent(core.RoleUser, "read"))
	require.NoError(t, err)

	assert.Equal(t, "Read: draft", readerLLM.Requests()[0].Instructions)
}
