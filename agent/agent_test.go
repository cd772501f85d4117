package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
)

// funcAgent runs a function as its body.
type funcAgent struct {
	BaseAgent
	fn func(*core.RunContext) error
}

func newFuncAgent(name string, fn func(*core.RunContext) error) *funcAgent {
	a := &funcAgent{BaseAgent: newBaseAgent(name, "func"), fn: fn}
	a.init(a)

	return a
}

func (a *funcAgent) Run(runCtx *core.RunContext) error { return a.Execute(runCtx, a.fn) }

// say returns a body that emits text as the agent's reply.
func say(text string) func(*core.RunContext) error {
	return func(rc *core.RunContext) error {
		return rc.EmitAndWait(core.NewMessageEvent(rc.RunID, rc.GetAgentName(), text))
	}
}

func TestBaseAgent_Hierarchy(t *testing.T) {
	leaf := newFuncAgent("leaf", say("x"))
	mid := NewSequentialAgent("mid", leaf)
	root := NewSequentialAgent("root", mid)

	assert.Same(t, mid, leaf.Parent())
	assert.Same(t, root, mid.Parent())
	assert.Nil(t, root.Parent())

	assert.Same(t, leaf, root.FindAgent("leaf"))
	assert.Same(t, root, root.FindAgent("root"))
	assert.Nil(t, root.FindAgent("missing"))
	assert.Same(t, root, leaf.Root())

	assert.Panics(t, func() { NewSequentialAgent("other", leaf) })
}

func TestBaseAgent_SetSubAgentsDetachesOldChildren(t *testing.T) {
	a := newFuncAgent("a", say("a"))
	b := newFuncAgent("b", say("b"))
	parent := NewSequentialAgent("p", a)

	require.NoError(t, parent.SetSubAgents(b))
	assert.Nil(t, a.Parent())
	assert.Same(t, parent, b.Parent())
	assert.Len(t, parent.SubAgents(), 1)
}

func TestBaseAgent_StartStopIsReferenceCounted(t *testing.T) {
	a := newFuncAgent("a", say("a"))

	require.NoError(t, a.Start(nil))
	require.NoError(t, a.Start(nil))
	require.NoError(t, a.Stop(nil))
	assert.True(t, a.Running())
	require.NoError(t, a.Stop(nil))
	assert.False(t, a.Running())
	assert.ErrorIs(t, a.Stop(nil), ErrNotRunning)
}

func TestBaseAgent_BeforeAgentShortCircuit(t *testing.T) {
	llm := model.NewScriptedModel("m", model.NewTextResponse("from model"))
	a := NewModelAgent("guarded", llm, func(o *ModelAgentOptions) {
		o.Callbacks = callback.Set{BeforeAgent: []callback.BeforeAgent{func(cb *core.CallbackContext) (*core.Content, error) {
			cb.SetState("checked", true)
			c := core.NewTextContent(core.RoleAssistant, "handled by callback")
			return &c, nil
		}}}
	})

	res := testutil.RunAgent(t, a, "hi")
	require.NoError(t, res.Err)

	assert.Equal(t, "handled by callback", res.FinalText())
	assert.Equal(t, true, res.State("checked"))
	assert.Equal(t, 0, llm.Calls())
}

func TestBaseAgent_CallbacksStageStateAndAppendContent(t *testing.T) {
	a := newFuncAgent("worker", say("body"))
	a.UseCallbacks(callback.Set{
		BeforeAgent: []callback.BeforeAgent{func(cb *core.CallbackContext) (*core.Content, error) {
			cb.IncrementState("user:request_count", 1)
			return nil, nil
		}},
		AfterAgent: []callback.AfterAgent{func(*core.CallbackContext) (*core.Content, error) {
			c := core.NewTextContent(core.RoleAssistant, "footer")
			return &c, nil
		}},
	})

	res := testutil.RunAgent(t, a, "go", testutil.WithState(map[string]any{"user:request_count": 2}))
	require.NoError(t, res.Err)

	assert.Equal(t, 3, core.IntState(res.State("user:request_count")))

	texts := []string{}
	for _, ev := range res.Events[1:] {
		texts = append(texts, ev.Text())
	}

	assert.Equal(t, []string{"", "body", "footer"}, texts)
}

func TestBaseAgent_BodyErrorIsReturned(t *testing.T) {
	boom := errors.New("boom")
	a := newFuncAgent("broken", func(*core.RunContext) error { return boom })

	res := testutil.RunAgent(t, a, "go")
	assert.ErrorIs(t, res.Err, boom)
}
