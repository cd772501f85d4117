package agent

import (
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

func counter(name string, n *int32) *funcAgent {
	return newFuncAgent(name, func(rc *core.RunContext) error {
		atomic.AddInt32(n, 1)
		return say(name)(rc)
	})
}

func TestLoopAgent_MaxIterations(t *testing.T) {
	var a, b int32

	loop := NewLoopAgent("loop", []core.Agent{counter("a", &a), counter("b", &b)}, WithMaxIterations(3))

	res := testutil.RunAgent(t, loop, "go")
	require.NoError(t, res.Err)
	assert.EqualValues(t, 3, a)
	assert.EqualValues(t, 3, b)
	assert.Equal(t, []string{"user", "a", "b", "a", "b", "a", "b"}, res.Authors())
}

func TestLoopAgent_EscalationStopsAfterChild(t *testing.T) {
	var writes int32

	writer := counter("writer", &writes)

	criticLLM := model.NewScriptedModel("critic",
		model.NewTextResponse("Needs more detail."),
		model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: tool.ExitLoopName}),
	)
	critic := NewModelAgent("critic", criticLLM, func(o *ModelAgentOptions) {
		o.Tools = []tool.Tool{tool.NewExitLoopTool()}
	})

	var after int32

	loop := NewLoopAgent("refine", []core.Agent{writer, critic, counter("after", &after)}, WithMaxIterations(5))

	res := testutil.RunAgent(t, loop, "essay")
	require.NoError(t, res.Err)

	assert.EqualValues(t, 2, writes)
	assert.EqualValues(t, 1, after)
	assert.Equal(t, 2, criticLLM.Calls())
	assert.True(t, res.Events[len(res.Events)-1].IsEscalation())
}

func TestLoopAgent_Predicate(t *testing.T) {
	var n int32

	step := newFuncAgent("step", func(rc *core.RunContext) error {
		i := atomic.AddInt32(&n, 1)
		text := "working"
		if i == 2 {
			text = "COMPLETE"
		}
		return say(text)(rc)
	})

	loop := NewLoopAgent("poll", []core.Agent{step}, WithPredicate(func(out string) bool {
		return strings.Contains(out, "COMPLETE")
	}))

	res := testutil.RunAgent(t, loop, "go")
	require.NoError(t, res.Err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, 0, loop.MaxIterations())
}

func TestLoopAgent_ErrorPolicy(t *testing.T) {
	boom := errors.New("boom")

	t.Run("stop on error", func(t *testing.T) {
		var n int32
		failing := newFuncAgent("failing", func(*core.RunContext) error { atomic.AddInt32(&n, 1); return boom })

		res := testutil.RunAgent(t, NewLoopAgent("loop", []core.Agent{failing}, WithMaxIterations(3)), "go")
		require.ErrorIs(t, res.Err, boom)
		assert.ErrorContains(t, res.Err, "iteration 1")
		assert.EqualValues(t, 1, n)
	})

	t.Run("continue", func(t *testing.T) {
		var n int32
		failing := newFuncAgent("failing", func(*core.RunContext) error { atomic.AddInt32(&n, 1); return boom })

		loop := NewLoopAgent("loop", []core.Agent{failing}, WithMaxIterations(3), WithStopOnError(false))

		res := testutil.RunAgent(t, loop, "go")
		require.NoError(t, res.Err)
		assert.EqualValues(t, 3, n)
	})
}
