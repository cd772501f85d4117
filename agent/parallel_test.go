package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
)

// recordingModel answers with a fixed text and records the requests.
type recordingModel struct {
	mu    sync.Mutex
	text  string
	delay time.Duration
	reqs  []model.Request
}

func (m *recordingModel) Info() model.Info { return model.Info{Name: "rec", Provider: "mock"} }

func (m *recordingModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case <-time.After(m.delay):
			respCh <- model.NewTextResponse(m.text)
		}
	}()

	return respCh, errCh
}

func (m *recordingModel) requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]model.Request{}, m.reqs...)
}

func researcher(name, key, text string) (*ModelAgent, *recordingModel) {
	llm := &recordingModel{text: text, delay: 5 * time.Millisecond}

	return NewModelAgent(name, llm, func(o *ModelAgentOptions) { o.OutputKey = key }), llm
}

func TestParallelAgent_FanOutFanIn(t *testing.T) {
	a, aLLM := researcher("renewables", "renewables_result", "solar is cheap")
	b, bLLM := researcher("ev", "ev_result", "batteries improve")
	c, _ := researcher("carbon", "carbon_result", "capture scales")

	mergerLLM := model.NewScriptedModel("merge", model.NewTextResponse("report"))
	merger := NewModelAgent("merger", mergerLLM, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("{renewables_result}|{ev_result}|{carbon_result}")
	})

	root := NewSequentialAgent("pipeline", NewParallelAgent("research", 0, a, b, c), merger)

	res := testutil.RunAgent(t, root, "research")
	require.NoError(t, res.Err)

	assert.Equal(t, "solar is cheap|batteries improve|capture scales", mergerLLM.Requests()[0].Instructions)
	assert.Equal(t, "report", res.FinalText())

	branches := map[string]string{}
	for _, ev := range res.Events {
		if ev.Author != "user" && ev.Author != "merger" && ev.Branch != nil {
			branches[ev.Author] = *ev.Branch
		}
	}

	assert.Equal(t, map[string]string{
		"renewables": "research.renewables",
		"ev":         "research.ev",
		"carbon":     "research.carbon",
	}, branches)

	// Siblings never see each other's output.
	for _, req := range append(aLLM.requests(), bLLM.requests()...) {
		for _, c := range req.Contents {
			assert.NotContains(t, c.Text(), "capture scales")
		}
	}
}

func TestParallelAgent_NoChildren(t *testing.T) {
	res := testutil.RunAgent(t, NewParallelAgent("empty", 0), "x")
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"user"}, res.Authors())
}

func TestParallelAgent_FirstErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")

	slow := newFuncAgent("slow", func(rc *core.RunContext) error {
		select {
		case <-rc.Done():
			return rc.Err()
		case <-time.After(5 * time.Second):
			return errors.New("not cancelled")
		}
	})
	failing := newFuncAgent("failing", func(*core.RunContext) error { return boom })

	res := testutil.RunAgent(t, NewParallelAgent("fan", 0, slow, failing), "x")
	require.ErrorIs(t, res.Err, boom)
	assert.ErrorContains(t, res.Err, "child failing")
}

func TestParallelAgent_FailedSiblingLeavesNoResumeSignal(t *testing.T) {
	emit := make(chan core.Event, 16)
	resume := make(chan struct{}, 1)

	rc := core.NewRunContext(context.Background(), core.RunParams{SessionID: "s1", RunID: "r1"}, emit, resume)

	boom := errors.New("boom")
	sent := make(chan struct{})

	writer := newFuncAgent("writer", say("draft"))
	failing := newFuncAgent("failing", func(*core.RunContext) error {
		<-sent
		return boom
	})

	// Acknowledges like the runner, but only after the failure has had time
	// to cancel the siblings.
	acked := make(chan struct{})

	go func() {
		defer close(acked)

		for ev := range emit {
			if ev.IsPartial() {
				continue
			}

			if ev.Author == "writer" {
				close(sent)
				time.Sleep(50 * time.Millisecond)
			}

			select {
			case resume <- struct{}{}:
			default:
			}
		}
	}()

	err := NewParallelAgent("fan", 0, writer, failing).Run(rc)
	require.ErrorIs(t, err, boom)

	close(emit)
	<-acked

	// The writer's signal was consumed, so the next emit waits for its own.
	assert.Empty(t, resume)
}

func TestParallelAgent_Timeout(t *testing.T) {
	slow, _ := researcher("slow", "k", "late")
	slow.llm.(*recordingModel).delay = time.Second

	res := testutil.RunAgent(t, NewParallelAgent("fan", 20*time.Millisecond, slow), "x")
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, context.DeadlineExceeded) || strings.Contains(res.Err.Error(), "deadline"))
}
