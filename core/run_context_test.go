package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContext_EmitEventMergesStagedChanges(t *testing.T) {
	rc, emit := newRunContextForTest()
	rc.SetState("foo", "bar")
	rc.AddArtifact("file1")

	ev := NewMessageEvent("", "Agent1", "hi")
	ev.Actions.StateDelta = map[string]any{"foo": "own"}

	require.NoError(t, rc.EmitEvent(ev))

	got := <-emit
	assert.Equal(t, "run-x", got.InvocationID)
	assert.Equal(t, "own", got.Actions.StateDelta["foo"], "event keys win over staged keys")
	assert.Equal(t, 1, got.Actions.ArtifactDelta["file1"])
	assert.Empty(t, rc.StateDelta)
	assert.Empty(t, rc.Artifacts)

	v, ok := rc.Session.GetState("foo")
	require.True(t, ok)
	assert.Equal(t, "own", v)
}

func TestRunContext_PartialEventsCarryNoActions(t *testing.T) {
	rc, emit := newRunContextForTest()
	rc.SetState("k", 1)

	ev := NewMessageEvent("", "Agent1", "chunk")
	p := true
	ev.Partial = &p

	require.NoError(t, rc.EmitAndWait(ev))

	got := <-emit
	assert.Nil(t, got.Actions.StateDelta)
	assert.Equal(t, 1, rc.StateDelta["k"], "staged delta stays until a final event")
}

func TestRunContext_EmitRequiresChannel(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.Emit = nil

	assert.Error(t, rc.EmitEvent(NewEvent("", "a")))
}

func TestRunContext_EmitHonoursCancellation(t *testing.T) {
	rc, _ := newRunContextForTest()
	unbuffered := make(chan Event)
	rc.Emit = unbuffered

	ctx, cancel := context.WithCancel(context.Background())
	rc.Context = ctx
	cancel()

	err := rc.EmitEvent(NewEvent("", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunContext_CancelledContextNeverSends(t *testing.T) {
	rc, emit := newRunContextForTest()

	ctx, cancel := context.WithCancel(context.Background())
	rc.Context = ctx
	cancel()

	for range 20 {
		require.ErrorIs(t, rc.EmitEvent(NewMessageEvent("", "a", "x")), context.Canceled)
	}

	assert.Empty(t, emit)
}

func TestRunContext_AbandonedWaitDrainsQueuedSignal(t *testing.T) {
	rc, _ := newRunContextForTest()
	resume := make(chan struct{}, 1)
	rc.Resume = resume

	ctx, cancel := context.WithCancel(context.Background())
	rc.Context = ctx
	cancel()

	for range 20 {
		resume <- struct{}{}
		_ = rc.WaitForResume()
		require.Empty(t, resume)
	}
}

func TestRunContext_EmitAndWaitBlocksForResume(t *testing.T) {
	rc, emit := newRunContextForTest()
	resume := make(chan struct{})
	rc.Resume = resume

	done := make(chan error, 1)
	go func() { done <- rc.EmitAndWait(NewMessageEvent("", "Agent1", "x")) }()

	<-emit
	select {
	case <-done:
		t.Fatal("EmitAndWait returned before resume")
	case <-time.After(20 * time.Millisecond):
	}

	resume <- struct{}{}
	require.NoError(t, <-done)
}

func TestRunContext_FlushState(t *testing.T) {
	rc, emit := newRunContextForTest()

	require.NoError(t, rc.FlushState("Agent1"))
	assert.Len(t, emit, 0)

	rc.SetState("user:count", 2)
	require.NoError(t, rc.FlushState("Agent1"))

	got := <-emit
	assert.Equal(t, "Agent1", got.Author)
	assert.Nil(t, got.Content)
	assert.Equal(t, 2, got.Actions.StateDelta["user:count"])
}

func TestRunContext_GetStatePrefersDelta(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.Session.SetState("k", "session")

	v, ok := rc.GetState("k")
	require.True(t, ok)
	assert.Equal(t, "session", v)

	rc.SetState("k", "staged")
	v, _ = rc.GetState("k")
	assert.Equal(t, "staged", v)

	rc.SetState("k", nil)
	_, ok = rc.GetState("k")
	assert.False(t, ok, "a staged nil reads as deleted")
}

func TestRunContext_CommitStateDelta(t *testing.T) {
	rc, _ := newRunContextForTest()
	store := rc.SessionStore.(*mockSessionStore)

	rc.SetState("k1", 123)
	require.NoError(t, rc.CommitStateDelta())

	assert.Equal(t, 123, store.applied[rc.SessionID]["k1"])
	assert.Empty(t, rc.StateDelta)

	v, _ := rc.Session.GetState("k1")
	assert.Equal(t, 123, v)
}

func TestRunContext_CloneIsolation(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.SetState("a", 1)
	rc.AddArtifact("f1")

	clone := rc.Clone()
	assert.Same(t, rc.Session, clone.Session)

	clone.SetState("b", 2)
	_, exists := rc.StateDelta["b"]
	assert.False(t, exists)

	v, _ := clone.GetState("a")
	assert.Equal(t, 1, v)
}

func TestRunContext_WithBranchAndAgent(t *testing.T) {
	rc, _ := newRunContextForTest()

	branched := rc.WithBranch("Root.Child")
	assert.Equal(t, "Root.Child", branched.Branch)
	assert.Empty(t, rc.Branch)

	scoped := rc.WithAgent(AgentInfo{Name: "Other", Type: "llm"})
	assert.Equal(t, "Other", scoped.GetAgentName())
	assert.Equal(t, "Agent1", rc.GetAgentName())
}

func TestRunContext_NewChildContext(t *testing.T) {
	rc, _ := newRunContextForTest()
	rc.Branch = "Root"
	rc.SetState("pending", true)

	emit := make(chan Event, 1)
	child := rc.NewChildContext(emit, nil, "Root.A")

	assert.Equal(t, "Root.A", child.Branch)
	assert.Empty(t, child.StateDelta)
	assert.Same(t, rc.Limiter, child.Limiter)

	require.NoError(t, child.EmitEvent(NewMessageEvent("", "A", "x")))
	got := <-emit
	assert.Equal(t, "Root.A", got.BranchName())
}

func TestRunContext_Stores(t *testing.T) {
	rc, _ := newRunContextForTest()

	require.NoError(t, rc.SaveArtifact("plan.json", []byte("{}")))
	assert.Equal(t, []string{"plan.json"}, rc.Artifacts)

	data, err := rc.GetArtifact("plan.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, rc.StoreMemory("likes tea", nil))
	res, err := rc.SearchMemory("tea", 3)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestModelLimiter(t *testing.T) {
	l := NewModelLimiter(2)
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.ErrorIs(t, l.Increment(), ErrModelCallLimit)
	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 0, l.Remaining())

	assert.Equal(t, -1, NewModelLimiter(0).Remaining())
}
