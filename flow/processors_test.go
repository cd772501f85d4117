package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

func contentsFor(t *testing.T, a *testAgent, branch string, events ...core.Event) []core.Content {
	t.Helper()

	rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
	rc.Branch = branch
	rc.Session = testutil.NewSessionBuilder("s1").Events(events...).Build()

	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, req, a))

	return req.Contents
}

func TestContentsProcessor_RewritesOtherAgents(t *testing.T) {
	a := &testAgent{name: "reviewer"}

	contents := contentsFor(t, a, "",
		testutil.NewEventBuilder().Author(core.AuthorUser).UserText("write code").Build(),
		testutil.NewEventBuilder().Author("writer").AssistantText("func main() {}").Build(),
		testutil.NewEventBuilder().Author("writer").FunctionCall("c1", "lint", `{"strict":true}`).Build(),
		testutil.NewEventBuilder().Author("writer").FunctionResponse("c1", "lint", map[string]any{"ok": true}, nil).Build(),
		testutil.NewEventBuilder().Author("reviewer").AssistantText("looks good").Build(),
	)

	require.Len(t, contents, 5)
	assert.Equal(t, core.RoleUser, contents[0].Role)

	rewritten := contents[1]
	assert.Equal(t, core.RoleUser, rewritten.Role)
	require.Len(t, rewritten.Parts, 2)
	assert.Equal(t, "For context:", rewritten.Parts[0].(core.TextPart).Text)
	assert.Equal(t, "[writer] said: func main() {}", rewritten.Parts[1].(core.TextPart).Text)

	assert.Equal(t, "For context:[writer] called tool `lint` with parameters: {\"strict\":true}", contents[2].Text())
	assert.Equal(t, "For context:[writer] `lint` tool returned result: {\"ok\":true}", contents[3].Text())

	assert.Equal(t, core.RoleAssistant, contents[4].Role)
}

func TestContentsProcessor_SkipsNoise(t *testing.T) {
	a := &testAgent{name: "agent"}

	contents := contentsFor(t, a, "",
		testutil.NewEventBuilder().Author(core.AuthorUser).UserText("hi").Build(),
		testutil.NewEventBuilder().Author("agent").AssistantText("he").Partial(true).Build(),
		core.NewStateEvent("r", "agent", map[string]any{"k": 1}),
		core.NewErrorEvent("r", "agent", "X", "boom"),
		testutil.NewEventBuilder().Author("agent").AssistantText("hello").Build(),
	)

	require.Len(t, contents, 2)
	assert.Equal(t, "hello", contents[1].Text())
}

func TestContentsProcessor_BranchVisibility(t *testing.T) {
	a := &testAgent{name: "researcher_a"}

	contents := contentsFor(t, a, "root.researcher_a",
		testutil.NewEventBuilder().Author(core.AuthorUser).UserText("research").Build(),
		testutil.NewEventBuilder().Author("planner").Branch("root").AssistantText("plan").Build(),
		testutil.NewEventBuilder().Author("researcher_b").Branch("root.researcher_b").AssistantText("secret").Build(),
		testutil.NewEventBuilder().Author("researcher_a").Branch("root.researcher_a").AssistantText("mine").Build(),
	)

	texts := []string{}
	for _, c := range contents {
		texts = append(texts, c.Text())
	}

	assert.Equal(t, []string{"research", "For context:[planner] said: plan", "mine"}, texts)
}

func TestContentsProcessor_IncludeNone(t *testing.T) {
	rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
	rc.UserContent = core.NewTextContent(core.RoleUser, "current question")
	rc.Session = testutil.NewSessionBuilder("s1").Events(
		testutil.NewEventBuilder().Author(core.AuthorUser).Invocation("old").UserText("old question").Build(),
		testutil.NewEventBuilder().Author("agent").Invocation("old").AssistantText("old answer").Build(),
		testutil.NewEventBuilder().Author("agent").Invocation(rc.RunID).FunctionCall("c1", "echo", "{}").Build(),
	).Build()

	a := &testAgent{name: "agent", include: IncludeNone}
	req := &model.Request{}
	require.NoError(t, NewContentsProcessor().ProcessRequest(rc, req, a))

	require.Len(t, req.Contents, 2)
	assert.Equal(t, "current question", req.Contents[0].Text())
	assert.Len(t, req.Contents[1].Parts, 1)
}

func TestContentsProcessor_MaxHistoryDropsOrphanToolResponse(t *testing.T) {
	a := &testAgent{name: "agent", maxHistory: 2}

	contents := contentsFor(t, a, "",
		testutil.NewEventBuilder().Author(core.AuthorUser).UserText("q").Build(),
		testutil.NewEventBuilder().Author("agent").FunctionCall("c1", "echo", "{}").Build(),
		core.NewFunctionResponseEvent("r", "agent", "c1", "echo", "ok", nil),
		testutil.NewEventBuilder().Author("agent").AssistantText("answer").Build(),
	)

	require.Len(t, contents, 1)
	assert.Equal(t, "answer", contents[0].Text())
}

func TestInstructionsProcessor(t *testing.T) {
	rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
	req := &model.Request{}

	require.NoError(t, NewInstructionsProcessor().ProcessRequest(rc, req, &testAgent{instructions: "Be brief."}))
	assert.Equal(t, "Be brief.", req.Instructions)
}

func TestTransferInjector(t *testing.T) {
	rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
	target := &testAgent{name: "math", description: "Solves equations."}

	t.Run("disabled", func(t *testing.T) {
		req := &model.Request{Instructions: "base"}
		require.NoError(t, NewTransferInjector().ProcessRequest(rc, req, &testAgent{targets: []core.Agent{target}}))
		assert.Empty(t, req.Tools)
		assert.Equal(t, "base", req.Instructions)
	})

	t.Run("enabled", func(t *testing.T) {
		req := &model.Request{Instructions: "base"}
		a := &testAgent{transfer: true, targets: []core.Agent{target}}

		require.NoError(t, NewTransferInjector().ProcessRequest(rc, req, a))
		require.NoError(t, NewTransferInjector().ProcessRequest(rc, req, a))

		require.Len(t, req.Tools, 1)
		assert.Equal(t, tool.TransferToAgentName, req.Tools[0].Function.Name)
		assert.Contains(t, req.Instructions, "base\n\n")
		assert.Contains(t, req.Instructions, "- math: Solves equations.")
	})
}

func TestOutputKeyProcessor(t *testing.T) {
	a := &testAgent{outputKey: "summary"}

	t.Run("text", func(t *testing.T) {
		rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
		resp := model.NewTextResponse("short summary")

		require.NoError(t, NewOutputKeyProcessor().ProcessResponse(rc, &resp, a))
		v, ok := rc.GetState("summary")
		require.True(t, ok)
		assert.Equal(t, "short summary", v)
	})

	t.Run("function call", func(t *testing.T) {
		rc, _ := testutil.NewRunContext(t, testutil.NewStores(), "s1")
		resp := model.NewToolCallResponse(call("c1", "echo", "{}"))

		require.NoError(t, NewOutputKeyProcessor().ProcessResponse(rc, &resp, a))
		_, ok := rc.GetState("summary")
		assert.False(t, ok)
	})
}
