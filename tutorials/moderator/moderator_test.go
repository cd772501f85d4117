package moderator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/internal/testutil"
	"github.com/hupe1980/adkpatterns/model"
)

func responses(events []core.Event) map[string]core.FunctionResponse {
	out := map[string]core.FunctionResponse{}

	for _, ev := range events {
		if ev.Content == nil {
			continue
		}

		for _, p := range ev.Content.Parts {
			if fr, ok := p.(core.FunctionResponsePart); ok {
				out[fr.FunctionResponse.Name] = fr.FunctionResponse
			}
		}
	}

	return out
}

func TestContainsBlockedWord(t *testing.T) {
	tests := []struct {
		text string
		word string
		hit  bool
	}{
		{"Write a poem about spring", "", false},
		{"Tell me about VIOLENCE in films", "violence", true},
		{"is this illegal?", "illegal", true},
		{"a hateful remark", "", false},
	}

	for _, tt := range tests {
		word, hit := ContainsBlockedWord(tt.text)
		assert.Equal(t, tt.hit, hit, tt.text)
		assert.Equal(t, tt.word, word, tt.text)
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "Mail [EMAIL REDACTED] or call [PHONE REDACTED].", Redact("Mail jane.doe@example.com or call 555-123-4567."))
	assert.Equal(t, "nothing to hide", Redact("nothing to hide"))
}

func TestNew_TracksUsage(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(
			core.FunctionCall{ID: "c1", Name: GenerateTextTool, Arguments: `{"topic":"Go","word_count":200}`},
			core.FunctionCall{ID: "c2", Name: CheckGrammarTool, Arguments: `{"text":"one two three four five six seven eight nine ten eleven"}`},
		),
		model.NewTextResponse("Done. Questions? Write to editor@example.com"),
	)

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	res := testutil.RunAgent(t, root, "Write 200 words about Go and check them.")
	require.NoError(t, res.Err)

	assert.Equal(t, "Done. Questions? Write to [EMAIL REDACTED]", res.FinalText())
	assert.Equal(t, 1, core.IntState(res.State(KeyRequestCount)))
	assert.Equal(t, 2, core.IntState(res.State(KeyLLMCalls)))
	assert.Nil(t, res.State(KeyBlockedRequests))
	assert.Equal(t, 1, core.IntState(res.State(ToolCountKey(GenerateTextTool))))
	assert.Equal(t, 1, core.IntState(res.State(ToolCountKey(CheckGrammarTool))))

	frs := responses(res.Events)

	gen, ok := frs[GenerateTextTool].Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, `Generated 200-word article on "Go"`, gen["message"])

	grammar, ok := frs[CheckGrammarTool].Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, grammar["issues_found"])
}

func TestNew_CountsRepeatedToolCallsInOneTurn(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(
			core.FunctionCall{ID: "c1", Name: CheckGrammarTool, Arguments: `{"text":"first draft"}`},
			core.FunctionCall{ID: "c2", Name: CheckGrammarTool, Arguments: `{"text":"second draft"}`},
		),
		model.NewTextResponse("Both drafts checked."),
	)

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	res := testutil.RunAgent(t, root, "Check both drafts.")
	require.NoError(t, res.Err)

	assert.Equal(t, 2, core.IntState(res.State(ToolCountKey(CheckGrammarTool))))
}

func TestNew_BlocksBannedWords(t *testing.T) {
	llm := model.NewScriptedModel("scripted")

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	res := testutil.RunAgent(t, root, "Write a story full of violence.")
	require.NoError(t, res.Err)

	assert.Equal(t, BlockedMessage, res.FinalText())
	assert.Zero(t, llm.Calls())
	assert.Equal(t, 1, core.IntState(res.State(KeyBlockedRequests)))
	assert.Equal(t, 1, core.IntState(res.State(KeyRequestCount)))
	assert.Nil(t, res.State(KeyLLMCalls))
}

func TestNew_RejectsInvalidWordCount(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: GenerateTextTool, Arguments: `{"topic":"Go","word_count":0}`}),
		model.NewTextResponse("Please pick a positive word count."),
	)

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	res := testutil.RunAgent(t, root, "Write nothing about Go.")
	require.NoError(t, res.Err)

	out, ok := responses(res.Events)[GenerateTextTool].Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", out["status"])
	assert.Nil(t, res.State(ToolCountKey(GenerateTextTool)))
}

func TestNew_UsageStatsAcrossRuns(t *testing.T) {
	llm := model.NewScriptedModel("scripted",
		model.NewToolCallResponse(core.FunctionCall{ID: "c1", Name: GenerateTextTool, Arguments: `{"topic":"Go","word_count":50}`}),
		model.NewTextResponse("Done."),
		model.NewToolCallResponse(core.FunctionCall{ID: "c2", Name: UsageStatsTool}),
		model.NewTextResponse("Here are your stats."),
	)

	root, err := New(model.StaticResolver(map[string]model.Model{ModelID: llm}))
	require.NoError(t, err)

	stores := testutil.NewStores()

	first := testutil.RunAgent(t, root, "Write about Go.", testutil.WithStores(stores))
	require.NoError(t, first.Err)

	second := testutil.RunAgent(t, root, "How much have I used?", testutil.WithStores(stores))
	require.NoError(t, second.Err)

	stats, ok := responses(second.Events)[UsageStatsTool].Response.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", stats["status"])
	assert.Equal(t, 2, stats["request_count"])
	assert.Equal(t, 1, stats["tool_generate_text_count"])
	assert.Equal(t, 0, stats["blocked_requests"])

	assert.Equal(t, 2, core.IntState(second.State(KeyRequestCount)))
	assert.Equal(t, 1, core.IntState(second.State(ToolCountKey(UsageStatsTool))))
}
