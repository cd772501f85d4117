package moderator

import (
	"fmt"
	"strings"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/tool"
)

const (
	GenerateTextTool = "generate_text"
	CheckGrammarTool = "check_grammar"
	UsageStatsTool   = "get_usage_stats"
	InspectStateTool = "inspect_usage_state"
)

type generateTextArgs struct {
	Topic     string `json:"topic" jsonschema:"required,description=The subject to write about"`
	WordCount int    `json:"word_count" jsonschema:"required,description=Desired number of words"`
}

type checkGrammarArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to check"`
}

func newGenerateTextTool() (tool.Tool, error) {
	return tool.NewTypedTool[generateTextArgs](GenerateTextTool,
		"Generate text on a topic with specified word count.",
		func(_ *core.ToolContext, args generateTextArgs) (any, error) {
			return map[string]any{
				"status":     "success",
				"topic":      args.Topic,
				"word_count": args.WordCount,
				"message":    fmt.Sprintf("Generated %d-word article on %q", args.WordCount, args.Topic),
			}, nil
		})
}

func newCheckGrammarTool() (tool.Tool, error) {
	return tool.NewTypedTool[checkGrammarArgs](CheckGrammarTool,
		"Check grammar and provide corrections.",
		func(_ *core.ToolContext, args checkGrammarArgs) (any, error) {
			// One simulated issue per ten words.
			issues := len(strings.Fields(args.Text)) / 10

			return map[string]any{
				"status":       "success",
				"issues_found": issues,
				"message":      fmt.Sprintf("Found %d potential grammar issues", issues),
			}, nil
		})
}

func newUsageStatsTool() tool.Tool {
	return tool.NewFunctionTool(UsageStatsTool,
		"Get user's usage statistics from state.",
		nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			stat := func(key string) int {
				v, _ := tc.GetState(key)
				return core.IntState(v)
			}

			return map[string]any{
				"status":                   "success",
				"request_count":            stat(KeyRequestCount),
				"llm_calls":                stat(KeyLLMCalls),
				"blocked_requests":         stat(KeyBlockedRequests),
				"tool_generate_text_count": stat(ToolCountKey(GenerateTextTool)),
				"tool_check_grammar_count": stat(ToolCountKey(CheckGrammarTool)),
			}, nil
		})
}

// Tools returns the moderator's tools. The last one is a read-only view of
// the user: counters.
func Tools() ([]tool.Tool, error) {
	gen, err := newGenerateTextTool()
	if err != nil {
		return nil, err
	}

	grammar, err := newCheckGrammarTool()
	if err != nil {
		return nil, err
	}

	return []tool.Tool{
		gen,
		grammar,
		newUsageStatsTool(),
		tool.NewStateTool(
			tool.WithStateToolName(InspectStateTool),
			tool.WithKeyPrefixes("user:"),
			tool.WithReadOnly(),
		),
	}, nil
}
