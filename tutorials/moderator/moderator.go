// Package moderator shows every callback hook on one agent. The hooks keep
// per-user usage counters in state, block requests containing banned
// words before they reach the model, validate tool arguments and redact
// contact details from answers.
package moderator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

const (
	AgentName = "ContentModerator"
	ModelID   = "gemini-2.5-flash"

	KeyRequestCount    = "user:request_count"
	KeyLLMCalls        = "user:llm_calls"
	KeyBlockedRequests = "user:blocked_requests"

	// MaxWordCount bounds generate_text requests.
	MaxWordCount = 5000

	BlockedMessage = "I cannot process this request because it contains inappropriate content. Please rephrase your request respectfully."
)

// BlockedWords are matched case-insensitively as whole words.
var BlockedWords = []string{"profanity", "hate", "violence", "illegal"}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`)
)

const Instruction = `You are a helpful writing assistant with built-in content moderation.

You can:
1. Generate articles on any topic with 'generate_text'
2. Check grammar of a text with 'check_grammar'
3. Report the user's usage statistics with 'get_usage_stats'

Always be respectful and professional. Keep answers short and mention the
tool results you used.`

// ToolCountKey is the state key counting calls of a tool.
func ToolCountKey(name string) string { return "user:tool_" + name + "_count" }

// ContainsBlockedWord returns the first banned word in text.
func ContainsBlockedWord(text string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, w := range words {
		for _, blocked := range BlockedWords {
			if w == blocked {
				return blocked, true
			}
		}
	}

	return "", false
}

// Redact masks email addresses and phone numbers.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL REDACTED]")
	return phonePattern.ReplaceAllString(text, "[PHONE REDACTED]")
}

// Callbacks returns the moderation hooks.
func Callbacks() callback.Set {
	return callback.Set{
		BeforeAgent: []callback.BeforeAgent{countRequest},
		BeforeModel: []callback.BeforeModel{screenRequest},
		AfterModel:  []callback.AfterModel{redactResponse},
		BeforeTool:  []callback.BeforeTool{validateToolArgs},
		AfterTool:   []callback.AfterTool{countToolCall},
	}
}

func countRequest(cbCtx *core.CallbackContext) (*core.Content, error) {
	n := cbCtx.IncrementState(KeyRequestCount, 1)
	cbCtx.Logger().Debug("moderator.request", "count", n)

	return nil, nil
}

func screenRequest(cbCtx *core.CallbackContext, req *model.Request) (*model.Response, error) {
	if word, blocked := ContainsBlockedWord(req.LastUserText()); blocked {
		n := cbCtx.IncrementState(KeyBlockedRequests, 1)
		cbCtx.Logger().Warn("moderator.blocked", "word", word, "blocked_requests", n)

		resp := model.NewTextResponse(BlockedMessage)

		return &resp, nil
	}

	cbCtx.IncrementState(KeyLLMCalls, 1)

	return nil, nil
}

func redactResponse(_ *core.CallbackContext, resp *model.Response) (*model.Response, error) {
	text := resp.Text()
	if text == "" || len(resp.Content.Parts) != 1 {
		return nil, nil
	}

	redacted := Redact(text)
	if redacted == text {
		return nil, nil
	}

	out := *resp
	out.Content = core.NewTextContent(core.RoleAssistant, redacted)

	return &out, nil
}

func validateToolArgs(_ *core.ToolContext, name string, args map[string]any) (map[string]any, error) {
	if name != GenerateTextTool {
		return nil, nil
	}

	n := core.IntState(args["word_count"])
	if n <= 0 || n > MaxWordCount {
		return map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("word_count must be between 1 and %d, got %d", MaxWordCount, n),
		}, nil
	}

	return nil, nil
}

func countToolCall(tc *core.ToolContext, name string, _ map[string]any, _ any) (any, error) {
	v, _ := tc.GetState(ToolCountKey(name))
	tc.SetState(ToolCountKey(name), core.IntState(v)+1)

	return nil, nil
}

// New builds the moderated writing assistant.
func New(models model.Resolver) (core.Agent, error) {
	llm, err := models(ModelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", AgentName, err)
	}

	tools, err := Tools()
	if err != nil {
		return nil, err
	}

	return agent.NewModelAgent(AgentName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = "Writing assistant with content moderation and usage tracking"
		o.Instruction = agent.NewInstructionFromText(Instruction)
		o.Tools = tools
		o.Callbacks = Callbacks()
	}), nil
}
