package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

// InstructionsProcessor sets the system instruction of the request.
type InstructionsProcessor struct{}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor() *InstructionsProcessor { return &InstructionsProcessor{} }

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest resolves the agent's instructions into req.Instructions.
func (p *InstructionsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	instructions, err := agent.ResolveInstructions(runCtx)
	if err != nil {
		return fmt.Errorf("resolve instructions: %w", err)
	}

	runCtx.LogDebug("agent.instruction.resolved", "agent", agent.GetName(), "length", len(instructions))

	req.Instructions = instructions

	return nil
}

// ContentsProcessor builds the conversation history of the request from
// the session events visible on the run's branch.
type ContentsProcessor struct{}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor() *ContentsProcessor { return &ContentsProcessor{} }

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest fills req.Contents.
func (p *ContentsProcessor) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	name := agent.GetName()
	contents := []core.Content{}

	for _, ev := range runCtx.GetSessionHistory() {
		if ev.IsPartial() || ev.Content == nil || len(ev.Content.Parts) == 0 || ev.Content.Role == core.RoleSystem {
			continue
		}

		if !core.IsVisibleFromBranch(ev.BranchName(), runCtx.Branch) {
			continue
		}

		if agent.IncludeContents() == IncludeNone && !ownTurn(ev, runCtx, name) {
			continue
		}

		if ev.Author != core.AuthorUser && ev.Author != name {
			if c, ok := foreignContent(ev); ok {
				contents = append(contents, c)
			}

			continue
		}

		contents = append(contents, *ev.Content)
	}

	if agent.IncludeContents() == IncludeNone && !hasUserContent(contents) && len(runCtx.UserContent.Parts) > 0 {
		contents = append([]core.Content{runCtx.UserContent}, contents...)
	}

	if limit := agent.MaxHistoryMessages(); limit > 0 && len(contents) > limit {
		contents = contents[len(contents)-limit:]

		// A tool response without its call is rejected by providers.
		for len(contents) > 0 && contents[0].Role == core.RoleTool {
			contents = contents[1:]
		}
	}

	req.Contents = contents

	return nil
}

// ownTurn reports whether ev belongs to the current exchange of the agent:
// the user's input or the agent's own events of this run.
func ownTurn(ev core.Event, runCtx *core.RunContext, name string) bool {
	if ev.InvocationID != runCtx.RunID {
		return false
	}

	return ev.Author == core.AuthorUser || ev.Author == name
}

func hasUserContent(contents []core.Content) bool {
	for _, c := range contents {
		if c.Role == core.RoleUser {
			return true
		}
	}

	return false
}

// foreignContent rewrites an event authored by another agent into user
// context so the model does not mistake it for its own output.
func foreignContent(ev core.Event) (core.Content, bool) {
	parts := []core.Part{core.TextPart{Text: "For context:"}}

	for _, part := range ev.Content.Parts {
		switch p := part.(type) {
		case core.TextPart:
			if strings.TrimSpace(p.Text) == "" {
				continue
			}

			parts = append(parts, core.TextPart{Text: fmt.Sprintf("[%s] said: %s", ev.Author, p.Text)})
		case core.FunctionCallPart:
			parts = append(parts, core.TextPart{Text: fmt.Sprintf("[%s] called tool `%s` with parameters: %s",
				ev.Author, p.FunctionCall.Name, orEmptyObject(p.FunctionCall.Arguments))})
		case core.FunctionResponsePart:
			parts = append(parts, core.TextPart{Text: fmt.Sprintf("[%s] `%s` tool returned result: %s",
				ev.Author, p.FunctionResponse.Name, responseText(p.FunctionResponse))})
		}
	}

	if len(parts) == 1 {
		return core.Content{}, false
	}

	return core.Content{Role: core.RoleUser, Parts: parts}, true
}

func orEmptyObject(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}

	return args
}

func responseText(fr core.FunctionResponse) string {
	if fr.Error != "" {
		return fmt.Sprintf(`{"error":%q}`, fr.Error)
	}

	b, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprint(fr.Response)
	}

	return string(b)
}

// TransferInjector advertises the transfer tool and the reachable agents.
type TransferInjector struct{}

// NewTransferInjector creates a new transfer injector.
func NewTransferInjector() *TransferInjector { return &TransferInjector{} }

// Name returns the processor's identifier.
func (p *TransferInjector) Name() string { return "transfer_injector" }

// ProcessRequest appends the transfer tool definition and instructions.
func (p *TransferInjector) ProcessRequest(_ *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	targets := agent.TransferTargets()
	if len(targets) == 0 {
		return nil
	}

	transfer := tool.NewTransferToAgentTool()
	if !req.HasTool(transfer.Name()) {
		req.Tools = append(req.Tools, definition(transfer))
	}

	var sb strings.Builder

	sb.WriteString("You can transfer the conversation to one of the following agents ")
	sb.WriteString("when their description matches the request better than yours:\n")

	for _, t := range targets {
		fmt.Fprintf(&sb, "- %s", t.Name())

		if d := t.Description(); d != "" {
			fmt.Fprintf(&sb, ": %s", d)
		}

		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "To transfer, call the %s function with the agent's name as agent_name. ", transfer.Name())
	sb.WriteString("Do not produce any other output when you transfer.")

	if req.Instructions != "" {
		req.Instructions += "\n\n"
	}

	req.Instructions += sb.String()

	return nil
}

// OutputKeyProcessor stores the final text of a response in session state.
type OutputKeyProcessor struct{}

// NewOutputKeyProcessor creates a new output key processor.
func NewOutputKeyProcessor() *OutputKeyProcessor { return &OutputKeyProcessor{} }

// Name returns the processor's identifier.
func (p *OutputKeyProcessor) Name() string { return "output_key" }

// ProcessResponse stages the text under the agent's output key. The delta
// is attached to the response event.
func (p *OutputKeyProcessor) ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error {
	key := agent.GetOutputKey()
	if key == "" || resp.Partial {
		return nil
	}

	for _, part := range resp.Content.Parts {
		if _, ok := part.(core.FunctionCallPart); ok {
			return nil
		}
	}

	text := resp.Text()
	if text == "" {
		return nil
	}

	runCtx.SetState(key, text)

	return nil
}
