package agent

import (
	"fmt"
	"strings"

	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/flow"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Instruction       Instruction
	GlobalInstruction Instruction
	Description       string
	Tools             []tool.Tool
	OutputKey         string
	EnableStreaming   bool

	// MaxHistoryMessages caps the history sent to the model. Zero sends all.
	MaxHistoryMessages int
	IncludeContents    flow.IncludeContents
	AllowTransfer      bool
	Callbacks          callback.Set
}

// ModelAgent drives a language model: it builds requests from instructions
// and session history, executes the tools the model calls and optionally
// stores its final answer under an output key.
type ModelAgent struct {
	BaseAgent

	llm                model.Model
	instruction        Instruction
	globalInstruction  Instruction
	tools              []tool.Tool
	outputKey          string
	enableStreaming    bool
	maxHistoryMessages int
	includeContents    flow.IncludeContents
	allowTransfer      bool
}

// NewModelAgent creates a model agent. Streaming and transfers are enabled
// by default; the default instruction introduces the agent by name.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:     NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming: true,
		IncludeContents: flow.IncludeDefault,
		AllowTransfer:   true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	a := &ModelAgent{
		BaseAgent:          newBaseAgent(name, KindModel),
		llm:                llm,
		instruction:        opts.Instruction,
		globalInstruction:  opts.GlobalInstruction,
		tools:              append([]tool.Tool{}, opts.Tools...),
		outputKey:          opts.OutputKey,
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
		includeContents:    opts.IncludeContents,
		allowTransfer:      opts.AllowTransfer,
	}

	if opts.Description != "" {
		a.description = opts.Description
	}

	a.callbacks = opts.Callbacks
	a.init(a)

	return a
}

// AddTools appends tools. Tools are looked up by name, so a later tool with
// the same name is unreachable.
func (a *ModelAgent) AddTools(tools ...tool.Tool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.tools = append(a.tools, tools...)
}

// GetName returns the agent's name.
func (a *ModelAgent) GetName() string { return a.Name() }

// GetLLM returns the language model.
func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the agent's tools.
func (a *ModelAgent) GetTools() []tool.Tool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]tool.Tool{}, a.tools...)
}

// TransferTargets returns the sub-agents the model may hand off to.
func (a *ModelAgent) TransferTargets() []core.Agent { return a.SubAgents() }

// IsStreamingEnabled reports whether partial responses are requested.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// IsTransferEnabled reports whether the agent may transfer.
func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey returns the state key receiving the final answer.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the history cap.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// IncludeContents returns the history mode.
func (a *ModelAgent) IncludeContents() flow.IncludeContents {
	if a.includeContents == "" {
		return flow.IncludeDefault
	}

	return a.includeContents
}

// ResolveInstructions renders the global and the agent instruction.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	parts := make([]string, 0, 2)

	for _, inst := range []Instruction{a.globalInstruction, a.instruction} {
		if inst.IsZero() {
			continue
		}

		text, err := inst.Render(runCtx)
		if err != nil {
			return "", err
		}

		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// TransferToAgent runs the named agent with the current context. The target
// is searched in the whole agent tree.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	target := a.Root().FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent %q not found in hierarchy", agentName)
	}

	runCtx.LogInfo("agent.transfer", "from", a.Name(), "to", agentName)

	return target.Run(runCtx)
}

// Run implements core.Agent.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	return a.Execute(runCtx, func(rc *core.RunContext) error {
		fl := flow.SelectFlow(a)

		rc.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

		if err := fl.Run(rc); err != nil {
			return fmt.Errorf("agent %s: %w", a.Name(), err)
		}

		return nil
	})
}
