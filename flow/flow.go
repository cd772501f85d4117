// Package flow implements the turn engine of a model agent: build a request
// from instructions and history, call the model, execute the requested tools
// and repeat until the model produces a final answer.
//
// Flows run synchronously inside the agent's Run. Every non-partial event is
// emitted with EmitAndWait, so the next step reads a session that already
// contains it.
package flow

import (
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
	"github.com/hupe1980/adkpatterns/tool"
)

// Flow runs an agent's model loop to completion.
type Flow interface {
	Run(runCtx *core.RunContext) error
}

// IncludeContents selects how much conversation history a request carries.
type IncludeContents string

const (
	// IncludeDefault sends the visible session history.
	IncludeDefault IncludeContents = "default"
	// IncludeNone sends only the current user input and the agent's own
	// tool exchanges of the current run.
	IncludeNone IncludeContents = "none"
)

// FlowAgent is the view a flow has of the agent it drives.
type FlowAgent interface {
	GetName() string
	GetLLM() model.Model

	// ResolveInstructions returns the system instruction with state
	// placeholders already substituted.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	GetTools() []tool.Tool

	// TransferTargets lists the agents this agent may hand off to.
	TransferTargets() []core.Agent

	IsStreamingEnabled() bool
	IsTransferEnabled() bool
	GetOutputKey() string

	// MaxHistoryMessages caps history contents. Zero means unlimited.
	MaxHistoryMessages() int
	IncludeContents() IncludeContents

	Callbacks() callback.Set

	// TransferToAgent runs the named agent in place of the caller.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor processes the request before sending it to the LLM.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor processes the response after receiving it from the LLM.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
