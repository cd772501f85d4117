package flow

import "github.com/hupe1980/adkpatterns/tool"

// MultiAgentFlow extends the single agent flow with transfers: the model is
// offered transfer_to_agent and a transfer hands the turn to the target.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow creates a flow whose agent may transfer to others.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewTransferInjector())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())
	baseFlow.addTool(tool.NewTransferToAgentTool())

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
