package flow

// SingleAgentFlow drives a standalone agent that cannot hand off control.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow creates a flow with instruction, history and output key
// processing.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddResponseProcessor(NewOutputKeyProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
