package flow

// SelectFlow returns a MultiAgentFlow for agents that may transfer and a
// SingleAgentFlow otherwise.
func SelectFlow(agent FlowAgent) Flow {
	if agent.IsTransferEnabled() && len(agent.TransferTargets()) > 0 {
		return NewMultiAgentFlow(agent)
	}

	return NewSingleAgentFlow(agent)
}
