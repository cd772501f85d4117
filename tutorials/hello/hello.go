// Package hello is the smallest possible agent: one model, one instruction,
// no tools.
package hello

import (
	"fmt"

	"github.com/hupe1980/adkpatterns/agent"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/model"
)

const (
	// AgentName is the name of the root agent.
	AgentName = "hello_agent"
	// ModelID is the model the agent asks the resolver for.
	ModelID = "gemini-2.5-flash"

	Description = "A friendly AI assistant for general conversation"

	Instruction = "You are a warm and helpful assistant. " +
		"Greet users enthusiastically and answer their questions clearly. " +
		"Be conversational and friendly!"
)

// New builds the greeting agent.
func New(models model.Resolver) (core.Agent, error) {
	llm, err := models(ModelID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", AgentName, err)
	}

	return agent.NewModelAgent(AgentName, llm, func(o *agent.ModelAgentOptions) {
		o.Description = Description
		o.Instruction = agent.NewInstructionFromText(Instruction)
	}), nil
}
