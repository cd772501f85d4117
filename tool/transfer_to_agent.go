package tool

import (
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
)

// TransferToAgentName is the name of the transfer tool injected into
// agents that may hand off to relatives.
const TransferToAgentName = "transfer_to_agent"

type transferToAgentTool struct{}

// NewTransferToAgentTool constructs the transfer tool instance.
func NewTransferToAgentTool() Tool { return transferToAgentTool{} }

func (transferToAgentTool) Name() string { return TransferToAgentName }

func (transferToAgentTool) Description() string {
	return "Transfer the conversation to another agent by name. Use when another agent is better suited to answer."
}

func (transferToAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{"type": "string", "description": "Target agent name"},
		},
		"required": []string{"agent_name"},
	}
}

func (transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	name, _ := args["agent_name"].(string)
	if name == "" {
		// older prompts use "agent"
		name, _ = args["agent"].(string)
	}

	if name == "" {
		return nil, NewToolError(TransferToAgentName, fmt.Sprintf("field %q must be a non-empty string", "agent_name"), CodeValidation)
	}

	tc.TransferToAgent(name)

	return map[string]any{"transferred": true, "agent_name": name}, nil
}
