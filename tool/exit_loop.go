package tool

import "github.com/hupe1980/adkpatterns/core"

// ExitLoopName is the name models use to end a refinement loop.
const ExitLoopName = "exit_loop"

type exitLoopTool struct{}

// NewExitLoopTool returns a tool that escalates, which makes the enclosing
// loop agent stop after the current child.
func NewExitLoopTool() Tool { return exitLoopTool{} }

func (exitLoopTool) Name() string { return ExitLoopName }

func (exitLoopTool) Description() string {
	return "Call this function ONLY when the essay is approved and ready, signaling the iterative process should end."
}

func (exitLoopTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (exitLoopTool) Call(tc *core.ToolContext, _ map[string]any) (any, error) {
	tc.LogInfo("tool.exit_loop", "agent", tc.AgentName())
	tc.Escalate()

	return map[string]any{
		"text": "Loop exited successfully. The agent has determined the task is complete.",
	}, nil
}
