package core

// Agent defines the core interface that all agents must implement.
//
// Agents receive a RunContext, do their work synchronously inside Run and
// emit events to communicate results and state changes back to the Runner.
// Composite agents (sequential, parallel, loop) drive their children through
// the same interface.
//
// Implementations must:
//   - Respect context cancellation for graceful shutdown
//   - Emit events through the provided RunContext and wait for resume on
//     every non-partial event
//   - Tolerate Start/Stop being called by concurrent runs
type Agent interface {
	Name() string
	Description() string
	Start(runCtx *RunContext) error
	Stop(runCtx *RunContext) error
	Run(runCtx *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
}

// AgentInfo carries identifying details about an agent used in contexts & events.
// Name is the external identifier; Type categorizes implementation (e.g. "llm", "loop").
type AgentInfo struct{ Name, Type string }
