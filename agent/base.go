package agent

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
)

// Agent kinds reported in core.AgentInfo.
const (
	KindModel      = "llm"
	KindSequential = "sequential"
	KindParallel   = "parallel"
	KindLoop       = "loop"
)

// ErrNotRunning is returned by Stop when Start was not called.
var ErrNotRunning = errors.New("agent is not running")

// BaseAgent bundles identity, hierarchy, lifecycle and callback handling.
// Embed it in concrete agents and call init with the embedding agent so
// hierarchy lookups return the concrete type. All exported methods are
// goroutine-safe.
type BaseAgent struct {
	name        string
	description string
	kind        string
	self        core.Agent
	callbacks   callback.Set

	mu        sync.Mutex
	refs      int
	parent    core.Agent
	subAgents []core.Agent
}

func newBaseAgent(name, kind string) BaseAgent {
	return BaseAgent{
		name:        name,
		kind:        kind,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// init records the embedding agent.
func (b *BaseAgent) init(self core.Agent) { b.self = self }

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns what the agent does. Transfer instructions show it to
// other agents.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Kind returns the agent kind, e.g. "llm" or "loop".
func (b *BaseAgent) Kind() string { return b.kind }

// Callbacks returns the agent's callbacks.
func (b *BaseAgent) Callbacks() callback.Set {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.callbacks
}

// UseCallbacks appends hooks to the agent's callbacks.
func (b *BaseAgent) UseCallbacks(sets ...callback.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.callbacks = b.callbacks.Merge(sets...)
}

// Start marks the agent as in use. Concurrent runs share the agent, so
// Start and Stop are reference counted.
func (b *BaseAgent) Start(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refs++

	return nil
}

// Stop releases one Start.
func (b *BaseAgent) Stop(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refs == 0 {
		return ErrNotRunning
	}

	b.refs--

	return nil
}

// Running reports whether at least one Start is outstanding.
func (b *BaseAgent) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.refs > 0
}

// SetSubAgents replaces the children and makes this agent their parent. An
// agent can have only one parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	for _, child := range children {
		if child == nil {
			return errors.New("sub-agent must not be nil")
		}

		if p := child.Parent(); p != nil && p != b.self {
			return fmt.Errorf("agent %s already has parent %s", child.Name(), p.Name())
		}
	}

	b.mu.Lock()
	old := b.subAgents
	b.subAgents = append([]core.Agent{}, children...)
	b.mu.Unlock()

	for _, child := range old {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(b.self)
		}
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parent = p
}

// Parent returns the parent agent or nil for a root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.parent
}

// SubAgents returns a copy of the children.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)

	return result
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent, itself included.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return b.self
	}

	for _, child := range b.SubAgents() {
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// Root returns the top of the hierarchy.
func (b *BaseAgent) Root() core.Agent {
	var root core.Agent = b.self
	for p := b.Parent(); p != nil; p = p.Parent() {
		root = p
	}

	return root
}

// Execute wraps an agent body with context scoping and the agent-level
// callbacks. Concrete agents implement Run by calling Execute.
//
// Content returned by a before-agent callback replaces the body and is
// emitted as the agent's reply. Content returned by an after-agent callback
// is emitted after the body. State staged by callbacks is always flushed.
func (b *BaseAgent) Execute(runCtx *core.RunContext, body func(*core.RunContext) error) error {
	runCtx = runCtx.WithAgent(core.AgentInfo{Name: b.name, Type: b.kind})

	if runCtx.SessionStore != nil {
		if err := runCtx.RefreshSession(); err != nil {
			runCtx.LogWarn("agent.session.refresh_failed", "agent", b.name, "error", err.Error())
		}
	}

	start := time.Now()
	runCtx.LogDebug("agent.run.start", "agent", b.name, "type", b.kind, "branch", runCtx.Branch)

	callbacks := b.Callbacks()
	cbCtx := core.NewCallbackContext(runCtx)

	content, err := callbacks.RunBeforeAgent(cbCtx)
	if err != nil {
		return fmt.Errorf("agent %s: before agent callback: %w", b.name, err)
	}

	if content != nil {
		runCtx.LogInfo("agent.run.skipped", "agent", b.name)
		return b.reply(runCtx, content)
	}

	if err := runCtx.FlushState(b.name); err != nil {
		return err
	}

	if err := body(runCtx); err != nil {
		runCtx.LogError("agent.run.error", "agent", b.name, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())
		return err
	}

	content, err = callbacks.RunAfterAgent(cbCtx)
	if err != nil {
		return fmt.Errorf("agent %s: after agent callback: %w", b.name, err)
	}

	if content != nil {
		if err := b.reply(runCtx, content); err != nil {
			return err
		}
	}

	if err := runCtx.FlushState(b.name); err != nil {
		return err
	}

	runCtx.LogDebug("agent.run.finish", "agent", b.name, "duration_ms", time.Since(start).Milliseconds())

	return nil
}

func (b *BaseAgent) reply(runCtx *core.RunContext, content *core.Content) error {
	ev := core.NewEvent(runCtx.RunID, b.name)

	c := *content
	if c.Role == "" {
		c.Role = core.RoleAssistant
	}

	ev.Content = &c

	return runCtx.EmitAndWait(ev)
}
