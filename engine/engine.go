package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/adkpatterns/artifact"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/memory"
	"github.com/hupe1980/adkpatterns/runner"
	"github.com/hupe1980/adkpatterns/session"
)

// ErrAgentNotFound is returned when invoking an unregistered agent.
var ErrAgentNotFound = errors.New("agent not found")

// Config defines tuning parameters applied to every runner.
type Config struct {
	// MaxConcurrentRuns limits concurrent runs per agent.
	MaxConcurrentRuns int

	// EventBufferSize sets the channel buffer size for event processing.
	EventBufferSize int

	// MaxModelCalls limits model calls per run. Zero means unlimited.
	MaxModelCalls int
}

// DefaultConfig is used when no Config is supplied.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	EventBufferSize:   100,
	MaxModelCalls:     100,
}

// Options configures an Engine.
type Options struct {
	Config Config

	// Stores default to in-memory implementations.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Callbacks are attached to every agent of every registered tree,
	// e.g. metrics or tracing hooks.
	Callbacks callback.Set

	Logger logging.Logger
}

// Engine is a registry of runners sharing one set of stores.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	callbacks     callback.Set
	logger        logging.Logger
	config        Config

	mu      sync.RWMutex
	runners map[string]*runner.Runner
}

// New creates an Engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		sessionStore:  opts.SessionStore,
		artifactStore: opts.ArtifactStore,
		memoryStore:   opts.MemoryStore,
		callbacks:     opts.Callbacks,
		logger:        opts.Logger,
		config:        opts.Config,
		runners:       make(map[string]*runner.Runner),
	}
}

// Register adds a root agent under its name, replacing any previous agent
// with that name. Engine callbacks are attached to the whole tree.
func (e *Engine) Register(a core.Agent) {
	if !e.callbacks.IsEmpty() {
		attachCallbacks(a, e.callbacks)
	}

	r := runner.New(a, func(o *runner.Options) {
		o.MaxConcurrentRuns = e.config.MaxConcurrentRuns
		o.EventBufferSize = e.config.EventBufferSize
		o.MaxModelCalls = e.config.MaxModelCalls
		o.SessionStore = e.sessionStore
		o.ArtifactStore = e.artifactStore
		o.MemoryStore = e.memoryStore
		o.Logger = e.logger
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	e.runners[a.Name()] = r

	e.logger.Debug("engine.agent.registered", "agent", a.Name())
}

func attachCallbacks(a core.Agent, set callback.Set) {
	if u, ok := a.(interface{ UseCallbacks(...callback.Set) }); ok {
		u.UseCallbacks(set)
	}

	for _, child := range a.SubAgents() {
		attachCallbacks(child, set)
	}
}

// GetAgent returns a registered root agent.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.runners[name]
	if !ok {
		return nil, false
	}

	return r.Agent(), true
}

// Agents returns the registered agents sorted by name.
func (e *Engine) Agents() []core.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]core.Agent, 0, len(e.runners))
	for _, r := range e.runners {
		out = append(out, r.Agent())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

func (e *Engine) runner(name string) (*runner.Runner, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	r, ok := e.runners[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	return r, nil
}

// Invoke starts a run of agentName and returns its id plus the event and
// error streams. See runner.Runner.Run.
func (e *Engine) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	r, err := e.runner(agentName)
	if err != nil {
		return "", nil, nil, err
	}

	return r.Run(ctx, sessionID, userContent)
}

// InvokeSync runs agentName to completion and returns the non-partial
// events.
func (e *Engine) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := e.Invoke(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event

	for ev := range eventsCh {
		if !ev.IsPartial() {
			events = append(events, ev)
		}
	}

	return runID, events, <-errorsCh
}

// Cancel cancels an active run of any registered agent.
func (e *Engine) Cancel(runID string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, r := range e.runners {
		if r.Cancel(runID) == nil {
			return nil
		}
	}

	return fmt.Errorf("run %s not found", runID)
}

// Session returns the persisted session.
func (e *Engine) Session(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

// SessionStore returns the shared session store.
func (e *Engine) SessionStore() core.SessionStore { return e.sessionStore }
