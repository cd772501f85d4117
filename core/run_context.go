package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/hupe1980/adkpatterns/logging"
)

// RunParams binds a RunContext to one invocation.
type RunParams struct {
	SessionID     string
	RunID         string
	Agent         AgentInfo
	UserContent   Content
	Session       *Session
	SessionStore  SessionStore
	ArtifactStore ArtifactStore
	MemoryStore   MemoryStore
	// MaxModelCalls caps model calls across the whole run; 0 is unlimited.
	MaxModelCalls int
	Logger        logging.Logger
}

// RunContext is the per-invocation scope handed to Agent.Run.
//
// Writes through SetState, AddArtifact and SaveArtifact are staged and ride
// on the next non-partial event passed to EmitEvent. The runner persists
// that event and then signals Resume; EmitAndWait blocks for that signal so
// an agent never reads state the store has not seen yet.
//
// Session is a private snapshot. Parallel children share the parent's
// pointer, which is safe because Session guards itself.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Artifacts        []string
	Branch           string

	*loggerAdapter
}

// NewRunContext creates the root context of a run.
func NewRunContext(ctx context.Context, p RunParams, emit chan<- Event, resume <-chan struct{}) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     p.SessionID,
		RunID:         p.RunID,
		Agent:         p.Agent,
		UserContent:   p.UserContent,
		Emit:          emit,
		Resume:        resume,
		Session:       p.Session,
		SessionStore:  p.SessionStore,
		ArtifactStore: p.ArtifactStore,
		MemoryStore:   p.MemoryStore,
		Limiter:       NewModelLimiter(p.MaxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(p.Logger),
	}
}

// derive copies the run-wide fields and starts with empty pending buffers.
func (ic *RunContext) derive(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	return &RunContext{
		Context:       ic.Context,
		SessionID:     ic.SessionID,
		RunID:         ic.RunID,
		Agent:         ic.Agent,
		UserContent:   ic.UserContent,
		Emit:          emit,
		Resume:        resume,
		SessionStore:  ic.SessionStore,
		ArtifactStore: ic.ArtifactStore,
		MemoryStore:   ic.MemoryStore,
		Limiter:       ic.Limiter,
		Session:       ic.Session,
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		Branch:        branch,
		loggerAdapter: ic.loggerAdapter,
	}
}

// Clone returns a copy that owns its pending state and artifacts.
func (ic *RunContext) Clone() *RunContext {
	c := ic.derive(ic.Emit, ic.Resume, ic.Branch)

	maps.Copy(c.StateDelta, ic.StateDelta)
	c.Artifacts = append(c.Artifacts, ic.Artifacts...)

	return c
}

// WithBranch clones the context and sets the Branch label.
func (ic *RunContext) WithBranch(b string) *RunContext {
	c := ic.Clone()
	c.Branch = b

	return c
}

// WithAgent clones the context and scopes it to the given agent.
func (ic *RunContext) WithAgent(info AgentInfo) *RunContext {
	c := ic.Clone()
	c.Agent = info

	return c
}

// NewChildContext derives a context with its own emit/resume pair and empty
// pending buffers. An empty branch keeps the parent's.
func (ic *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	if branch == "" {
		branch = ic.Branch
	}

	return ic.derive(emit, resume, branch)
}

// Done returns a channel closed when the underlying context is cancelled.
func (ic *RunContext) Done() <-chan struct{} { return ic.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (ic *RunContext) Err() error { return ic.Context.Err() }

// GetState prefers a staged value over the session snapshot. A staged nil
// reads as absent.
func (ic *RunContext) GetState(k string) (any, bool) {
	if v, ok := ic.StateDelta[k]; ok {
		return v, v != nil
	}

	if ic.Session != nil {
		return ic.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state change. A nil value deletes the key once applied.
func (ic *RunContext) SetState(k string, v any) { ic.StateDelta[k] = v }

// ApplyStateDelta stages every pair of d.
func (ic *RunContext) ApplyStateDelta(d map[string]any) { maps.Copy(ic.StateDelta, d) }

// HasPendingChanges reports whether staged state or artifacts await emission.
func (ic *RunContext) HasPendingChanges() bool {
	return len(ic.StateDelta) > 0 || len(ic.Artifacts) > 0
}

// AddArtifact stages an artifact id for the next emitted event.
func (ic *RunContext) AddArtifact(id string) { ic.Artifacts = append(ic.Artifacts, id) }

func errNoStore(kind string) error { return fmt.Errorf("%s store not configured", kind) }

// SaveArtifact writes data to the ArtifactStore and stages its id.
func (ic *RunContext) SaveArtifact(id string, data []byte) error {
	if ic.ArtifactStore == nil {
		return errNoStore("artifact")
	}

	if err := ic.ArtifactStore.Save(ic.SessionID, id, data); err != nil {
		return fmt.Errorf("save artifact %s: %w", id, err)
	}

	ic.AddArtifact(id)

	return nil
}

// GetArtifact reads a saved artifact of the session.
func (ic *RunContext) GetArtifact(id string) ([]byte, error) {
	if ic.ArtifactStore == nil {
		return nil, errNoStore("artifact")
	}

	return ic.ArtifactStore.Get(ic.SessionID, id)
}

// ListArtifacts returns the artifact ids of the session.
func (ic *RunContext) ListArtifacts() ([]string, error) {
	if ic.ArtifactStore == nil {
		return []string{}, nil
	}

	return ic.ArtifactStore.List(ic.SessionID)
}

// SearchMemory queries the MemoryStore. Without a store it finds nothing.
func (ic *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if ic.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return ic.MemoryStore.Search(ic.SessionID, q, limit)
}

// StoreMemory appends content plus metadata to the MemoryStore.
func (ic *RunContext) StoreMemory(content string, md map[string]any) error {
	if ic.MemoryStore == nil {
		return errNoStore("memory")
	}

	return ic.MemoryStore.Store(ic.SessionID, content, md)
}

// RefreshSession replaces the snapshot with the stored session.
func (ic *RunContext) RefreshSession() error {
	if ic.SessionStore == nil {
		return errNoStore("session")
	}

	s, err := ic.SessionStore.Get(ic.SessionID)
	if err != nil {
		return err
	}

	ic.Session = s

	return nil
}

// CommitStateDelta writes the staged delta straight to the store, bypassing
// the event log.
func (ic *RunContext) CommitStateDelta() error {
	if len(ic.StateDelta) == 0 {
		return nil
	}

	if ic.SessionStore == nil {
		return errNoStore("session")
	}

	if err := ic.SessionStore.ApplyDelta(ic.SessionID, ic.StateDelta); err != nil {
		return err
	}

	if ic.Session != nil {
		ic.Session.ApplyStateDelta(ic.StateDelta)
	}

	ic.StateDelta = map[string]any{}

	return nil
}

// GetSessionHistory returns the events of the snapshot.
func (ic *RunContext) GetSessionHistory() []Event {
	if ic.Session == nil {
		return []Event{}
	}

	return ic.Session.GetEvents()
}

// GetAgentName returns the name of the agent this context is scoped to.
func (ic *RunContext) GetAgentName() string { return ic.Agent.Name }

// GetAgentType returns the type label of the agent.
func (ic *RunContext) GetAgentType() string { return ic.Agent.Type }

// attachPending copies staged changes into ev. Keys the event already sets
// win over staged ones.
func (ic *RunContext) attachPending(ev *Event) {
	if len(ic.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = make(map[string]any, len(ic.StateDelta))
		}

		for k, v := range ic.StateDelta {
			if _, exists := ev.Actions.StateDelta[k]; !exists {
				ev.Actions.StateDelta[k] = v
			}
		}
	}

	if len(ic.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = make(map[string]int, len(ic.Artifacts))
		}

		for _, id := range ic.Artifacts {
			if _, exists := ev.Actions.ArtifactDelta[id]; !exists {
				ev.Actions.ArtifactDelta[id] = 1
			}
		}
	}
}

func (ic *RunContext) resetPending() {
	ic.StateDelta = map[string]any{}
	ic.Artifacts = []string{}
}

// EmitEvent stamps ev with the run id and branch, attaches staged changes to
// non-partial events and sends it. After a non-partial send the delta is
// applied to the local snapshot and the pending buffers are cleared.
func (ic *RunContext) EmitEvent(ev Event) error {
	if ic.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	if ev.InvocationID == "" {
		ev.InvocationID = ic.RunID
	}

	if ev.Branch == nil && ic.Branch != "" {
		b := ic.Branch
		ev.Branch = &b
	}

	// A cancelled context never sends, even while Emit has room.
	if err := ic.Context.Err(); err != nil {
		return err
	}

	partial := ev.IsPartial()
	if !partial {
		ic.attachPending(&ev)
	}

	select {
	case <-ic.Context.Done():
		return ic.Context.Err()
	case ic.Emit <- ev:
	}

	if partial {
		return nil
	}

	if ic.Session != nil && len(ev.Actions.StateDelta) > 0 {
		ic.Session.ApplyStateDelta(ev.Actions.StateDelta)
	}

	ic.resetPending()

	return nil
}

// WaitForResume blocks until the runner signals Resume or the run ends.
//
// An abandoned wait drains a signal that is already queued, but the runner
// may still signal later. Contexts that share Resume must therefore not wait
// under a context that can end before the others do; see agent.ParallelAgent.
func (ic *RunContext) WaitForResume() error {
	if ic.Resume == nil {
		return nil
	}

	select {
	case <-ic.Resume:
		return nil
	case <-ic.Context.Done():
		select {
		case <-ic.Resume:
		default:
		}

		return ic.Context.Err()
	}
}

// EmitAndWait emits ev and, unless it is partial, waits until the runner has
// persisted it.
func (ic *RunContext) EmitAndWait(ev Event) error {
	if err := ic.EmitEvent(ev); err != nil {
		return err
	}

	if ev.IsPartial() {
		return nil
	}

	return ic.WaitForResume()
}

// FlushState emits a state-only event for any staged delta or artifacts.
// It is a no-op when nothing is pending.
func (ic *RunContext) FlushState(author string) error {
	if !ic.HasPendingChanges() {
		return nil
	}

	return ic.EmitAndWait(NewStateEvent(ic.RunID, author, nil))
}
