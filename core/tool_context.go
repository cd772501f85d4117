package core

import (
	"context"
	"errors"
	"maps"

	"github.com/hupe1980/adkpatterns/logging"
)

// ErrInvalidToolContext is returned by Validate for a context without a run,
// session or function call id.
var ErrInvalidToolContext = errors.New("invalid tool context")

// ToolContext is what a tool sees of the run. Its writes (state, control
// signals, artifact ids) collect in an EventActions value and reach the
// session only through the function response event they are applied to.
//
// A ToolContext belongs to one call and is not safe for concurrent use.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	actions        EventActions

	*loggerAdapter
}

// NewToolContext binds a tool call to its run.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		loggerAdapter:  runCtx.loggerAdapter.withLogger("function_call_id", functionCallID),
	}
}

func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }
func (tc *ToolContext) SessionID() string        { return tc.runCtx.SessionID }
func (tc *ToolContext) RunID() string            { return tc.runCtx.RunID }
func (tc *ToolContext) FunctionCallID() string   { return tc.functionCallID }
func (tc *ToolContext) AgentName() string        { return tc.runCtx.Agent.Name }
func (tc *ToolContext) AgentType() string        { return tc.runCtx.Agent.Type }
func (tc *ToolContext) Logger() logging.Logger   { return tc.loggerAdapter.Logger() }

// RunContext returns the run context the tool executes in.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }

// Actions exposes the pending actions of this call.
func (tc *ToolContext) Actions() *EventActions { return &tc.actions }

// GetState prefers values written by this call, then falls back to the run.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.actions.StateDelta[k]; ok {
		return v, v != nil
	}

	return tc.runCtx.GetState(k)
}

// SetState records a change that becomes visible once the response event is
// persisted.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.actions.StateDelta == nil {
		tc.actions.StateDelta = map[string]any{}
	}

	tc.actions.StateDelta[k] = v
}

// DeleteState removes k when the response event is persisted.
func (tc *ToolContext) DeleteState(k string) { tc.SetState(k, nil) }

// StateSnapshot returns the session state overlaid with the run's staged
// delta and this call's writes.
func (tc *ToolContext) StateSnapshot() map[string]any {
	out := map[string]any{}
	if tc.runCtx.Session != nil {
		out = tc.runCtx.Session.StateSnapshot()
	}

	for _, delta := range []map[string]any{tc.runCtx.StateDelta, tc.actions.StateDelta} {
		for k, v := range delta {
			if v == nil {
				delete(out, k)
				continue
			}

			out[k] = v
		}
	}

	return out
}

// SkipSummarization ends the model turn with this tool's result.
func (tc *ToolContext) SkipSummarization() {
	if tc.actions.SkipSummarization == nil {
		tc.actions.SkipSummarization = boolPtr(true)
	}
}

// TransferToAgent hands control to the named agent after this call.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.actions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name)
}

// Escalate asks the enclosing loop to stop.
func (tc *ToolContext) Escalate() {
	if tc.actions.Escalate == nil {
		tc.actions.Escalate = boolPtr(true)
	}

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName())
}

// SaveArtifact writes data to the artifact store. The delta records the size
// in bytes.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	if tc.runCtx.ArtifactStore == nil {
		return errNoStore("artifact")
	}

	if err := tc.runCtx.ArtifactStore.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	if tc.actions.ArtifactDelta == nil {
		tc.actions.ArtifactDelta = map[string]int{}
	}

	tc.actions.ArtifactDelta[id] = len(data)

	return nil
}

func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) { return tc.runCtx.GetArtifact(id) }

func (tc *ToolContext) ListArtifacts() ([]string, error) { return tc.runCtx.ListArtifacts() }

func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	return tc.runCtx.SearchMemory(q, limit)
}

func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	return tc.runCtx.StoreMemory(content, md)
}

// GetSessionHistory returns the conversation so far, without partials.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// IsValid reports whether the context is bound to a run, a session and a
// function call.
func (tc *ToolContext) IsValid() bool {
	return tc.runCtx != nil && tc.runCtx.SessionID != "" && tc.functionCallID != ""
}

// Validate returns ErrInvalidToolContext when IsValid is false.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return ErrInvalidToolContext
	}

	return nil
}

// ApplyActions copies the pending actions of this call into ev. Call keys
// overwrite keys the event already carries.
func (tc *ToolContext) ApplyActions(ev *Event) {
	a := tc.actions

	if len(a.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = make(map[string]any, len(a.StateDelta))
		}

		maps.Copy(ev.Actions.StateDelta, a.StateDelta)
	}

	if len(a.ArtifactDelta) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = make(map[string]int, len(a.ArtifactDelta))
		}

		maps.Copy(ev.Actions.ArtifactDelta, a.ArtifactDelta)
	}

	if a.SkipSummarization != nil {
		ev.Actions.SkipSummarization = a.SkipSummarization
	}

	if a.TransferToAgent != nil {
		ev.Actions.TransferToAgent = a.TransferToAgent
		tc.LogDebug("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *a.TransferToAgent)
	}

	if a.Escalate != nil {
		ev.Actions.Escalate = a.Escalate
		tc.LogDebug("tool.escalate.applied", "agent", tc.AgentName())
	}
}

func boolPtr(b bool) *bool { return &b }
