package core

import (
	"context"

	"github.com/hupe1980/adkpatterns/logging"
)

// CallbackContext is handed to agent and model callbacks. State written
// through it is staged on the run and travels with the next emitted event.
type CallbackContext struct {
	runCtx *RunContext
}

// NewCallbackContext wraps runCtx for callback use.
func NewCallbackContext(runCtx *RunContext) *CallbackContext {
	return &CallbackContext{runCtx: runCtx}
}

// Context returns the cancellation context of the run.
func (c *CallbackContext) Context() context.Context { return c.runCtx.Context }

// AgentName returns the name of the agent the callback runs for.
func (c *CallbackContext) AgentName() string { return c.runCtx.Agent.Name }

// SessionID returns the session identifier.
func (c *CallbackContext) SessionID() string { return c.runCtx.SessionID }

// RunID returns the run identifier.
func (c *CallbackContext) RunID() string { return c.runCtx.RunID }

// Branch returns the branch label of the run.
func (c *CallbackContext) Branch() string { return c.runCtx.Branch }

// UserContent returns the user input that started the run.
func (c *CallbackContext) UserContent() Content { return c.runCtx.UserContent }

// Logger returns the run logger.
func (c *CallbackContext) Logger() logging.Logger { return c.runCtx.Logger() }

// GetState reads staged or persisted state.
func (c *CallbackContext) GetState(k string) (any, bool) { return c.runCtx.GetState(k) }

// SetState stages a state mutation.
func (c *CallbackContext) SetState(k string, v any) { c.runCtx.SetState(k, v) }

// IncrementState adds by to an integer counter and returns the new value.
// Missing keys start at zero.
func (c *CallbackContext) IncrementState(k string, by int) int {
	cur, _ := c.runCtx.GetState(k)
	n := IntState(cur) + by
	c.runCtx.SetState(k, n)

	return n
}

// RunContext exposes the underlying run context.
func (c *CallbackContext) RunContext() *RunContext { return c.runCtx }
