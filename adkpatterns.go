// Package adkpatterns is the entry point to the agent framework. An App
// hosts one or more root agents over shared stores:
//
//	app := adkpatterns.New()
//	app.RegisterAgent(agent.NewModelAgent("helper", llm))
//	_, events, err := app.InvokeSync(ctx, "session-1", "helper", "Hi!")
//
// Agents are composed from the agent package (model, sequential, parallel
// and loop agents); ready-made compositions live in the tutorials package.
package adkpatterns

import (
	"context"

	"github.com/hupe1980/adkpatterns/artifact"
	"github.com/hupe1980/adkpatterns/callback"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/engine"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/memory"
	"github.com/hupe1980/adkpatterns/session"
)

// Options configures an App.
type Options struct {
	EngineConfig engine.Config

	// Stores default to in-memory implementations.
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore

	// Callbacks are attached to every registered agent tree.
	Callbacks callback.Set

	// Logger defaults to a no-op logger.
	Logger logging.Logger
}

// App aggregates the engine and its stores.
type App struct {
	opts   Options
	engine *engine.Engine
}

// New creates an App. Unset stores are in-memory.
func New(optFns ...func(o *Options)) *App {
	opts := Options{
		EngineConfig:  engine.DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.ArtifactStore = opts.ArtifactStore
		o.MemoryStore = opts.MemoryStore
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &App{opts: opts, engine: e}
}

// Engine exposes the underlying engine.
func (a *App) Engine() *engine.Engine { return a.engine }

// RegisterAgent adds a root agent.
func (a *App) RegisterAgent(ag core.Agent) { a.engine.Register(ag) }

// Agents lists the registered root agents.
func (a *App) Agents() []core.Agent { return a.engine.Agents() }

// Invoke starts an asynchronous run with a text message.
func (a *App) Invoke(ctx context.Context, sessionID, agentName, message string) (string, <-chan core.Event, <-chan error, error) {
	return a.engine.Invoke(ctx, sessionID, agentName, core.NewTextContent(core.RoleUser, message))
}

// InvokeSync runs agentName on message and returns the final text of the
// run together with all non-partial events.
func (a *App) InvokeSync(ctx context.Context, sessionID, agentName, message string) (string, []core.Event, error) {
	_, events, err := a.engine.InvokeSync(ctx, sessionID, agentName, core.NewTextContent(core.RoleUser, message))

	return core.FinalText(events), events, err
}

// Session returns the persisted session.
func (a *App) Session(sessionID string) (*core.Session, error) { return a.engine.Session(sessionID) }

// Cancel cancels an active run.
func (a *App) Cancel(runID string) error { return a.engine.Cancel(runID) }
