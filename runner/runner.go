package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/adkpatterns/artifact"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/memory"
	"github.com/hupe1980/adkpatterns/session"
)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// MaxConcurrentRuns bounds concurrently executing runs. Zero disables the limit.
	MaxConcurrentRuns int
	// EventBufferSize sets channel buffering for events.
	EventBufferSize int
	// MaxModelCalls limits the number of model calls per run. Zero means unlimited.
	MaxModelCalls int
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Logger        logging.Logger
}

// Runner executes one root agent. Public methods are safe for concurrent use.
type Runner struct {
	agent core.Agent

	eventBufferSize int
	maxModelCalls   int
	slots           chan struct{}

	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	logger        logging.Logger

	mu         sync.Mutex
	activeRuns map[string]context.CancelFunc
}

// New constructs a Runner with optional overrides.
func New(agent core.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentRuns: 10,
		EventBufferSize:   100,
		MaxModelCalls:     100,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if opts.ArtifactStore == nil {
		opts.ArtifactStore = artifact.NewInMemoryStore()
	}

	if opts.MemoryStore == nil {
		opts.MemoryStore = memory.NewInMemoryStore()
	}

	r := &Runner{
		agent:           agent,
		eventBufferSize: opts.EventBufferSize,
		maxModelCalls:   opts.MaxModelCalls,
		sessionStore:    opts.SessionStore,
		artifactStore:   opts.ArtifactStore,
		memoryStore:     opts.MemoryStore,
		logger:          logging.With(opts.Logger, "root_agent", agent.Name()),
		activeRuns:      make(map[string]context.CancelFunc),
	}

	if opts.MaxConcurrentRuns > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrentRuns)
	}

	return r
}

// Agent returns the root agent.
func (r *Runner) Agent() core.Agent { return r.agent }

// SessionStore returns the backing session store.
func (r *Runner) SessionStore() core.SessionStore { return r.sessionStore }

// Run starts an asynchronous run and returns its id plus the event and error
// streams. Both streams are closed when the run ends; the error stream
// carries at most one error.
func (r *Runner) Run(
	ctx context.Context,
	sessionID string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	if err := r.acquire(ctx); err != nil {
		return "", nil, nil, err
	}

	sess, err := r.loadOrCreate(sessionID)
	if err != nil {
		r.release()
		return "", nil, nil, err
	}

	runID := core.NewID()

	if userContent.Role == "" {
		userContent.Role = core.RoleUser
	}

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := r.commit(sessionID, userEvent); err != nil {
		r.release()
		return "", nil, nil, fmt.Errorf("append user event: %w", err)
	}

	sess.AddEvent(userEvent)

	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	eventsCh := make(chan core.Event, r.eventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, r.eventBufferSize)
	resumeCh := make(chan struct{}, 1)
	agentDone := make(chan error, 1)

	logger := logging.With(r.logger, "session_id", sessionID, "run_id", runID)

	runCtx := core.NewRunContext(ctx, core.RunParams{
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         core.AgentInfo{Name: r.agent.Name(), Type: "root"},
		UserContent:   userContent,
		Session:       sess,
		SessionStore:  r.sessionStore,
		ArtifactStore: r.artifactStore,
		MemoryStore:   r.memoryStore,
		MaxModelCalls: r.maxModelCalls,
		Logger:        logger,
	}, agentEmit, resumeCh)

	logger.Info("runner.run.start")

	go func() {
		defer close(agentEmit)
		agentDone <- r.runAgent(runCtx)
	}()

	go func() {
		start := time.Now()

		defer func() {
			cancel()
			r.mu.Lock()
			delete(r.activeRuns, runID)
			r.mu.Unlock()
			r.release()
			close(eventsCh)
			close(errorsCh)
		}()

		count, procErr := r.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh)
		if procErr != nil {
			cancel()

			for range agentEmit {
			}
		}

		err := <-agentDone
		if procErr != nil {
			err = procErr
		}

		if err != nil {
			logger.Error("runner.run.failed", "error", err.Error(), "events", count, "duration_ms", time.Since(start).Milliseconds())
			errorsCh <- err

			return
		}

		logger.Info("runner.run.finish", "events", count, "model_calls", runCtx.Limiter.Count(), "duration_ms", time.Since(start).Milliseconds())
	}()

	return runID, eventsCh, errorsCh, nil
}

// RunSync runs to completion and returns the non-partial events.
func (r *Runner) RunSync(ctx context.Context, sessionID string, userContent core.Content) ([]core.Event, error) {
	_, events, errs, err := r.Run(ctx, sessionID, userContent)
	if err != nil {
		return nil, err
	}

	var out []core.Event

	for ev := range events {
		if !ev.IsPartial() {
			out = append(out, ev)
		}
	}

	return out, <-errs
}

// Cancel cancels an active run by id.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, ok := r.activeRuns[runID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// ActiveRuns returns the number of runs in flight.
func (r *Runner) ActiveRuns() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.activeRuns)
}

func (r *Runner) loadOrCreate(sessionID string) (*core.Session, error) {
	sess, err := r.sessionStore.Get(sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		r.logger.Debug("runner.session.create", "session_id", sessionID)
		sess, err = r.sessionStore.Create(sessionID)
	}

	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	return sess, nil
}

func (r *Runner) acquire(ctx context.Context) error {
	if r.slots == nil {
		return nil
	}

	select {
	case r.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) release() {
	if r.slots != nil {
		<-r.slots
	}
}

func (r *Runner) runAgent(runCtx *core.RunContext) error {
	if err := r.agent.Start(runCtx); err != nil {
		return fmt.Errorf("start agent %s: %w", r.agent.Name(), err)
	}

	defer func() {
		if err := r.agent.Stop(runCtx); err != nil {
			runCtx.LogWarn("runner.agent.stop_failed", "agent", r.agent.Name(), "error", err.Error())
		}
	}()

	return r.agent.Run(runCtx)
}

// processEvents persists and forwards events until the agent closes its
// emit channel. It returns the number of persisted events.
func (r *Runner) processEvents(
	runCtx *core.RunContext,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
) (int, error) {
	persisted := 0

	for ev := range agentEmit {
		if !ev.IsPartial() {
			if err := r.persist(sessionID, ev); err != nil {
				return persisted, err
			}

			persisted++
		}

		select {
		case <-runCtx.Done():
			return persisted, runCtx.Err()
		case eventsCh <- ev:
		}

		if !ev.IsPartial() {
			select {
			case resumeCh <- struct{}{}:
			default:
			}
		}
	}

	return persisted, nil
}

func (r *Runner) persist(sessionID string, ev core.Event) error {
	if err := r.commit(sessionID, ev); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	if len(ev.Actions.ArtifactDelta) > 0 {
		r.logger.Debug("runner.event.artifacts", "event_id", ev.ID, "artifacts", len(ev.Actions.ArtifactDelta))
	}

	if t := ev.Actions.TransferToAgent; t != nil && *t != "" {
		r.logger.Debug("runner.event.transfer", "event_id", ev.ID, "to_agent", *t)
	}

	if ev.IsEscalation() {
		r.logger.Debug("runner.event.escalate", "event_id", ev.ID, "author", ev.Author)
	}

	return nil
}

// commit stores ev with its state delta, atomically when the store supports
// it.
func (r *Runner) commit(sessionID string, ev core.Event) error {
	if c, ok := r.sessionStore.(core.EventCommitter); ok {
		return c.CommitEvent(sessionID, ev)
	}

	if len(ev.Actions.StateDelta) > 0 {
		if err := r.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("apply state delta: %w", err)
		}
	}

	return r.sessionStore.AppendEvent(sessionID, ev)
}
