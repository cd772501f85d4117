package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/artifact"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/logging"
	"github.com/hupe1980/adkpatterns/memory"
	"github.com/hupe1980/adkpatterns/runner"
	"github.com/hupe1980/adkpatterns/session"
)

// Stores bundles the in-memory stores used by a test run.
type Stores struct {
	Sessions  *session.InMemoryStore
	Artifacts *artifact.InMemoryStore
	Memory    *memory.InMemoryStore
}

// NewStores returns fresh in-memory stores.
func NewStores() Stores {
	return Stores{
		Sessions:  session.NewInMemoryStore(),
		Artifacts: artifact.NewInMemoryStore(),
		Memory:    memory.NewInMemoryStore(),
	}
}

// NewRunContext returns a RunContext for sessionID backed by in-memory stores.
// The returned channel receives emitted events; resume is pre-signalled for
// every emit so EmitAndWait never blocks.
func NewRunContext(t testing.TB, stores Stores, sessionID string) (*core.RunContext, <-chan core.Event) {
	t.Helper()

	sess, err := stores.Sessions.Create(sessionID)
	require.NoError(t, err)

	emit := make(chan core.Event, 64)
	resume := make(chan struct{}, 64)

	for range cap(resume) {
		resume <- struct{}{}
	}

	rc := core.NewRunContext(context.Background(), core.RunParams{
		SessionID:     sessionID,
		RunID:         core.NewID(),
		Agent:         core.AgentInfo{Name: "test_agent", Type: "test"},
		UserContent:   core.NewTextContent(core.RoleUser, "hello"),
		Session:       sess,
		SessionStore:  stores.Sessions,
		ArtifactStore: stores.Artifacts,
		MemoryStore:   stores.Memory,
		Logger:        logging.NoOpLogger{},
	}, emit, resume)

	return rc, emit
}

// Result is the outcome of RunAgent.
type Result struct {
	Events  []core.Event
	Partial []core.Event
	Session *core.Session
	Err     error
}

// FinalText returns the last final text authored by an agent.
func (r Result) FinalText() string { return core.FinalText(r.Events) }

// State returns a state value of the persisted session.
func (r Result) State(key string) any {
	v, _ := r.Session.GetState(key)
	return v
}

// Authors lists the authors of the non-partial events in order.
func (r Result) Authors() []string {
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Author)
	}

	return out
}

// RunOption tweaks RunAgent.
type RunOption func(*runOptions)

type runOptions struct {
	sessionID string
	stores    Stores
	seeded    bool
	state     map[string]any
	timeout   time.Duration
	runner    []func(o *runner.Options)
}

// WithSessionID sets the session id (default "test-session").
func WithSessionID(id string) RunOption { return func(o *runOptions) { o.sessionID = id } }

// WithStores runs against the given stores, e.g. to inspect artifacts.
func WithStores(s Stores) RunOption { return func(o *runOptions) { o.stores = s; o.seeded = true } }

// WithState seeds session state before the run.
func WithState(state map[string]any) RunOption { return func(o *runOptions) { o.state = state } }

// WithRunnerOptions forwards runner options.
func WithRunnerOptions(fns ...func(o *runner.Options)) RunOption {
	return func(o *runOptions) { o.runner = append(o.runner, fns...) }
}

// RunAgent runs agent on prompt through a runner with in-memory stores and
// collects everything it emitted. It fails the test on timeout.
func RunAgent(t testing.TB, agent core.Agent, prompt string, optFns ...RunOption) Result {
	t.Helper()

	opts := runOptions{sessionID: "test-session", timeout: 10 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	if !opts.seeded {
		opts.stores = NewStores()
	}

	if len(opts.state) > 0 {
		require.NoError(t, NewSessionBuilder(opts.sessionID).Seed(opts.stores.Sessions))
		require.NoError(t, opts.stores.Sessions.ApplyDelta(opts.sessionID, opts.state))
	}

	r := runner.New(agent, append([]func(o *runner.Options){func(o *runner.Options) {
		o.SessionStore = opts.stores.Sessions
		o.ArtifactStore = opts.stores.Artifacts
		o.MemoryStore = opts.stores.Memory
	}}, opts.runner...)...)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	_, events, errs, err := r.Run(ctx, opts.sessionID, core.NewTextContent(core.RoleUser, prompt))
	require.NoError(t, err)

	var res Result

	for ev := range events {
		if ev.IsPartial() {
			res.Partial = append(res.Partial, ev)
			continue
		}

		res.Events = append(res.Events, ev)
	}

	res.Err = <-errs
	require.NotErrorIs(t, ctx.Err(), context.DeadlineExceeded, "agent run timed out")

	sess, err := opts.stores.Sessions.Get(opts.sessionID)
	require.NoError(t, err)

	res.Session = sess

	return res
}
