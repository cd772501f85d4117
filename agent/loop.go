package agent

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/adkpatterns/core"
)

// LoopAgent repeats its children in order until one of them escalates, the
// predicate accepts the last text output or the iteration limit is reached.
type LoopAgent struct {
	BaseAgent
	maxIters    int
	interval    time.Duration
	stopOnError bool
	predicate   func(string) bool
}

// LoopOption configures a LoopAgent.
type LoopOption func(*LoopAgent)

// WithMaxIterations limits the number of iterations. Zero means unbounded.
func WithMaxIterations(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval sleeps between iterations.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithStopOnError controls whether a child error ends the loop (default) or
// is logged and skipped.
func WithStopOnError(stop bool) LoopOption {
	return func(l *LoopAgent) { l.stopOnError = stop }
}

// WithPredicate ends the loop once pred returns true for the last text
// output of an iteration.
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "COMPLETE")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// NewLoopAgent creates a loop over children. Without options it runs until
// a child escalates and stops on the first error. It panics if a child
// already belongs to another agent.
func NewLoopAgent(name string, children []core.Agent, opts ...LoopOption) *LoopAgent {
	l := &LoopAgent{BaseAgent: newBaseAgent(name, KindLoop), stopOnError: true}
	l.init(l)

	for _, o := range opts {
		o(l)
	}

	if err := l.SetSubAgents(children...); err != nil {
		panic(err)
	}

	return l
}

// MaxIterations returns the iteration limit.
func (l *LoopAgent) MaxIterations() int { return l.maxIters }

// Run implements core.Agent.
func (l *LoopAgent) Run(runCtx *core.RunContext) error {
	return l.Execute(runCtx, func(rc *core.RunContext) error {
		var mu sync.Mutex

		for i := 1; l.maxIters == 0 || i <= l.maxIters; i++ {
			if err := rc.Err(); err != nil {
				return err
			}

			rc.LogInfo("agent.loop.iteration", "agent", l.Name(), "iteration", i, "max_iterations", l.maxIters)

			var (
				escalated bool
				lastText  string
			)

			observe := func(ev core.Event) {
				if ev.IsEscalation() {
					escalated = true
				}

				if !ev.IsPartial() && ev.IsFinalResponse() {
					if t := strings.TrimSpace(ev.Text()); t != "" {
						lastText = t
					}
				}
			}

			for _, child := range l.SubAgents() {
				err := relay{parent: rc, mu: &mu, observe: observe}.run(child)
				if err != nil {
					if l.stopOnError || rc.Err() != nil {
						return fmt.Errorf("loop agent %s: iteration %d: child %s: %w", l.Name(), i, child.Name(), err)
					}

					rc.LogWarn("agent.loop.child_failed", "agent", l.Name(), "iteration", i, "child", child.Name(), "error", err.Error())
				}

				if escalated {
					rc.LogInfo("agent.loop.escalated", "agent", l.Name(), "iteration", i, "child", child.Name())
					return nil
				}
			}

			if l.predicate != nil && l.predicate(lastText) {
				rc.LogInfo("agent.loop.predicate_met", "agent", l.Name(), "iteration", i)
				return nil
			}

			if l.interval > 0 && (l.maxIters == 0 || i < l.maxIters) {
				select {
				case <-rc.Done():
					return rc.Err()
				case <-time.After(l.interval):
				}
			}
		}

		rc.LogInfo("agent.loop.completed", "agent", l.Name(), "iterations", l.maxIters)

		return nil
	})
}
