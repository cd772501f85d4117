package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/adkpatterns/core"
)

// ParallelAgent runs its children concurrently. Each child runs on its own
// branch ("parent.child"), so its model only sees the shared history plus
// its own events. Child events are persisted one at a time, so every
// child's output key lands in the shared state.
type ParallelAgent struct {
	BaseAgent
	timeout time.Duration
}

// NewParallelAgent creates a parallel workflow. A zero timeout means no
// limit. It panics if a child already belongs to another agent.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	p := &ParallelAgent{BaseAgent: newBaseAgent(name, KindParallel), timeout: timeout}
	p.init(p)

	if err := p.SetSubAgents(children...); err != nil {
		panic(err)
	}

	return p
}

// Run implements core.Agent. The first child error cancels the siblings and
// is returned.
func (p *ParallelAgent) Run(runCtx *core.RunContext) error {
	return p.Execute(runCtx, func(rc *core.RunContext) error {
		children := p.SubAgents()
		if len(children) == 0 {
			return nil
		}

		ctx := rc.Context

		if p.timeout > 0 {
			var cancel context.CancelFunc

			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		g, gctx := errgroup.WithContext(ctx)

		parent := rc.Clone()
		parent.Context = gctx

		base := rc.Branch
		if base == "" {
			base = p.Name()
		}

		var mu sync.Mutex

		for _, child := range children {
			r := relay{parent: parent, owner: rc, mu: &mu, branch: buildBranchPath(base, child.Name())}

			g.Go(func() error {
				if err := r.run(child); err != nil {
					return fmt.Errorf("parallel agent %s: child %s: %w", p.Name(), child.Name(), err)
				}

				return nil
			})
		}

		return g.Wait()
	})
}
