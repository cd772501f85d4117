package agent

import (
	"fmt"

	"github.com/hupe1980/adkpatterns/core"
)

// SequentialAgent runs its children in order. They share the session, so
// state written by one child is visible to the next.
type SequentialAgent struct {
	BaseAgent
}

// NewSequentialAgent creates a sequential workflow over children. It panics
// if a child already belongs to another agent.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	s := &SequentialAgent{BaseAgent: newBaseAgent(name, KindSequential)}
	s.init(s)

	if err := s.SetSubAgents(children...); err != nil {
		panic(err)
	}

	return s
}

// Run implements core.Agent. The first child error stops the sequence.
func (s *SequentialAgent) Run(runCtx *core.RunContext) error {
	return s.Execute(runCtx, func(rc *core.RunContext) error {
		for _, child := range s.SubAgents() {
			if err := rc.Err(); err != nil {
				return err
			}

			if err := child.Run(rc); err != nil {
				return fmt.Errorf("sequential agent %s: child %s: %w", s.Name(), child.Name(), err)
			}
		}

		return nil
	})
}
