// Package agent contains the agent implementations of adkpatterns:
//
//  1. BaseAgent: identity, hierarchy, lifecycle and agent-level callbacks
//  2. Workflow agents that compose others (SequentialAgent, ParallelAgent,
//     LoopAgent)
//  3. ModelAgent, which drives a language model through a flow
//
// Every agent runs synchronously inside Run and reports through events on
// the RunContext. Composite agents may nest arbitrarily; a ParallelAgent
// gives each child its own branch so siblings do not see each other's
// conversation.
package agent
