// Package runner drives a root agent against the session, artifact and memory
// stores.
//
// For every run the Runner:
//   - creates the session on first use and records the user message
//   - starts the agent in its own goroutine
//   - applies each non-partial event's state delta, appends the event to the
//     session and only then resumes the agent
//   - forwards every event, partial or not, to the caller
//
// The resume handshake guarantees that an agent which continues after an
// emit observes its own writes in the persisted session.
package runner
