// Package core provides the domain types shared by every other package:
//
//   - Agent, the interface all agents implement
//   - Session and its flat key/value state
//   - Event, Content and the closed set of content parts
//   - RunContext, ToolContext and CallbackContext, the scoped views agents,
//     tools and callbacks work with
//   - the session, artifact and memory store interfaces
//
// State written through a context is staged and travels to the store on the
// next emitted event. The runner persists each event before the emitter
// continues, so the next read sees it.
package core
