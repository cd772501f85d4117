// Package engine hosts several root agents over shared stores. Each
// registered agent gets its own runner; sessions, artifacts and memory are
// shared, so one session can be continued by different agents.
package engine
