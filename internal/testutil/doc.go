// Package testutil holds test helpers: fluent builders for events and
// sessions, a RunContext wired to in-memory stores, and RunAgent, which drives
// an agent through the real runner.
package testutil
