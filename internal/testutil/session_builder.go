package testutil

import "github.com/hupe1980/adkpatterns/core"

// SessionBuilder helps construct sessions with fluent chaining for tests.
//
//	sess := NewSessionBuilder("sess-1").State("k", "v").Events(ev1, ev2).Build()
type SessionBuilder struct {
	id     string
	state  map[string]any
	events []core.Event
}

// NewSessionBuilder creates a builder for a session with the given id.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, state: map[string]any{}}
}

// State sets a state key.
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// Events appends events to the history.
func (b *SessionBuilder) Events(evs ...core.Event) *SessionBuilder {
	b.events = append(b.events, evs...)
	return b
}

// Build returns the session.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id)
	s.ApplyStateDelta(b.state)

	for _, ev := range b.events {
		s.AddEvent(ev)
	}

	return s
}

// Seed writes the built session into store.
func (b *SessionBuilder) Seed(store core.SessionStore) error {
	if _, err := store.Create(b.id); err != nil {
		return err
	}

	if err := store.ApplyDelta(b.id, b.state); err != nil {
		return err
	}

	for _, ev := range b.events {
		if err := store.AppendEvent(b.id, ev); err != nil {
			return err
		}
	}

	return nil
}
