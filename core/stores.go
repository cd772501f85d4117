package core

import "errors"

// ErrSessionNotFound is returned by SessionStore implementations when a
// session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions and their evolving state / event history.
// Get returns a snapshot the caller owns; later store mutations are not
// reflected in it.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	List() ([]string, error)
	Delete(id string) error
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}

// EventCommitter is implemented by session stores that can append an event
// and apply its state delta in one atomic step. Either both become visible
// or neither does.
type EventCommitter interface {
	CommitEvent(sessionID string, event Event) error
}

// ArtifactStore defines the interface for artifact persistence. Implementations
// should be thread-safe and scope artifacts by session identifier.
type ArtifactStore interface {
	Save(sessionID, artifactID string, data []byte) error
	Get(sessionID, artifactID string) ([]byte, error)
	List(sessionID string) ([]string, error)
	Delete(sessionID, artifactID string) error
}

// MemoryStore defines persistence + retrieval (search) for conversational
// memory snippets.
type MemoryStore interface {
	Get(sessionID string) (map[string]any, error)
	Put(sessionID string, delta map[string]any) error
	Search(sessionID string, query string, limit int) ([]SearchResult, error)
	Store(sessionID string, content string, metadata map[string]any) error
	Delete(sessionID string, memoryID string) error
}

// SearchResult represents a retrieved memory item with a relevance score and arbitrary metadata.
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
