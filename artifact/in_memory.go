package artifact

import (
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore keeps artifacts in a nested map (session -> id -> bytes).
// Data is copied on the way in and out.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]map[string][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[string]map[string][]byte)}
}

// Save stores or overwrites an artifact.
func (a *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	if artifactID == "" {
		return fmt.Errorf("artifact id must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.artifacts[sessionID]; !ok {
		a.artifacts[sessionID] = make(map[string][]byte)
	}

	a.artifacts[sessionID][artifactID] = append([]byte(nil), data...)

	return nil
}

// Get returns a copy of the stored bytes or ErrNotFound.
func (a *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, ok := a.artifacts[sessionID][artifactID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, artifactID)
	}

	return append([]byte(nil), data...), nil
}

// List returns the artifact ids of the session in lexical order.
func (a *InMemoryStore) List(sessionID string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.artifacts[sessionID]))
	for id := range a.artifacts[sessionID] {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids, nil
}

// Delete removes an artifact or returns ErrNotFound.
func (a *InMemoryStore) Delete(sessionID, artifactID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.artifacts[sessionID][artifactID]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, sessionID, artifactID)
	}

	delete(a.artifacts[sessionID], artifactID)

	return nil
}
