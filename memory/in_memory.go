package memory

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/hupe1980/adkpatterns/core"
)

// ErrNotFound is returned when deleting an unknown memory.
var ErrNotFound = errors.New("memory not found")

type storedMemory struct {
	id       string
	content  string
	terms    map[string]struct{}
	metadata map[string]any
	created  time.Time
}

// InMemoryStore is a process local MemoryStore with two parts: a per-session
// key/value map (Get / Put) and an append-only list of snippets (Store /
// Search).
type InMemoryStore struct {
	mu      sync.RWMutex
	kv      map[string]map[string]any
	storage map[string][]storedMemory
	seq     int
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		kv:      make(map[string]map[string]any),
		storage: make(map[string][]storedMemory),
	}
}

// Get returns a copy of the key/value memory of the session.
func (m *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any, len(m.kv[sessionID]))
	maps.Copy(out, m.kv[sessionID])

	return out, nil
}

// Put merges delta into the key/value memory of the session.
func (m *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.kv[sessionID]; !ok {
		m.kv[sessionID] = make(map[string]any, len(delta))
	}

	maps.Copy(m.kv[sessionID], delta)

	return nil
}

// Store appends a snippet.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("memory content must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++

	m.storage[sessionID] = append(m.storage[sessionID], storedMemory{
		id:       fmt.Sprintf("mem_%d", m.seq),
		content:  content,
		terms:    terms(content),
		metadata: maps.Clone(metadata),
		created:  time.Now().UTC(),
	})

	return nil
}

// Search scores each snippet by the fraction of query terms it contains and
// returns the best limit matches, newest first on ties. An empty query
// returns the newest snippets.
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := terms(query)
	results := []core.SearchResult{}
	order := map[string]int{}

	for i, mem := range m.storage[sessionID] {
		score := 1.0

		if len(q) > 0 {
			hits := 0

			for t := range q {
				if _, ok := mem.terms[t]; ok {
					hits++
				}
			}

			if hits == 0 {
				continue
			}

			score = float64(hits) / float64(len(q))
		}

		order[mem.id] = i
		results = append(results, core.SearchResult{
			ID:       mem.id,
			Content:  mem.content,
			Score:    score,
			Metadata: maps.Clone(mem.metadata),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return order[results[i].ID] > order[results[j].ID]
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Delete removes a stored snippet by id.
func (m *InMemoryStore) Delete(sessionID string, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.storage[sessionID]
	for i, mem := range list {
		if mem.id == memoryID {
			m.storage[sessionID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrNotFound, memoryID)
}

func terms(s string) map[string]struct{} {
	out := map[string]struct{}{}

	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(f) > 1 {
			out[f] = struct{}{}
		}
	}

	return out
}
