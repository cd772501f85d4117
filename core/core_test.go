package core

import (
	"context"
	"maps"
	"sync"

	"github.com/hupe1980/adkpatterns/logging"
)

type mockSessionStore struct {
	mu      sync.Mutex
	applied map[string]map[string]any
	events  map[string][]Event
}

func (s *mockSessionStore) Get(id string) (*Session, error)    { return NewSession(id), nil }
func (s *mockSessionStore) Create(id string) (*Session, error) { return NewSession(id), nil }
func (s *mockSessionStore) List() ([]string, error)            { return nil, nil }
func (s *mockSessionStore) Delete(string) error                { return nil }

func (s *mockSessionStore) AppendEvent(id string, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		s.events = map[string][]Event{}
	}

	s.events[id] = append(s.events[id], ev)

	return nil
}

func (s *mockSessionStore) ApplyDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.applied == nil {
		s.applied = map[string]map[string]any{}
	}

	s.applied[id] = maps.Clone(delta)

	return nil
}

type mockArtifactStore struct{ saved map[string]map[string][]byte }

func (a *mockArtifactStore) Save(sid, aid string, data []byte) error {
	if a.saved == nil {
		a.saved = map[string]map[string][]byte{}
	}

	if _, ok := a.saved[sid]; !ok {
		a.saved[sid] = map[string][]byte{}
	}

	a.saved[sid][aid] = append([]byte{}, data...)

	return nil
}

func (a *mockArtifactStore) Get(sid, aid string) ([]byte, error) { return a.saved[sid][aid], nil }

func (a *mockArtifactStore) List(sid string) ([]string, error) {
	res := []string{}
	for k := range a.saved[sid] {
		res = append(res, k)
	}

	return res, nil
}

func (a *mockArtifactStore) Delete(string, string) error { return nil }

type mockMemoryStore struct{ stored []string }

func (m *mockMemoryStore) Get(string) (map[string]any, error) { return map[string]any{}, nil }
func (m *mockMemoryStore) Put(string, map[string]any) error   { return nil }

func (m *mockMemoryStore) Search(_, _ string, _ int) ([]SearchResult, error) {
	return []SearchResult{{ID: "m1", Content: "remembered", Score: 0.9}}, nil
}

func (m *mockMemoryStore) Store(_, content string, _ map[string]any) error {
	m.stored = append(m.stored, content)
	return nil
}

func (m *mockMemoryStore) Delete(string, string) error { return nil }

func newRunContextForTest() (*RunContext, chan Event) {
	emit := make(chan Event, 5)
	resume := make(chan struct{}, 5)

	return NewRunContext(context.Background(), RunParams{
		SessionID:     "sess-x",
		RunID:         "run-x",
		Agent:         AgentInfo{Name: "Agent1", Type: "test"},
		UserContent:   NewTextContent(RoleUser, "hello"),
		Session:       NewSession("sess-x"),
		SessionStore:  &mockSessionStore{},
		ArtifactStore: &mockArtifactStore{},
		MemoryStore:   &mockMemoryStore{},
		Logger:        logging.NoOpLogger{},
	}, emit, resume), emit
}
