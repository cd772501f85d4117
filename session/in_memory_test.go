package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
)

var (
	_ core.SessionStore   = (*InMemoryStore)(nil)
	_ core.SessionStore   = (*SQLiteStore)(nil)
	_ core.EventCommitter = (*InMemoryStore)(nil)
	_ core.EventCommitter = (*SQLiteStore)(nil)
)

// storeFactories runs the shared contract against every backend.
func storeFactories(t *testing.T) map[string]func() core.SessionStore {
	return map[string]func() core.SessionStore{
		"memory": func() core.SessionStore { return NewInMemoryStore() },
		"sqlite": func() core.SessionStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })

			return s
		},
	}
}

func TestStore_GetUnknownSession(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			_, err := store.Get("missing")
			assert.ErrorIs(t, err, core.ErrSessionNotFound)

			assert.ErrorIs(t, store.AppendEvent("missing", core.NewEvent("r", "a")), core.ErrSessionNotFound)
			assert.ErrorIs(t, store.ApplyDelta("missing", map[string]any{"k": 1}), core.ErrSessionNotFound)
		})
	}
}

func TestStore_CreateIsIdempotent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			_, err := store.Create("s1")
			require.NoError(t, err)
			require.NoError(t, store.ApplyDelta("s1", map[string]any{"k": "v"}))

			sess, err := store.Create("s1")
			require.NoError(t, err)

			v, ok := sess.GetState("k")
			require.True(t, ok)
			assert.Equal(t, "v", v)
		})
	}
}

func TestStore_EventsAndState(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			_, err := store.Create("s1")
			require.NoError(t, err)

			require.NoError(t, store.AppendEvent("s1", core.NewUserMessageEvent("run-1", "hello")))
			require.NoError(t, store.AppendEvent("s1", core.NewFunctionCallEvent("run-1", "Agent", "fc-1", "exit_loop", "{}")))
			require.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("run-1", "Agent", "done")))

			require.NoError(t, store.ApplyDelta("s1", map[string]any{"user:request_count": 2, "gone": "x"}))
			require.NoError(t, store.ApplyDelta("s1", map[string]any{"gone": nil}))

			sess, err := store.Get("s1")
			require.NoError(t, err)

			events := sess.GetEvents()
			require.Len(t, events, 3)
			assert.Equal(t, "hello", events[0].Text())
			assert.Equal(t, "exit_loop", events[1].GetFunctionCalls()[0].Name)
			assert.Equal(t, "done", events[2].Text())

			v, _ := sess.GetState("user:request_count")
			assert.Equal(t, 2, core.IntState(v))

			_, ok := sess.GetState("gone")
			assert.False(t, ok)
		})
	}
}

func TestStore_CommitEvent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			_, err := store.Create("s1")
			require.NoError(t, err)

			committer, ok := store.(core.EventCommitter)
			require.True(t, ok)

			ev := core.NewStateEvent("run-1", "Agent", map[string]any{"user:tool_echo_count": 1})
			require.NoError(t, committer.CommitEvent("s1", ev))
			require.NoError(t, committer.CommitEvent("s1", core.NewMessageEvent("run-1", "Agent", "done")))

			sess, err := store.Get("s1")
			require.NoError(t, err)
			require.Len(t, sess.GetEvents(), 2)

			v, _ := sess.GetState("user:tool_echo_count")
			assert.Equal(t, 1, core.IntState(v))

			assert.ErrorIs(t, committer.CommitEvent("missing", ev), core.ErrSessionNotFound)
		})
	}
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			_, err := store.Create("s1")
			require.NoError(t, err)

			snap, err := store.Get("s1")
			require.NoError(t, err)
			snap.SetState("local", true)

			fresh, err := store.Get("s1")
			require.NoError(t, err)

			_, ok := fresh.GetState("local")
			assert.False(t, ok)
		})
	}
}

func TestStore_ListAndDelete(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			for _, id := range []string{"b", "a"} {
				_, err := store.Create(id)
				require.NoError(t, err)
			}

			ids, err := store.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			require.NoError(t, store.Delete("a"))
			assert.ErrorIs(t, store.Delete("a"), core.ErrSessionNotFound)

			ids, err = store.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids)
		})
	}
}

func TestStore_ConcurrentAppends(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			_, err := store.Create("s1")
			require.NoError(t, err)

			var wg sync.WaitGroup

			for i := 0; i < 20; i++ {
				wg.Add(1)

				go func(i int) {
					defer wg.Done()
					assert.NoError(t, store.AppendEvent("s1", core.NewMessageEvent("r", "A", fmt.Sprint(i))))
				}(i)
			}

			wg.Wait()

			sess, err := store.Get("s1")
			require.NoError(t, err)
			assert.Len(t, sess.GetEvents(), 20)
		})
	}
}
