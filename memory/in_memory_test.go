package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/adkpatterns/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

func TestInMemoryStore_GetAndPut(t *testing.T) {
	store := NewInMemoryStore()

	m, err := store.Get("s1")
	require.NoError(t, err)
	assert.Empty(t, m)

	require.NoError(t, store.Put("s1", map[string]any{"k1": "v1", "k2": 2}))

	m, _ = store.Get("s1")
	assert.Equal(t, map[string]any{"k1": "v1", "k2": 2}, m)

	m["k1"] = "changed"
	again, _ := store.Get("s1")
	assert.Equal(t, "v1", again["k1"])
}

func TestInMemoryStore_SearchRanksByOverlap(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Store("s1", "The user prefers window seats on flights", nil))
	require.NoError(t, store.Store("s1", "Hotel budget is 200 EUR per night", map[string]any{"source": "chat"}))
	require.NoError(t, store.Store("s1", "Prefers hotels near the old town", nil))
	require.NoError(t, store.Store("s2", "hotel in another session", nil))

	res, err := store.Search("s1", "hotel budget", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Hotel budget is 200 EUR per night", res[0].Content)
	assert.Equal(t, 1.0, res[0].Score)
	assert.Equal(t, "chat", res[0].Metadata["source"])

	res, _ = store.Search("s1", "", 2)
	require.Len(t, res, 2)
	assert.Equal(t, "Prefers hotels near the old town", res[0].Content, "newest first on ties")

	res, _ = store.Search("s1", "submarine", 5)
	assert.Empty(t, res)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Store("s1", "first", nil))
	require.NoError(t, store.Store("s1", "second", nil))

	res, _ := store.Search("s1", "first", 1)
	require.Len(t, res, 1)

	require.NoError(t, store.Delete("s1", res[0].ID))
	assert.ErrorIs(t, store.Delete("s1", res[0].ID), ErrNotFound)

	res, _ = store.Search("s1", "", 10)
	require.Len(t, res, 1)
	assert.Equal(t, "second", res[0].Content)
}

func TestInMemoryStore_RejectsEmptyContent(t *testing.T) {
	assert.Error(t, NewInMemoryStore().Store("s1", "  ", nil))
}
