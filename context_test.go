package wabot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextSetGet(t *testing.T) {
	store := NewContextStore()
	conv := store.Context("111")

	assert.Equal(t, "111", conv.ID())
	assert.Equal(t, 0, conv.Len())

	conv.Set("name", "Awa")
	conv.Set("age", 30)

	v, ok := conv.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Awa", v)

	assert.True(t, conv.Has("age"))
	assert.False(t, conv.Has("city"))
	assert.Equal(t, 2, conv.Len())
	assert.ElementsMatch(t, []string{"name", "age"}, conv.Keys())

	conv.Delete("age")
	assert.False(t, conv.Has("age"))
}

func TestUserContextGetDefault(t *testing.T) {
	store := NewContextStore()
	conv := store.Context("111")

	assert.Equal(t, "fallback", conv.GetDefault("missing", "fallback"))

	conv.Set("name", "Awa")
	assert.Equal(t, "Awa", conv.GetDefault("name", "fallback"))

	// A stored nil counts as absent.
	conv.Set("empty", nil)
	assert.Equal(t, "fallback", conv.GetDefault("empty", "fallback"))
}

func TestContextStoreSharedBag(t *testing.T) {
	store := NewContextStore()

	a := store.Context("111")
	b := store.Context("111")
	other := store.Context("222")

	a.Set("name", "Awa")

	v, ok := b.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Awa", v)

	_, ok = other.Get("name")
	assert.False(t, ok)
}

func TestUserContextClearRebinds(t *testing.T) {
	store := NewContextStore()

	before := store.Context("111")
	before.Set("name", "Awa")

	cleared := store.Context("111")
	cleared.Clear()

	// The cleared handle and fresh handles see an empty bag.
	assert.Equal(t, 0, cleared.Len())
	assert.Equal(t, 0, store.Context("111").Len())

	// Handles obtained before the clear keep the orphaned bag.
	v, ok := before.Get("name")
	require.True(t, ok)
	assert.Equal(t, "Awa", v)

	// Writes to the cleared handle land in the store's fresh bag.
	cleared.Set("city", "Dakar")
	assert.True(t, store.Context("111").Has("city"))
	assert.False(t, before.Has("city"))
}

func TestContextStoreDeleteAndReset(t *testing.T) {
	store := NewContextStore()
	store.Context("111").Set("k", 1)
	store.Context("222").Set("k", 2)

	assert.ElementsMatch(t, []string{"111", "222"}, store.IDs())

	store.Delete("111")
	assert.ElementsMatch(t, []string{"222"}, store.IDs())
	assert.Equal(t, 0, store.Context("111").Len())

	store.Reset()
	assert.Empty(t, store.IDs())
}
