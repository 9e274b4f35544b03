package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func entryOf(k int, size int64) *Entry[int, int] {
	return &Entry[int, int]{key: k, value: k, size: size}
}

// Count and volume stay exact across inserts, replacements and removals,
// including through several resizes.
func TestEntryMap_Accounting(t *testing.T) {
	t.Parallel()

	m := newEntryMap[int, int](nil, 0)
	require.Len(t, m.buckets, minBuckets)

	for i := range 1000 {
		require.Nil(t, m.put(entryOf(i, 2)))
	}
	require.Equal(t, 1000, m.len())
	require.EqualValues(t, 2000, m.totalVolume())
	require.Greater(t, len(m.buckets), 1000)

	old := m.put(entryOf(7, 10))
	require.NotNil(t, old)
	require.EqualValues(t, 2, old.size)
	require.Equal(t, 1000, m.len())
	require.EqualValues(t, 2008, m.totalVolume())

	for i := range 500 {
		require.NotNil(t, m.remove(i))
	}
	require.Nil(t, m.remove(7))
	require.Equal(t, 500, m.len())
	require.EqualValues(t, 1000, m.totalVolume())

	m.clear()
	require.Zero(t, m.len())
	require.Zero(t, m.totalVolume())
	require.Nil(t, m.get(900))
}

// removeEntry works by identity, not by key.
func TestEntryMap_RemoveEntryIdentity(t *testing.T) {
	t.Parallel()

	m := newEntryMap[int, int](nil, 4)
	a := entryOf(1, 1)
	m.put(a)
	b := entryOf(1, 1)
	m.put(b)

	require.False(t, m.removeEntry(a))
	require.True(t, m.removeEntry(b))
	require.Zero(t, m.len())
}

// A constant hash puts everything in one chain.
func TestEntryMap_CollisionsAndIteratorRemove(t *testing.T) {
	t.Parallel()

	m := newEntryMap[int, int](func(int) uint64 { return 42 }, 0)
	for i := range 10 {
		m.put(entryOf(i, 1))
	}
	for i := range 10 {
		require.NotNil(t, m.get(i))
	}

	it := m.iterator()
	seen := 0
	for e, ok := it.next(); ok; e, ok = it.next() {
		seen++
		if e.key%2 == 0 {
			require.True(t, it.remove())
			require.False(t, it.remove())
		}
	}
	require.Equal(t, 10, seen)
	require.Equal(t, 5, m.len())
	require.EqualValues(t, 5, m.totalVolume())

	require.Nil(t, m.removeIf(1, func(e *Entry[int, int]) bool { return e.value > 100 }))
	require.NotNil(t, m.removeIf(1, func(e *Entry[int, int]) bool { return e.value == 1 }))
	require.Len(t, m.entries(), 4)
}
