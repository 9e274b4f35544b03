package cache

import (
	"context"
	"iter"
	"time"
)

// Cache is the operation set shared by Unsynchronized and Synchronized.
//
// Typical complexity for operations is amortized O(1): a table lookup plus
// constant-time policy bookkeeping. Evict, Clear and RemoveFunc are O(n).
type Cache[K comparable, V any] interface {
	// Get returns the value for k and a boolean flag indicating presence.
	// On miss it consults the Loader; on hit, the entry is touched
	// according to the policy.
	Get(k K) (V, bool)
	GetAll(keys ...K) map[K]V
	GetEntry(k K) (Entry[K, V], bool)

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Peek and PeekEntry never load, touch or count.
	Peek(k K) (V, bool)
	PeekEntry(k K) (Entry[K, V], bool)
	Contains(k K) bool

	// Put inserts or updates k→v and returns the previous live value.
	Put(k K, v V) (V, bool)
	// PutWithTTL inserts or updates k→v with a per-key TTL (relative duration).
	// A non-positive ttl disables expiration for this entry.
	PutWithTTL(k K, v V, ttl time.Duration) (V, bool)
	PutWithAttributes(k K, v V, attrs Attributes) (V, bool, error)
	// PutIfAbsent inserts k→v only if k is not present; otherwise it
	// returns the existing value and true.
	PutIfAbsent(k K, v V) (V, bool)
	PutAll(m map[K]V)
	Replace(k K, v V) (V, bool)
	ReplaceIf(k K, oldValue, newValue V) bool

	// Remove deletes k if present and returns its live value.
	Remove(k K) (V, bool)
	RemoveIf(k K, v V) bool
	RemoveAll(keys ...K) int
	RemoveFunc(pred func(K, V) bool) int
	Clear()

	// Evict removes expired entries, then evicts down to the configured
	// targets.
	Evict()
	TrimToSize(n int) error
	SetMaximumSize(n int) error
	SetMaximumVolume(v int64) error
	MaximumSize() int
	MaximumVolume() int64

	Keys() []K
	All() iter.Seq2[K, V]
	EvictionOrder() []K
	// Len returns the number of resident entries.
	Len() int
	// Volume returns the sum of entry sizes.
	Volume() int64

	Stats() Stats
	ResetStats()

	// Close stops background workers (if any) and marks the cache closed.
	Close() error
}

var (
	_ Cache[string, int] = (*Unsynchronized[string, int])(nil)
	_ Cache[string, int] = (*Synchronized[string, int])(nil)
)
