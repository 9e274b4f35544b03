package cache

import (
	"time"

	"github.com/IvanBrykalov/policycache/policy"
)

// Entry is the per-key record held by the cache.
//
// Entries handed out by the cache are read-only snapshots or records that
// have already left the cache; the accessors never change cache state.
// Timestamps are Unix nanoseconds from the configured Clock.
type Entry[K comparable, V any] struct {
	key   K
	value V

	creationTime   int64
	lastUpdateTime int64
	lastAccessTime int64
	expirationTime int64 // 0 = never

	cost float64
	size int64
	hits uint64

	// Handle into the replacement policy; policy.NoIndex until admitted.
	policyIndex int

	// entryMap chaining
	hash uint64
	next *Entry[K, V]
}

func (e *Entry[K, V]) Key() K   { return e.key }
func (e *Entry[K, V]) Value() V { return e.value }

// CreationTime is when the key was first stored. It survives value updates.
func (e *Entry[K, V]) CreationTime() time.Time { return time.Unix(0, e.creationTime) }

// LastUpdateTime is when the current value was stored.
func (e *Entry[K, V]) LastUpdateTime() time.Time { return time.Unix(0, e.lastUpdateTime) }

// LastAccessTime is the time of the last hit, or of the last update.
func (e *Entry[K, V]) LastAccessTime() time.Time { return time.Unix(0, e.lastAccessTime) }

// ExpirationTime returns the deadline and false if the entry never expires.
func (e *Entry[K, V]) ExpirationTime() (time.Time, bool) {
	if e.expirationTime == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, e.expirationTime), true
}

func (e *Entry[K, V]) Cost() float64 { return e.cost }
func (e *Entry[K, V]) Size() int64   { return e.size }
func (e *Entry[K, V]) Hits() uint64  { return e.hits }

// Admitted reports whether the replacement policy accepted the entry.
// A rejected entry was handed back to the caller but never stored.
func (e *Entry[K, V]) Admitted() bool { return e.policyIndex != policy.NoIndex }

func (e *Entry[K, V]) expired(now int64) bool {
	return e.expirationTime != 0 && now >= e.expirationTime
}

// snapshot returns a detached copy safe to hand to callers.
func (e *Entry[K, V]) snapshot() Entry[K, V] {
	c := *e
	c.next = nil
	return c
}
