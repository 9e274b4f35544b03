package cache

import "time"

// Timing is when an operation started and how long it took.
type Timing struct {
	Start   time.Time
	Elapsed time.Duration
}

// GetEvent describes a lookup.
type GetEvent[K comparable, V any] struct {
	Timing
	Key K
	// Hit is true when a live entry was found.
	Hit bool
	// Entry is the entry whose value was returned; nil on a miss. It may
	// be unadmitted when a loaded value was rejected by the policy.
	Entry *Entry[K, V]
	// Expired is the stale entry found for Key, if any.
	Expired *Entry[K, V]
}

// LoadEvent describes one call to the loader and what was stored.
type LoadEvent[K comparable, V any] struct {
	Timing
	Key K
	// Entry is the stored entry; nil when the loader found nothing or failed.
	Entry *Entry[K, V]
	// Previous is the entry that Entry replaced.
	Previous *Entry[K, V]
	// Trimmed lists entries evicted to make room.
	Trimmed []*Entry[K, V]
	Err     error
}

// PutEvent describes an insert or update.
type PutEvent[K comparable, V any] struct {
	Timing
	Key      K
	Previous *Entry[K, V]
	// Entry is the new entry. When the policy rejected it, Entry.Admitted()
	// is false and neither Entry nor Previous is in the cache any more.
	Entry   *Entry[K, V]
	Trimmed []*Entry[K, V]
}

// RemoveEvent describes an explicit removal.
type RemoveEvent[K comparable, V any] struct {
	Timing
	Key   K
	Entry *Entry[K, V]
}

// ClearEvent describes Clear; Size and Volume are the values before.
type ClearEvent[K comparable, V any] struct {
	Timing
	Size    int
	Volume  int64
	Entries []*Entry[K, V]
}

// EvictEvent describes an Evict run. Expired and Evicted never overlap.
type EvictEvent[K comparable, V any] struct {
	Timing
	Size    int
	Volume  int64
	Expired []*Entry[K, V]
	Evicted []*Entry[K, V]
}

// TrimEvent describes TrimToSize and limit changes.
type TrimEvent[K comparable, V any] struct {
	Timing
	Size    int
	Trimmed []*Entry[K, V]
}

// Observer is notified after every cache operation. Calls happen on the
// goroutine running the operation, under the cache lock for the
// synchronized cache; keep them lightweight and never call back into the
// cache.
type Observer[K comparable, V any] interface {
	AfterGet(GetEvent[K, V])
	AfterLoad(LoadEvent[K, V])
	AfterPut(PutEvent[K, V])
	AfterRemove(RemoveEvent[K, V])
	AfterClear(ClearEvent[K, V])
	AfterEvict(EvictEvent[K, V])
	AfterTrimToSize(TrimEvent[K, V])
}

// NopObserver ignores every event. Embed it to implement a subset.
type NopObserver[K comparable, V any] struct{}

func (NopObserver[K, V]) AfterGet(GetEvent[K, V])         {}
func (NopObserver[K, V]) AfterLoad(LoadEvent[K, V])       {}
func (NopObserver[K, V]) AfterPut(PutEvent[K, V])         {}
func (NopObserver[K, V]) AfterRemove(RemoveEvent[K, V])   {}
func (NopObserver[K, V]) AfterClear(ClearEvent[K, V])     {}
func (NopObserver[K, V]) AfterEvict(EvictEvent[K, V])     {}
func (NopObserver[K, V]) AfterTrimToSize(TrimEvent[K, V]) {}

var _ Observer[string, int] = NopObserver[string, int]{}
