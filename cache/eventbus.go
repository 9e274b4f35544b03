package cache

import (
	"slices"
	"sync"
)

// EventKind classifies notifications published by EventBus.
type EventKind int

const (
	EntryAdded EventKind = iota
	EntryUpdated
	EntryRemoved
	EntryExpired
	EntryEvicted
	CacheCleared
	CacheEvicted
)

func (k EventKind) String() string {
	switch k {
	case EntryAdded:
		return "entry_added"
	case EntryUpdated:
		return "entry_updated"
	case EntryRemoved:
		return "entry_removed"
	case EntryExpired:
		return "entry_expired"
	case EntryEvicted:
		return "entry_evicted"
	case CacheCleared:
		return "cache_cleared"
	case CacheEvicted:
		return "cache_evicted"
	}
	return "unknown"
}

// Event is one notification. Entry and Previous are set for entry events;
// Size and Volume (values before the operation) for cache-wide events.
type Event[K comparable, V any] struct {
	Kind     EventKind
	Key      K
	Entry    *Entry[K, V]
	Previous *Entry[K, V]
	Size     int
	Volume   int64
}

type subscription[K comparable, V any] struct {
	id      uint64
	handler func(Event[K, V])
	kinds   []EventKind // empty = all
}

// EventBus turns cache operations into per-entry notifications and
// dispatches them synchronously to subscribers. It is an Observer: add it
// to Options.Observers.
type EventBus[K comparable, V any] struct {
	mu     sync.RWMutex
	subs   []subscription[K, V]
	nextID uint64
}

// NewEventBus returns an empty bus.
func NewEventBus[K comparable, V any]() *EventBus[K, V] { return &EventBus[K, V]{} }

// Subscribe registers handler for the given kinds (all kinds if none) and
// returns a function that cancels the subscription.
func (b *EventBus[K, V]) Subscribe(handler func(Event[K, V]), kinds ...EventKind) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription[K, V]{id: id, handler: handler, kinds: kinds})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// Copy: publish may still be ranging over the old slice.
		b.subs = slices.DeleteFunc(slices.Clone(b.subs), func(s subscription[K, V]) bool { return s.id == id })
	}
}

func (b *EventBus[K, V]) publish(ev Event[K, V]) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		if len(s.kinds) == 0 || slices.Contains(s.kinds, ev.Kind) {
			s.handler(ev)
		}
	}
}

func (b *EventBus[K, V]) publishEach(kind EventKind, entries []*Entry[K, V]) {
	for _, e := range entries {
		b.publish(Event[K, V]{Kind: kind, Key: e.key, Entry: e})
	}
}

// stored publishes the outcome of putting e over prev.
func (b *EventBus[K, V]) stored(key K, e, prev *Entry[K, V], trimmed []*Entry[K, V]) {
	switch {
	case !e.Admitted():
		if prev != nil {
			b.publish(Event[K, V]{Kind: EntryRemoved, Key: key, Entry: prev})
		}
	case prev != nil:
		b.publish(Event[K, V]{Kind: EntryUpdated, Key: key, Entry: e, Previous: prev})
	default:
		b.publish(Event[K, V]{Kind: EntryAdded, Key: key, Entry: e})
	}
	b.publishEach(EntryEvicted, trimmed)
}

// AfterGet publishes EntryExpired for a stale entry found by the lookup,
// also when a reload replaced it (that reload is published as EntryUpdated).
func (b *EventBus[K, V]) AfterGet(e GetEvent[K, V]) {
	if e.Expired != nil {
		b.publish(Event[K, V]{Kind: EntryExpired, Key: e.Key, Entry: e.Expired})
	}
}

func (b *EventBus[K, V]) AfterLoad(e LoadEvent[K, V]) {
	if e.Entry != nil {
		b.stored(e.Key, e.Entry, e.Previous, e.Trimmed)
	}
}

func (b *EventBus[K, V]) AfterPut(e PutEvent[K, V]) {
	b.stored(e.Key, e.Entry, e.Previous, e.Trimmed)
}

func (b *EventBus[K, V]) AfterRemove(e RemoveEvent[K, V]) {
	b.publish(Event[K, V]{Kind: EntryRemoved, Key: e.Key, Entry: e.Entry})
}

func (b *EventBus[K, V]) AfterClear(e ClearEvent[K, V]) {
	b.publish(Event[K, V]{Kind: CacheCleared, Size: e.Size, Volume: e.Volume})
}

func (b *EventBus[K, V]) AfterEvict(e EvictEvent[K, V]) {
	b.publishEach(EntryExpired, e.Expired)
	b.publishEach(EntryEvicted, e.Evicted)
	b.publish(Event[K, V]{Kind: CacheEvicted, Size: e.Size, Volume: e.Volume})
}

func (b *EventBus[K, V]) AfterTrimToSize(e TrimEvent[K, V]) {
	b.publishEach(EntryEvicted, e.Trimmed)
}

var _ Observer[string, int] = (*EventBus[string, int])(nil)
