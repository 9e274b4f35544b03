package cache

import (
	"context"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/policycache/policy"
)

// Unsynchronized is the cache core: an entry table coupled to a
// replacement policy, with expiration, loading and observers.
//
// It is not safe for concurrent use; callers must synchronize externally
// or use Synchronized. Observers and the loader must not call back into
// the same cache.
type Unsynchronized[K comparable, V any] struct {
	opt       Options[K, V]
	entries   *entryMap[K, V]
	policy    policy.ReplacementPolicy[*Entry[K, V]]
	stats     *statistics[K, V]
	observers []Observer[K, V]
	logger    log.Logger

	maxSize   int
	maxVolume int64
	closed    bool

	// Keys due for refresh-ahead, drained when the current operation ends.
	refreshKeys []K
	refreshSet  map[K]struct{}
	// refresher takes over refresh loads when set (synchronized cache).
	refresher func(keys []K)
}

// NewUnsynchronized constructs the cache core with the provided Options.
// Defaults:
//   - nil Policy   -> Options.PolicyKind (LRU when zero)
//   - nil Logger   -> no logging
//   - nil Clock    -> time.Now()
func NewUnsynchronized[K comparable, V any](opt Options[K, V]) (*Unsynchronized[K, V], error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	opt = opt.withDefaults()
	p, err := buildPolicy(opt)
	if err != nil {
		return nil, err
	}
	c := &Unsynchronized[K, V]{
		opt:        opt,
		entries:    newEntryMap[K, V](opt.Hasher, min(opt.MaximumSize, 1<<16)),
		policy:     p,
		stats:      &statistics[K, V]{},
		logger:     opt.Logger,
		maxSize:    opt.MaximumSize,
		maxVolume:  opt.MaximumVolume,
		refreshSet: make(map[K]struct{}),
	}
	c.observers = append([]Observer[K, V]{c.stats}, opt.Observers...)
	return c, nil
}

// ---- reads ----

// Get returns the value for key. On a miss or an expired entry it consults
// the Loader (if any) and stores what it returns. On hit, the entry is
// touched according to the policy.
func (c *Unsynchronized[K, V]) Get(key K) (V, bool) {
	e, _ := c.get(context.Background(), key, true)
	if e == nil {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetAll calls Get for every key and returns the values found.
func (c *Unsynchronized[K, V]) GetAll(keys ...K) map[K]V {
	out := make(map[K]V, len(keys))
	for _, k := range keys {
		if v, ok := c.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// GetEntry is Get returning a snapshot of the entry.
func (c *Unsynchronized[K, V]) GetEntry(key K) (Entry[K, V], bool) {
	e, _ := c.get(context.Background(), key, true)
	if e == nil {
		return Entry[K, V]{}, false
	}
	return e.snapshot(), true
}

// GetOrLoad is Get with a context for the loader. It returns the loader's
// error, ErrNoLoader when nothing can be loaded, or ErrNotFound when the
// loader had no value.
func (c *Unsynchronized[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	var zero V
	e, err := c.get(ctx, key, true)
	switch {
	case e != nil:
		return e.value, nil
	case err != nil:
		return zero, err
	case c.opt.Loader == nil:
		return zero, ErrNoLoader
	}
	return zero, ErrNotFound
}

// Peek returns the live value for key without loading, touching or
// counting statistics.
func (c *Unsynchronized[K, V]) Peek(key K) (V, bool) {
	if e := c.peek(key); e != nil {
		return e.value, true
	}
	var zero V
	return zero, false
}

// PeekEntry is Peek returning a snapshot of the entry.
func (c *Unsynchronized[K, V]) PeekEntry(key K) (Entry[K, V], bool) {
	if e := c.peek(key); e != nil {
		return e.snapshot(), true
	}
	return Entry[K, V]{}, false
}

// Contains reports whether key maps to a live, unexpired entry.
func (c *Unsynchronized[K, V]) Contains(key K) bool { return c.peek(key) != nil }

func (c *Unsynchronized[K, V]) peek(key K) *Entry[K, V] {
	checkKey(key)
	if c.closed {
		return nil
	}
	e := c.entries.get(key)
	if e == nil || e.expired(c.now()) {
		return nil
	}
	return e
}

// get runs the lookup state machine: live entries are touched; absent or
// expired ones are loaded when load is set. A stale entry stays only while
// a load can still replace it: when load is off and a Loader exists, the
// caller is expected to load next.
func (c *Unsynchronized[K, V]) get(ctx context.Context, key K, load bool) (*Entry[K, V], error) {
	checkKey(key)
	if c.closed {
		return nil, ErrClosed
	}
	start := c.now()
	ev := GetEvent[K, V]{Key: key}
	var err error

	e := c.entries.get(key)
	if e != nil && !e.expired(start) {
		c.policy.Touch(e.policyIndex)
		e.hits++
		e.lastAccessTime = start
		ev.Hit, ev.Entry = true, e
		c.scheduleRefresh(e, start)
	} else {
		ev.Expired = e
		switch {
		case load && c.opt.Loader != nil:
			var (
				v     V
				attrs Attributes
				found bool
			)
			v, attrs, found, err = c.callLoader(ctx, key)
			ev.Entry = c.finishLoad(key, v, attrs, found, err, start)
		case e != nil && (load || c.opt.Loader == nil):
			c.drop(e)
		}
	}

	ev.Timing = c.timing(start)
	for _, o := range c.observers {
		o.AfterGet(ev)
	}
	c.drainRefresh(ctx)
	return ev.Entry, err
}

// ---- writes ----

// Put inserts or updates key→value using the default attributes.
// It returns the previous live value, if any.
func (c *Unsynchronized[K, V]) Put(key K, value V) (V, bool) {
	return c.put(key, value, Attributes{}, false)
}

// PutWithTTL inserts or updates key→value with a per-key TTL.
// A non-positive ttl disables expiration for this entry.
func (c *Unsynchronized[K, V]) PutWithTTL(key K, value V, ttl time.Duration) (V, bool) {
	if ttl <= 0 {
		ttl = NoExpiration
	}
	return c.put(key, value, Attributes{TimeToLive: ttl}, false)
}

// PutWithAttributes inserts or updates key→value with explicit attributes.
// Invalid attributes fail with ErrInvalidArgument before any change.
func (c *Unsynchronized[K, V]) PutWithAttributes(key K, value V, attrs Attributes) (V, bool, error) {
	var zero V
	if err := attrs.validate(); err != nil {
		return zero, false, err
	}
	if c.closed {
		return zero, false, ErrClosed
	}
	v, ok := c.put(key, value, attrs, false)
	return v, ok, nil
}

// PutIfAbsent stores key→value only if no live entry exists. It returns
// the existing value and true when nothing was stored.
func (c *Unsynchronized[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	return c.put(key, value, Attributes{}, true)
}

// PutAll calls Put for every pair.
func (c *Unsynchronized[K, V]) PutAll(m map[K]V) {
	for k, v := range m {
		c.Put(k, v)
	}
}

// Replace updates key only if it has a live entry.
func (c *Unsynchronized[K, V]) Replace(key K, value V) (V, bool) {
	if c.peek(key) == nil {
		var zero V
		return zero, false
	}
	return c.put(key, value, Attributes{}, false)
}

// ReplaceIf updates key only if its live value equals oldValue.
func (c *Unsynchronized[K, V]) ReplaceIf(key K, oldValue, newValue V) bool {
	e := c.peek(key)
	if e == nil || !c.opt.Equal(e.value, oldValue) {
		return false
	}
	c.put(key, newValue, Attributes{}, false)
	return true
}

func (c *Unsynchronized[K, V]) put(key K, value V, attrs Attributes, onlyIfAbsent bool) (V, bool) {
	checkKey(key)
	checkValue(value)
	var zero V
	if c.closed {
		return zero, false
	}
	start := c.now()
	if onlyIfAbsent {
		if e := c.entries.get(key); e != nil && !e.expired(start) {
			return e.value, true
		}
	}

	prev, e, trimmed := c.doPut(key, value, attrs, start)

	ev := PutEvent[K, V]{Timing: c.timing(start), Key: key, Previous: prev, Entry: e, Trimmed: trimmed}
	for _, o := range c.observers {
		o.AfterPut(ev)
	}
	if onlyIfAbsent || prev == nil || prev.expired(start) {
		return zero, false
	}
	return prev.value, true
}

// doPut builds the entry for key and registers it with the policy.
// A new key goes through admit; an existing
// key goes through Update so it keeps its slot. An entry the policy
// rejects never stays in the table.
func (c *Unsynchronized[K, V]) doPut(key K, value V, attrs Attributes, now int64) (prev, e *Entry[K, V], trimmed []*Entry[K, V]) {
	prev = c.entries.get(key)
	e = c.newEntry(key, value, attrs, prev, now)

	switch {
	case prev == nil:
		trimmed = c.admit(e)
	case c.policy.Update(prev.policyIndex, e):
		c.entries.put(e)
	default:
		// Rejected: the policy already released the slot.
		c.entries.removeEntry(prev)
		e.policyIndex = policy.NoIndex
	}
	assertf(!e.Admitted() || c.entries.get(key) == e, "admitted entry %v missing from table", key)

	return prev, e, append(trimmed, c.trim()...)
}

func (c *Unsynchronized[K, V]) newEntry(key K, value V, attrs Attributes, prev *Entry[K, V], now int64) *Entry[K, V] {
	e := &Entry[K, V]{
		key:            key,
		value:          value,
		creationTime:   now,
		lastUpdateTime: now,
		lastAccessTime: now,
		policyIndex:    policy.NoIndex,
	}
	switch {
	case attrs.Size > 0:
		e.size = attrs.Size
	case c.opt.SizeOf != nil:
		e.size = max(c.opt.SizeOf(key, value), 0)
	default:
		e.size = 1
	}
	switch {
	case attrs.Cost > 0:
		e.cost = attrs.Cost
	case c.opt.CostOf != nil:
		e.cost = max(c.opt.CostOf(key, value), 0)
	default:
		e.cost = 1
	}
	ttl := attrs.TimeToLive
	if ttl == 0 {
		ttl = c.opt.DefaultTTL
	}
	if ttl > 0 && ttl != NoExpiration && int64(ttl) < math.MaxInt64-now {
		e.expirationTime = now + int64(ttl)
	}
	if prev != nil {
		e.creationTime = prev.creationTime
		e.lastAccessTime = prev.lastAccessTime
		e.hits = prev.hits
		e.policyIndex = prev.policyIndex
	}
	return e
}

// ---- removal ----

// Remove deletes key and returns its live value, if any.
// Removing a key that is not present is a no-op.
func (c *Unsynchronized[K, V]) Remove(key K) (V, bool) {
	checkKey(key)
	return c.removeWith(key, nil)
}

// RemoveIf deletes key only if its live value equals value.
func (c *Unsynchronized[K, V]) RemoveIf(key K, value V) bool {
	checkKey(key)
	checkValue(value)
	now := c.now()
	_, ok := c.removeWith(key, func(e *Entry[K, V]) bool {
		return !e.expired(now) && c.opt.Equal(e.value, value)
	})
	return ok
}

// RemoveAll removes every key and returns how many live entries went away.
func (c *Unsynchronized[K, V]) RemoveAll(keys ...K) int {
	n := 0
	for _, k := range keys {
		if _, ok := c.Remove(k); ok {
			n++
		}
	}
	return n
}

// RemoveFunc removes every live entry for which pred returns true.
func (c *Unsynchronized[K, V]) RemoveFunc(pred func(K, V) bool) int {
	if c.closed {
		return 0
	}
	start := c.now()
	var removed []*Entry[K, V]
	it := c.entries.iterator()
	for e, ok := it.next(); ok; e, ok = it.next() {
		if !e.expired(start) && pred(e.key, e.value) {
			it.remove()
			c.policy.Remove(e.policyIndex)
			removed = append(removed, e)
		}
	}
	t := c.timing(start)
	for _, e := range removed {
		c.notifyRemove(RemoveEvent[K, V]{Timing: t, Key: e.key, Entry: e})
	}
	return len(removed)
}

func (c *Unsynchronized[K, V]) removeWith(key K, pred func(*Entry[K, V]) bool) (V, bool) {
	var zero V
	if c.closed {
		return zero, false
	}
	start := c.now()
	e := c.entries.removeIf(key, pred)
	if e == nil {
		return zero, false
	}
	_, ok := c.policy.Remove(e.policyIndex)
	assertf(ok, "entry %v had no policy slot", key)
	c.notifyRemove(RemoveEvent[K, V]{Timing: c.timing(start), Key: key, Entry: e})
	if e.expired(start) {
		return zero, false
	}
	return e.value, true
}

func (c *Unsynchronized[K, V]) notifyRemove(ev RemoveEvent[K, V]) {
	for _, o := range c.observers {
		o.AfterRemove(ev)
	}
}

// drop removes e from both the table and the policy without an event.
func (c *Unsynchronized[K, V]) drop(e *Entry[K, V]) {
	if c.entries.removeEntry(e) {
		c.policy.Remove(e.policyIndex)
	}
}

// Clear removes every entry.
func (c *Unsynchronized[K, V]) Clear() {
	if c.closed {
		return
	}
	start := c.now()
	ev := ClearEvent[K, V]{Size: c.entries.len(), Volume: c.entries.totalVolume(), Entries: c.entries.entries()}
	c.policy.Clear()
	c.entries.clear()
	ev.Timing = c.timing(start)
	for _, o := range c.observers {
		o.AfterClear(ev)
	}
}

// ---- views ----

// Keys returns a snapshot of the live keys.
func (c *Unsynchronized[K, V]) Keys() []K {
	var out []K
	for k := range c.All() {
		out = append(out, k)
	}
	return out
}

// All yields live key/value pairs in table order without touching them.
// The cache must not be modified while ranging.
func (c *Unsynchronized[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if c.closed {
			return
		}
		now := c.now()
		for e := range c.entries.all() {
			if e.expired(now) {
				continue
			}
			if !yield(e.key, e.value) {
				return
			}
		}
	}
}

// EvictionOrder returns the keys in the order the policy would evict them.
func (c *Unsynchronized[K, V]) EvictionOrder() []K {
	all := c.policy.PeekAll()
	out := make([]K, len(all))
	for i, e := range all {
		out[i] = e.key
	}
	return out
}

// Len returns the number of stored entries. Expired entries count until
// they are accessed or swept by Evict.
func (c *Unsynchronized[K, V]) Len() int { return c.entries.len() }

// Volume returns the sum of entry sizes.
func (c *Unsynchronized[K, V]) Volume() int64 { return c.entries.totalVolume() }

// MaximumSize returns the current entry limit (0 = unlimited).
func (c *Unsynchronized[K, V]) MaximumSize() int { return c.maxSize }

// MaximumVolume returns the current volume limit (0 = unlimited).
func (c *Unsynchronized[K, V]) MaximumVolume() int64 { return c.maxVolume }

// Stats returns a snapshot of the built-in statistics.
func (c *Unsynchronized[K, V]) Stats() Stats { return c.stats.s }

// ResetStats zeroes the built-in statistics.
func (c *Unsynchronized[K, V]) ResetStats() { c.stats.reset() }

// Close marks the cache as closed. Future operations are ignored or
// return ErrClosed.
func (c *Unsynchronized[K, V]) Close() error {
	if !c.closed {
		c.closed = true
		level.Debug(c.logger).Log("msg", "cache closed", "entries", c.entries.len())
	}
	return nil
}

// ---- helpers ----

func (c *Unsynchronized[K, V]) now() int64 { return c.opt.Clock.NowUnixNano() }

func (c *Unsynchronized[K, V]) timing(start int64) Timing {
	return Timing{Start: time.Unix(0, start), Elapsed: time.Duration(c.now() - start)}
}

// callLoader runs the Loader. It touches no cache state, so the
// synchronized cache may call it outside its lock.
func (c *Unsynchronized[K, V]) callLoader(ctx context.Context, key K) (V, Attributes, bool, error) {
	var attrs Attributes
	v, found, err := c.opt.Loader(ctx, key, &attrs)
	if err == nil && found {
		checkValue(v)
		err = attrs.validate()
	}
	if err != nil {
		level.Warn(c.logger).Log("msg", "loader failed", "key", fmt.Sprint(key), "err", err)
		var zero V
		return zero, attrs, false, err
	}
	return v, attrs, found, nil
}

// finishLoad stores a loaded value and reports the load to observers.
// An expired entry for key is updated in place, or dropped when there is
// nothing to store. It returns the stored entry, or nil.
func (c *Unsynchronized[K, V]) finishLoad(key K, v V, attrs Attributes, found bool, err error, start int64) *Entry[K, V] {
	if c.closed {
		return nil
	}
	ev := LoadEvent[K, V]{Key: key, Err: err}
	if found && err == nil {
		ev.Previous, ev.Entry, ev.Trimmed = c.doPut(key, v, attrs, start)
	} else if stale := c.entries.get(key); stale != nil && stale.expired(c.now()) {
		c.drop(stale)
	}
	ev.Timing = c.timing(start)
	for _, o := range c.observers {
		o.AfterLoad(ev)
	}
	return ev.Entry
}

func (c *Unsynchronized[K, V]) scheduleRefresh(e *Entry[K, V], now int64) {
	if c.opt.RefreshAfter <= 0 || c.opt.Loader == nil || now-e.lastUpdateTime < int64(c.opt.RefreshAfter) {
		return
	}
	if _, dup := c.refreshSet[e.key]; dup {
		return
	}
	c.refreshSet[e.key] = struct{}{}
	c.refreshKeys = append(c.refreshKeys, e.key)
}

// drainRefresh reloads the keys collected by the operation that just
// finished. A refresh that finds nothing keeps the current value.
func (c *Unsynchronized[K, V]) drainRefresh(ctx context.Context) {
	if len(c.refreshKeys) == 0 {
		return
	}
	keys := c.refreshKeys
	c.refreshKeys = nil
	clear(c.refreshSet)
	if c.refresher != nil {
		c.refresher(keys)
		return
	}
	for _, k := range keys {
		start := c.now()
		v, attrs, found, err := c.callLoader(ctx, k)
		c.finishLoad(k, v, attrs, found, err, start)
	}
}
