package cache

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/policycache/policy"
)

// sizeBreached reports whether the entry count is above the limit.
func (c *Unsynchronized[K, V]) sizeBreached() bool {
	return c.maxSize > 0 && c.entries.len() > c.maxSize
}

// volumeBreached reports whether the total volume is above the limit.
func (c *Unsynchronized[K, V]) volumeBreached() bool {
	return c.maxVolume > 0 && c.entries.totalVolume() > c.maxVolume
}

// evictWhile evicts in policy order while cond holds and the policy still
// has a victim.
func (c *Unsynchronized[K, V]) evictWhile(cond func() bool) []*Entry[K, V] {
	var out []*Entry[K, V]
	for cond() {
		e, ok := c.policy.EvictNext()
		if !ok {
			break
		}
		removed := c.entries.removeEntry(e)
		assertf(removed, "policy victim %v not in table", e.key)
		out = append(out, e)
	}
	return out
}

// trim evicts until both limits hold. It runs after every insert.
func (c *Unsynchronized[K, V]) trim() []*Entry[K, V] {
	return c.evictWhile(func() bool { return c.sizeBreached() || c.volumeBreached() })
}

// roomNeeded reports whether a new entry of the given size still does not
// fit once n entries of total volume vol are gone. Entries that could never
// fit the volume limit are left to trim.
func (c *Unsynchronized[K, V]) roomNeeded(n int, vol, size int64) bool {
	fitsVolume := c.maxVolume > 0 && size <= c.maxVolume
	return c.maxSize > 0 && c.entries.len()-n+1 > c.maxSize ||
		fitsVolume && c.entries.totalVolume()-vol+size > c.maxVolume
}

// makeRoom evicts in policy order until a new entry of the given size fits.
func (c *Unsynchronized[K, V]) makeRoom(size int64) []*Entry[K, V] {
	return c.evictWhile(func() bool { return c.roomNeeded(0, 0, size) })
}

// roomVictims lists the entries makeRoom would evict, without evicting.
func (c *Unsynchronized[K, V]) roomVictims(size int64) []*Entry[K, V] {
	if !c.roomNeeded(0, 0, size) {
		return nil
	}
	if v, ok := c.policy.Peek(); ok && !c.roomNeeded(1, v.size, size) {
		return []*Entry[K, V]{v}
	}
	var (
		out []*Entry[K, V]
		vol int64
	)
	for _, v := range c.policy.PeekAll() {
		if !c.roomNeeded(len(out), vol, size) {
			break
		}
		out = append(out, v)
		vol += v.size
	}
	return out
}

// admit registers a new entry with the policy and stores it, evicting what
// it needs to fit. An entry the policy refuses evicts nothing.
//
// Victims are picked as the cache stood before e arrived. When the policy
// cannot answer Admits, they are only looked up first and removed once Add
// has succeeded.
func (c *Unsynchronized[K, V]) admit(e *Entry[K, V]) []*Entry[K, V] {
	var victims []*Entry[K, V]
	admit, known := policy.Admits(c.policy, e)
	switch {
	case known && !admit:
		return nil
	case known:
		victims = c.makeRoom(e.size)
	default:
		victims = c.roomVictims(e.size)
	}
	i, ok := c.policy.Add(e)
	switch {
	case !ok && known:
		assertf(false, "policy admitted %v, then refused it", e.key)
		return victims
	case !ok:
		return nil
	case !known:
		for _, v := range victims {
			c.policy.Remove(v.policyIndex)
			c.entries.removeEntry(v)
		}
	}
	e.policyIndex = i
	c.entries.put(e)
	return victims
}

// Evict sweeps expired entries, then evicts in policy order down to the
// preferable (or maximum) size and volume. Observers get the expired and
// evicted entries as separate sets.
func (c *Unsynchronized[K, V]) Evict() {
	if c.closed {
		return
	}
	start := c.now()
	ev := EvictEvent[K, V]{Size: c.entries.len(), Volume: c.entries.totalVolume()}

	it := c.entries.iterator()
	for e, ok := it.next(); ok; e, ok = it.next() {
		if e.expired(start) {
			it.remove()
			c.policy.Remove(e.policyIndex)
			ev.Expired = append(ev.Expired, e)
		} else {
			c.scheduleRefresh(e, start)
		}
	}

	size, volume := c.evictTargets()
	ev.Evicted = c.evictWhile(func() bool {
		return size > 0 && c.entries.len() > size || volume > 0 && c.entries.totalVolume() > volume
	})

	ev.Timing = c.timing(start)
	for _, o := range c.observers {
		o.AfterEvict(ev)
	}
	c.drainRefresh(context.Background())
}

// evictTargets picks the preferable limits when they are set and tighter
// than the maximum ones.
func (c *Unsynchronized[K, V]) evictTargets() (int, int64) {
	size, volume := c.maxSize, c.maxVolume
	if p := c.opt.PreferableSize; p > 0 && (size == 0 || p < size) {
		size = p
	}
	if p := c.opt.PreferableVolume; p > 0 && (volume == 0 || p < volume) {
		volume = p
	}
	return size, volume
}

// TrimToSize shrinks the cache to at most n entries: policy victims first,
// then arbitrary entries if the policy cannot supply enough.
func (c *Unsynchronized[K, V]) TrimToSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: TrimToSize(%d)", ErrInvalidArgument, n)
	}
	if c.closed {
		return ErrClosed
	}
	start := c.now()
	trimmed := c.trimTo(n)
	if len(trimmed) > 0 {
		level.Debug(c.logger).Log("msg", "trimmed cache", "size", n, "removed", len(trimmed))
	}
	c.notifyTrim(TrimEvent[K, V]{Timing: c.timing(start), Size: n, Trimmed: trimmed})
	return nil
}

func (c *Unsynchronized[K, V]) trimTo(n int) []*Entry[K, V] {
	excess := c.entries.len() - n
	if excess <= 0 {
		return nil
	}
	trimmed := policy.EvictN(c.policy, excess)
	for _, e := range trimmed {
		c.entries.removeEntry(e)
	}
	rest := c.entries.len() - n
	if rest <= 0 {
		return trimmed
	}
	it := c.entries.iterator()
	for e, ok := it.next(); ok && rest > 0; e, ok = it.next() {
		it.remove()
		c.policy.Remove(e.policyIndex)
		trimmed = append(trimmed, e)
		rest--
	}
	return trimmed
}

// SetMaximumSize changes the entry limit (0 = unlimited) and trims.
func (c *Unsynchronized[K, V]) SetMaximumSize(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative maximum size %d", ErrInvalidArgument, n)
	}
	if c.closed {
		return ErrClosed
	}
	start := c.now()
	c.maxSize = n
	trimmed := c.trim()
	level.Debug(c.logger).Log("msg", "maximum size changed", "size", n, "removed", len(trimmed))
	c.notifyTrim(TrimEvent[K, V]{Timing: c.timing(start), Size: c.entries.len(), Trimmed: trimmed})
	return nil
}

// SetMaximumVolume changes the volume limit (0 = unlimited) and trims.
func (c *Unsynchronized[K, V]) SetMaximumVolume(v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: negative maximum volume %d", ErrInvalidArgument, v)
	}
	if c.closed {
		return ErrClosed
	}
	start := c.now()
	c.maxVolume = v
	trimmed := c.trim()
	level.Debug(c.logger).Log("msg", "maximum volume changed", "volume", v, "removed", len(trimmed))
	c.notifyTrim(TrimEvent[K, V]{Timing: c.timing(start), Size: c.entries.len(), Trimmed: trimmed})
	return nil
}

func (c *Unsynchronized[K, V]) notifyTrim(ev TrimEvent[K, V]) {
	for _, o := range c.observers {
		o.AfterTrimToSize(ev)
	}
}
