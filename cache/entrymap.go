package cache

import (
	"iter"

	"github.com/IvanBrykalov/policycache/internal/util"
)

const (
	minBuckets = 16
	loadFactor = 0.75
)

// entryMap is a bucket-chained hash table from key to entry that keeps a
// running volume (sum of entry sizes).
//
// Iteration goes through a fresh iterator per call; removing through the
// iterator is supported, any other mutation during iteration is not.
type entryMap[K comparable, V any] struct {
	buckets   []*Entry[K, V]
	hash      func(K) uint64
	size      int
	volume    int64
	threshold int
}

func newEntryMap[K comparable, V any](hash func(K) uint64, initialCapacity int) *entryMap[K, V] {
	if hash == nil {
		hash = util.Hash64[K]
	}
	n := int(util.NextPow2(uint64(max(minBuckets, int(float64(initialCapacity)/loadFactor)+1))))
	m := &entryMap[K, V]{hash: hash}
	m.alloc(n)
	return m
}

func (m *entryMap[K, V]) alloc(n int) {
	assertf(util.IsPowerOfTwo(uint64(n)), "bucket count %d", n)
	m.buckets = make([]*Entry[K, V], n)
	m.threshold = int(float64(n) * loadFactor)
}

func (m *entryMap[K, V]) get(key K) *Entry[K, V] {
	h := m.hash(key)
	for e := m.buckets[util.BucketIndex(h, len(m.buckets))]; e != nil; e = e.next {
		if e.hash == h && e.key == key {
			return e
		}
	}
	return nil
}

// put stores e, replacing any entry with the same key in place.
// It returns the replaced entry.
func (m *entryMap[K, V]) put(e *Entry[K, V]) *Entry[K, V] {
	e.hash = m.hash(e.key)
	b := util.BucketIndex(e.hash, len(m.buckets))
	for p := &m.buckets[b]; *p != nil; p = &(*p).next {
		if old := *p; old.hash == e.hash && old.key == e.key {
			e.next = old.next
			old.next = nil
			*p = e
			m.volume += e.size - old.size
			return old
		}
	}
	e.next = m.buckets[b]
	m.buckets[b] = e
	m.size++
	m.volume += e.size
	if m.size > m.threshold {
		m.resize()
	}
	return nil
}

func (m *entryMap[K, V]) resize() {
	old := m.buckets
	m.alloc(len(old) * 2)
	for _, e := range old {
		for e != nil {
			next := e.next
			b := util.BucketIndex(e.hash, len(m.buckets))
			e.next = m.buckets[b]
			m.buckets[b] = e
			e = next
		}
	}
}

func (m *entryMap[K, V]) remove(key K) *Entry[K, V] {
	return m.removeIf(key, nil)
}

// removeIf removes the entry for key if pred is nil or accepts it.
func (m *entryMap[K, V]) removeIf(key K, pred func(*Entry[K, V]) bool) *Entry[K, V] {
	h := m.hash(key)
	for p := &m.buckets[util.BucketIndex(h, len(m.buckets))]; *p != nil; p = &(*p).next {
		if e := *p; e.hash == h && e.key == key {
			if pred != nil && !pred(e) {
				return nil
			}
			m.unlink(p)
			return e
		}
	}
	return nil
}

// removeEntry removes exactly e (by identity).
func (m *entryMap[K, V]) removeEntry(e *Entry[K, V]) bool {
	for p := &m.buckets[util.BucketIndex(e.hash, len(m.buckets))]; *p != nil; p = &(*p).next {
		if *p == e {
			m.unlink(p)
			return true
		}
	}
	return false
}

func (m *entryMap[K, V]) unlink(p **Entry[K, V]) {
	e := *p
	*p = e.next
	e.next = nil
	m.size--
	m.volume -= e.size
}

func (m *entryMap[K, V]) clear() {
	clear(m.buckets)
	m.size = 0
	m.volume = 0
}

func (m *entryMap[K, V]) len() int          { return m.size }
func (m *entryMap[K, V]) totalVolume() int64 { return m.volume }

// entries returns every entry in table order.
func (m *entryMap[K, V]) entries() []*Entry[K, V] {
	out := make([]*Entry[K, V], 0, m.size)
	for e := range m.all() {
		out = append(out, e)
	}
	return out
}

// all yields live entries in table order. The caller must not mutate the
// map while ranging.
func (m *entryMap[K, V]) all() iter.Seq[*Entry[K, V]] {
	return func(yield func(*Entry[K, V]) bool) {
		it := m.iterator()
		for e, ok := it.next(); ok; e, ok = it.next() {
			if !yield(e) {
				return
			}
		}
	}
}

func (m *entryMap[K, V]) iterator() *mapIterator[K, V] {
	return &mapIterator[K, V]{m: m, bucket: -1}
}

// mapIterator walks the table bucket by bucket. remove drops the entry last
// returned by next.
type mapIterator[K comparable, V any] struct {
	m       *entryMap[K, V]
	bucket  int
	pending *Entry[K, V]
	last    *Entry[K, V]
}

func (it *mapIterator[K, V]) next() (*Entry[K, V], bool) {
	for it.pending == nil {
		it.bucket++
		if it.bucket >= len(it.m.buckets) {
			it.last = nil
			return nil, false
		}
		it.pending = it.m.buckets[it.bucket]
	}
	e := it.pending
	it.pending = e.next
	it.last = e
	return e, true
}

func (it *mapIterator[K, V]) remove() bool {
	if it.last == nil {
		return false
	}
	ok := it.m.removeEntry(it.last)
	it.last = nil
	return ok
}
