// Package twoq implements the 2Q replacement policy.
package twoq

import (
	"fmt"

	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "2q"

// Tables grow on demand past this many slots.
const maxPrealloc = 1 << 14

const (
	a1in = 0 // younger queue, first-time admissions
	am   = 1 // mature queue
)

// twoQ implements the 2Q eviction policy.
//
// Resident queues share one slot table so handles survive promotion:
//   - A1in (younger queue): admits first-time elements, head is the oldest
//   - Am   (mature queue): elements that were accessed again or came back
//     from the ghost list, head is the least recently used
//
// Ghost A1out: keys only (no values), tracks recently evicted A1in keys to
// give them a second chance (bypass A1in on re-admission).
type twoQ[K comparable, T any] struct {
	keyOf func(T) K

	capIn    int // A1in target size
	capGhost int // A1out (ghost) capacity

	queues *indexed.List[T]

	// A1out: oldest ghost at the head.
	ghosts   *indexed.List[K]
	ghostIdx map[K]int
}

// New constructs a 2Q policy. keyOf extracts the identity remembered by the
// ghost list. Common choices: capIn ≈ 25% of the cache size; capGhost ≈
// 50–100% of the cache size.
func New[K comparable, T any](keyOf func(T) K, capIn, capGhost int) policy.ReplacementPolicy[T] {
	if keyOf == nil {
		panic("twoq: keyOf must not be nil")
	}
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return &twoQ[K, T]{
		keyOf:    keyOf,
		capIn:    capIn,
		capGhost: capGhost,
		queues:   indexed.NewMulti[T](2, min(capIn, maxPrealloc)),
		ghosts:   indexed.New[K](min(capGhost, maxPrealloc)),
		ghostIdx: make(map[K]int, min(capGhost, maxPrealloc)),
	}
}

// Add admission rules:
//   - If the key is a ghost, bypass A1in and admit directly to Am (MRU).
//     The ghost entry is dropped.
//   - Otherwise admit into A1in.
func (q *twoQ[K, T]) Add(e T) (int, bool) {
	k := q.keyOf(e)
	if gi, ok := q.ghostIdx[k]; ok {
		q.ghosts.Remove(gi)
		delete(q.ghostIdx, k)
		return q.queues.PushBackOf(am, e), true
	}
	return q.queues.PushBackOf(a1in, e), true
}

func (q *twoQ[K, T]) Admits(T) bool { return true }

// Touch: an A1in element is promoted to Am; an Am element becomes MRU.
func (q *twoQ[K, T]) Touch(index int) {
	if q.queues.Contains(index) {
		q.queues.MoveToBackOf(am, index)
	}
}

// Update follows Touch semantics (updates count as recent use).
func (q *twoQ[K, T]) Update(index int, e T) bool {
	if !q.queues.Replace(index, e) {
		return false
	}
	q.Touch(index)
	return true
}

// victim picks the queue to evict from: A1in while it is above its target,
// otherwise Am, otherwise whatever is left in A1in.
func (q *twoQ[K, T]) victim() (int, bool) {
	if q.queues.LenOf(a1in) > q.capIn {
		return q.queues.FrontOf(a1in)
	}
	if i, ok := q.queues.FrontOf(am); ok {
		return i, true
	}
	return q.queues.FrontOf(a1in)
}

// EvictNext removes the next victim. Keys evicted from A1in become ghosts.
func (q *twoQ[K, T]) EvictNext() (T, bool) {
	i, ok := q.victim()
	if !ok {
		var zero T
		return zero, false
	}
	fromIn := q.queues.Owner(i) == a1in
	e, _ := q.queues.Remove(i)
	if fromIn {
		q.remember(q.keyOf(e))
	}
	return e, true
}

// remember inserts k as the newest ghost, respecting capGhost.
func (q *twoQ[K, T]) remember(k K) {
	if old, ok := q.ghostIdx[k]; ok {
		q.ghosts.Remove(old)
	}
	q.ghostIdx[k] = q.ghosts.PushBack(k)

	// Enforce ghost capacity (drop oldest ghosts).
	for q.ghosts.Len() > q.capGhost {
		head, ok := q.ghosts.Front()
		if !ok {
			break
		}
		kk, _ := q.ghosts.Remove(head)
		delete(q.ghostIdx, kk)
	}
}

func (q *twoQ[K, T]) Peek() (T, bool) {
	i, ok := q.victim()
	if !ok {
		var zero T
		return zero, false
	}
	return q.queues.At(i), true
}

// PeekAll mirrors the order EvictNext would produce: the A1in overflow,
// then Am, then the rest of A1in.
func (q *twoQ[K, T]) PeekAll() []T {
	in := q.queues.ValuesOf(a1in)
	over := max(len(in)-q.capIn, 0)
	out := make([]T, 0, q.queues.Len())
	out = append(out, in[:over]...)
	out = append(out, q.queues.ValuesOf(am)...)
	return append(out, in[over:]...)
}

// Remove drops an element without touching the ghost list: explicit
// removals are not evictions.
func (q *twoQ[K, T]) Remove(index int) (T, bool) { return q.queues.Remove(index) }

func (q *twoQ[K, T]) Len() int { return q.queues.Len() }

// Clear drops resident elements and ghosts.
func (q *twoQ[K, T]) Clear() {
	q.queues.Clear()
	q.ghosts.Clear()
	clear(q.ghostIdx)
}

func (q *twoQ[K, T]) String() string {
	return fmt.Sprintf("2Q policy with %d+%d entries and %d ghosts",
		q.queues.LenOf(a1in), q.queues.LenOf(am), q.ghosts.Len())
}
