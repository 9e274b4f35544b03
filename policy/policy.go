// Package policy defines the replacement policy contract used by the cache
// to decide which entries to evict.
package policy

// NoIndex marks an element that has not been admitted by a policy.
const NoIndex = -1

// ReplacementPolicy decides which element should be evicted next.
//
// Elements are referenced by the integer handle returned from Add. A handle
// stays valid until the element is evicted or removed; afterwards the policy
// may hand it out again.
//
// Concurrency: implementations are not safe for concurrent use. The cache
// calls them under its own synchronization.
type ReplacementPolicy[T any] interface {
	// Add admits element and returns its handle. ok is false if the policy
	// rejected the element; a rejection leaves the policy unchanged.
	Add(element T) (index int, ok bool)

	// Update replaces the element at index with element. The previous
	// element is released even when the new one is rejected (false), in
	// which case the caller must drop the element from its own storage.
	Update(index int, element T) bool

	// Touch records an access to the element at index.
	Touch(index int)

	// EvictNext removes and returns the next victim.
	EvictNext() (T, bool)

	// Peek returns the next victim without removing it.
	Peek() (T, bool)

	// PeekAll returns all elements in eviction order. It can be expensive
	// and is meant for diagnostics and bulk operations.
	PeekAll() []T

	// Remove drops the element at index regardless of eviction order.
	Remove(index int) (T, bool)

	// Len returns the number of elements held by the policy.
	Len() int

	// Clear drops all elements.
	Clear()
}

// Admitter is implemented by policies that can tell ahead of Add whether
// an element will be accepted. Add must accept every element Admits
// accepts. Policies that never reject report true.
type Admitter[T any] interface {
	Admits(element T) bool
}

// Admits asks p whether it would accept e. known is false when p does not
// implement Admitter; only Add can tell then.
func Admits[T any](p ReplacementPolicy[T], e T) (admit, known bool) {
	if a, ok := p.(Admitter[T]); ok {
		return a.Admits(e), true
	}
	return false, false
}

// EvictN evicts up to n elements in policy order.
func EvictN[T any](p ReplacementPolicy[T], n int) []T {
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, min(n, p.Len()))
	for len(out) < n {
		e, ok := p.EvictNext()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

// nop admits everything and never picks a victim.
type nop[T any] struct{ n int }

// Nop returns a degenerate policy that accepts every element but never
// chooses one for eviction. Handles are not meaningful.
func Nop[T any]() ReplacementPolicy[T] { return &nop[T]{} }

func (p *nop[T]) Add(T) (int, bool) {
	p.n++
	return 0, true
}

func (p *nop[T]) Admits(T) bool      { return true }
func (p *nop[T]) Update(int, T) bool { return true }
func (p *nop[T]) Touch(int)          {}
func (p *nop[T]) PeekAll() []T       { return nil }
func (p *nop[T]) Len() int           { return p.n }
func (p *nop[T]) Clear()             { p.n = 0 }

func (p *nop[T]) EvictNext() (T, bool) {
	var zero T
	return zero, false
}

func (p *nop[T]) Peek() (T, bool) {
	var zero T
	return zero, false
}

// Remove forgets one element; the returned value is always the zero value.
func (p *nop[T]) Remove(int) (T, bool) {
	var zero T
	if p.n == 0 {
		return zero, false
	}
	p.n--
	return zero, true
}
