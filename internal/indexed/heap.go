package indexed

import (
	"cmp"
	"slices"
)

// Heap is an indexed binary min-heap. Elements are addressed by stable
// handles; ordering is by priority, then by insertion sequence so that equal
// priorities leave in FIFO order.
//
// Heap is not safe for concurrent use.
type Heap[T any] struct {
	data []T
	prio []int64
	seq  []uint64
	pos  []int // handle -> heap position, -1 when free
	heap []int // heap position -> handle
	free []int
	tick uint64
}

// NewHeap returns a heap with room for initialCapacity elements.
// It panics if initialCapacity is negative.
func NewHeap[T any](initialCapacity int) *Heap[T] {
	if initialCapacity < 0 {
		panic("indexed: initialCapacity must be 0 or greater")
	}
	h := &Heap[T]{}
	h.grow(initialCapacity)
	return h
}

func (h *Heap[T]) grow(n int) {
	old := len(h.data)
	h.data = append(h.data, make([]T, n)...)
	h.prio = append(h.prio, make([]int64, n)...)
	h.seq = append(h.seq, make([]uint64, n)...)
	h.pos = append(h.pos, make([]int, n)...)
	for i := old + n - 1; i >= old; i-- {
		h.pos[i] = -1
		h.free = append(h.free, i)
	}
}

// Add inserts e with the given priority and returns its handle.
func (h *Heap[T]) Add(e T, priority int64) int {
	if len(h.free) == 0 {
		n := len(h.data)
		if n < 1 {
			n = 1
		}
		h.grow(n)
	}
	i := h.free[len(h.free)-1]
	h.free = h.free[:len(h.free)-1]
	h.tick++
	h.data[i], h.prio[i], h.seq[i] = e, priority, h.tick
	h.pos[i] = len(h.heap)
	h.heap = append(h.heap, i)
	h.up(h.pos[i])
	return i
}

// Contains reports whether i is a live handle.
func (h *Heap[T]) Contains(i int) bool { return i >= 0 && i < len(h.pos) && h.pos[i] >= 0 }

// Peek returns the minimum element without removing it.
func (h *Heap[T]) Peek() (T, bool) {
	if len(h.heap) == 0 {
		var zero T
		return zero, false
	}
	return h.data[h.heap[0]], true
}

// Poll removes and returns the minimum element.
func (h *Heap[T]) Poll() (T, bool) {
	if len(h.heap) == 0 {
		var zero T
		return zero, false
	}
	return h.Remove(h.heap[0])
}

// Remove deletes the element with handle i.
func (h *Heap[T]) Remove(i int) (T, bool) {
	var zero T
	if !h.Contains(i) {
		return zero, false
	}
	p := h.pos[i]
	last := len(h.heap) - 1
	h.swap(p, last)
	h.heap = h.heap[:last]
	if p < last {
		h.down(p)
		h.up(p)
	}
	e := h.data[i]
	h.data[i] = zero
	h.pos[i] = -1
	h.free = append(h.free, i)
	return e, true
}

// Replace overwrites the payload at i, keeping its priority.
func (h *Heap[T]) Replace(i int, e T) bool {
	if !h.Contains(i) {
		return false
	}
	h.data[i] = e
	return true
}

// Priority returns the current priority of i.
func (h *Heap[T]) Priority(i int) int64 { return h.prio[i] }

// SetPriority changes the priority of i and restores heap order.
func (h *Heap[T]) SetPriority(i int, priority int64) bool {
	if !h.Contains(i) {
		return false
	}
	h.prio[i] = priority
	h.down(h.pos[i])
	h.up(h.pos[i])
	return true
}

// PeekAll returns every element in the order Poll would return them.
// It sorts a copy of the handles and does not mutate the heap.
func (h *Heap[T]) PeekAll() []T {
	handles := slices.Clone(h.heap)
	slices.SortFunc(handles, h.compare)
	out := make([]T, len(handles))
	for k, i := range handles {
		out[k] = h.data[i]
	}
	return out
}

// Len returns the number of live elements.
func (h *Heap[T]) Len() int { return len(h.heap) }

// Clear removes all elements, keeping capacity.
func (h *Heap[T]) Clear() {
	n := len(h.data)
	*h = Heap[T]{}
	h.grow(n)
}

func (h *Heap[T]) compare(a, b int) int {
	if c := cmp.Compare(h.prio[a], h.prio[b]); c != 0 {
		return c
	}
	return cmp.Compare(h.seq[a], h.seq[b])
}

func (h *Heap[T]) less(p, q int) bool { return h.compare(h.heap[p], h.heap[q]) < 0 }

func (h *Heap[T]) swap(p, q int) {
	h.heap[p], h.heap[q] = h.heap[q], h.heap[p]
	h.pos[h.heap[p]] = p
	h.pos[h.heap[q]] = q
}

func (h *Heap[T]) up(p int) {
	for p > 0 {
		parent := (p - 1) / 2
		if !h.less(p, parent) {
			return
		}
		h.swap(p, parent)
		p = parent
	}
}

func (h *Heap[T]) down(p int) {
	n := len(h.heap)
	for {
		l := 2*p + 1
		if l >= n {
			return
		}
		m := l
		if r := l + 1; r < n && h.less(r, l) {
			m = r
		}
		if !h.less(m, p) {
			return
		}
		h.swap(p, m)
		p = m
	}
}
