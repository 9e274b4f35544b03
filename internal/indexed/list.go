// Package indexed provides slot tables addressed by stable integer handles.
//
// Policies keep their bookkeeping here instead of allocating a node per
// cache entry: a handle returned by an add operation stays valid until the
// element is removed, after which the slot is recycled.
package indexed

// List is a set of circular doubly linked lists that share one slot table.
//
// Indices [0, lists) are sentinels, one per list; a single-list table
// therefore uses index 0 as its "null" link target. Element handles start at
// the number of lists. Parallel arrays keep the payload and the links; a
// free stack recycles removed handles (LIFO).
//
// List is not safe for concurrent use.
type List[T any] struct {
	data   []T
	next   []int
	prev   []int
	owner  []int // sentinel the slot is linked into; -1 when the slot is free
	free   []int // recycled handles, popped from the end
	counts []int // elements per list
	lists  int
	size   int
}

// New returns a single-list table with room for initialCapacity elements.
// It panics if initialCapacity is negative.
func New[T any](initialCapacity int) *List[T] {
	return NewMulti[T](1, initialCapacity)
}

// NewMulti returns a table holding the given number of independent lists.
func NewMulti[T any](lists, initialCapacity int) *List[T] {
	if lists < 1 {
		panic("indexed: at least one list is required")
	}
	if initialCapacity < 0 {
		panic("indexed: initialCapacity must be 0 or greater")
	}
	l := &List[T]{lists: lists}
	l.reset(initialCapacity)
	return l
}

func (l *List[T]) reset(capacity int) {
	n := l.lists + capacity
	l.data = make([]T, n)
	l.next = make([]int, n)
	l.prev = make([]int, n)
	l.owner = make([]int, n)
	l.counts = make([]int, l.lists)
	l.free = l.free[:0]
	for s := 0; s < l.lists; s++ {
		l.next[s], l.prev[s], l.owner[s] = s, s, s
	}
	for i := n - 1; i >= l.lists; i-- {
		l.owner[i] = -1
		l.free = append(l.free, i)
	}
	l.size = 0
}

// grow appends n free slots. Existing handles are untouched.
func (l *List[T]) grow(n int) {
	old := len(l.data)
	l.data = append(l.data, make([]T, n)...)
	l.next = append(l.next, make([]int, n)...)
	l.prev = append(l.prev, make([]int, n)...)
	l.owner = append(l.owner, make([]int, n)...)
	for i := old + n - 1; i >= old; i-- {
		l.owner[i] = -1
		l.free = append(l.free, i)
	}
}

func (l *List[T]) alloc() int {
	if len(l.free) == 0 {
		n := l.Cap()
		if n < 1 {
			n = 1
		}
		l.grow(n) // double
	}
	i := l.free[len(l.free)-1]
	l.free = l.free[:len(l.free)-1]
	return i
}

func (l *List[T]) linkBefore(at, i int) {
	p := l.prev[at]
	l.prev[i] = p
	l.next[i] = at
	l.next[p] = i
	l.prev[at] = i
}

func (l *List[T]) unlink(i int) {
	l.next[l.prev[i]] = l.next[i]
	l.prev[l.next[i]] = l.prev[i]
}

func (l *List[T]) insert(at, list int, e T) int {
	i := l.alloc()
	l.data[i] = e
	l.owner[i] = list
	l.linkBefore(at, i)
	l.counts[list]++
	l.size++
	return i
}

// PushBack appends e to the tail of list 0 and returns its handle.
func (l *List[T]) PushBack(e T) int { return l.insert(0, 0, e) }

// PushFront prepends e to the head of list 0 and returns its handle.
func (l *List[T]) PushFront(e T) int { return l.insert(l.next[0], 0, e) }

// PushBackOf appends e to the tail of the given list.
func (l *List[T]) PushBackOf(list int, e T) int { return l.insert(list, list, e) }

// InsertBefore links e immediately before the live element (or sentinel) at.
func (l *List[T]) InsertBefore(at int, e T) int {
	if at < l.lists {
		return l.insert(at, at, e)
	}
	return l.insert(at, l.owner[at], e)
}

// Remove unlinks the element at i and recycles its slot.
// It reports false if i is not a live handle.
func (l *List[T]) Remove(i int) (T, bool) {
	var zero T
	if !l.Contains(i) {
		return zero, false
	}
	l.unlink(i)
	e := l.data[i]
	l.data[i] = zero
	l.counts[l.owner[i]]--
	l.owner[i] = -1
	l.free = append(l.free, i)
	l.size--
	return e, true
}

// Replace overwrites the payload at i without touching the links.
func (l *List[T]) Replace(i int, e T) bool {
	if !l.Contains(i) {
		return false
	}
	l.data[i] = e
	return true
}

// MoveToBack moves i to the tail of the list it belongs to.
func (l *List[T]) MoveToBack(i int) {
	if l.Contains(i) {
		l.MoveToBackOf(l.owner[i], i)
	}
}

// MoveToFront moves i to the head of the list it belongs to.
func (l *List[T]) MoveToFront(i int) {
	if !l.Contains(i) {
		return
	}
	s := l.owner[i]
	if l.next[s] == i {
		return
	}
	l.unlink(i)
	l.linkBefore(l.next[s], i)
}

// MoveToBackOf moves i to the tail of list, transferring ownership if needed.
func (l *List[T]) MoveToBackOf(list, i int) {
	if !l.Contains(i) {
		return
	}
	if l.owner[i] == list && l.prev[list] == i {
		return
	}
	l.unlink(i)
	l.counts[l.owner[i]]--
	l.owner[i] = list
	l.counts[list]++
	l.linkBefore(list, i)
}

// Front returns the head handle of list 0.
func (l *List[T]) Front() (int, bool) { return l.FrontOf(0) }

// Back returns the tail handle of list 0.
func (l *List[T]) Back() (int, bool) { return l.BackOf(0) }

// FrontOf returns the head handle of the given list.
func (l *List[T]) FrontOf(list int) (int, bool) {
	n := l.next[list]
	return n, n != list
}

// BackOf returns the tail handle of the given list.
func (l *List[T]) BackOf(list int) (int, bool) {
	p := l.prev[list]
	return p, p != list
}

// Next returns the raw successor link of i; it may be a sentinel.
func (l *List[T]) Next(i int) int { return l.next[i] }

// Prev returns the raw predecessor link of i; it may be a sentinel.
func (l *List[T]) Prev(i int) int { return l.prev[i] }

// IsSentinel reports whether i is the sentinel of some list.
func (l *List[T]) IsSentinel(i int) bool { return i >= 0 && i < l.lists }

// At returns the payload stored at i (zero value for free slots).
func (l *List[T]) At(i int) T { return l.data[i] }

// Ref returns a pointer to the payload at i. The pointer is invalidated by
// the next insertion that grows the table.
func (l *List[T]) Ref(i int) *T { return &l.data[i] }

// Contains reports whether i is a live element handle.
func (l *List[T]) Contains(i int) bool {
	return i >= l.lists && i < len(l.owner) && l.owner[i] >= 0
}

// Owner returns the list i is linked into, or -1 if i is not live.
func (l *List[T]) Owner(i int) int {
	if !l.Contains(i) {
		return -1
	}
	return l.owner[i]
}

// Len returns the number of live elements across all lists.
func (l *List[T]) Len() int { return l.size }

// LenOf returns the number of live elements in the given list.
func (l *List[T]) LenOf(list int) int { return l.counts[list] }

// Cap returns the number of element slots currently allocated.
func (l *List[T]) Cap() int { return len(l.data) - l.lists }

// Clear drops every element and resets the free stack. Capacity is kept.
func (l *List[T]) Clear() { l.reset(l.Cap()) }

// ValuesOf returns the payloads of list from head to tail.
func (l *List[T]) ValuesOf(list int) []T {
	out := make([]T, 0, l.counts[list])
	for i := l.next[list]; i != list; i = l.next[i] {
		out = append(out, l.data[i])
	}
	return out
}
