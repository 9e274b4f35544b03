// Package lfu implements a Least-Frequently-Used replacement policy on an
// indexed heap. Ties are broken by admission order (oldest first).
package lfu

import (
	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "lfu"

type lfu[T any] struct {
	heap *indexed.Heap[T]
}

// New returns an LFU policy sized for initialCapacity elements.
func New[T any](initialCapacity int) policy.ReplacementPolicy[T] {
	if initialCapacity < 0 {
		panic("lfu: initialCapacity must be 0 or greater")
	}
	return &lfu[T]{heap: indexed.NewHeap[T](initialCapacity)}
}

// Add admits the element with a frequency of zero.
func (p *lfu[T]) Add(e T) (int, bool) { return p.heap.Add(e, 0), true }

func (p *lfu[T]) Admits(T) bool { return true }

// Update keeps the accumulated frequency of the slot.
func (p *lfu[T]) Update(index int, e T) bool { return p.heap.Replace(index, e) }

// Touch increments the access frequency.
func (p *lfu[T]) Touch(index int) {
	if p.heap.Contains(index) {
		p.heap.SetPriority(index, p.heap.Priority(index)+1)
	}
}

func (p *lfu[T]) EvictNext() (T, bool)       { return p.heap.Poll() }
func (p *lfu[T]) Peek() (T, bool)            { return p.heap.Peek() }
func (p *lfu[T]) PeekAll() []T               { return p.heap.PeekAll() }
func (p *lfu[T]) Remove(index int) (T, bool) { return p.heap.Remove(index) }
func (p *lfu[T]) Len() int                   { return p.heap.Len() }
func (p *lfu[T]) Clear()                     { p.heap.Clear() }
