// Package fifo implements a First-In-First-Out replacement policy.
package fifo

import (
	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "fifo"

type fifo[T any] struct {
	queue *indexed.List[T]
}

// New returns a FIFO policy sized for initialCapacity elements.
func New[T any](initialCapacity int) policy.ReplacementPolicy[T] {
	if initialCapacity < 0 {
		panic("fifo: initialCapacity must be 0 or greater")
	}
	return &fifo[T]{queue: indexed.New[T](initialCapacity)}
}

func (p *fifo[T]) Add(e T) (int, bool) { return p.queue.PushBack(e), true }

func (p *fifo[T]) Admits(T) bool { return true }

// Update keeps the original insertion position.
func (p *fifo[T]) Update(index int, e T) bool { return p.queue.Replace(index, e) }

// Touch is a no-op: accesses do not change insertion order.
func (p *fifo[T]) Touch(int) {}

func (p *fifo[T]) EvictNext() (T, bool) {
	head, ok := p.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return p.queue.Remove(head)
}

func (p *fifo[T]) Peek() (T, bool) {
	head, ok := p.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return p.queue.At(head), true
}

func (p *fifo[T]) PeekAll() []T               { return p.queue.ValuesOf(0) }
func (p *fifo[T]) Remove(index int) (T, bool) { return p.queue.Remove(index) }
func (p *fifo[T]) Len() int                   { return p.queue.Len() }
func (p *fifo[T]) Clear()                     { p.queue.Clear() }
