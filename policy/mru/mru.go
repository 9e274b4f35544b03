// Package mru implements the Most-Recently-Used replacement policy.
package mru

import (
	"fmt"

	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "mru"

// mru keeps elements on a stack: the top (list tail) is the most recently
// used element and is evicted first.
type mru[T any] struct {
	stack *indexed.List[T]
}

// New returns an MRU policy with the default initial capacity of 100.
func New[T any]() policy.ReplacementPolicy[T] { return NewWithCapacity[T](100) }

// NewWithCapacity returns an MRU policy sized for initialCapacity elements.
// It panics if initialCapacity is negative.
func NewWithCapacity[T any](initialCapacity int) policy.ReplacementPolicy[T] {
	if initialCapacity < 0 {
		panic("mru: initialCapacity must be 0 or greater")
	}
	return &mru[T]{stack: indexed.New[T](initialCapacity)}
}

// Add pushes the element on top of the stack. MRU never rejects.
func (p *mru[T]) Add(e T) (int, bool) { return p.stack.PushBack(e), true }

func (p *mru[T]) Admits(T) bool { return true }

// Update replaces the element in place; the stack position is kept.
func (p *mru[T]) Update(index int, e T) bool { return p.stack.Replace(index, e) }

// Touch moves the element to the top.
func (p *mru[T]) Touch(index int) { p.stack.MoveToBack(index) }

// EvictNext pops the top of the stack.
func (p *mru[T]) EvictNext() (T, bool) {
	top, ok := p.stack.Back()
	if !ok {
		var zero T
		return zero, false
	}
	return p.stack.Remove(top)
}

func (p *mru[T]) Peek() (T, bool) {
	top, ok := p.stack.Back()
	if !ok {
		var zero T
		return zero, false
	}
	return p.stack.At(top), true
}

// PeekAll returns the stack from top to bottom.
func (p *mru[T]) PeekAll() []T {
	out := make([]T, 0, p.stack.Len())
	for i := p.stack.Prev(0); i != 0; i = p.stack.Prev(i) {
		out = append(out, p.stack.At(i))
	}
	return out
}

func (p *mru[T]) Remove(index int) (T, bool) { return p.stack.Remove(index) }
func (p *mru[T]) Len() int                   { return p.stack.Len() }
func (p *mru[T]) Clear()                     { p.stack.Clear() }

func (p *mru[T]) String() string { return fmt.Sprintf("MRU policy with %d entries", p.stack.Len()) }
