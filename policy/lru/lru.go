// Package lru implements the LRU eviction policy.
package lru

import (
	"fmt"

	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "lru"

// lru is a classic "move-to-back" Least-Recently-Used policy.
// The list head is the least recently used element.
type lru[T any] struct {
	list *indexed.List[T]
}

// New returns an LRU policy with the default initial capacity of 100.
func New[T any]() policy.ReplacementPolicy[T] { return NewWithCapacity[T](100) }

// NewWithCapacity returns an LRU policy sized for initialCapacity elements.
func NewWithCapacity[T any](initialCapacity int) policy.ReplacementPolicy[T] {
	if initialCapacity < 0 {
		panic("lru: initialCapacity must be 0 or greater")
	}
	return &lru[T]{list: indexed.New[T](initialCapacity)}
}

// Add places the new element at the MRU end.
func (p *lru[T]) Add(e T) (int, bool) { return p.list.PushBack(e), true }

func (p *lru[T]) Admits(T) bool { return true }

// Update replaces the element and treats the update as recent use.
func (p *lru[T]) Update(index int, e T) bool {
	if !p.list.Replace(index, e) {
		return false
	}
	p.list.MoveToBack(index)
	return true
}

// Touch promotes the element to MRU.
func (p *lru[T]) Touch(index int) { p.list.MoveToBack(index) }

// EvictNext removes the least recently used element.
func (p *lru[T]) EvictNext() (T, bool) {
	head, ok := p.list.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return p.list.Remove(head)
}

func (p *lru[T]) Peek() (T, bool) {
	head, ok := p.list.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return p.list.At(head), true
}

func (p *lru[T]) PeekAll() []T               { return p.list.ValuesOf(0) }
func (p *lru[T]) Remove(index int) (T, bool) { return p.list.Remove(index) }
func (p *lru[T]) Len() int                   { return p.list.Len() }
func (p *lru[T]) Clear()                     { p.list.Clear() }

func (p *lru[T]) String() string { return fmt.Sprintf("LRU policy with %d entries", p.list.Len()) }
