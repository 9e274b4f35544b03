// Package clock implements the Clock (second-chance) replacement policy.
//
// Elements sit on a ring with a hand pointing at the next eviction
// candidate. An access sets the element's visited bit; when the hand passes
// a visited element it clears the bit and moves on instead of evicting it.
package clock

import (
	"fmt"

	"github.com/IvanBrykalov/policycache/internal/indexed"
	"github.com/IvanBrykalov/policycache/policy"
)

// Name is the registry name of this policy.
const Name = "clock"

type slot[T any] struct {
	value   T
	visited bool
}

type clock[T any] struct {
	ring *indexed.List[slot[T]]
	hand int // 0 when the ring is empty
}

// New returns a Clock policy with the default initial capacity of 100.
func New[T any]() policy.ReplacementPolicy[T] { return NewWithCapacity[T](100) }

// NewWithCapacity returns a Clock policy sized for initialCapacity elements.
// It panics if initialCapacity is negative.
func NewWithCapacity[T any](initialCapacity int) policy.ReplacementPolicy[T] {
	if initialCapacity < 0 {
		panic("clock: initialCapacity must be 0 or greater")
	}
	return &clock[T]{ring: indexed.New[slot[T]](initialCapacity)}
}

// advance returns the ring successor of i, skipping the sentinel.
func (c *clock[T]) advance(i int) int {
	n := c.ring.Next(i)
	if n == 0 {
		n = c.ring.Next(0)
	}
	return n
}

// Add inserts the element just behind the hand, so it is the last one the
// hand reaches in the current sweep.
func (c *clock[T]) Add(e T) (int, bool) {
	if c.hand == 0 {
		c.hand = c.ring.PushBack(slot[T]{value: e})
		return c.hand, true
	}
	return c.ring.InsertBefore(c.hand, slot[T]{value: e}), true
}

func (c *clock[T]) Admits(T) bool { return true }

// Update replaces the value; the visited bit is kept.
func (c *clock[T]) Update(index int, e T) bool {
	if !c.ring.Contains(index) {
		return false
	}
	c.ring.Ref(index).value = e
	return true
}

// Touch sets the visited bit.
func (c *clock[T]) Touch(index int) {
	if c.ring.Contains(index) {
		c.ring.Ref(index).visited = true
	}
}

// EvictNext sweeps the hand until it finds an element that has not been
// visited since the last sweep.
func (c *clock[T]) EvictNext() (T, bool) {
	if c.ring.Len() == 0 {
		var zero T
		return zero, false
	}
	for {
		s := c.ring.Ref(c.hand)
		if !s.visited {
			return c.Remove(c.hand)
		}
		s.visited = false
		c.hand = c.advance(c.hand)
	}
}

func (c *clock[T]) Peek() (T, bool) {
	if c.ring.Len() == 0 {
		var zero T
		return zero, false
	}
	for i, n := c.hand, 0; n < c.ring.Len(); i, n = c.advance(i), n+1 {
		if s := c.ring.At(i); !s.visited {
			return s.value, true
		}
	}
	// Every bit is set: one sweep clears them all and the hand element goes.
	return c.ring.At(c.hand).value, true
}

// PeekAll walks the ring twice from the hand: unvisited elements first,
// then visited ones. This is the order repeated EvictNext calls produce.
func (c *clock[T]) PeekAll() []T {
	n := c.ring.Len()
	out := make([]T, 0, n)
	for _, visited := range [2]bool{false, true} {
		for i, k := c.hand, 0; k < n; i, k = c.advance(i), k+1 {
			if s := c.ring.At(i); s.visited == visited {
				out = append(out, s.value)
			}
		}
	}
	return out
}

func (c *clock[T]) Remove(index int) (T, bool) {
	if !c.ring.Contains(index) {
		var zero T
		return zero, false
	}
	if index == c.hand {
		c.hand = c.advance(index)
	}
	s, _ := c.ring.Remove(index)
	if c.ring.Len() == 0 {
		c.hand = 0
	}
	return s.value, true
}

func (c *clock[T]) Len() int { return c.ring.Len() }

func (c *clock[T]) Clear() {
	c.ring.Clear()
	c.hand = 0
}

func (c *clock[T]) String() string {
	return fmt.Sprintf("Clock policy with %d entries", c.ring.Len())
}
