// Package sizelimit provides a policy decorator that refuses to admit
// elements above a per-element size threshold.
package sizelimit

import (
	"fmt"

	"github.com/IvanBrykalov/policycache/policy"
)

type limited[T any] struct {
	policy.ReplacementPolicy[T]
	sizeOf func(T) int64
	limit  int64
}

// admitting is limited over a policy.Admitter; it answers Admits too.
type admitting[T any] struct {
	*limited[T]
	inner policy.Admitter[T]
}

// New wraps p so that elements whose sizeOf exceeds limit are rejected.
// All other calls go straight to p. The result is a policy.Admitter when p
// is one.
func New[T any](p policy.ReplacementPolicy[T], sizeOf func(T) int64, limit int64) policy.ReplacementPolicy[T] {
	if p == nil || sizeOf == nil {
		panic("sizelimit: policy and sizeOf must not be nil")
	}
	if limit < 0 {
		panic("sizelimit: limit must be 0 or greater")
	}
	l := &limited[T]{ReplacementPolicy: p, sizeOf: sizeOf, limit: limit}
	if a, ok := p.(policy.Admitter[T]); ok {
		return &admitting[T]{limited: l, inner: a}
	}
	return l
}

func (a *admitting[T]) Admits(e T) bool {
	return a.sizeOf(e) <= a.limit && a.inner.Admits(e)
}

// Add rejects oversized elements without touching the wrapped policy.
func (l *limited[T]) Add(e T) (int, bool) {
	if l.sizeOf(e) > l.limit {
		return policy.NoIndex, false
	}
	return l.ReplacementPolicy.Add(e)
}

// Update releases the old slot when the new element is oversized.
func (l *limited[T]) Update(index int, e T) bool {
	if l.sizeOf(e) > l.limit {
		l.ReplacementPolicy.Remove(index)
		return false
	}
	return l.ReplacementPolicy.Update(index, e)
}

func (l *limited[T]) String() string {
	return fmt.Sprintf("%v limited to size %d", l.ReplacementPolicy, l.limit)
}
