// Package singleflight coalesces concurrent loads of the same cache key.
package singleflight

import (
	"context"
	"fmt"
	"sync"
)

// Group runs at most one load per key at a time. Callers arriving while a
// load is in flight wait for its result instead of starting their own.
//
// The first caller for a key is the leader and runs fn. Followers wait on
// the call's done channel; the result is published before the channel is
// closed. A follower whose ctx is cancelled returns ctx.Err() without
// stopping the leader.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done  chan struct{}
	val   V
	err   error
	joins int
}

// PanicError wraps a panic raised by the leader's fn. Followers receive it
// as their error; the leader re-panics with it.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string { return fmt.Sprintf("singleflight: load panicked: %v", p.Value) }

// Do runs fn once for key and shares the outcome with concurrent callers.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.joins++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}
	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	defer func() {
		r := recover()
		if r != nil {
			c.err = &PanicError{Value: r}
		}
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
		close(c.done)
		if r != nil {
			panic(c.err)
		}
	}()
	c.val, c.err = fn()
	return c.val, c.err
}

// InFlight reports whether a load for key is running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Waiting returns how many followers joined the in-flight load for key.
func (g *Group[K, V]) Waiting(key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.joins
	}
	return 0
}
