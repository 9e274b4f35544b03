package mru

import (
	"slices"
	"testing"
)

// Touching elements in some order makes EvictNext return them in reverse.
func TestMRU_ReverseRecency(t *testing.T) {
	t.Parallel()

	p := NewWithCapacity[int](2)
	idx := make(map[int]int)
	for v := range 6 {
		i, ok := p.Add(v)
		if !ok {
			t.Fatalf("Add(%d) rejected", v)
		}
		idx[v] = i
	}

	touches := []int{3, 0, 5, 1, 4, 2}
	for _, v := range touches {
		p.Touch(idx[v])
	}

	for k := len(touches) - 1; k >= 0; k-- {
		got, ok := p.EvictNext()
		if !ok || got != touches[k] {
			t.Fatalf("EvictNext = %d,%v; want %d", got, ok, touches[k])
		}
	}
	if _, ok := p.EvictNext(); ok {
		t.Fatal("empty policy must not evict")
	}
}

// PeekAll lists top to bottom and matches Peek.
func TestMRU_PeekAll(t *testing.T) {
	t.Parallel()

	p := New[string]()
	p.Add("a")
	b, _ := p.Add("b")
	p.Add("c")
	p.Touch(b)

	want := []string{"b", "c", "a"}
	if got := p.PeekAll(); !slices.Equal(got, want) {
		t.Fatalf("PeekAll = %v, want %v", got, want)
	}
	if top, _ := p.Peek(); top != "b" {
		t.Fatalf("Peek = %q, want b", top)
	}
	if p.Len() != 3 {
		t.Fatalf("PeekAll must not mutate, len = %d", p.Len())
	}
}

// Update replaces in place and keeps the stack position.
func TestMRU_UpdateKeepsPosition(t *testing.T) {
	t.Parallel()

	p := New[string]()
	a, _ := p.Add("a")
	p.Add("b")
	if !p.Update(a, "A") {
		t.Fatal("update of a live slot must succeed")
	}
	if got := p.PeekAll(); !slices.Equal(got, []string{"b", "A"}) {
		t.Fatalf("PeekAll = %v", got)
	}
	if p.Update(1000, "x") {
		t.Fatal("update of an unknown slot must fail")
	}
}

// Remove drops an element out of order.
func TestMRU_Remove(t *testing.T) {
	t.Parallel()

	p := New[int]()
	p.Add(1)
	i, _ := p.Add(2)
	p.Add(3)
	if v, ok := p.Remove(i); !ok || v != 2 {
		t.Fatalf("Remove = %d,%v", v, ok)
	}
	if got := p.PeekAll(); !slices.Equal(got, []int{3, 1}) {
		t.Fatalf("PeekAll = %v", got)
	}
	p.Clear()
	if p.Len() != 0 {
		t.Fatal("Clear must empty the policy")
	}
}
