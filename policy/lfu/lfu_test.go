package lfu

import (
	"slices"
	"testing"
)

// The least touched element goes first; ties leave oldest first.
func TestLFU_EvictsLeastFrequent(t *testing.T) {
	t.Parallel()

	p := New[string](2)
	a, _ := p.Add("a")
	b, _ := p.Add("b")
	p.Add("c")
	p.Add("d")

	p.Touch(a)
	p.Touch(a)
	p.Touch(b)

	want := []string{"c", "d", "b", "a"}
	if got := p.PeekAll(); !slices.Equal(got, want) {
		t.Fatalf("PeekAll = %v, want %v", got, want)
	}
	for _, w := range want {
		if v, _ := p.EvictNext(); v != w {
			t.Fatalf("EvictNext = %q, want %q", v, w)
		}
	}
}

// Update keeps the accumulated frequency.
func TestLFU_UpdateKeepsFrequency(t *testing.T) {
	t.Parallel()

	p := New[string](0)
	a, _ := p.Add("a")
	p.Add("b")
	p.Touch(a)
	if !p.Update(a, "A") {
		t.Fatal("Update must succeed")
	}
	if v, _ := p.Peek(); v != "b" {
		t.Fatalf("Peek = %q, want b", v)
	}
	if _, ok := p.Remove(a); !ok {
		t.Fatal("Remove must succeed")
	}
	p.Touch(a) // freed handle, ignored
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}
}
