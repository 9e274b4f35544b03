package clock

import (
	"math/rand/v2"
	"slices"
	"testing"
)

// Unvisited elements come first in hand order, then visited ones.
func TestClock_PeekAllTwoPass(t *testing.T) {
	t.Parallel()

	p := NewWithCapacity[string](4)
	idx := map[string]int{}
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		i, _ := p.Add(s)
		idx[s] = i
	}
	p.Touch(idx["b"])
	p.Touch(idx["d"])

	want := []string{"a", "c", "e", "b", "d"}
	got := p.PeekAll()
	if !slices.Equal(got, want) {
		t.Fatalf("PeekAll = %v, want %v", got, want)
	}
	if again := p.PeekAll(); !slices.Equal(again, got) {
		t.Fatalf("PeekAll not stable: %v then %v", got, again)
	}
	if head, _ := p.Peek(); head != "a" {
		t.Fatalf("Peek = %q, want a", head)
	}
}

// PeekAll predicts the exact sequence of EvictNext for random touch patterns.
func TestClock_PeekAllMatchesEviction(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		p := New[int]()
		var live []int
		for v := range 20 {
			i, _ := p.Add(v)
			live = append(live, i)
			if r.IntN(3) == 0 {
				p.Touch(live[r.IntN(len(live))])
			}
			// Interleave some evictions to move the hand.
			if r.IntN(5) == 0 {
				p.EvictNext()
			}
		}
		for _, i := range live {
			if r.IntN(2) == 0 {
				p.Touch(i)
			}
		}

		want := p.PeekAll()
		var got []int
		for {
			v, ok := p.EvictNext()
			if !ok {
				break
			}
			got = append(got, v)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("round %d: eviction %v, PeekAll predicted %v", round, got, want)
		}
	}
}

// A visited element gets a second chance.
func TestClock_SecondChance(t *testing.T) {
	t.Parallel()

	p := New[string]()
	a, _ := p.Add("a")
	p.Add("b")
	p.Touch(a)

	if v, _ := p.EvictNext(); v != "b" {
		t.Fatalf("EvictNext = %q, want b", v)
	}
	if v, _ := p.EvictNext(); v != "a" {
		t.Fatalf("EvictNext = %q, want a", v)
	}
	if p.Len() != 0 {
		t.Fatal("policy must be empty")
	}
}

// Removing the element under the hand moves the hand forward.
func TestClock_RemoveUnderHand(t *testing.T) {
	t.Parallel()

	p := New[string]()
	a, _ := p.Add("a")
	p.Add("b")
	p.Add("c")

	if v, ok := p.Remove(a); !ok || v != "a" {
		t.Fatalf("Remove = %q,%v", v, ok)
	}
	if head, _ := p.Peek(); head != "b" {
		t.Fatalf("Peek = %q, want b", head)
	}
	if _, ok := p.Remove(a); ok {
		t.Fatal("second Remove of the same handle must fail")
	}
}

// Update keeps the visited bit and always succeeds for live slots.
func TestClock_Update(t *testing.T) {
	t.Parallel()

	p := New[string]()
	a, _ := p.Add("a")
	p.Add("b")
	p.Touch(a)
	if !p.Update(a, "A") {
		t.Fatal("Update of a live slot must succeed")
	}
	if got := p.PeekAll(); !slices.Equal(got, []string{"b", "A"}) {
		t.Fatalf("PeekAll = %v", got)
	}
}

// Clear resets the ring and the hand.
func TestClock_Clear(t *testing.T) {
	t.Parallel()

	p := New[int]()
	for v := range 10 {
		p.Add(v)
	}
	p.Clear()
	if _, ok := p.Peek(); ok {
		t.Fatal("Peek on empty policy must fail")
	}
	p.Add(42)
	if v, _ := p.EvictNext(); v != 42 {
		t.Fatalf("EvictNext = %d, want 42", v)
	}
}
