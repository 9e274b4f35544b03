package sizelimit

import (
	"testing"

	"github.com/IvanBrykalov/policycache/policy"
	"github.com/IvanBrykalov/policycache/policy/lru"
)

type item struct {
	name string
	size int64
}

func sizeOf(it item) int64 { return it.size }

// Oversized elements are rejected and leave the wrapped policy untouched.
func TestSizeLimit_RejectsOversized(t *testing.T) {
	t.Parallel()

	p := New(lru.New[item](), sizeOf, 10)
	if _, ok := p.Add(item{"a", 5}); !ok {
		t.Fatal("small item must be admitted")
	}
	if _, ok := p.Add(item{"b", 11}); ok {
		t.Fatal("oversized item must be rejected")
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}
}

// A rejected update releases the old slot.
func TestSizeLimit_RejectedUpdateReleasesSlot(t *testing.T) {
	t.Parallel()

	p := New(lru.New[item](), sizeOf, 10)
	i, _ := p.Add(item{"a", 1})
	p.Add(item{"b", 1})

	if p.Update(i, item{"a", 100}) {
		t.Fatal("oversized update must be rejected")
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d after rejected update, want 1", p.Len())
	}
	if v, _ := p.EvictNext(); v.name != "b" {
		t.Fatalf("remaining element = %q, want b", v.name)
	}
}

// Accepted updates are forwarded.
func TestSizeLimit_UpdateWithinLimit(t *testing.T) {
	t.Parallel()

	p := New(lru.New[item](), sizeOf, 10)
	i, _ := p.Add(item{"a", 1})
	if !p.Update(i, item{"a2", 10}) {
		t.Fatal("update at the limit must be accepted")
	}
	if v, _ := p.Peek(); v.name != "a2" {
		t.Fatalf("peek = %q, want a2", v.name)
	}
}

// plain hides the wrapped policy's Admits method.
type plain struct{ policy.ReplacementPolicy[item] }

// Admits answers ahead of Add only when the wrapped policy can.
func TestSizeLimit_Admits(t *testing.T) {
	t.Parallel()

	p := New(lru.New[item](), sizeOf, 10)
	if admit, known := policy.Admits(p, item{"a", 10}); !known || !admit {
		t.Fatalf("Admits(size 10) = %v, %v; want true, true", admit, known)
	}
	if admit, known := policy.Admits(p, item{"b", 11}); !known || admit {
		t.Fatalf("Admits(size 11) = %v, %v; want false, true", admit, known)
	}
	if p.Len() != 0 {
		t.Fatalf("Admits changed the policy: len = %d", p.Len())
	}

	opaque := New[item](plain{lru.New[item]()}, sizeOf, 10)
	if _, known := policy.Admits(opaque, item{"a", 1}); known {
		t.Fatal("Admits must be unknown over a policy without Admitter")
	}
	if _, ok := opaque.Add(item{"b", 11}); ok {
		t.Fatal("oversized item must still be rejected")
	}
}
