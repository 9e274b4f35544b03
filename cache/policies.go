package cache

import (
	"fmt"
	"strings"

	"github.com/IvanBrykalov/policycache/policy"
	"github.com/IvanBrykalov/policycache/policy/clock"
	"github.com/IvanBrykalov/policycache/policy/fifo"
	"github.com/IvanBrykalov/policycache/policy/lfu"
	"github.com/IvanBrykalov/policycache/policy/lru"
	"github.com/IvanBrykalov/policycache/policy/mru"
	"github.com/IvanBrykalov/policycache/policy/sizelimit"
	"github.com/IvanBrykalov/policycache/policy/twoq"
)

// PolicyKind names a built-in replacement policy.
type PolicyKind int

const (
	PolicyLRU PolicyKind = iota
	PolicyMRU
	PolicyClock
	PolicyFIFO
	PolicyLFU
	Policy2Q
	// PolicyNone never chooses victims; only TrimToSize shrinks the cache.
	PolicyNone
)

var policyNames = [...]string{
	PolicyLRU:   lru.Name,
	PolicyMRU:   mru.Name,
	PolicyClock: clock.Name,
	PolicyFIFO:  fifo.Name,
	PolicyLFU:   lfu.Name,
	Policy2Q:    twoq.Name,
	PolicyNone:  "none",
}

func (k PolicyKind) String() string {
	if k < 0 || int(k) >= len(policyNames) {
		return fmt.Sprintf("PolicyKind(%d)", int(k))
	}
	return policyNames[k]
}

// ParsePolicyKind maps a policy name (case-insensitive) to its kind.
func ParsePolicyKind(name string) (PolicyKind, error) {
	for k, n := range policyNames {
		if strings.EqualFold(n, name) {
			return PolicyKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown policy %q", ErrInvalidArgument, name)
}

// NewPolicy builds a built-in policy over cache entries sized for
// initialCapacity entries.
func NewPolicy[K comparable, V any](kind PolicyKind, initialCapacity int) (policy.ReplacementPolicy[*Entry[K, V]], error) {
	if initialCapacity <= 0 {
		initialCapacity = 100
	}
	slots := min(initialCapacity, 1<<16) // tables grow on demand
	switch kind {
	case PolicyLRU:
		return lru.NewWithCapacity[*Entry[K, V]](slots), nil
	case PolicyMRU:
		return mru.NewWithCapacity[*Entry[K, V]](slots), nil
	case PolicyClock:
		return clock.NewWithCapacity[*Entry[K, V]](slots), nil
	case PolicyFIFO:
		return fifo.New[*Entry[K, V]](slots), nil
	case PolicyLFU:
		return lfu.New[*Entry[K, V]](slots), nil
	case Policy2Q:
		// A1in ≈ 25% of the cache, ghosts ≈ 50%.
		return twoq.New((*Entry[K, V]).Key, initialCapacity/4, initialCapacity/2), nil
	case PolicyNone:
		return policy.Nop[*Entry[K, V]](), nil
	}
	return nil, fmt.Errorf("%w: unknown policy %v", ErrInvalidArgument, kind)
}

// buildPolicy resolves the policy for o and applies the entry size limit.
func buildPolicy[K comparable, V any](o Options[K, V]) (policy.ReplacementPolicy[*Entry[K, V]], error) {
	p := o.Policy
	if p == nil {
		var err error
		if p, err = NewPolicy[K, V](o.PolicyKind, o.MaximumSize); err != nil {
			return nil, err
		}
	}
	if o.MaximumEntrySize > 0 {
		p = sizelimit.New(p, (*Entry[K, V]).Size, o.MaximumEntrySize)
	}
	return p, nil
}
