package cache

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/go-kit/log"

	"github.com/IvanBrykalov/policycache/policy"
)

// NoExpiration as a TimeToLive keeps the entry until it is removed or
// evicted, regardless of Options.DefaultTTL.
const NoExpiration = time.Duration(math.MaxInt64)

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }

// Attributes carry per-entry settings. Zero fields fall back to the cache
// defaults.
type Attributes struct {
	// TimeToLive: 0 = Options.DefaultTTL, NoExpiration = never.
	TimeToLive time.Duration
	// Size: 0 = Options.SizeOf, or 1.
	Size int64
	// Cost: 0 = Options.CostOf, or 1.
	Cost float64
}

func (a Attributes) validate() error {
	if a.TimeToLive < 0 {
		return fmt.Errorf("%w: negative TimeToLive %v", ErrInvalidArgument, a.TimeToLive)
	}
	if a.Size < 0 {
		return fmt.Errorf("%w: negative Size %d", ErrInvalidArgument, a.Size)
	}
	if a.Cost < 0 || math.IsNaN(a.Cost) {
		return fmt.Errorf("%w: invalid Cost %v", ErrInvalidArgument, a.Cost)
	}
	return nil
}

// LoaderFunc fetches the value for key on a cache miss or expiration.
// found=false means "no value, do not cache". attrs may be filled in to
// override the defaults for the loaded entry.
type LoaderFunc[K comparable, V any] func(ctx context.Context, key K, attrs *Attributes) (value V, found bool, err error)

// Options configures the cache behavior. Zero values are safe;
// sane defaults are applied in New():
//   - nil Policy and zero PolicyKind => LRU
//   - zero limits                    => unbounded
//   - nil Logger                     => log.NewNopLogger()
//   - nil Clock                      => time.Now()
type Options[K comparable, V any] struct {
	// Name labels log lines and metrics.
	Name string

	// Policy is a ready replacement policy over cache entries. When nil,
	// PolicyKind selects one of the built-in policies.
	Policy     policy.ReplacementPolicy[*Entry[K, V]]
	PolicyKind PolicyKind

	// MaximumSize limits the number of entries (0 = unlimited).
	MaximumSize int
	// MaximumVolume limits the sum of entry sizes (0 = unlimited).
	MaximumVolume int64
	// MaximumEntrySize rejects single entries larger than this (0 = off).
	MaximumEntrySize int64

	// PreferableSize and PreferableVolume are the targets Evict shrinks to.
	// They do not trigger eviction on their own.
	PreferableSize   int
	PreferableVolume int64

	// ScheduledEvictionPeriod runs Evict periodically in the synchronized
	// cache (0 = disabled).
	ScheduledEvictionPeriod time.Duration

	// DefaultTTL applies when no per-entry TTL is given (0 = no TTL).
	DefaultTTL time.Duration
	// RefreshAfter reloads entries whose value is older than this on access
	// or during Evict (0 = disabled). Requires a Loader.
	RefreshAfter time.Duration

	// SizeOf and CostOf compute default entry size and cost.
	SizeOf func(K, V) int64
	CostOf func(K, V) float64

	// Loader fetches a value on cache miss.
	Loader LoaderFunc[K, V]

	// Equal compares values for ReplaceIf and RemoveIf; nil => reflect.DeepEqual.
	Equal func(a, b V) bool

	// Hasher overrides the key hash used by the entry table.
	Hasher func(K) uint64

	// Observers receive an event after every operation, in order.
	Observers []Observer[K, V]

	Logger log.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}

// Validate rejects negative limits and durations.
func (o *Options[K, V]) Validate() error {
	switch {
	case o.MaximumSize < 0:
		return fmt.Errorf("%w: negative MaximumSize %d", ErrInvalidArgument, o.MaximumSize)
	case o.MaximumVolume < 0:
		return fmt.Errorf("%w: negative MaximumVolume %d", ErrInvalidArgument, o.MaximumVolume)
	case o.MaximumEntrySize < 0:
		return fmt.Errorf("%w: negative MaximumEntrySize %d", ErrInvalidArgument, o.MaximumEntrySize)
	case o.PreferableSize < 0:
		return fmt.Errorf("%w: negative PreferableSize %d", ErrInvalidArgument, o.PreferableSize)
	case o.PreferableVolume < 0:
		return fmt.Errorf("%w: negative PreferableVolume %d", ErrInvalidArgument, o.PreferableVolume)
	case o.ScheduledEvictionPeriod < 0:
		return fmt.Errorf("%w: negative ScheduledEvictionPeriod %v", ErrInvalidArgument, o.ScheduledEvictionPeriod)
	case o.DefaultTTL < 0:
		return fmt.Errorf("%w: negative DefaultTTL %v", ErrInvalidArgument, o.DefaultTTL)
	case o.RefreshAfter < 0:
		return fmt.Errorf("%w: negative RefreshAfter %v", ErrInvalidArgument, o.RefreshAfter)
	}
	if o.Policy == nil {
		if _, err := ParsePolicyKind(o.PolicyKind.String()); err != nil {
			return err
		}
	}
	return nil
}

// withDefaults returns a copy with nil collaborators filled in.
func (o Options[K, V]) withDefaults() Options[K, V] {
	if o.Logger == nil {
		o.Logger = log.NewNopLogger()
	}
	if o.Name != "" {
		o.Logger = log.With(o.Logger, "cache", o.Name)
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.Equal == nil {
		o.Equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}
	return o
}
