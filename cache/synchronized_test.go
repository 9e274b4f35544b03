package cache

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newSync[K comparable, V any](t *testing.T, opt Options[K, V]) *Synchronized[K, V] {
	t.Helper()
	c, err := New(opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// Concurrent GetOrLoad calls for the same key run the loader once;
// subsequent calls are cache hits.
func TestSynchronized_GetOrLoad_Singleflight(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	c := newSync(t, Options[string, string]{
		MaximumSize: 64,
		Loader: func(_ context.Context, k string, _ *Attributes) (string, bool, error) {
			calls.Add(1)
			time.Sleep(5 * time.Millisecond) // simulate I/O
			return "v:" + k, true, nil
		},
	})

	const N = 64
	var g errgroup.Group
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for range N {
		g.Go(func() error {
			v, err := c.GetOrLoad(ctx, "k")
			if err != nil {
				return err
			}
			if v != "v:k" {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, calls.Load())

	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "v:k", v)
	require.EqualValues(t, 1, calls.Load())
}

func TestSynchronized_GetOrLoadErrors(t *testing.T) {
	t.Parallel()

	c := newSync(t, Options[string, int]{})
	_, err := c.GetOrLoad(context.Background(), "a")
	require.ErrorIs(t, err, ErrNoLoader)
	require.ErrorIs(t, c.LoadAsync("a"), ErrNoLoader)

	nf := newSync(t, Options[string, int]{
		Loader: func(context.Context, string, *Attributes) (int, bool, error) { return 0, false, nil },
	})
	_, err = nf.GetOrLoad(context.Background(), "a")
	require.ErrorIs(t, err, ErrNotFound)
}

// LoadAsync fills the cache in the background.
func TestSynchronized_LoadAsync(t *testing.T) {
	t.Parallel()

	c := newSync(t, Options[int, int]{
		Loader: func(_ context.Context, k int, _ *Attributes) (int, bool, error) { return k * 10, true, nil },
	})
	for i := range 5 {
		require.NoError(t, c.LoadAsync(i))
	}
	require.Eventually(t, func() bool { return c.Len() == 5 }, 2*time.Second, time.Millisecond)
	v, ok := c.Peek(3)
	require.True(t, ok)
	require.Equal(t, 30, v)
	require.EqualValues(t, 5, c.Stats().Loads)
}

// Refresh-ahead serves the current value and swaps in the reloaded one
// in the background.
func TestSynchronized_RefreshAsync(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	var calls atomic.Int64
	c := newSync(t, Options[string, string]{
		Clock:        clk,
		RefreshAfter: time.Second,
		Loader: func(_ context.Context, k string, _ *Attributes) (string, bool, error) {
			return k + strconv.FormatInt(calls.Add(1), 10), true, nil
		},
	})

	v, err := c.GetOrLoad(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, "k1", v)

	clk.add(2 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "k1", v)

	require.Eventually(t, func() bool {
		v, _ := c.Peek("k")
		return v == "k2"
	}, 2*time.Second, time.Millisecond)
}

// The scheduled eviction worker sweeps expired entries.
func TestSynchronized_ScheduledEviction(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	c := newSync(t, Options[string, int]{
		Clock:                   clk,
		DefaultTTL:              time.Second,
		ScheduledEvictionPeriod: 5 * time.Millisecond,
	})
	c.Put("a", 1)
	c.Put("b", 2)
	c.PutWithTTL("c", 3, NoExpiration)
	require.Equal(t, 3, c.Len())

	clk.add(2 * time.Second)
	require.Eventually(t, func() bool { return c.Len() == 1 }, 2*time.Second, time.Millisecond)
	require.True(t, c.Contains("c"))
	require.EqualValues(t, 2, c.Stats().Expired)
}

// Close stops the background workers; later loads are refused.
func TestSynchronized_Close(t *testing.T) {
	t.Parallel()

	c, err := New(Options[string, int]{
		ScheduledEvictionPeriod: time.Millisecond,
		Loader:                  func(context.Context, string, *Attributes) (int, bool, error) { return 1, true, nil },
	})
	require.NoError(t, err)
	c.Put("a", 1)

	require.NoError(t, c.Close())
	require.ErrorIs(t, c.LoadAsync("b"), ErrClosed)
	_, err = c.GetOrLoad(context.Background(), "b")
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, c.Contains("a"))
}

func TestMustNew(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { MustNew(Options[string, int]{MaximumSize: -1}) })
	c := MustNew(Options[string, int]{MaximumSize: 1})
	t.Cleanup(func() { _ = c.Close() })
	c.Put("a", 1)
	c.Put("b", 2)
	require.Equal(t, []string{"b"}, c.Keys())
}

// A mixed workload of every operation on random keys.
// Should pass under `-race` without detector reports.
func TestRace_Mixed(t *testing.T) {
	c := newSync(t, Options[string, []byte]{
		MaximumSize:             2_048,
		MaximumVolume:           64 << 10,
		SizeOf:                  func(_ string, v []byte) int64 { return int64(len(v)) },
		PolicyKind:              Policy2Q,
		ScheduledEvictionPeriod: 5 * time.Millisecond,
		RefreshAfter:            20 * time.Millisecond,
		Loader: func(_ context.Context, k string, _ *Attributes) ([]byte, bool, error) {
			return []byte(k), true, nil
		},
		Observers: []Observer[string, []byte]{NewEventBus[string, []byte]()},
	})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 10_000
	deadline := time.Now().Add(500 * time.Millisecond)

	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(w), 9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.IntN(keyspace))
				switch n := r.IntN(100); {
				case n < 5:
					c.Remove(k)
				case n < 10:
					c.PutWithTTL(k, []byte("x"), time.Duration(10+r.IntN(20))*time.Millisecond)
				case n < 20:
					c.Put(k, make([]byte, r.IntN(64)))
				case n < 25:
					if _, err := c.GetOrLoad(context.Background(), k); err != nil {
						return err
					}
				case n < 26:
					c.Evict()
				case n < 27:
					_ = c.LoadAsync(k)
				default:
					c.Get(k)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.LessOrEqual(t, c.Len(), 2_048)
	require.LessOrEqual(t, c.Volume(), int64(64<<10))
}

// Reloading an expired key through GetOrLoad updates it in place: hits,
// creation time and the LFU slot survive.
func TestSynchronized_GetOrLoadReusesExpiredEntry(t *testing.T) {
	t.Parallel()

	clk := newFakeClock()
	bus := NewEventBus[string, string]()
	var kinds []EventKind
	bus.Subscribe(func(ev Event[string, string]) {
		if ev.Key == "a" {
			kinds = append(kinds, ev.Kind)
		}
	})
	c := newSync(t, Options[string, string]{
		PolicyKind: PolicyLFU,
		Clock:      clk,
		DefaultTTL: time.Minute,
		Loader: func(_ context.Context, k string, _ *Attributes) (string, bool, error) {
			return "v:" + k, k == "a", nil
		},
		Observers: []Observer[string, string]{bus},
	})
	c.Put("a", "old")
	c.Put("b", "old")
	c.Get("a")
	c.Get("a")
	before, ok := c.PeekEntry("a")
	require.True(t, ok)
	clk.add(time.Minute)

	v, err := c.GetOrLoad(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, "v:a", v)

	after, ok := c.PeekEntry("a")
	require.True(t, ok)
	require.EqualValues(t, 2, after.Hits())
	require.Equal(t, before.CreationTime(), after.CreationTime())
	require.Equal(t, []EventKind{EntryAdded, EntryExpired, EntryUpdated}, kinds)
	require.EqualValues(t, 1, c.Stats().Expired)
	require.Equal(t, 2, c.Len())

	// Nothing to reload: the stale entry goes away.
	_, err = c.GetOrLoad(context.Background(), "b")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, c.Len())
	require.Equal(t, []string{"a"}, c.EvictionOrder())
}

// Limit getters read the current values under the lock.
func TestSynchronized_Limits(t *testing.T) {
	t.Parallel()

	c := newSync(t, Options[string, int]{MaximumSize: 4, MaximumVolume: 10})
	require.Equal(t, 4, c.MaximumSize())
	require.EqualValues(t, 10, c.MaximumVolume())

	require.NoError(t, c.SetMaximumSize(2))
	require.NoError(t, c.SetMaximumVolume(0))
	require.Equal(t, 2, c.MaximumSize())
	require.Zero(t, c.MaximumVolume())
}
