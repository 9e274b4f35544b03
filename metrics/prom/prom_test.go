package prom

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/policycache/cache"
)

func newCache(t *testing.T, opt cache.Options[string, int]) (*cache.Synchronized[string, int], *Adapter[string, int], *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	a := New[string, int](reg, "app", "cache", prometheus.Labels{"name": "test"})
	opt.Observers = append(opt.Observers, a)
	c, err := cache.New(opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	a.Track(c)
	return c, a, reg
}

// Hits, misses and writes map onto their counters.
func TestAdapter_Counters(t *testing.T) {
	t.Parallel()

	c, a, _ := newCache(t, cache.Options[string, int]{MaximumSize: 2})

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Get("zzz")
	c.Put("c", 3) // evicts b
	c.Remove("a")
	c.Clear()

	require.Equal(t, 1.0, testutil.ToFloat64(a.hits))
	require.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	require.Equal(t, 3.0, testutil.ToFloat64(a.puts))
	require.Equal(t, 1.0, testutil.ToFloat64(a.removes))
	require.Equal(t, 1.0, testutil.ToFloat64(a.clears))
	require.Equal(t, 1.0, testutil.ToFloat64(a.evicts.WithLabelValues(ReasonEvicted)))
}

// Trims and loads are labelled by reason and result.
func TestAdapter_TrimAndLoad(t *testing.T) {
	t.Parallel()

	c, a, reg := newCache(t, cache.Options[string, int]{
		Loader: func(_ context.Context, k string, _ *cache.Attributes) (int, bool, error) {
			return len(k), k != "", nil
		},
	})

	_, err := c.GetOrLoad(context.Background(), "abc")
	require.NoError(t, err)
	_, err = c.GetOrLoad(context.Background(), "")
	require.ErrorIs(t, err, cache.ErrNotFound)

	require.Equal(t, 1.0, testutil.ToFloat64(a.loads.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.loads.WithLabelValues("not_found")))
	mfs, err := reg.Gather()
	require.NoError(t, err)
	var samples uint64
	for _, mf := range mfs {
		if mf.GetName() == "app_cache_load_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	require.EqualValues(t, 2, samples)

	c.Put("x", 1)
	c.Put("y", 1)
	require.NoError(t, c.TrimToSize(1))
	require.Equal(t, 2.0, testutil.ToFloat64(a.evicts.WithLabelValues(ReasonTrimmed)))
}

// Size gauges read the cache at scrape time.
func TestAdapter_Gauges(t *testing.T) {
	t.Parallel()

	c, _, reg := newCache(t, cache.Options[string, int]{
		SizeOf: func(string, int) int64 { return 3 },
	})
	c.Put("a", 1)
	c.Put("b", 1)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetType().String() == "GAUGE" {
			got[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	require.Equal(t, 2.0, got["app_cache_size_entries"])
	require.Equal(t, 6.0, got["app_cache_size_volume"])
}
