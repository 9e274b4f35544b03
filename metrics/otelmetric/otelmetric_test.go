package otelmetric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/IvanBrykalov/policycache/cache"
)

func setup(t *testing.T, opt cache.Options[string, int]) (*cache.Synchronized[string, int], *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := New[string, int](mp.Meter("test"), "users")
	require.NoError(t, err)
	opt.Observers = append(opt.Observers, r)
	c, err := cache.New(opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = r.Observe(c)
	require.NoError(t, err)
	return c, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumBy adds up the data points of an int64 sum whose attribute key has value.
func sumBy(t *testing.T, rm metricdata.ResourceMetrics, name string, key attribute.Key, value string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "metric %s not found", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.Emit() == value {
			total += dp.Value
		}
	}
	return total
}

// Lookups are split by result and carry the cache name.
func TestRecorder_Lookups(t *testing.T) {
	c, reader := setup(t, cache.Options[string, int]{})
	c.Put("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	rm := collect(t, reader)
	require.EqualValues(t, 2, sumBy(t, rm, "cache.lookups", "cache.result", "hit"))
	require.EqualValues(t, 1, sumBy(t, rm, "cache.lookups", "cache.result", "miss"))
	require.EqualValues(t, 3, sumBy(t, rm, "cache.lookups", "cache.name", "users"))
	require.EqualValues(t, 1, sumBy(t, rm, "cache.writes", "cache.name", "users"))
}

// Evictions are labelled by reason.
func TestRecorder_Evictions(t *testing.T) {
	c, reader := setup(t, cache.Options[string, int]{
		MaximumSize:      2,
		MaximumEntrySize: 5,
		SizeOf:           func(_ string, v int) int64 { return int64(v) },
	})
	c.Put("a", 1)
	c.Put("b", 1)
	c.Put("c", 1) // evicts a
	c.Put("big", 9)
	require.NoError(t, c.TrimToSize(0))

	rm := collect(t, reader)
	require.EqualValues(t, 1, sumBy(t, rm, "cache.evictions", "cache.eviction.reason", "evicted"))
	require.EqualValues(t, 1, sumBy(t, rm, "cache.evictions", "cache.eviction.reason", "rejected"))
	require.EqualValues(t, 2, sumBy(t, rm, "cache.evictions", "cache.eviction.reason", "trimmed"))
}

// Gauges report the live size on collection.
func TestRecorder_Gauges(t *testing.T) {
	c, reader := setup(t, cache.Options[string, int]{
		SizeOf: func(_ string, v int) int64 { return int64(v) },
	})
	c.Put("a", 4)
	c.Put("b", 6)

	rm := collect(t, reader)
	m := findMetric(rm, "cache.volume")
	require.NotNil(t, m)
	g, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	require.EqualValues(t, 10, g.DataPoints[0].Value)

	m = findMetric(rm, "cache.entries")
	require.NotNil(t, m)
	require.EqualValues(t, 2, m.Data.(metricdata.Gauge[int64]).DataPoints[0].Value)
}

// Loads record latency and error status.
func TestRecorder_Loads(t *testing.T) {
	c, reader := setup(t, cache.Options[string, int]{
		Loader: func(_ context.Context, k string, _ *cache.Attributes) (int, bool, error) {
			return len(k), true, nil
		},
	})
	_, err := c.GetOrLoad(context.Background(), "abc")
	require.NoError(t, err)

	rm := collect(t, reader)
	require.EqualValues(t, 1, sumBy(t, rm, "cache.loads", "error", "false"))
	m := findMetric(rm, "cache.load.duration_ms")
	require.NotNil(t, m)
	h, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.EqualValues(t, 1, h.DataPoints[0].Count)
}
