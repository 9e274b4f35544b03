// Package otelmetric records cache events with an OpenTelemetry meter.
package otelmetric

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/policycache/cache"
)

// Sizer is the part of a cache the observable gauges read from.
type Sizer interface {
	Len() int
	Volume() int64
}

var (
	hitAttrs  = metric.WithAttributes(attribute.String("cache.result", "hit"))
	missAttrs = metric.WithAttributes(attribute.String("cache.result", "miss"))
)

func reason(r string) metric.AddOption {
	return metric.WithAttributes(attribute.String("cache.eviction.reason", r))
}

// Recorder implements cache.Observer on top of a metric.Meter.
//
// Contract:
// - Concurrency: all instruments are safe for concurrent use.
// - Errors: construction fails if an instrument cannot be created; recording never fails.
type Recorder[K comparable, V any] struct {
	meter     metric.Meter
	name      attribute.KeyValue
	lookups   metric.Int64Counter
	loads     metric.Int64Counter
	loadTime  metric.Float64Histogram
	writes    metric.Int64Counter
	removals  metric.Int64Counter
	evictions metric.Int64Counter
}

// New creates the instruments. name is attached to every measurement as
// the cache.name attribute.
func New[K comparable, V any](meter metric.Meter, name string) (*Recorder[K, V], error) {
	lookups, err := meter.Int64Counter(
		"cache.lookups",
		metric.WithDescription("Cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	loads, err := meter.Int64Counter(
		"cache.loads",
		metric.WithDescription("Loader calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	loadTime, err := meter.Float64Histogram(
		"cache.load.duration_ms",
		metric.WithDescription("Loader latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	writes, err := meter.Int64Counter(
		"cache.writes",
		metric.WithDescription("Values written"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	removals, err := meter.Int64Counter(
		"cache.removals",
		metric.WithDescription("Explicit removals"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"cache.evictions",
		metric.WithDescription("Entries leaving the cache without an explicit removal"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	return &Recorder[K, V]{
		meter:     meter,
		name:      attribute.String("cache.name", name),
		lookups:   lookups,
		loads:     loads,
		loadTime:  loadTime,
		writes:    writes,
		removals:  removals,
		evictions: evictions,
	}, nil
}

// Observe registers gauges for the entry count and volume of c.
// The returned registration can be used to stop observing.
func (r *Recorder[K, V]) Observe(c Sizer) (metric.Registration, error) {
	entries, err := r.meter.Int64ObservableGauge(
		"cache.entries",
		metric.WithDescription("Resident entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}
	volume, err := r.meter.Int64ObservableGauge(
		"cache.volume",
		metric.WithDescription("Sum of resident entry sizes"),
	)
	if err != nil {
		return nil, err
	}
	opt := metric.WithAttributes(r.name)
	return r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(entries, int64(c.Len()), opt)
		o.ObserveInt64(volume, c.Volume(), opt)
		return nil
	}, entries, volume)
}

func (r *Recorder[K, V]) add(c metric.Int64Counter, n int, opts ...metric.AddOption) {
	if n == 0 {
		return
	}
	c.Add(context.Background(), int64(n), append(opts, metric.WithAttributes(r.name))...)
}

func (r *Recorder[K, V]) evicted(why string, n int) { r.add(r.evictions, n, reason(why)) }

func (r *Recorder[K, V]) AfterGet(e cache.GetEvent[K, V]) {
	if e.Hit {
		r.add(r.lookups, 1, hitAttrs)
	} else {
		r.add(r.lookups, 1, missAttrs)
	}
	if e.Expired != nil {
		r.evicted("expired", 1)
	}
}

func (r *Recorder[K, V]) AfterLoad(e cache.LoadEvent[K, V]) {
	opts := []metric.AddOption{metric.WithAttributes(attribute.Bool("error", e.Err != nil))}
	r.add(r.loads, 1, opts...)
	r.loadTime.Record(context.Background(), float64(e.Elapsed.Microseconds())/1000, metric.WithAttributes(r.name))
	if e.Entry != nil {
		r.stored(e.Entry, e.Trimmed)
	}
}

func (r *Recorder[K, V]) AfterPut(e cache.PutEvent[K, V]) {
	r.add(r.writes, 1)
	r.stored(e.Entry, e.Trimmed)
}

func (r *Recorder[K, V]) stored(e *cache.Entry[K, V], trimmed []*cache.Entry[K, V]) {
	if !e.Admitted() {
		r.evicted("rejected", 1)
	}
	r.evicted("evicted", len(trimmed))
}

func (r *Recorder[K, V]) AfterRemove(cache.RemoveEvent[K, V]) { r.add(r.removals, 1) }

func (r *Recorder[K, V]) AfterClear(e cache.ClearEvent[K, V]) {
	r.add(r.removals, e.Size, metric.WithAttributes(attribute.Bool("clear", true)))
}

func (r *Recorder[K, V]) AfterEvict(e cache.EvictEvent[K, V]) {
	r.evicted("expired", len(e.Expired))
	r.evicted("evicted", len(e.Evicted))
}

func (r *Recorder[K, V]) AfterTrimToSize(e cache.TrimEvent[K, V]) {
	r.evicted("trimmed", len(e.Trimmed))
}

var _ cache.Observer[string, int] = (*Recorder[string, int])(nil)
