// Package prom exports cache events as Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/policycache/cache"
)

// Eviction reasons used as the "reason" label.
const (
	ReasonExpired  = "expired"
	ReasonEvicted  = "evicted"
	ReasonTrimmed  = "trimmed"
	ReasonRejected = "rejected"
)

// Sizer is the part of a cache the size gauges read from.
type Sizer interface {
	Len() int
	Volume() int64
}

// Adapter implements cache.Observer and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter[K comparable, V any] struct {
	reg prometheus.Registerer
	ns  string
	sub string
	cl  prometheus.Labels

	hits      prometheus.Counter
	misses    prometheus.Counter
	loads     *prometheus.CounterVec
	loadTime  prometheus.Histogram
	puts      prometheus.Counter
	removes   prometheus.Counter
	clears    prometheus.Counter
	evicts    *prometheus.CounterVec
	evictRuns prometheus.Counter
}

// New constructs a Prometheus metrics adapter. Add it to
// cache.Options.Observers, then call Track with the cache to export its size.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New[K comparable, V any](reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter[K, V] {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub, Name: name, Help: help, ConstLabels: constLabels,
		})
	}
	a := &Adapter[K, V]{
		reg:     reg,
		ns:      ns,
		sub:     sub,
		cl:      constLabels,
		hits:    counter("hits_total", "Cache hits"),
		misses:  counter("misses_total", "Cache misses"),
		puts:    counter("puts_total", "Values written"),
		removes: counter("removes_total", "Explicit removals"),
		clears:  counter("clears_total", "Clear calls"),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "loads_total",
			Help:        "Loader calls by result",
			ConstLabels: constLabels,
		}, []string{"result"}),
		loadTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "load_duration_seconds",
			Help:        "Loader latency",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Cache evictions by reason",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		evictRuns: counter("evict_runs_total", "Evict sweeps"),
	}
	reg.MustRegister(a.hits, a.misses, a.loads, a.loadTime, a.puts, a.removes, a.clears, a.evicts, a.evictRuns)
	return a
}

// Track registers gauges for the number of resident entries and their
// total volume, read from c at scrape time.
func (a *Adapter[K, V]) Track(c Sizer) {
	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   a.ns,
		Subsystem:   a.sub,
		Name:        "size_entries",
		Help:        "Number of resident entries",
		ConstLabels: a.cl,
	}, func() float64 { return float64(c.Len()) })
	volume := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   a.ns,
		Subsystem:   a.sub,
		Name:        "size_volume",
		Help:        "Total resident volume",
		ConstLabels: a.cl,
	}, func() float64 { return float64(c.Volume()) })
	a.reg.MustRegister(entries, volume)
}

func (a *Adapter[K, V]) AfterGet(e cache.GetEvent[K, V]) {
	if e.Hit {
		a.hits.Inc()
	} else {
		a.misses.Inc()
	}
	if e.Expired != nil {
		a.evicts.WithLabelValues(ReasonExpired).Inc()
	}
}

func (a *Adapter[K, V]) AfterLoad(e cache.LoadEvent[K, V]) {
	switch {
	case e.Err != nil:
		a.loads.WithLabelValues("error").Inc()
	case e.Entry == nil:
		a.loads.WithLabelValues("not_found").Inc()
	default:
		a.loads.WithLabelValues("ok").Inc()
		a.stored(e.Entry, e.Trimmed)
	}
	a.loadTime.Observe(e.Elapsed.Seconds())
}

func (a *Adapter[K, V]) AfterPut(e cache.PutEvent[K, V]) {
	a.puts.Inc()
	a.stored(e.Entry, e.Trimmed)
}

func (a *Adapter[K, V]) stored(e *cache.Entry[K, V], trimmed []*cache.Entry[K, V]) {
	if !e.Admitted() {
		a.evicts.WithLabelValues(ReasonRejected).Inc()
	}
	if n := len(trimmed); n > 0 {
		a.evicts.WithLabelValues(ReasonEvicted).Add(float64(n))
	}
}

func (a *Adapter[K, V]) AfterRemove(cache.RemoveEvent[K, V]) { a.removes.Inc() }
func (a *Adapter[K, V]) AfterClear(cache.ClearEvent[K, V])   { a.clears.Inc() }

func (a *Adapter[K, V]) AfterEvict(e cache.EvictEvent[K, V]) {
	a.evictRuns.Inc()
	a.evicts.WithLabelValues(ReasonExpired).Add(float64(len(e.Expired)))
	a.evicts.WithLabelValues(ReasonEvicted).Add(float64(len(e.Evicted)))
}

func (a *Adapter[K, V]) AfterTrimToSize(e cache.TrimEvent[K, V]) {
	a.evicts.WithLabelValues(ReasonTrimmed).Add(float64(len(e.Trimmed)))
}

// Compile-time check: ensure Adapter implements cache.Observer.
var _ cache.Observer[string, int] = (*Adapter[string, int])(nil)
