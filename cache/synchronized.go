package cache

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/policycache/internal/singleflight"
)

// Synchronized wraps the cache core with a single mutex. All methods are
// safe for concurrent use by multiple goroutines.
//
// Background work (asynchronous loads, refresh-ahead, scheduled eviction)
// runs on an errgroup that Close cancels and waits for.
type Synchronized[K comparable, V any] struct {
	mu   sync.Mutex
	core *Unsynchronized[K, V]

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]

	ctx     context.Context
	cancel  context.CancelFunc
	workers *errgroup.Group
	logger  log.Logger
}

// New constructs a synchronized cache with the provided Options.
// Defaults are those of NewUnsynchronized. When ScheduledEvictionPeriod is
// set, a background worker calls Evict on that period until Close.
func New[K comparable, V any](opt Options[K, V]) (*Synchronized[K, V], error) {
	core, err := NewUnsynchronized(opt)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	s := &Synchronized[K, V]{
		core:    core,
		ctx:     ctx,
		cancel:  cancel,
		workers: g,
		logger:  core.logger,
	}
	core.refresher = s.refreshAsync

	if p := core.opt.ScheduledEvictionPeriod; p > 0 {
		g.Go(func() error { return s.evictLoop(p) })
	}
	return s, nil
}

// MustNew is New that panics on invalid options.
func MustNew[K comparable, V any](opt Options[K, V]) *Synchronized[K, V] {
	s, err := New(opt)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Synchronized[K, V]) evictLoop(period time.Duration) error {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-t.C:
			s.mu.Lock()
			before := s.core.Len()
			s.core.Evict()
			after := s.core.Len()
			s.mu.Unlock()
			level.Debug(s.logger).Log("msg", "scheduled eviction", "before", before, "after", after)
		}
	}
}

// ---- reads ----

// Get runs a miss load under the lock; use GetOrLoad for slow loaders.
func (s *Synchronized[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Get(key)
}

func (s *Synchronized[K, V]) GetAll(keys ...K) map[K]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.GetAll(keys...)
}

func (s *Synchronized[K, V]) GetEntry(key K) (Entry[K, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.GetEntry(key)
}

func (s *Synchronized[K, V]) Peek(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Peek(key)
}

func (s *Synchronized[K, V]) PeekEntry(key K) (Entry[K, V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.PeekEntry(key)
}

func (s *Synchronized[K, V]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Contains(key)
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader
// outside the lock, coalescing concurrent loads for the same key
// (singleflight). If no Loader is configured, returns ErrNoLoader.
func (s *Synchronized[K, V]) GetOrLoad(ctx context.Context, key K) (V, error) {
	var zero V
	// fast path
	s.mu.Lock()
	e, err := s.core.get(ctx, key, false)
	var v V
	if e != nil {
		v = e.value
	}
	s.mu.Unlock()
	switch {
	case e != nil:
		return v, nil
	case err != nil:
		return zero, err
	case s.core.opt.Loader == nil:
		return zero, ErrNoLoader
	}
	return s.sf.Do(ctx, key, func() (V, error) { return s.load(ctx, key) })
}

// load runs the loader without holding the lock and stores the result.
// An expired entry left by the fast path is replaced through the policy's
// Update, keeping its slot and history.
func (s *Synchronized[K, V]) load(ctx context.Context, key K) (V, error) {
	var zero V
	// double-check after flight join
	s.mu.Lock()
	if v, ok := s.core.Peek(key); ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	start := s.core.now()
	v, attrs, found, err := s.core.callLoader(ctx, key)

	s.mu.Lock()
	e := s.core.finishLoad(key, v, attrs, found, err, start)
	s.mu.Unlock()
	switch {
	case err != nil:
		return zero, err
	case !found:
		return zero, ErrNotFound
	case e == nil:
		return zero, ErrClosed
	}
	return v, nil
}

// LoadAsync loads key in the background unless it is already cached.
func (s *Synchronized[K, V]) LoadAsync(key K) error {
	checkKey(key)
	if s.core.opt.Loader == nil {
		return ErrNoLoader
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.core.closed {
		return ErrClosed
	}
	s.workers.Go(func() error {
		s.background(key)
		return nil
	})
	return nil
}

// refreshAsync is the core's refresher: it runs under the lock and only
// schedules work.
func (s *Synchronized[K, V]) refreshAsync(keys []K) {
	for _, k := range keys {
		if s.sf.InFlight(k) {
			continue
		}
		s.workers.Go(func() error {
			s.background(k)
			return nil
		})
	}
}

func (s *Synchronized[K, V]) background(key K) {
	_, err := s.sf.Do(s.ctx, key, func() (V, error) {
		start := s.core.now()
		v, attrs, found, err := s.core.callLoader(s.ctx, key)
		s.mu.Lock()
		s.core.finishLoad(key, v, attrs, found, err, start)
		s.mu.Unlock()
		return v, err
	})
	if err != nil && s.ctx.Err() == nil {
		level.Debug(s.logger).Log("msg", "background load failed", "key", fmt.Sprint(key), "err", err)
	}
}

// ---- writes ----

func (s *Synchronized[K, V]) Put(key K, value V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Put(key, value)
}

func (s *Synchronized[K, V]) PutWithTTL(key K, value V, ttl time.Duration) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.PutWithTTL(key, value, ttl)
}

func (s *Synchronized[K, V]) PutWithAttributes(key K, value V, attrs Attributes) (V, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.PutWithAttributes(key, value, attrs)
}

func (s *Synchronized[K, V]) PutIfAbsent(key K, value V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.PutIfAbsent(key, value)
}

func (s *Synchronized[K, V]) PutAll(m map[K]V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.PutAll(m)
}

func (s *Synchronized[K, V]) Replace(key K, value V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Replace(key, value)
}

func (s *Synchronized[K, V]) ReplaceIf(key K, oldValue, newValue V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.ReplaceIf(key, oldValue, newValue)
}

func (s *Synchronized[K, V]) Remove(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Remove(key)
}

func (s *Synchronized[K, V]) RemoveIf(key K, value V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.RemoveIf(key, value)
}

func (s *Synchronized[K, V]) RemoveAll(keys ...K) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.RemoveAll(keys...)
}

// RemoveFunc holds the lock while pred runs; pred must not call the cache.
func (s *Synchronized[K, V]) RemoveFunc(pred func(K, V) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.RemoveFunc(pred)
}

func (s *Synchronized[K, V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.Clear()
}

// ---- maintenance ----

func (s *Synchronized[K, V]) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.Evict()
}

func (s *Synchronized[K, V]) TrimToSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.TrimToSize(n)
}

func (s *Synchronized[K, V]) SetMaximumSize(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.SetMaximumSize(n)
}

func (s *Synchronized[K, V]) SetMaximumVolume(v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.SetMaximumVolume(v)
}

// ---- views ----

func (s *Synchronized[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Keys()
}

// All yields a snapshot taken under the lock; ranging does not block
// other callers.
func (s *Synchronized[K, V]) All() iter.Seq2[K, V] {
	type pair struct {
		k K
		v V
	}
	s.mu.Lock()
	var snap []pair
	for k, v := range s.core.All() {
		snap = append(snap, pair{k, v})
	}
	s.mu.Unlock()
	return func(yield func(K, V) bool) {
		for _, p := range snap {
			if !yield(p.k, p.v) {
				return
			}
		}
	}
}

func (s *Synchronized[K, V]) EvictionOrder() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.EvictionOrder()
}

func (s *Synchronized[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Len()
}

func (s *Synchronized[K, V]) Volume() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Volume()
}

// MaximumSize returns the current entry limit (0 = unlimited).
func (s *Synchronized[K, V]) MaximumSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.MaximumSize()
}

// MaximumVolume returns the current volume limit (0 = unlimited).
func (s *Synchronized[K, V]) MaximumVolume() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.MaximumVolume()
}

func (s *Synchronized[K, V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.Stats()
}

func (s *Synchronized[K, V]) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.ResetStats()
}

// Close marks the cache closed, stops background workers and waits for
// them to finish.
func (s *Synchronized[K, V]) Close() error {
	s.mu.Lock()
	err := s.core.Close()
	s.mu.Unlock()
	s.cancel()
	if werr := s.workers.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}
