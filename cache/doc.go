// Package cache provides a generic in-memory key/value cache whose eviction
// order comes from a pluggable replacement policy.
//
// Design
//
//   - Storage: a bucket-chained entry table keyed by an xxhash of the key.
//     It keeps the entry count and the volume (sum of entry sizes) exact
//     on every insert and removal.
//
//   - Policies: every stored entry is admitted by a policy.ReplacementPolicy
//     and remembers the integer handle the policy gave it. Built-in
//     policies (LRU by default, MRU, Clock, FIFO, LFU, 2Q) are chosen with
//     Options.PolicyKind; any custom policy can be passed in Options.Policy.
//     A policy may reject an entry (see Options.MaximumEntrySize); rejected
//     values are returned to the caller once and never stored.
//
//   - Limits: MaximumSize bounds the entry count and MaximumVolume the
//     total size. Before a new key is admitted the cache evicts in policy
//     order until it fits; after every insert it trims until both limits
//     hold. Zero means unlimited.
//
//   - Expiration: entries can have per-item deadlines. Expiration is lazy
//     on read; Evict sweeps expired entries and reports them separately
//     from capacity evictions.
//
//   - Loading: Options.Loader fills misses. RefreshAfter reloads entries
//     whose value is older than the window.
//
//   - Observers: Options.Observers receive one event per operation.
//     EventBus turns them into per-entry notifications; metrics/prom and
//     metrics/otelmetric export them.
//
// Concurrency
//
// Unsynchronized is the bare core and must not be used concurrently.
// Synchronized wraps every call in one mutex, coalesces GetOrLoad calls
// for the same key (singleflight), and runs background loads and
// scheduled eviction on an errgroup.
//
// Basic usage
//
//	// Create an LRU cache with room for 10k entries.
//	c, err := cache.New(cache.Options[string, []byte]{MaximumSize: 10_000})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	c.Put("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// With a loader
//
//	c, _ := cache.New(cache.Options[string, string]{
//	    MaximumSize: 1024,
//	    Loader: func(ctx context.Context, k string, _ *cache.Attributes) (string, bool, error) {
//	        return "v:" + k, true, nil // e.g. fetch from DB
//	    },
//	})
//	v, err := c.GetOrLoad(ctx, "key")
//
// Using an alternative policy
//
//	c, _ := cache.New(cache.Options[string, string]{
//	    MaximumSize: 50_000,
//	    PolicyKind:  cache.Policy2Q,
//	})
package cache
