package cache

import (
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// String keys include strconv/concat costs and often allocate, which is fine
// for an end-to-end benchmark.
func benchmarkMix(b *testing.B, kind PolicyKind, readsPct int) {
	c := MustNew(Options[string, string]{
		MaximumSize: 100_000,
		PolicyKind:  kind,
	})
	b.Cleanup(func() { _ = c.Close() })

	// Preload half the capacity to get a realistic hit-rate.
	for i := range 50_000 {
		c.Put("k:"+strconv.Itoa(i), "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed atomic.Uint64
	keyMask := (1 << 17) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewPCG(seed.Add(1), 1))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.IntN(100) < readsPct {
				c.Get(k)
			} else {
				c.Put(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_LRU_90r10w(b *testing.B)   { benchmarkMix(b, PolicyLRU, 90) }
func BenchmarkCache_LRU_50r50w(b *testing.B)   { benchmarkMix(b, PolicyLRU, 50) }
func BenchmarkCache_Clock_90r10w(b *testing.B) { benchmarkMix(b, PolicyClock, 90) }
func BenchmarkCache_2Q_90r10w(b *testing.B)    { benchmarkMix(b, Policy2Q, 90) }
func BenchmarkCache_LFU_90r10w(b *testing.B)   { benchmarkMix(b, PolicyLFU, 90) }

// benchmarkCoreInt drives the unsynchronized core with int keys.
// This removes strconv/alloc and lock noise and exposes the hot path.
func benchmarkCoreInt(b *testing.B, kind PolicyKind) {
	c, err := NewUnsynchronized(Options[int, int]{MaximumSize: 100_000, PolicyKind: kind})
	if err != nil {
		b.Fatal(err)
	}
	for i := range 50_000 {
		c.Put(i, 1)
	}
	r := rand.New(rand.NewPCG(1, 2))

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := r.IntN(1 << 17)
		if _, ok := c.Get(k); !ok {
			c.Put(k, 1)
		}
	}
}

func BenchmarkCore_IntKeys_LRU(b *testing.B)   { benchmarkCoreInt(b, PolicyLRU) }
func BenchmarkCore_IntKeys_MRU(b *testing.B)   { benchmarkCoreInt(b, PolicyMRU) }
func BenchmarkCore_IntKeys_FIFO(b *testing.B)  { benchmarkCoreInt(b, PolicyFIFO) }
func BenchmarkCore_IntKeys_Clock(b *testing.B) { benchmarkCoreInt(b, PolicyClock) }
