// Command cachebench runs a synthetic Zipf workload against the cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/policycache/cache"
	"github.com/IvanBrykalov/policycache/config"
	pmet "github.com/IvanBrykalov/policycache/metrics/prom"
)

func main() {
	// ---- Flags ----
	var (
		configPath = flag.String("config", "", "YAML config file; flags below override it when set")
		capacity   = flag.Int("cap", 0, "maximum size in entries (0 = from config, or 100000)")
		policy     = flag.String("policy", "", "eviction policy: lru | mru | clock | fifo | lfu | 2q | none")
		ttl        = flag.Duration("ttl", 0, "default TTL (0 = from config)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")
		loadPct  = flag.Int("loads", 0, "percentage of reads that go through GetOrLoad [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		preload = flag.Int("preload", -1, "preload entries (-1 = cap/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr (overrides metrics.listen)")
		logLevel    = flag.String("log.level", "", "debug | info | warn | error | none")
	)
	flag.Parse()

	cfg := config.Default()
	cfg.Eviction.MaximumSize = 100_000
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *capacity > 0 {
		cfg.Eviction.MaximumSize = *capacity
	}
	if *policy != "" {
		cfg.Eviction.Policy = *policy
	}
	if *ttl > 0 {
		cfg.Expiration.DefaultTTL = *ttl
	}
	if *metricsAddr != "" {
		cfg.Metrics.Listen = *metricsAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if cfg.Name == "" {
		cfg.Name = "bench"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	// ---- Logger ----
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = cfg.Log.Filter(logger)

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			level.Info(logger).Log("msg", "serving pprof", "addr", *pprofAddr)
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				level.Error(logger).Log("msg", "pprof server failed", "err", err)
			}
		}()
	}

	// ---- Prometheus metrics ----
	reg := prometheus.NewRegistry()
	metrics := pmet.New[string, string](reg, cfg.Metrics.Namespace, cfg.Metrics.Subsystem,
		prometheus.Labels{"cache": cfg.Name, "policy": cfg.Eviction.Policy})
	var srv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
	}

	// ---- Build cache ----
	opt := config.Options[string, string](cfg)
	opt.Logger = logger
	opt.Observers = []cache.Observer[string, string]{metrics}
	opt.Loader = func(_ context.Context, k string, _ *cache.Attributes) (string, bool, error) {
		return "loaded:" + k, true, nil
	}
	c, err := cache.New(opt)
	if err != nil {
		level.Error(logger).Log("msg", "failed to build cache", "err", err)
		os.Exit(1)
	}
	metrics.Track(c)

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl < 0 {
		pl = cfg.Eviction.MaximumSize / 2
	}
	for i := range pl {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v"+strconv.Itoa(i))
	}
	c.ResetStats()

	// ---- Load generation ----
	workersN := max(*workers, 1)
	keysMax := uint64(max(*keys, 1) - 1)
	var reads, writes, hits, misses, total atomic.Uint64

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	level.Info(logger).Log("msg", "starting workload", "policy", cfg.Eviction.Policy,
		"maximum_size", cfg.Eviction.MaximumSize, "workers", workersN, "keys", *keys, "seed", *seed)

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := range workersN {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewPCG(*seed, uint64(w)*9973))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, keysMax)
			keyByZipf := func() string { return "k:" + strconv.FormatUint(zipf.Uint64(), 10) }

			for ctx.Err() == nil {
				total.Add(1)
				if r.IntN(100) >= *readPct {
					writes.Add(1)
					c.Put(keyByZipf(), "v"+strconv.Itoa(r.Int()))
					continue
				}
				reads.Add(1)
				k := keyByZipf()
				if r.IntN(100) < *loadPct {
					if _, err := c.GetOrLoad(ctx, k); err != nil && ctx.Err() == nil {
						return err
					}
					hits.Add(1)
					continue
				}
				if _, ok := c.Get(k); ok {
					hits.Add(1)
				} else {
					misses.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "workload failed", "err", err)
	}
	elapsed := time.Since(start)

	// ---- Report ----
	ops := total.Load()
	hitRate := 0.0
	if n := reads.Load(); n > 0 {
		hitRate = float64(hits.Load()) / float64(n) * 100
	}
	st := c.Stats()

	fmt.Printf("policy=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Eviction.Policy, cfg.Eviction.MaximumSize, workersN, *keys, elapsed, *seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hits.Load(), misses.Load(), hitRate)
	fmt.Printf("stats: hits=%d misses=%d ratio=%.4f loads=%d puts=%d evicted=%d expired=%d rejected=%d\n",
		st.Hits, st.Misses, st.HitRatio(), st.Loads, st.Puts, st.Evicted, st.Expired, st.Rejected)
	fmt.Printf("Len()=%d Volume()=%d\n", c.Len(), c.Volume())

	if err := c.Close(); err != nil {
		level.Error(logger).Log("msg", "close failed", "err", err)
	}
	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			level.Error(logger).Log("msg", "metrics server shutdown failed", "err", err)
		}
	}
}
