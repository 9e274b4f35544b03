package cache

// Stats is a snapshot of the built-in counters.
type Stats struct {
	Hits       uint64
	Misses     uint64
	HitVolume  int64   // sum of sizes of hit entries
	HitCost    float64 // sum of costs of hit entries
	Loads      uint64
	LoadErrors uint64
	Puts       uint64
	Rejected   uint64 // entries the policy refused
	Removes    uint64
	Expired    uint64
	Evicted    uint64 // capacity-driven, including trims
	Clears     uint64
	EvictRuns  uint64
}

// HitRatio returns hits / (hits + misses), or 0 without lookups.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// statistics is the observer owned by the cache core. It is only touched
// by the core, so plain counters suffice.
type statistics[K comparable, V any] struct {
	s Stats
}

func (st *statistics[K, V]) AfterGet(e GetEvent[K, V]) {
	if e.Hit {
		st.s.Hits++
		st.s.HitVolume += e.Entry.size
		st.s.HitCost += e.Entry.cost
	} else {
		st.s.Misses++
	}
	if e.Expired != nil {
		st.s.Expired++
	}
}

func (st *statistics[K, V]) AfterLoad(e LoadEvent[K, V]) {
	st.s.Loads++
	if e.Err != nil {
		st.s.LoadErrors++
	}
	if e.Entry != nil && !e.Entry.Admitted() {
		st.s.Rejected++
	}
	st.s.Evicted += uint64(len(e.Trimmed))
}

func (st *statistics[K, V]) AfterPut(e PutEvent[K, V]) {
	st.s.Puts++
	if !e.Entry.Admitted() {
		st.s.Rejected++
	}
	st.s.Evicted += uint64(len(e.Trimmed))
}

func (st *statistics[K, V]) AfterRemove(RemoveEvent[K, V]) { st.s.Removes++ }
func (st *statistics[K, V]) AfterClear(ClearEvent[K, V])   { st.s.Clears++ }

func (st *statistics[K, V]) AfterEvict(e EvictEvent[K, V]) {
	st.s.EvictRuns++
	st.s.Expired += uint64(len(e.Expired))
	st.s.Evicted += uint64(len(e.Evicted))
}

func (st *statistics[K, V]) AfterTrimToSize(e TrimEvent[K, V]) {
	st.s.Evicted += uint64(len(e.Trimmed))
}

func (st *statistics[K, V]) reset() { st.s = Stats{} }
