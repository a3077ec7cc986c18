package domain

import "sync/atomic"

// Metrics holds the index counters.
type Metrics struct {
	StoredPackages      int64
	SkippedDependencies int64
	Queries             int64
	PrunedRecords       int64
	LatestCacheHits     int64
}

func (m *Metrics) IncStored()         { atomic.AddInt64(&m.StoredPackages, 1) }
func (m *Metrics) IncSkipped()        { atomic.AddInt64(&m.SkippedDependencies, 1) }
func (m *Metrics) IncQueries()        { atomic.AddInt64(&m.Queries, 1) }
func (m *Metrics) IncPruned(n int)    { atomic.AddInt64(&m.PrunedRecords, int64(n)) }
func (m *Metrics) IncLatestCacheHit() { atomic.AddInt64(&m.LatestCacheHits, 1) }

// Snapshot returns the counters as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"stored_packages":      atomic.LoadInt64(&m.StoredPackages),
		"skipped_dependencies": atomic.LoadInt64(&m.SkippedDependencies),
		"queries":              atomic.LoadInt64(&m.Queries),
		"pruned_records":       atomic.LoadInt64(&m.PrunedRecords),
		"latest_cache_hits":    atomic.LoadInt64(&m.LatestCacheHits),
	}
}
