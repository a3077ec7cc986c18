// 개선된 Metrics 구현 using atomic
package lsmtree

import "sync/atomic"

type Metrics struct {
	Writes      int64
	Reads       int64
	CacheHits   int64
	Scans       int64
	Flushes     int64
	Compactions int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) IncWrites(n int) {
	atomic.AddInt64(&m.Writes, int64(n))
}

func (m *Metrics) IncReads() {
	atomic.AddInt64(&m.Reads, 1)
}

func (m *Metrics) IncCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

func (m *Metrics) IncScans() {
	atomic.AddInt64(&m.Scans, 1)
}

func (m *Metrics) IncFlushes() {
	atomic.AddInt64(&m.Flushes, 1)
}

func (m *Metrics) IncCompactions() {
	atomic.AddInt64(&m.Compactions, 1)
}

// Snapshot returns the counters as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"writes":      atomic.LoadInt64(&m.Writes),
		"reads":       atomic.LoadInt64(&m.Reads),
		"cache_hits":  atomic.LoadInt64(&m.CacheHits),
		"scans":       atomic.LoadInt64(&m.Scans),
		"flushes":     atomic.LoadInt64(&m.Flushes),
		"compactions": atomic.LoadInt64(&m.Compactions),
	}
}
