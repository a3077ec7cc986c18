package lsmtree

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"k8s.io/klog/v2"

	"github.com/sukryu/depdex/pkg/adapters/cache"
	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/types"
)

var _ ports.KVStore = (*LSMTree)(nil)

// LSMTree represents the Log-Structured Merge Tree.
type LSMTree struct {
	config    Config
	memTable  *MemTable
	wal       *WAL
	levels    [][]*SSTable // levels[0]은 flush된 테이블, levels[1]은 컴팩션 결과
	nextSeq   uint64
	mu        sync.RWMutex // protects memTable, levels, nextSeq and closed
	cache     *cache.LRU[string, string]
	metrics   *Metrics
	compactor *Compactor
	stopCh    chan struct{}
	wg        sync.WaitGroup
	closed    bool
}

// NewLSMTree opens (or creates) the tree stored under config.FilePath.
func NewLSMTree(config Config) (*LSMTree, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(config.FilePath, 0755); err != nil {
		return nil, err
	}
	lsm := &LSMTree{
		config:   config,
		memTable: NewMemTable(config.MemTableSize),
		levels:   make([][]*SSTable, 2),
		nextSeq:  1,
		cache:    cache.NewLRU[string, string](config.CacheSize),
		metrics:  NewMetrics(),
		stopCh:   make(chan struct{}),
	}

	if err := lsm.loadSSTables(); err != nil {
		return nil, err
	}
	walPath := filepath.Join(config.FilePath, "db.wal")
	replayed, err := RecoverFromWAL(walPath, lsm.memTable, config.RecoveryMode)
	if err != nil {
		lsm.closeTables()
		return nil, err
	}
	if replayed > 0 {
		klog.InfoS("recovered WAL", "path", walPath, "batches", replayed, "entries", lsm.memTable.Len())
	}
	wal, err := NewWAL(walPath, config.SyncWrites)
	if err != nil {
		lsm.closeTables()
		return nil, err
	}
	lsm.wal = wal
	// 복구된 엔트리를 SSTable로 내리고 WAL을 비워서, 잘린 꼬리 뒤에 새 레코드가 붙지 않게 한다.
	if err := lsm.flushLocked(); err != nil {
		lsm.closeTables()
		wal.Close()
		return nil, err
	}
	if err := wal.Reset(); err != nil {
		lsm.closeTables()
		wal.Close()
		return nil, err
	}

	compactor, err := NewCompactor(lsm)
	if err != nil {
		lsm.closeTables()
		wal.Close()
		return nil, err
	}
	lsm.compactor = compactor
	lsm.wg.Add(1)
	go func() {
		defer lsm.wg.Done()
		compactor.Run(lsm.stopCh)
	}()
	return lsm, nil
}

// loadSSTables loads existing SSTable files into level0, ordered by sequence.
func (l *LSMTree) loadSSTables() error {
	files, err := os.ReadDir(l.config.FilePath)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		name := file.Name()
		path := filepath.Join(l.config.FilePath, name)
		if strings.HasSuffix(name, ".tmp") {
			// 중단된 flush/컴팩션의 잔여물.
			os.Remove(path)
			continue
		}
		seq, ok := parseSSTableName(name)
		if !ok {
			continue
		}
		sst, err := OpenSSTable(path, seq, l.config.UseBloomFilter)
		if err != nil {
			l.closeTables()
			return err
		}
		l.levels[0] = append(l.levels[0], sst)
		if seq >= l.nextSeq {
			l.nextSeq = seq + 1
		}
	}
	sort.Slice(l.levels[0], func(i, j int) bool {
		return l.levels[0][i].seq < l.levels[0][j].seq
	})
	return nil
}

// tablesNewestFirst returns every table ordered by descending sequence.
// Caller must hold l.mu.
func (l *LSMTree) tablesNewestFirst() []*SSTable {
	var tables []*SSTable
	for _, level := range l.levels {
		tables = append(tables, level...)
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i].seq > tables[j].seq
	})
	return tables
}

// Get retrieves the value associated with the given key.
func (l *LSMTree) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return "", ErrDBClosed
	}
	l.metrics.IncReads()

	// Check memTable.
	if e, ok := l.memTable.Get(key); ok {
		if e.Tombstone {
			return "", ErrKeyNotFound
		}
		return e.Value, nil
	}

	// Check cache.
	if value, ok := l.cache.Get(key); ok {
		l.metrics.IncCacheHit()
		return value, nil
	}

	// Search SSTables, newest first.
	for _, sst := range l.tablesNewestFirst() {
		e, found, err := sst.Get(key)
		if err != nil {
			return "", err
		}
		if !found {
			continue
		}
		if e.Tombstone {
			return "", ErrKeyNotFound
		}
		l.cache.Put(key, e.Value)
		return e.Value, nil
	}
	return "", ErrKeyNotFound
}

// Batch logs entries as a single WAL record and applies them to the memTable.
func (l *LSMTree) Batch(ctx context.Context, entries []types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrDBClosed
	}
	if err := l.wal.AppendBatch(entries); err != nil {
		return err
	}
	l.memTable.Apply(entries)
	for _, e := range entries {
		l.cache.Remove(e.Key)
	}
	l.metrics.IncWrites(len(entries))

	if l.memTable.Full() {
		// The batch is already durable in the WAL; a failed flush is retried
		// on the next full memTable or on Close.
		if err := l.flushLocked(); err != nil {
			klog.ErrorS(err, "memtable flush failed", "path", l.config.FilePath)
		}
	}
	return nil
}

// Scan visits the live keys of r in ascending order.
func (l *LSMTree) Scan(ctx context.Context, r ports.KeyRange, fn func(key, value string) error) error {
	l.metrics.IncScans()
	return ports.ChunkedScan(ctx, r, l.config.ScanChunkSize, l.collect, fn)
}

func (l *LSMTree) collect(r ports.KeyRange, n int) ([]types.Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrDBClosed
	}
	sources := []types.Iterator{l.memTable.Seek(r.Start, r.Exclusive)}
	for _, sst := range l.tablesNewestFirst() {
		if sst.Len() == 0 || sst.maxKey < r.Start || sst.minKey >= r.End {
			continue
		}
		sources = append(sources, sst.Seek(r.Start, r.Exclusive))
	}
	merged, err := newMergeIterator(sources)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, 0, n)
	for len(out) < n {
		e, ok, err := merged.next()
		if err != nil {
			return nil, err
		}
		if !ok || e.Key >= r.End {
			break
		}
		if !e.Tombstone {
			out = append(out, e)
		}
	}
	return out, nil
}

// flushLocked writes the memTable to a new level0 SSTable and resets the WAL.
// Caller must hold l.mu for writing.
func (l *LSMTree) flushLocked() error {
	if l.memTable.Len() == 0 {
		return nil
	}
	sst, err := CreateSSTable(l.config.FilePath, l.nextSeq, l.memTable.Entries(), l.config.UseBloomFilter)
	if err != nil {
		return err
	}
	l.nextSeq++
	l.levels[0] = append(l.levels[0], sst)
	l.memTable = NewMemTable(l.config.MemTableSize)
	l.metrics.IncFlushes()
	klog.V(2).InfoS("flushed memtable", "table", sst.FilePath(), "entries", sst.Len())

	// SSTable이 디스크에 기록된 뒤에만 WAL을 비운다.
	return l.wal.Reset()
}

// Flush forces the memTable to disk.
func (l *LSMTree) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrDBClosed
	}
	return l.flushLocked()
}

// ForceCompaction flushes the memTable and merges every table into one.
func (l *LSMTree) ForceCompaction() error {
	if err := l.Flush(); err != nil {
		return err
	}
	return l.compactor.compact(true)
}

// Stats returns current statistics of the LSM Tree.
func (l *LSMTree) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stats := make(map[string]interface{})
	stats["memtable_size"] = l.memTable.Size()
	stats["memtable_entries"] = l.memTable.Len()
	stats["level0_tables"] = len(l.levels[0])
	stats["level1_tables"] = len(l.levels[1])
	stats["cache_entries"] = l.cache.Length()
	stats["wal_records"] = l.wal.Records()
	for k, v := range l.metrics.Snapshot() {
		stats[k] = v
	}
	return stats
}

func (l *LSMTree) closeTables() {
	for _, level := range l.levels {
		for _, sst := range level {
			sst.Close()
		}
	}
}

// Close gracefully shuts down the LSM Tree.
func (l *LSMTree) Close() error {
	// closed를 먼저 세워 두 번째 호출이 stopCh를 다시 닫지 않게 한다.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.stopCh)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	flushErr := l.flushLocked()
	walErr := l.wal.Close()
	l.closeTables()
	if flushErr != nil {
		return flushErr
	}
	return walErr
}
