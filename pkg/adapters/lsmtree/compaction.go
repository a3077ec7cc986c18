package lsmtree

import (
	"errors"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/sukryu/depdex/pkg/types"
)

// Compactor handles background compaction using leveling.
type Compactor struct {
	lsm *LSMTree
	mu  sync.Mutex
}

// NewCompactor creates a new Compactor for the given LSMTree.
func NewCompactor(lsm *LSMTree) (*Compactor, error) {
	return &Compactor{
		lsm: lsm,
	}, nil
}

// Run starts the compaction loop.
func (c *Compactor) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.lsm.config.CompactionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := c.Compact(); err != nil && !errors.Is(err, ErrDBClosed) {
				klog.ErrorS(err, "compaction failed", "path", c.lsm.config.FilePath)
			}
		}
	}
}

// Compact performs leveling compaction once level0 reaches Level0Threshold.
func (c *Compactor) Compact() error {
	return c.compact(false)
}

// compact merges every table into a single level1 table. All tables take
// part, so tombstones can be dropped: nothing older remains for them to shadow.
func (c *Compactor) compact(force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	lsm := c.lsm
	lsm.mu.Lock()
	defer lsm.mu.Unlock()
	if lsm.closed {
		return ErrDBClosed
	}

	if !force && len(lsm.levels[0]) < lsm.config.Level0Threshold {
		return nil
	}
	inputs := lsm.tablesNewestFirst()
	if len(inputs) == 0 || (len(inputs) == 1 && len(lsm.levels[0]) == 0) {
		return nil
	}

	sources := make([]types.Iterator, 0, len(inputs))
	for _, sst := range inputs {
		sources = append(sources, sst.Seek("", false))
	}
	merged, err := newMergeIterator(sources)
	if err != nil {
		return ErrCompactionError{Level: 0, Message: "open inputs", Err: err}
	}
	var live []types.Entry
	for {
		e, ok, err := merged.next()
		if err != nil {
			return ErrCompactionError{Level: 0, Message: "merge inputs", Err: err}
		}
		if !ok {
			break
		}
		if !e.Tombstone {
			live = append(live, e)
		}
	}

	var output []*SSTable
	if len(live) > 0 {
		sst, err := CreateSSTable(lsm.config.FilePath, lsm.nextSeq, live, lsm.config.UseBloomFilter)
		if err != nil {
			return ErrCompactionError{Level: 1, Message: "write output", Err: err}
		}
		lsm.nextSeq++
		output = append(output, sst)
	}

	lsm.levels[0] = nil
	lsm.levels[1] = output
	for _, sst := range inputs {
		if err := sst.Remove(); err != nil {
			// 이미 새 테이블로 대체되었으므로 남은 파일은 다음 Open에서 더 낮은 seq로 읽힌다.
			klog.ErrorS(err, "failed to remove compacted table", "table", sst.FilePath())
		}
	}
	lsm.metrics.IncCompactions()
	klog.V(2).InfoS("compaction finished", "inputs", len(inputs), "entries", len(live))
	return nil
}
