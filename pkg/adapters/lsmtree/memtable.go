package lsmtree

import (
	"github.com/sukryu/depdex/pkg/adapters/skiplist"
	"github.com/sukryu/depdex/pkg/types"
)

// MemTable represents the in-memory table. It is guarded by the LSMTree lock.
type MemTable struct {
	list    *skiplist.List
	maxSize int64 // 바이트 단위
}

// NewMemTable creates a new MemTable with the given maximum size.
func NewMemTable(maxSize int) *MemTable {
	return &MemTable{
		list:    skiplist.New(),
		maxSize: int64(maxSize),
	}
}

// Apply inserts entries, keeping deletions as tombstones so they shadow
// values in older SSTables.
func (m *MemTable) Apply(entries []types.Entry) {
	m.list.Apply(entries)
}

// Get returns the entry for key, which may be a tombstone.
func (m *MemTable) Get(key string) (types.Entry, bool) {
	return m.list.Get(key)
}

// Seek returns an iterator starting at start.
func (m *MemTable) Seek(start string, exclusive bool) types.Iterator {
	return m.list.Seek(start, exclusive)
}

// Full reports whether the table reached its size limit.
func (m *MemTable) Full() bool {
	return m.list.Size() >= m.maxSize
}

// Size returns the current size.
func (m *MemTable) Size() int64 {
	return m.list.Size()
}

// Len returns the number of entries, tombstones included.
func (m *MemTable) Len() int {
	return m.list.Len()
}

// Entries returns a sorted snapshot, tombstones included.
func (m *MemTable) Entries() []types.Entry {
	return m.list.Entries()
}
