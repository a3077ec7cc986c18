package types

// Entry는 키-값 쌍과 삭제 여부를 나타냅니다.
// 배치에서는 Tombstone이 삭제 연산을, 저장 엔진 내부에서는 삭제 표식을 의미합니다.
type Entry struct {
	Key       string
	Value     string
	Tombstone bool
}

// Put returns a write entry.
func Put(key, value string) Entry {
	return Entry{Key: key, Value: value}
}

// Delete returns a deletion entry.
func Delete(key string) Entry {
	return Entry{Key: key, Tombstone: true}
}

// Size returns the approximate in-memory footprint of the entry in bytes.
func (e Entry) Size() int64 {
	return int64(len(e.Key) + len(e.Value) + 1)
}

// Iterator walks entries in ascending key order.
type Iterator interface {
	// Valid reports whether the iterator is positioned on an entry.
	Valid() bool

	// Entry returns the current entry, tombstones included.
	Entry() Entry

	// Next advances to the following entry.
	Next() error
}

// MemTableStorage defines the operations of an in-memory sorted table.
type MemTableStorage interface {
	// Apply inserts or replaces entries, keeping tombstones as markers.
	Apply(entries []Entry)

	// Get returns the entry stored for key, which may be a tombstone.
	Get(key string) (Entry, bool)

	// Seek returns an iterator positioned at the first key >= start
	// (or > start when exclusive is set).
	Seek(start string, exclusive bool) Iterator

	// Size returns the current size in bytes.
	Size() int64

	// Len returns the number of entries, tombstones included.
	Len() int
}

// CacheInterface defines basic operations for a key-value cache.
type CacheInterface[K comparable, V any] interface {
	// Get retrieves a cached value for the given key if present.
	Get(key K) (V, bool)

	// Put stores a key-value pair in the cache.
	Put(key K, value V)

	// Remove drops key from the cache.
	Remove(key K)

	// Length returns the current number of items in the cache.
	Length() int

	// Clear clears all cached entries.
	Clear()
}
