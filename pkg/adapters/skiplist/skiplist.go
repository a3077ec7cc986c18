// Package skiplist implements the ordered in-memory table shared by the
// memdb and lsmtree engines.
// 동기화는 호출자가 담당합니다: 쓰기는 배타 락, 읽기와 순회는 공유 락 아래에서 수행해야 합니다.
package skiplist

import (
	"math/rand"

	"k8s.io/klog/v2"

	"github.com/sukryu/depdex/pkg/types"
)

// Constants for the skip list.
const (
	maxLevel    = 16  // 최대 레벨
	probability = 0.5 // 레벨 증가 확률
)

var _ types.MemTableStorage = (*List)(nil)

// List is a skip list of entries ordered by key. Tombstones are kept as
// entries so that a storage engine can shadow older data with them.
type List struct {
	head   *node // sentinel 노드 (헤드)
	level  int   // 현재 사용 중인 최대 레벨
	length int
	size   int64
	rnd    *rand.Rand
}

type node struct {
	entry types.Entry
	next  [maxLevel]*node
}

// New creates and returns an empty list.
func New() *List {
	return &List{
		head:  &node{},
		level: 1,
		rnd:   rand.New(rand.NewSource(rand.Int63())),
	}
}

// randomLevel generates a random level for a new node.
func (l *List) randomLevel() int {
	level := 1
	for l.rnd.Float64() < probability && level < maxLevel {
		level++
	}
	return level
}

// findPreds fills preds with the rightmost node before key on every level and
// returns the node holding key, if any.
func (l *List) findPreds(key string, preds *[maxLevel]*node) *node {
	x := l.head
	for i := maxLevel - 1; i >= 0; i-- {
		for next := x.next[i]; next != nil && next.entry.Key < key; next = x.next[i] {
			x = next
		}
		preds[i] = x
	}
	if n := x.next[0]; n != nil && n.entry.Key == key {
		return n
	}
	return nil
}

// Put inserts or replaces e.
func (l *List) Put(e types.Entry) {
	var preds [maxLevel]*node
	if existing := l.findPreds(e.Key, &preds); existing != nil {
		l.size += e.Size() - existing.entry.Size()
		existing.entry = e
		return
	}
	level := l.randomLevel()
	if level > l.level {
		klog.V(5).InfoS("skiplist level raised", "from", l.level, "to", level)
		l.level = level
	}
	n := &node{entry: e}
	for i := 0; i < level; i++ {
		n.next[i] = preds[i].next[i]
		preds[i].next[i] = n
	}
	l.length++
	l.size += e.Size()
}

// Apply inserts or replaces every entry in order.
func (l *List) Apply(entries []types.Entry) {
	for _, e := range entries {
		l.Put(e)
	}
}

// Remove physically unlinks key. It reports whether the key was present.
func (l *List) Remove(key string) bool {
	var preds [maxLevel]*node
	target := l.findPreds(key, &preds)
	if target == nil {
		return false
	}
	for i := 0; i < maxLevel; i++ {
		if preds[i].next[i] == target {
			preds[i].next[i] = target.next[i]
		}
	}
	l.length--
	l.size -= target.entry.Size()
	return true
}

// Get returns the entry stored for key, which may be a tombstone.
func (l *List) Get(key string) (types.Entry, bool) {
	var preds [maxLevel]*node
	if n := l.findPreds(key, &preds); n != nil {
		return n.entry, true
	}
	return types.Entry{}, false
}

// Seek returns an iterator positioned at the first key >= start, or > start
// when exclusive is set.
func (l *List) Seek(start string, exclusive bool) types.Iterator {
	var preds [maxLevel]*node
	n := l.findPreds(start, &preds)
	if n == nil {
		n = preds[0].next[0]
	} else if exclusive {
		n = n.next[0]
	}
	return &Iterator{cur: n}
}

// Entries returns every entry in key order, tombstones included.
func (l *List) Entries() []types.Entry {
	out := make([]types.Entry, 0, l.length)
	for x := l.head.next[0]; x != nil; x = x.next[0] {
		out = append(out, x.entry)
	}
	return out
}

// Size returns the accumulated byte size of the stored entries.
func (l *List) Size() int64 {
	return l.size
}

// Len returns the number of entries, tombstones included.
func (l *List) Len() int {
	return l.length
}

// Iterator walks level 0 of the list.
type Iterator struct {
	cur *node
}

func (it *Iterator) Valid() bool { return it.cur != nil }

func (it *Iterator) Entry() types.Entry { return it.cur.entry }

func (it *Iterator) Next() error {
	if it.cur != nil {
		it.cur = it.cur.next[0]
	}
	return nil
}
