package lsmtree

import (
	"github.com/sukryu/depdex/pkg/types"
)

type erringIterator interface {
	Err() error
}

// mergeIterator merges sorted sources. Sources are ordered newest first, so
// when several hold the same key the lowest index wins.
type mergeIterator struct {
	sources []types.Iterator
}

func newMergeIterator(sources []types.Iterator) (*mergeIterator, error) {
	for _, src := range sources {
		if ei, ok := src.(erringIterator); ok && ei.Err() != nil {
			return nil, ei.Err()
		}
	}
	return &mergeIterator{sources: sources}, nil
}

// next returns the newest version of the smallest remaining key, tombstones
// included, and advances every source past that key.
func (m *mergeIterator) next() (types.Entry, bool, error) {
	winner := -1
	var minKey string
	for i, src := range m.sources {
		if !src.Valid() {
			continue
		}
		if k := src.Entry().Key; winner < 0 || k < minKey {
			minKey = k
			winner = i
		}
	}
	if winner < 0 {
		return types.Entry{}, false, nil
	}
	e := m.sources[winner].Entry()
	for _, src := range m.sources {
		if src.Valid() && src.Entry().Key == minKey {
			if err := src.Next(); err != nil {
				return types.Entry{}, false, err
			}
		}
	}
	return e, true, nil
}
