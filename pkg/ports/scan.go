package ports

import (
	"context"
	"errors"

	"github.com/sukryu/depdex/pkg/types"
)

// DefaultScanChunkSize is the number of entries a backend materialises per lock acquisition.
const DefaultScanChunkSize = 128

// CollectFunc returns up to n live entries inside r in ascending key order.
// Backends implement it under their own read lock.
type CollectFunc func(r KeyRange, n int) ([]types.Entry, error)

// ChunkedScan drives fn over r one chunk at a time. No backend lock is held
// while fn runs, so fn may read from or write to the same store.
func ChunkedScan(ctx context.Context, r KeyRange, chunk int, collect CollectFunc, fn func(key, value string) error) error {
	if chunk <= 0 {
		chunk = DefaultScanChunkSize
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries, err := collect(r, chunk)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := fn(e.Key, e.Value); err != nil {
				if errors.Is(err, ErrStopScan) {
					return nil
				}
				return err
			}
		}
		if len(entries) < chunk {
			return nil
		}
		r = r.After(entries[len(entries)-1].Key)
	}
}
