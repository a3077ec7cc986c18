// Package memdb provides an in-memory, ordered KVStore.
package memdb

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sukryu/depdex/pkg/adapters/skiplist"
	"github.com/sukryu/depdex/pkg/ports"
	"github.com/sukryu/depdex/pkg/types"
)

var _ ports.KVStore = (*Store)(nil)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("memdb: store is closed")

// Config holds configuration for the in-memory store.
type Config struct {
	// ScanChunkSize bounds how many entries are copied per read-lock acquisition.
	ScanChunkSize int
}

// Store keeps entries in a skip list. Batches take the write lock, so readers
// observe either none or all of a batch.
type Store struct {
	mu     sync.RWMutex
	list   *skiplist.List
	chunk  int
	closed bool

	writes  atomic.Int64
	reads   atomic.Int64
	scans   atomic.Int64
	batches atomic.Int64
}

// New creates an empty Store.
func New(config Config) *Store {
	return &Store{
		list:  skiplist.New(),
		chunk: config.ScanChunkSize,
	}
}

// Get retrieves the value stored for key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrClosed
	}
	s.reads.Add(1)
	e, ok := s.list.Get(key)
	if !ok {
		return "", ports.ErrKeyNotFound
	}
	return e.Value, nil
}

// Batch applies entries atomically. Deleting a missing key is a no-op.
func (s *Store) Batch(ctx context.Context, entries []types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, e := range entries {
		if e.Tombstone {
			s.list.Remove(e.Key)
			continue
		}
		s.list.Put(e)
	}
	s.batches.Add(1)
	s.writes.Add(int64(len(entries)))
	return nil
}

// Scan visits the keys of r in ascending order.
func (s *Store) Scan(ctx context.Context, r ports.KeyRange, fn func(key, value string) error) error {
	s.scans.Add(1)
	return ports.ChunkedScan(ctx, r, s.chunk, s.collect, fn)
}

func (s *Store) collect(r ports.KeyRange, n int) ([]types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]types.Entry, 0, n)
	for it := s.list.Seek(r.Start, r.Exclusive); it.Valid() && len(out) < n; it.Next() {
		e := it.Entry()
		if e.Key >= r.End {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list.Len()
}

// Stats returns runtime counters.
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{
		"keys":    s.list.Len(),
		"bytes":   s.list.Size(),
		"writes":  s.writes.Load(),
		"reads":   s.reads.Load(),
		"scans":   s.scans.Load(),
		"batches": s.batches.Load(),
	}
}

// Close marks the store closed and drops its contents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.list = skiplist.New()
	return nil
}
