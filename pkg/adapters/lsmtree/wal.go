package lsmtree

import (
	"encoding/binary"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sukryu/depdex/pkg/types"
)

var bufPool = sync.Pool{
	New: func() interface{} { b := make([]byte, 0, 4096); return &b },
}

// WAL is the write-ahead log. Every batch is one record:
//
//	[payloadLen u32][crc32(payload) u32][count u32][entry]...
//
// so a batch is either replayed whole or not at all.
type WAL struct {
	path       string
	file       *os.File
	mu         sync.Mutex
	syncWrites bool
	// Atomic counter for appended records.
	recordCount int64
}

// NewWAL opens or creates a WAL file.
func NewWAL(path string, syncWrites bool) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, ErrWALError{Operation: "open", Message: path, Err: err}
	}
	return &WAL{
		path:       path,
		file:       file,
		syncWrites: syncWrites,
	}, nil
}

// encodeBatch renders entries as a single WAL record.
func encodeBatch(buf []byte, entries []types.Entry) []byte {
	buf = append(buf, make([]byte, 8)...) // header placeholder
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		buf = appendEntry(buf, e)
	}
	payload := buf[8:]
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(buf[4:8], ComputeChecksum(payload))
	return buf
}

// AppendBatch writes entries as one record. It returns after the write (and
// fsync, with SyncWrites) completes.
func (w *WAL) AppendBatch(entries []types.Entry) error {
	bp := bufPool.Get().(*[]byte)
	record := encodeBatch((*bp)[:0], entries)
	defer func() {
		*bp = record[:0]
		bufPool.Put(bp)
	}()

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(record); err != nil {
		return ErrWALError{Operation: "append", Message: "write failed", Err: err}
	}
	if w.syncWrites {
		if err := w.file.Sync(); err != nil {
			return ErrWALError{Operation: "append", Message: "sync failed", Err: err}
		}
	}
	atomic.AddInt64(&w.recordCount, 1)
	return nil
}

// Records returns the number of records appended since the last reset.
func (w *WAL) Records() int64 {
	return atomic.LoadInt64(&w.recordCount)
}

// Reset truncates and resets the WAL file.
func (w *WAL) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return ErrWALError{Operation: "reset", Message: "close failed", Err: err}
	}
	file, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0666)
	if err != nil {
		return ErrWALError{Operation: "reset", Message: "reopen failed", Err: err}
	}
	w.file = file
	// 리셋 후 카운터도 초기화.
	atomic.StoreInt64(&w.recordCount, 0)
	return nil
}

// Close shuts down the WAL gracefully.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return ErrWALError{Operation: "close", Message: "sync failed", Err: err}
	}
	return w.file.Close()
}
