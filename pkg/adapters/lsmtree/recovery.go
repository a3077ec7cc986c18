package lsmtree

import (
	"encoding/binary"
	"errors"
	"io"
	"os"

	"k8s.io/klog/v2"

	"github.com/sukryu/depdex/pkg/types"
)

// RecoverFromWAL replays the WAL file into memTable and returns the number of
// replayed batches. A truncated final record (a crash mid-append) is always
// dropped. A record whose checksum does not match fails recovery in strict
// mode and ends replay in best-effort mode.
func RecoverFromWAL(walPath string, memTable *MemTable, mode string) (int, error) {
	data, err := os.ReadFile(walPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, ErrWALError{Operation: "recover", Message: "read failed", Err: err}
	}

	replayed := 0
	for pos := 0; pos < len(data); {
		if len(data)-pos < 8 {
			klog.InfoS("dropping torn WAL header", "path", walPath, "offset", pos)
			break
		}
		size := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		sum := binary.BigEndian.Uint32(data[pos+4 : pos+8])
		if len(data)-pos-8 < size {
			klog.InfoS("dropping torn WAL record", "path", walPath, "offset", pos)
			break
		}
		payload := data[pos+8 : pos+8+size]
		if ComputeChecksum(payload) != sum {
			if mode == RecoveryStrict {
				return replayed, ErrWALError{Operation: "recover", Message: "checksum mismatch", Err: ErrWALCorrupted}
			}
			klog.InfoS("stopping WAL replay at corrupted record", "path", walPath, "offset", pos)
			break
		}
		entries, err := decodeBatch(payload)
		if err != nil {
			if mode == RecoveryStrict {
				return replayed, ErrWALError{Operation: "recover", Message: "malformed record", Err: ErrWALCorrupted}
			}
			break
		}
		memTable.Apply(entries)
		replayed++
		pos += 8 + size
	}
	return replayed, nil
}

func decodeBatch(payload []byte) ([]types.Entry, error) {
	if len(payload) < 4 {
		return nil, io.ErrUnexpectedEOF
	}
	count := int(binary.BigEndian.Uint32(payload[:4]))
	entries := make([]types.Entry, 0, count)
	rest := payload[4:]
	for i := 0; i < count; i++ {
		e, n, err := decodeEntry(rest)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		rest = rest[n:]
	}
	return entries, nil
}
