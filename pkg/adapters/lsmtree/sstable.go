package lsmtree

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sukryu/depdex/pkg/types"
)

const sstSuffix = ".sst"

// SSTable represents a Sorted String Table stored on disk.
//
//	[entry]...[crc32 of all entries u32]
//
// Entries use the same encoding as WAL entries, tombstones included.
type SSTable struct {
	filePath string
	seq      uint64
	file     *os.File
	minKey   string
	maxKey   string
	keys     []string
	offsets  []int64 // offsets[i] is the start of entry i; the last element is the data end.
	Bloom    *BloomFilter
	checksum uint32
}

// sstableName returns the file name of the table with the given sequence.
func sstableName(seq uint64) string {
	return fmt.Sprintf("%08d%s", seq, sstSuffix)
}

// parseSSTableName extracts the sequence number from a table file name.
func parseSSTableName(name string) (uint64, bool) {
	if !strings.HasSuffix(name, sstSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(name, sstSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// CreateSSTable writes sorted entries to dir under the given sequence number.
// The file is written to a temporary name and renamed into place.
func CreateSSTable(dir string, seq uint64, entries []types.Entry, useBloom bool) (*SSTable, error) {
	path := filepath.Join(dir, sstableName(seq))
	tmp := path + ".tmp"

	var data []byte
	for _, e := range entries {
		data = appendEntry(data, e)
	}
	// Write checksum at the end.
	data = binary.BigEndian.AppendUint32(data, ComputeChecksum(data))

	file, err := os.Create(tmp)
	if err != nil {
		return nil, ErrSSTableError{TableID: path, Message: "create failed", Err: err}
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return nil, ErrSSTableError{TableID: path, Message: "write failed", Err: err}
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, ErrSSTableError{TableID: path, Message: "sync failed", Err: err}
	}
	if err := file.Close(); err != nil {
		return nil, ErrSSTableError{TableID: path, Message: "close failed", Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, ErrSSTableError{TableID: path, Message: "rename failed", Err: err}
	}
	return OpenSSTable(path, seq, useBloom)
}

// OpenSSTable opens an existing SSTable file, verifies it and loads its index.
func OpenSSTable(path string, seq uint64, useBloom bool) (*SSTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrSSTableError{TableID: path, Message: "read failed", Err: err}
	}
	// 마지막 4바이트는 체크섬임.
	if len(data) < 4 {
		return nil, ErrSSTableError{TableID: path, Message: "file too short", Err: ErrSSTableCorrupted}
	}
	dataEnd := len(data) - 4
	fileChecksum := binary.BigEndian.Uint32(data[dataEnd:])
	if ComputeChecksum(data[:dataEnd]) != fileChecksum {
		return nil, ErrSSTableError{TableID: path, Message: "checksum mismatch", Err: ErrSSTableCorrupted}
	}

	sst := &SSTable{
		filePath: path,
		seq:      seq,
		checksum: fileChecksum,
	}
	for pos := 0; pos < dataEnd; {
		e, n, err := decodeEntry(data[pos:dataEnd])
		if err != nil {
			return nil, ErrSSTableError{TableID: path, Message: "malformed entry", Err: ErrSSTableCorrupted}
		}
		sst.keys = append(sst.keys, e.Key)
		sst.offsets = append(sst.offsets, int64(pos))
		pos += n
	}
	sst.offsets = append(sst.offsets, int64(dataEnd))
	if len(sst.keys) > 0 {
		sst.minKey = sst.keys[0]
		sst.maxKey = sst.keys[len(sst.keys)-1]
	}
	if useBloom {
		bf := NewBloomFilter(len(sst.keys))
		for _, k := range sst.keys {
			bf.Add(k)
		}
		sst.Bloom = bf
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, ErrSSTableError{TableID: path, Message: "open failed", Err: err}
	}
	sst.file = file
	return sst, nil
}

// readEntry reads the i-th entry from disk.
func (s *SSTable) readEntry(i int) (types.Entry, error) {
	buf := make([]byte, s.offsets[i+1]-s.offsets[i])
	if _, err := s.file.ReadAt(buf, s.offsets[i]); err != nil {
		return types.Entry{}, ErrSSTableError{TableID: s.filePath, Message: "read failed", Err: err}
	}
	e, _, err := decodeEntry(buf)
	if err != nil {
		return types.Entry{}, ErrSSTableError{TableID: s.filePath, Message: "malformed entry", Err: ErrSSTableCorrupted}
	}
	return e, nil
}

// Get retrieves the entry stored for key. The entry may be a tombstone.
func (s *SSTable) Get(key string) (types.Entry, bool, error) {
	if len(s.keys) == 0 || key < s.minKey || key > s.maxKey {
		return types.Entry{}, false, nil
	}
	if s.Bloom != nil && !s.Bloom.MightContain(key) {
		return types.Entry{}, false, nil
	}
	i := sort.SearchStrings(s.keys, key)
	if i >= len(s.keys) || s.keys[i] != key {
		return types.Entry{}, false, nil
	}
	e, err := s.readEntry(i)
	if err != nil {
		return types.Entry{}, false, err
	}
	return e, true, nil
}

// Seek returns an iterator positioned at the first key >= start, or > start
// when exclusive is set.
func (s *SSTable) Seek(start string, exclusive bool) *TableIterator {
	i := sort.SearchStrings(s.keys, start)
	if exclusive && i < len(s.keys) && s.keys[i] == start {
		i++
	}
	it := &TableIterator{table: s, idx: i}
	it.load()
	return it
}

// Len returns the number of entries in the SSTable.
func (s *SSTable) Len() int {
	return len(s.keys)
}

// FilePath returns the path to the SSTable file.
func (s *SSTable) FilePath() string {
	return s.filePath
}

// Close releases the file handle.
func (s *SSTable) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// Remove closes and deletes the table file.
func (s *SSTable) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	return os.Remove(s.filePath)
}

// TableIterator walks an SSTable in key order.
type TableIterator struct {
	table *SSTable
	idx   int
	cur   types.Entry
	err   error
}

func (it *TableIterator) load() {
	if it.idx < len(it.table.keys) {
		it.cur, it.err = it.table.readEntry(it.idx)
	}
}

func (it *TableIterator) Valid() bool {
	return it.err == nil && it.idx < len(it.table.keys)
}

func (it *TableIterator) Entry() types.Entry { return it.cur }

func (it *TableIterator) Next() error {
	it.idx++
	it.load()
	return it.err
}

// Err returns the first read error, if any.
func (it *TableIterator) Err() error { return it.err }
