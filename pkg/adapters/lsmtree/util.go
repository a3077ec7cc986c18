package lsmtree

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/sukryu/depdex/pkg/types"
)

// ComputeChecksum calculates the CRC32 checksum of the given data.
func ComputeChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

const (
	flagPut       byte = 0x00
	flagTombstone byte = 0x01
)

// appendEntry encodes e as [flag][keyLen u32][key][valLen u32][value].
// WAL 레코드와 SSTable 레코드가 같은 인코딩을 공유합니다.
func appendEntry(buf []byte, e types.Entry) []byte {
	flag := flagPut
	if e.Tombstone {
		flag = flagTombstone
	}
	buf = append(buf, flag)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Key)))
	buf = append(buf, e.Key...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Value)))
	buf = append(buf, e.Value...)
	return buf
}

// decodeEntry decodes one entry from the front of data and returns the
// number of bytes consumed.
func decodeEntry(data []byte) (types.Entry, int, error) {
	if len(data) < 5 {
		return types.Entry{}, 0, io.ErrUnexpectedEOF
	}
	flag := data[0]
	if flag != flagPut && flag != flagTombstone {
		return types.Entry{}, 0, ErrSSTableCorrupted
	}
	keyLen := int(binary.BigEndian.Uint32(data[1:5]))
	pos := 5
	if len(data) < pos+keyLen+4 {
		return types.Entry{}, 0, io.ErrUnexpectedEOF
	}
	key := string(data[pos : pos+keyLen])
	pos += keyLen
	valLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if len(data) < pos+valLen {
		return types.Entry{}, 0, io.ErrUnexpectedEOF
	}
	value := string(data[pos : pos+valLen])
	pos += valLen
	return types.Entry{Key: key, Value: value, Tombstone: flag == flagTombstone}, pos, nil
}
