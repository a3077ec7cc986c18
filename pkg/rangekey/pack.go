// Package rangekey turns semver ranges into lexicographically sortable bound
// strings and evaluates overlap between stored and queried intervals.
package rangekey

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/sukryu/depdex/pkg/npmrange"
)

// Separator joins the packed segments of a version. It sorts below every
// hex digit, so it never decides an ordering on its own.
const Separator = "!"

const (
	// 248 미만의 값은 1바이트로 표현한다.
	packSmallLimit = 248
	// 그 이상은 (247 + 길이) 접두 바이트 뒤에 n-248 을 빅엔디언으로 붙인다.
	packTagBase = packSmallLimit - 1
)

// Pack encodes n so that byte-wise comparison of the results matches numeric
// order. The encoding is prefix-free and rendered as lowercase hex.
func Pack(n uint64) string {
	if n < packSmallLimit {
		return hex.EncodeToString([]byte{byte(n)})
	}
	m := n - packSmallLimit
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], m)
	l := 8
	for l > 1 && be[8-l] == 0 {
		l--
	}
	buf := make([]byte, 0, l+1)
	buf = append(buf, byte(packTagBase+l))
	buf = append(buf, be[8-l:]...)
	return hex.EncodeToString(buf)
}

// PackVersion packs a release triple. PackVersion(a) < PackVersion(b) iff a < b.
func PackVersion(v npmrange.Version) string {
	return Pack(v.Major) + Separator + Pack(v.Minor) + Separator + Pack(v.Patch)
}
