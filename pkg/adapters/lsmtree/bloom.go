package lsmtree

import (
	"hash/fnv"
)

const (
	bloomBitsPerKey = 10
	bloomHashes     = 4
)

// BloomFilter is a simple bloom filter implementation.
type BloomFilter struct {
	bitset []uint64
	size   uint64
}

// NewBloomFilter creates a filter sized for the expected number of keys.
func NewBloomFilter(expected int) *BloomFilter {
	size := uint64(expected * bloomBitsPerKey)
	if size < 64 {
		size = 64
	}
	return &BloomFilter{
		bitset: make([]uint64, (size+63)/64),
		size:   size,
	}
}

// Add inserts the key into the bloom filter.
func (bf *BloomFilter) Add(key string) {
	h1, h2 := bf.hashes(key)
	for i := uint64(0); i < bloomHashes; i++ {
		idx := (h1 + i*h2) % bf.size
		bf.bitset[idx/64] |= 1 << (idx % 64)
	}
}

// MightContain checks whether the key might be in the bloom filter.
func (bf *BloomFilter) MightContain(key string) bool {
	h1, h2 := bf.hashes(key)
	for i := uint64(0); i < bloomHashes; i++ {
		idx := (h1 + i*h2) % bf.size
		if bf.bitset[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// hashes derives two hash values for double hashing.
func (bf *BloomFilter) hashes(key string) (uint64, uint64) {
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := h.Sum64()
	return sum & 0xffffffff, (sum >> 32) | 1
}
