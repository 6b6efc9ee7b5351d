// Package bloom implements the fixed-size Bloom filter used by the pull
// protocol to summarize "value hashes I already have" without sending
// the full key set.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"

	"gossipmesh/internal/crypto"
)

// Filter is a fixed-size bit array with k independent hash functions
// derived from a single seed, sized for an expected item count and a
// target false-positive rate.
type Filter struct {
	bits   []uint64 // packed bit array, 64 bits per word
	numBits uint64
	k      int
	seed   uint64
}

// NewFilter sizes a filter for expectedItems entries at the given false
// positive rate (e.g. 0.01 for 1%).
func NewFilter(expectedItems int, falsePositiveRate float64, seed uint64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	p := falsePositiveRate
	m := math.Ceil(-1 * n * math.Log(p) / (math.Ln2 * math.Ln2))
	if m < 64 {
		m = 64
	}
	k := int(math.Round((m / n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}

	numBits := uint64(m)
	words := (numBits + 63) / 64

	return &Filter{
		bits:    make([]uint64, words),
		numBits: words * 64,
		k:       k,
		seed:    seed,
	}
}

// Add inserts item's hash into the filter.
func (f *Filter) Add(item crypto.Hash) {
	h1, h2 := f.splitHash(item)
	for i := 0; i < f.k; i++ {
		bit := f.combine(h1, h2, i) % f.numBits
		f.bits[bit/64] |= 1 << (bit % 64)
	}
}

// Contains reports whether item's hash may already be present. False
// positives are possible by design; false negatives are not.
func (f *Filter) Contains(item crypto.Hash) bool {
	h1, h2 := f.splitHash(item)
	for i := 0; i < f.k; i++ {
		bit := f.combine(h1, h2, i) % f.numBits
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// K returns the number of hash functions in use (for tests).
func (f *Filter) K() int { return f.k }

// NumBits returns the size of the bit array (for tests).
func (f *Filter) NumBits() uint64 { return f.numBits }

// splitHash derives two independent 64-bit hashes from item, seeded by
// the filter's seed, per the Kirsch-Mitzenmacher double-hashing scheme.
func (f *Filter) splitHash(item crypto.Hash) (uint64, uint64) {
	h1 := crypto.HashBytes(item[:]).Uint64() ^ f.seed
	var salted [crypto.HashSize + 8]byte
	copy(salted[:], item[:])
	for i := 0; i < 8; i++ {
		salted[crypto.HashSize+i] = byte(f.seed >> (8 * i))
	}
	h2 := crypto.HashBytes(salted[:]).Uint64()
	return h1, h2
}

func (f *Filter) combine(h1, h2 uint64, i int) uint64 {
	return h1 + uint64(i)*h2
}

// MarshalBinary encodes the filter for a pull request: seed, k, numBits,
// then the packed word array, all big-endian. It never returns an error.
func (f *Filter) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8+1+8+len(f.bits)*8)
	binary.BigEndian.PutUint64(out[0:8], f.seed)
	out[8] = byte(f.k)
	binary.BigEndian.PutUint64(out[9:17], f.numBits)
	for i, w := range f.bits {
		binary.BigEndian.PutUint64(out[17+i*8:25+i*8], w)
	}
	return out, nil
}

// UnmarshalBinary decodes a filter previously produced by MarshalBinary.
func (f *Filter) UnmarshalBinary(data []byte) error {
	if len(data) < 17 {
		return fmt.Errorf("bloom: short filter encoding (%d bytes)", len(data))
	}
	seed := binary.BigEndian.Uint64(data[0:8])
	k := int(data[8])
	numBits := binary.BigEndian.Uint64(data[9:17])
	words := (len(data) - 17) / 8
	if uint64(words*64) < numBits {
		return fmt.Errorf("bloom: word count does not cover numBits")
	}

	bits := make([]uint64, words)
	for i := 0; i < words; i++ {
		bits[i] = binary.BigEndian.Uint64(data[17+i*8 : 25+i*8])
	}

	f.seed = seed
	f.k = k
	f.numBits = numBits
	f.bits = bits
	return nil
}
