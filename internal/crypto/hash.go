package crypto

import (
	"golang.org/x/crypto/blake2b"
)

// HashSize is the size in bytes of a value hash.
const HashSize = 32

// Hash is a fixed-size BLAKE2b-256 digest, used as the CRDS value hash
// (tie-break on equal wallclocks, Bloom filter membership).
type Hash [HashSize]byte

// HashBytes computes the BLAKE2b-256 digest of data.
func HashBytes(data []byte) Hash {
	return blake2b.Sum256(data)
}

// Uint64 folds the hash down to a uint64, used to seed the Bloom
// filter's independent hash functions.
func (h Hash) Uint64() uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(h[i])
	}
	return v
}
