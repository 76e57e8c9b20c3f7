// Package merkle holds the hash functions that every consensus-visible
// hash in this module is built from: tree node hashes and the combined
// hash of a list of named stores.
package merkle

import (
	"math/bits"

	sha256 "github.com/minio/sha256-simd"
)

// Size is the length of every hash produced by this package.
const Size = sha256.Size

const (
	leafPrefix  = 0x00
	innerPrefix = 0x01
)

// EmptyHash is the hash of no input, used as the root of an empty list
// and of an empty tree.
func EmptyHash() []byte {
	h := sha256.Sum256(nil)
	return h[:]
}

// LeafHash returns H(0x00 ∥ b).
func LeafHash(b []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(b)
	return h.Sum(nil)
}

// InnerHash returns H(0x01 ∥ left ∥ right).
func InnerHash(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{innerPrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

// RootHash hashes a list of items into a single root. An empty list hashes
// to EmptyHash and a single item to its LeafHash; longer lists are split at
// the largest power of two strictly less than their length and the halves
// combined with InnerHash.
func RootHash(items [][]byte) []byte {
	switch len(items) {
	case 0:
		return EmptyHash()
	case 1:
		return LeafHash(items[0])
	}
	k := splitPoint(len(items))
	return InnerHash(RootHash(items[:k]), RootHash(items[k:]))
}

// splitPoint returns the largest power of two strictly less than n, for n > 1.
func splitPoint(n int) int {
	return 1 << (bits.Len(uint(n-1)) - 1)
}
