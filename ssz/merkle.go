package ssz

import (
	"encoding/binary"

	"github.com/ethcore/beaconcore/primitives"
)

// PackBasic packs SSZ-encoded basic values (already concatenated,
// arbitrary length) into 32-byte zero-padded chunk leaves.
func PackBasic(data []byte) []Node {
	if len(data) == 0 {
		return nil
	}
	n := (len(data) + 31) / 32
	chunks := make([]Node, n)
	for i := 0; i < n; i++ {
		var c primitives.Bytes32
		start := i * 32
		end := start + 32
		if end > len(data) {
			end = len(data)
		}
		copy(c[:], data[start:end])
		chunks[i] = NewLeaf(c)
	}
	return chunks
}

// MixInLength returns sha256(root ∥ uint256(length)) — spec.md §3.3's
// hash_tree_root rule for Lists and BitLists.
func MixInLength(root Node, length uint64) primitives.Bytes32 {
	var lenChunk primitives.Bytes32
	binary.LittleEndian.PutUint64(lenChunk[:8], length)
	return NewBranch(root, NewLeaf(lenChunk)).Root()
}

// MerkleizeChunks builds the content tree over chunks (packed basic
// elements, or one root per composite element), zero-padded to a
// capacity of limitChunks chunks rounded up to a power of two (or to
// len(chunks) rounded up when limitChunks is 0), and returns its root
// node (before any length mix-in).
func MerkleizeChunks(chunks []Node, limitChunks uint64) Node {
	depth := ceilLog2(limitChunks)
	if limitChunks == 0 {
		depth = ceilLog2(uint64(len(chunks)))
	}
	return TreeFromChunks(chunks, depth)
}

// Uint64Chunk returns the 32-byte zero-padded little-endian chunk for a
// single uint64 value — the basic building block hash_tree_root(uintN)
// and SSZ encoding of a lone uint64 field both reduce to.
func Uint64Chunk(v uint64) primitives.Bytes32 {
	var c primitives.Bytes32
	binary.LittleEndian.PutUint64(c[:8], v)
	return c
}

// BoolChunk returns the 32-byte zero-padded chunk for a single bool.
func BoolChunk(v bool) primitives.Bytes32 {
	var c primitives.Bytes32
	if v {
		c[0] = 1
	}
	return c
}
