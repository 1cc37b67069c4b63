package ssz

import (
	"sync"

	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/primitives"
)

// superNodeSpanChunks is the number of 32-byte chunks a single
// super-node leaf packs together (spec.md §4.B: "packs up to 2^k
// elements into one super-node carrying raw bytes and a precomputed
// sub-tree template"). At 8 chunks/span and 4 uint64s/chunk this
// collapses 32 elements' worth of individual leaf+branch allocations
// into one object.
const superNodeSpanChunks = 8
const superNodeSpanDepth = 3 // log2(superNodeSpanChunks)

// superLeaf packs superNodeSpanChunks chunks of raw data into a single
// node. Its root is the ordinary Merkle root of those chunks, computed
// without building intermediate leaf/branch objects; PatchSuperNodeList rebuilds
// only the span containing the touched chunk, leaving every sibling
// super-node untouched and already-memoized.
type superLeaf struct {
	data []byte // len == superNodeSpanChunks*32

	once sync.Once
	root primitives.Bytes32
}

func newSuperLeaf(data []byte) *superLeaf {
	buf := make([]byte, superNodeSpanChunks*32)
	copy(buf, data)
	return &superLeaf{data: buf}
}

func (s *superLeaf) Root() primitives.Bytes32 {
	s.once.Do(func() {
		level := make([]primitives.Bytes32, superNodeSpanChunks)
		for i := range level {
			copy(level[i][:], s.data[i*32:(i+1)*32])
		}
		for len(level) > 1 {
			next := make([]primitives.Bytes32, len(level)/2)
			for i := range next {
				next[i] = crypto.HashConcat(level[2*i], level[2*i+1])
			}
			level = next
		}
		s.root = level[0]
	})
	return s.root
}

// withChunk returns a new superLeaf with the chunk at local index
// (0..superNodeSpanChunks-1) replaced — structural sharing at the
// super-node granularity, not the individual-chunk granularity.
func (s *superLeaf) withChunk(localChunkIndex int, chunk primitives.Bytes32) *superLeaf {
	nd := make([]byte, len(s.data))
	copy(nd, s.data)
	copy(nd[localChunkIndex*32:], chunk[:])
	return &superLeaf{data: nd}
}

// TreeFromSuperNodeGroups builds a tree over pre-grouped super-node
// leaves, padding any missing group with the zero-subtree of the same
// depth the group itself spans (not a bare zero leaf — each group
// already stands in for superNodeSpanDepth levels of the tree).
func TreeFromSuperNodeGroups(groups []Node, outerDepth uint64) Node {
	width := uint64(1) << outerDepth
	level := make([]Node, width)
	for i := range level {
		if uint64(i) < uint64(len(groups)) {
			level[i] = groups[i]
		} else {
			level[i] = ZeroNode(superNodeSpanDepth)
		}
	}
	for d := outerDepth; d > 0; d-- {
		next := make([]Node, len(level)/2)
		for i := range next {
			next[i] = NewBranch(level[2*i], level[2*i+1])
		}
		level = next
	}
	if len(level) == 0 {
		return ZeroNode(outerDepth + superNodeSpanDepth)
	}
	return level[0]
}

// groupChunksForSuperNode packs a flat chunk slice into superLeaf
// groups, left over partial groups zero-padded to a full span.
func groupChunksForSuperNode(raw []byte) []Node {
	spanBytes := superNodeSpanChunks * 32
	numGroups := (len(raw) + spanBytes - 1) / spanBytes
	groups := make([]Node, numGroups)
	for i := 0; i < numGroups; i++ {
		start := i * spanBytes
		end := start + spanBytes
		if end > len(raw) {
			end = len(raw)
		}
		groups[i] = newSuperLeaf(raw[start:end])
	}
	return groups
}

// PatchSuperNodeList returns a new super-node list tree with element
// elemIndex's packed bytes (elemSize bytes, little-endian encoded)
// replaced, rebuilding only the one affected group and the branches on
// the path back to the root.
func PatchSuperNodeList(root Node, outerDepth uint64, elemIndex uint64, elemSize uint64, encoded []byte) Node {
	perChunk := uint64(32) / elemSize
	chunkIndex := elemIndex / perChunk
	groupIndex := chunkIndex / superNodeSpanChunks
	localChunk := int(chunkIndex % superNodeSpanChunks)
	offsetInChunk := (elemIndex % perChunk) * elemSize

	group := Get(root, outerDepth, groupIndex)
	sl, ok := group.(*superLeaf)
	if !ok {
		sl = newSuperLeaf(nil)
	}
	var newChunk primitives.Bytes32
	copy(newChunk[:], sl.data[localChunk*32:(localChunk+1)*32])
	copy(newChunk[offsetInChunk:], encoded)
	newGroup := sl.withChunk(localChunk, newChunk)
	return Set(root, outerDepth, groupIndex, newGroup)
}
