package ssz

import (
	"sync"

	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/primitives"
)

// Node is one node of the persistent binary Merkle tree. Every
// consensus object's in-memory representation, canonical
// serialization, and hash-tree-root commitment all derive from the
// same Node graph (spec.md §3.3).
type Node interface {
	Root() primitives.Bytes32
}

// leaf holds up to 32 bytes of raw chunk data; its root is the chunk
// itself, not a hash of it.
type leaf struct {
	data primitives.Bytes32
}

func (l *leaf) Root() primitives.Bytes32 { return l.data }

// NewLeaf wraps a 32-byte chunk as a Node.
func NewLeaf(data primitives.Bytes32) Node { return &leaf{data: data} }

// branch commits to two children; its digest is computed lazily and
// memoized once, per spec.md §3.3 ("caches its SHA-256 digest lazily").
type branch struct {
	left, right Node

	once sync.Once
	root primitives.Bytes32
}

func (b *branch) Root() primitives.Bytes32 {
	b.once.Do(func() {
		b.root = crypto.HashConcat(b.left.Root(), b.right.Root())
	})
	return b.root
}

// NewBranch builds a branch node over two children.
func NewBranch(left, right Node) Node { return &branch{left: left, right: right} }

// zeroNodes[d] is the canonical, shared zero-subtree of depth d —
// sharing these avoids reallocating identical all-zero subtrees for
// every unused container slot or empty list (spec.md §3.3 invariant).
var zeroNodes = buildZeroNodes(64)

func buildZeroNodes(maxDepth int) []Node {
	nodes := make([]Node, maxDepth+1)
	nodes[0] = NewLeaf(primitives.Bytes32{})
	for d := 1; d <= maxDepth; d++ {
		nodes[d] = NewBranch(nodes[d-1], nodes[d-1])
	}
	return nodes
}

// ZeroNode returns the shared zero-subtree of the given depth.
func ZeroNode(depth uint64) Node {
	if depth < uint64(len(zeroNodes)) {
		return zeroNodes[depth]
	}
	n := zeroNodes[len(zeroNodes)-1]
	for d := uint64(len(zeroNodes) - 1); d < depth; d++ {
		n = NewBranch(n, n)
	}
	return n
}

// ZeroHash returns the root of a zero-subtree of the given depth
// (spec.md §4.B: "empty list hashes to sha256(zero_hash(depth) ∥ …)").
func ZeroHash(depth uint64) primitives.Bytes32 { return ZeroNode(depth).Root() }

// TreeFromChunks builds a balanced binary tree of the given depth over
// chunks, padding any remaining leaves with shared zero nodes.
func TreeFromChunks(chunks []Node, depth uint64) Node {
	width := uint64(1) << depth
	level := make([]Node, width)
	for i := range level {
		if uint64(i) < uint64(len(chunks)) {
			level[i] = chunks[i]
		} else {
			level[i] = ZeroNode(0)
		}
	}
	for d := depth; d > 0; d-- {
		next := make([]Node, len(level)/2)
		for i := range next {
			next[i] = NewBranch(level[2*i], level[2*i+1])
		}
		level = next
	}
	if len(level) == 0 {
		return ZeroNode(depth)
	}
	return level[0]
}

// Get descends depth levels of root, selecting the child indicated by
// each bit of index (MSB first), and returns the node found there.
func Get(root Node, depth uint64, index uint64) Node {
	n := root
	for d := depth; d > 0; d-- {
		b, ok := n.(*branch)
		if !ok {
			return n
		}
		bit := (index >> (d - 1)) & 1
		if bit == 0 {
			n = b.left
		} else {
			n = b.right
		}
	}
	return n
}

// Set returns a new tree with the node at index (depth levels down)
// replaced by newChild. Every node off the path from root to index is
// shared, not copied — the structural-sharing persistence spec.md §3.3
// requires.
func Set(root Node, depth uint64, index uint64, newChild Node) Node {
	if depth == 0 {
		return newChild
	}
	b, ok := root.(*branch)
	if !ok {
		b = &branch{left: ZeroNode(depth - 1), right: ZeroNode(depth - 1)}
	}
	bit := (index >> (depth - 1)) & 1
	if bit == 0 {
		return NewBranch(Set(b.left, depth-1, index, newChild), b.right)
	}
	return NewBranch(b.left, Set(b.right, depth-1, index, newChild))
}
