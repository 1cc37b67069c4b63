// Package protoarray implements the proto-array fork-choice engine:
// an index-array-backed tree that maintains the canonical head under
// LMD-GHOST with FFG finality (spec.md §3.4, §4.D). Unlike the
// teacher's map-walking LMD-GHOST (forkchoice/lmdghost.go), every node
// here is addressed by its position in a flat slice, so weight
// propagation and pruning are single passes over that slice rather
// than repeated map lookups.
package protoarray

import "github.com/ethcore/beaconcore/primitives"

// noneIndex marks an absent optional index (Rust's Option<u32> in
// spec.md §3.4, represented here as a sentinel since Go lacks a
// built-in option type cheap enough for a hot per-node field).
const noneIndex = ^uint64(0)

// Node is one entry of the proto-array tree (spec.md §3.4 ProtoNode).
type Node struct {
	Slot       primitives.Slot
	StateRoot  primitives.Bytes32
	BlockRoot  primitives.Bytes32
	ParentIndex        uint64 // noneIndex when absent
	JustifiedEpoch     primitives.Epoch
	FinalizedEpoch     primitives.Epoch
	Weight             int64
	BestChildIndex     uint64 // noneIndex when absent
	BestDescendantIndex uint64 // noneIndex when absent
}

func (n *Node) hasParent() bool          { return n.ParentIndex != noneIndex }
func (n *Node) hasBestChild() bool       { return n.BestChildIndex != noneIndex }
func (n *Node) hasBestDescendant() bool  { return n.BestDescendantIndex != noneIndex }
