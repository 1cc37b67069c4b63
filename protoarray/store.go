package protoarray

import (
	"bytes"

	beaconerrors "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/primitives"
)

// ProtoArray is the index-array-backed fork-choice tree (spec.md §3.4).
// It is not safe for concurrent use by itself; spec.md §5 has the
// caller (the orchestrator) hold one mutex for the duration of
// ApplyScoreChanges and FindHead, and allows OnBlock to interleave only
// outside that critical section.
type ProtoArray struct {
	PruneThreshold uint32
	JustifiedEpoch primitives.Epoch
	FinalizedEpoch primitives.Epoch

	Nodes   []Node
	Indices map[primitives.Bytes32]uint64
}

// New returns an empty proto-array with the given prune threshold.
func New(pruneThreshold uint32) *ProtoArray {
	return &ProtoArray{
		PruneThreshold: pruneThreshold,
		Indices:        make(map[primitives.Bytes32]uint64),
	}
}

// OnBlock inserts a new node for blockRoot. It is idempotent: a root
// already present is a no-op (spec.md §4.D).
func (p *ProtoArray) OnBlock(slot primitives.Slot, blockRoot primitives.Bytes32, parentRoot *primitives.Bytes32, stateRoot primitives.Bytes32, justifiedEpoch, finalizedEpoch primitives.Epoch) {
	if _, ok := p.Indices[blockRoot]; ok {
		return
	}

	index := uint64(len(p.Nodes))
	n := Node{
		Slot:                slot,
		StateRoot:           stateRoot,
		BlockRoot:           blockRoot,
		ParentIndex:         noneIndex,
		JustifiedEpoch:      justifiedEpoch,
		FinalizedEpoch:      finalizedEpoch,
		Weight:              0,
		BestChildIndex:      noneIndex,
		BestDescendantIndex: noneIndex,
	}
	if parentRoot != nil {
		if parentIndex, ok := p.Indices[*parentRoot]; ok {
			n.ParentIndex = parentIndex
		}
	}

	p.Nodes = append(p.Nodes, n)
	p.Indices[blockRoot] = index

	if n.hasParent() {
		p.maybeUpdateBestChildAndDescendant(n.ParentIndex, index)
	}
}

// FindHead descends the best_descendant_index chain from justifiedRoot
// and returns the resulting block root, failing with NotViableHead if
// the justified node itself is not on a viable chain (spec.md §4.D).
func (p *ProtoArray) FindHead(justifiedRoot primitives.Bytes32) (primitives.Bytes32, error) {
	justifiedIndex, ok := p.Indices[justifiedRoot]
	if !ok {
		return primitives.Bytes32{}, &beaconerrors.UnknownBlock{Root: justifiedRoot}
	}
	justifiedNode := &p.Nodes[justifiedIndex]

	bestDescendantIndex := justifiedIndex
	if justifiedNode.hasBestDescendant() {
		bestDescendantIndex = justifiedNode.BestDescendantIndex
	}
	bestNode := &p.Nodes[bestDescendantIndex]

	if !p.leadsToViableHead(bestDescendantIndex) {
		return primitives.Bytes32{}, &beaconerrors.NotViableHead{JustifiedRoot: justifiedRoot}
	}
	return bestNode.BlockRoot, nil
}

// ApplyScoreChanges folds deltas (one entry per node, indexed the same
// way as Nodes) into each node's weight and recomputes every
// best-child/best-descendant pointer, then adopts the new justified and
// finalized epochs (spec.md §4.D). Nodes are visited from the highest
// index to the lowest so every child is processed — and has already
// propagated its delta to its parent — before its parent is (spec.md
// §3.4 invariant (iii): ancestors always appear at lower indices).
func (p *ProtoArray) ApplyScoreChanges(deltas []int64, newJustifiedEpoch, newFinalizedEpoch primitives.Epoch) error {
	if len(deltas) != len(p.Nodes) {
		return &beaconerrors.Corrupt{Reason: "proto-array: delta vector length mismatch"}
	}

	p.JustifiedEpoch = newJustifiedEpoch
	p.FinalizedEpoch = newFinalizedEpoch

	for i := len(p.Nodes) - 1; i >= 0; i-- {
		n := &p.Nodes[i]
		n.Weight += deltas[i]

		if n.hasParent() {
			deltas[n.ParentIndex] += deltas[i]
			p.maybeUpdateBestChildAndDescendant(n.ParentIndex, uint64(i))
		}
	}
	return nil
}

// MaybePrune removes every node with an index lower than
// finalizedRoot's, provided that index has reached PruneThreshold, and
// reindexes every remaining node/pointer accordingly (spec.md §4.D).
func (p *ProtoArray) MaybePrune(finalizedRoot primitives.Bytes32) error {
	finalizedIndex, ok := p.Indices[finalizedRoot]
	if !ok {
		return &beaconerrors.UnknownBlock{Root: finalizedRoot}
	}
	if finalizedIndex < uint64(p.PruneThreshold) {
		return nil
	}

	pruneAmount := finalizedIndex
	kept := p.Nodes[pruneAmount:]

	newNodes := make([]Node, len(kept))
	copy(newNodes, kept)
	newIndices := make(map[primitives.Bytes32]uint64, len(newNodes))

	for i := range newNodes {
		n := &newNodes[i]
		if n.hasParent() {
			if n.ParentIndex < pruneAmount {
				n.ParentIndex = noneIndex
			} else {
				n.ParentIndex -= pruneAmount
			}
		}
		if n.hasBestChild() {
			if n.BestChildIndex < pruneAmount {
				n.BestChildIndex = noneIndex
			} else {
				n.BestChildIndex -= pruneAmount
			}
		}
		if n.hasBestDescendant() {
			if n.BestDescendantIndex < pruneAmount {
				n.BestDescendantIndex = noneIndex
			} else {
				n.BestDescendantIndex -= pruneAmount
			}
		}
		newIndices[n.BlockRoot] = uint64(i)
	}

	p.Nodes = newNodes
	p.Indices = newIndices
	return nil
}

// viable reports whether node n's justified/finalized epochs match the
// array's (or the array hasn't finalized/justified anything yet), the
// `viable(N)` predicate of spec.md §4.D.
func (p *ProtoArray) viable(index uint64) bool {
	n := &p.Nodes[index]
	justifiedOK := n.JustifiedEpoch == p.JustifiedEpoch || p.JustifiedEpoch == 0
	finalizedOK := n.FinalizedEpoch == p.FinalizedEpoch || p.FinalizedEpoch == 0
	return justifiedOK && finalizedOK
}

// leadsToViableHead reports viable(N) || viable(best_descendant(N)).
func (p *ProtoArray) leadsToViableHead(index uint64) bool {
	n := &p.Nodes[index]
	if p.viable(index) {
		return true
	}
	if n.hasBestDescendant() {
		return p.viable(n.BestDescendantIndex)
	}
	return false
}

// maybeUpdateBestChildAndDescendant reconsiders parentIndex's
// best-child/best-descendant pointers now that childIndex may have
// changed weight or come into existence, applying the tie-break rule of
// spec.md §4.D: among children leading to a viable head, the higher
// weight wins; equal weight is broken by the lexicographically greater
// block root.
func (p *ProtoArray) maybeUpdateBestChildAndDescendant(parentIndex, childIndex uint64) {
	parent := &p.Nodes[parentIndex]
	child := &p.Nodes[childIndex]

	childLeadsToViable := p.leadsToViableHead(childIndex)

	if !parent.hasBestChild() {
		p.setBestChild(parentIndex, childIndex, childLeadsToViable)
		return
	}

	if parent.BestChildIndex == childIndex {
		p.setBestChild(parentIndex, childIndex, childLeadsToViable)
		return
	}

	currentBestIndex := parent.BestChildIndex
	currentBest := &p.Nodes[currentBestIndex]
	currentBestLeadsToViable := p.leadsToViableHead(currentBestIndex)

	switch {
	case childLeadsToViable && !currentBestLeadsToViable:
		p.setBestChild(parentIndex, childIndex, true)
	case !childLeadsToViable && currentBestLeadsToViable:
		// keep current best
	case child.Weight > currentBest.Weight:
		p.setBestChild(parentIndex, childIndex, childLeadsToViable)
	case child.Weight == currentBest.Weight && bytes.Compare(child.BlockRoot[:], currentBest.BlockRoot[:]) > 0:
		p.setBestChild(parentIndex, childIndex, childLeadsToViable)
	}
}

// setBestChild records childIndex as parentIndex's best child and
// extends the best-descendant chain: childIndex's own best descendant
// when it leads to a viable head and has one, else childIndex itself.
func (p *ProtoArray) setBestChild(parentIndex, childIndex uint64, leadsToViable bool) {
	parent := &p.Nodes[parentIndex]
	child := &p.Nodes[childIndex]

	parent.BestChildIndex = childIndex
	if leadsToViable && child.hasBestDescendant() {
		parent.BestDescendantIndex = child.BestDescendantIndex
	} else {
		parent.BestDescendantIndex = childIndex
	}
}
