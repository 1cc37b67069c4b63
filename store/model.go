// Package store implements the dual hot/cold chain store of spec.md
// §4.F: an in-memory hot set of non-finalized blocks, states, votes,
// and checkpoints, transactionally committed, with finalized data
// migrating to a pebble-backed cold archive (SPEC_FULL.md §4.F).
package store

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/primitives"
)

// CheckpointKind names one of the four checkpoint slots spec.md §6.2's
// `checkpoint` table tracks.
type CheckpointKind string

const (
	Justified        CheckpointKind = "JUSTIFIED"
	BestJustified     CheckpointKind = "BEST_JUSTIFIED"
	Finalized         CheckpointKind = "FINALIZED"
	WeakSubjectivity  CheckpointKind = "WEAK_SUBJECTIVITY"
)

// Mode selects how much finalized history the store keeps materialized
// (spec.md §4.F: "In Archive mode … In Prune mode …").
type Mode int

const (
	// Archive persists one state per cfg.StateStorageFrequency slots to
	// the cold tier as the chain finalizes.
	Archive Mode = iota
	// Prune keeps only the most recently finalized state.
	Prune
)

// VoteTracker is the per-validator LMD-GHOST vote record of spec.md
// §6.2's `vote` table: the root the fork-choice weight calculation last
// applied (CurrentRoot) versus the validator's latest known attestation
// target (NextRoot), so the orchestrator's computeDeltas only has to move weight once per
// validator per epoch of new information.
type VoteTracker struct {
	CurrentRoot primitives.Bytes32
	NextRoot    primitives.Bytes32
	NextEpoch   primitives.Epoch
}

// blockMeta is the hot-set bookkeeping record for one block, independent
// of whether its body/state are still materialized in memory.
type blockMeta struct {
	Slot       primitives.Slot
	ParentRoot primitives.Bytes32
	Finalized  bool
}

// stateLookup implements spec.md §6.2's `state(state_root PK, block_root,
// slot, …)` index: resolves a state_root back to the (slot, block_root)
// that produced it.
type stateLookup struct {
	Slot      primitives.Slot
	BlockRoot primitives.Bytes32
}

// BlockProvider implements spec.md §6.3: `get(block_root) → Option<SignedBeaconBlock>`.
type BlockProvider interface {
	Get(root primitives.Bytes32) (*containers.SignedBeaconBlock, bool)
}

// layeredProvider implements spec.md §4.F's `withKnownBlocks(fallback,
// knownMap)`: consult knownMap first, else delegate to fallback.
type layeredProvider struct {
	known    map[primitives.Bytes32]*containers.SignedBeaconBlock
	fallback BlockProvider
}

// WithKnownBlocks returns a BlockProvider that answers from known before
// delegating to fallback — used by state regeneration to layer an
// in-flight batch of blocks on top of the store's own provider without
// committing them first.
func WithKnownBlocks(fallback BlockProvider, known map[primitives.Bytes32]*containers.SignedBeaconBlock) BlockProvider {
	return &layeredProvider{known: known, fallback: fallback}
}

func (p *layeredProvider) Get(root primitives.Bytes32) (*containers.SignedBeaconBlock, bool) {
	if b, ok := p.known[root]; ok {
		return b, true
	}
	if p.fallback == nil {
		return nil, false
	}
	return p.fallback.Get(root)
}
