package store

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/primitives"
)

// StoreTransaction accumulates a batch of store mutations for atomic
// application (spec.md §4.F: "commit() applies all changes atomically
// (all-or-nothing); a rollback discards them. Two commits never
// interleave."). Nothing is visible to readers of the owning Store
// until Commit succeeds.
type StoreTransaction struct {
	store *Store

	newBlocks    map[primitives.Bytes32]*containers.SignedBeaconBlock
	newStates    map[primitives.Bytes32]*containers.BeaconState
	stateLookups map[primitives.Bytes32]stateLookup
	blockMetas   map[primitives.Bytes32]blockMeta

	deletedHotRoots map[primitives.Bytes32]bool

	checkpointUpdates map[CheckpointKind]containers.Checkpoint
	voteUpdates       map[primitives.ValidatorIndex]VoteTracker

	done bool
}

// Begin opens a new transaction against s. The transaction holds no
// lock until Commit is called — accumulation is pure bookkeeping.
func (s *Store) Begin() *StoreTransaction {
	return &StoreTransaction{
		store:             s,
		newBlocks:         make(map[primitives.Bytes32]*containers.SignedBeaconBlock),
		newStates:         make(map[primitives.Bytes32]*containers.BeaconState),
		stateLookups:      make(map[primitives.Bytes32]stateLookup),
		blockMetas:        make(map[primitives.Bytes32]blockMeta),
		deletedHotRoots:   make(map[primitives.Bytes32]bool),
		checkpointUpdates: make(map[CheckpointKind]containers.Checkpoint),
		voteUpdates:       make(map[primitives.ValidatorIndex]VoteTracker),
	}
}

// PutBlock stages a new or updated block, keyed by its own hash-tree-root.
func (t *StoreTransaction) PutBlock(root primitives.Bytes32, parentRoot primitives.Bytes32, slot primitives.Slot, signed *containers.SignedBeaconBlock) {
	t.newBlocks[root] = signed
	t.blockMetas[root] = blockMeta{Slot: slot, ParentRoot: parentRoot}
}

// PutState stages a new or updated state, keyed by its own state_root
// and the owning block_root + slot for later lookup.
func (t *StoreTransaction) PutState(stateRoot primitives.Bytes32, blockRoot primitives.Bytes32, slot primitives.Slot, s *containers.BeaconState) {
	t.newStates[stateRoot] = s
	t.stateLookups[stateRoot] = stateLookup{Slot: slot, BlockRoot: blockRoot}
}

// DeleteHotRoot marks a block_root's hot entry for removal on commit.
func (t *StoreTransaction) DeleteHotRoot(root primitives.Bytes32) {
	t.deletedHotRoots[root] = true
}

// SetCheckpoint stages a checkpoint update.
func (t *StoreTransaction) SetCheckpoint(kind CheckpointKind, cp containers.Checkpoint) {
	t.checkpointUpdates[kind] = cp
}

// SetVote stages a per-validator vote update.
func (t *StoreTransaction) SetVote(index primitives.ValidatorIndex, v VoteTracker) {
	t.voteUpdates[index] = v
}

// Rollback discards every staged change. Safe to call after Commit
// (no-op).
func (t *StoreTransaction) Rollback() {
	t.done = true
}

// Commit applies every staged change atomically under the store's
// single writer lock (spec.md §4.F: "Two commits never interleave"),
// then runs finalization if the FINALIZED checkpoint advanced.
func (t *StoreTransaction) Commit() error {
	if t.done {
		return nil
	}
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for root, meta := range t.blockMetas {
		if _, exists := s.blockMeta[root]; !exists {
			s.blockMeta[root] = meta
		}
	}
	for root, b := range t.newBlocks {
		s.blocks[root] = b
	}
	for stRoot, st := range t.newStates {
		s.states[stRoot] = st
		lookup := t.stateLookups[stRoot]
		s.stateIndex[stRoot] = lookup
		s.stateByBlock[lookup.BlockRoot] = stRoot
	}
	for root := range t.deletedHotRoots {
		delete(s.blocks, root)
		delete(s.blockMeta, root)
		if sr, ok := s.stateByBlock[root]; ok {
			delete(s.states, sr)
			delete(s.stateIndex, sr)
			delete(s.stateByBlock, root)
		}
	}
	for index, v := range t.voteUpdates {
		s.votes[index] = v
	}

	var finalizedAdvanced bool
	var newFinalized containers.Checkpoint
	if cp, ok := t.checkpointUpdates[Finalized]; ok {
		if cp.Epoch > s.checkpoints[Finalized].Epoch {
			finalizedAdvanced = true
			newFinalized = cp
		}
	}
	for kind, cp := range t.checkpointUpdates {
		s.checkpoints[kind] = cp
	}

	t.done = true

	if finalizedAdvanced {
		return s.finalize(newFinalized)
	}
	return nil
}
