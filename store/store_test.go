package store

import (
	"path/filepath"
	"testing"

	"github.com/ethcore/beaconcore/containers"
	beaconerrors "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

func blockRoot(b byte) primitives.Bytes32 {
	var r primitives.Bytes32
	r[31] = b
	return r
}

func fakeSignedBlock(slot primitives.Slot, parent primitives.Bytes32) *containers.SignedBeaconBlock {
	return &containers.SignedBeaconBlock{
		Message: containers.BeaconBlock{
			Slot:       slot,
			ParentRoot: parent,
		},
	}
}

// fakeState sizes the fixed-length vectors to the mainnet preset so the
// state can be serialized into the cold archive.
func fakeState(slot primitives.Slot) *containers.BeaconState {
	cfg := params.Mainnet()
	return &containers.BeaconState{
		Slot:        slot,
		BlockRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		StateRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		RandaoMixes: make([]primitives.Bytes32, cfg.EpochsPerHistoricalVector),
		Slashings:   make([]primitives.Gwei, cfg.EpochsPerSlashingsVector),
	}
}

func TestCommit_PutAndGet(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	genesis := blockRoot(0)

	tx := s.Begin()
	tx.PutBlock(genesis, primitives.Bytes32{}, 0, fakeSignedBlock(0, primitives.Bytes32{}))
	tx.PutState(genesis, genesis, 0, fakeState(0))
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, ok := s.Get(genesis); !ok {
		t.Fatal("expected genesis block to be retrievable after commit")
	}
	st, ok := s.StateByBlock(genesis)
	if !ok {
		t.Fatal("expected genesis state to be retrievable after commit")
	}
	if st.Slot != 0 {
		t.Fatalf("state.Slot = %d, want 0", st.Slot)
	}
}

func TestCommit_Idempotent(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	tx := s.Begin()
	tx.PutBlock(blockRoot(1), primitives.Bytes32{}, 0, fakeSignedBlock(0, primitives.Bytes32{}))
	if err := tx.Commit(); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("second Commit (should be a no-op): %v", err)
	}
}

// buildChain commits a genesis at slot 0, a canonical chain
// genesis->a->b, and a competing fork genesis->c, each with its own
// trivial state keyed by its own root (using the block root as a stand
// in for state_root, since these states never need to hash-tree-root
// against anything in this test).
func buildChain(t *testing.T, s *Store) (genesis, a, b, c primitives.Bytes32) {
	t.Helper()
	genesis, a, b, c = blockRoot(0), blockRoot(1), blockRoot(2), blockRoot(3)

	tx := s.Begin()
	tx.PutBlock(genesis, primitives.Bytes32{}, 0, fakeSignedBlock(0, primitives.Bytes32{}))
	tx.PutState(genesis, genesis, 0, fakeState(0))
	tx.PutBlock(a, genesis, 1, fakeSignedBlock(1, genesis))
	tx.PutState(a, a, 1, fakeState(1))
	tx.PutBlock(b, a, 2, fakeSignedBlock(2, a))
	tx.PutState(b, b, 2, fakeState(2))
	tx.PutBlock(c, genesis, 1, fakeSignedBlock(1, genesis))
	tx.PutState(c, c, 1, fakeState(1))
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return
}

func TestFinalize_PrunesNonCanonicalAndOldSlots(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	genesis, a, b, c := buildChain(t, s)

	tx := s.Begin()
	tx.SetCheckpoint(Finalized, containers.Checkpoint{Epoch: 1, Root: a})
	if err := tx.Commit(); err != nil {
		t.Fatalf("finalizing Commit: %v", err)
	}

	if _, ok := s.Get(c); ok {
		t.Fatal("non-canonical fork block c should have been pruned")
	}
	if _, ok := s.Get(genesis); ok {
		t.Fatal("genesis (slot <= finalized slot, not the finalized root) should have been pruned")
	}
	if _, ok := s.Get(a); !ok {
		t.Fatal("finalized block a must remain")
	}
	if _, ok := s.Get(b); !ok {
		t.Fatal("block b (slot > finalized slot) must remain")
	}
}

func TestFinalize_UnknownRoot(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	tx := s.Begin()
	tx.SetCheckpoint(Finalized, containers.Checkpoint{Epoch: 1, Root: blockRoot(99)})
	err := tx.Commit()
	if err == nil {
		t.Fatal("expected Corrupt error finalizing an unknown root")
	}
	var corrupt *beaconerrors.Corrupt
	if !beaconerrors.As(err, &corrupt) {
		t.Fatalf("expected *errors.Corrupt, got %T: %v", err, err)
	}
}

func TestRegenerate_FastPathReturnsMaterializedState(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	genesis, _, _, _ := buildChain(t, s)

	st, err := s.Regenerate(genesis, s)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if st.Slot != 0 {
		t.Fatalf("state.Slot = %d, want 0", st.Slot)
	}
}

func TestRegenerate_MissingAncestorIsUnknownBlock(t *testing.T) {
	s := New(params.Mainnet(), Archive)
	orphan := blockRoot(42)
	tx := s.Begin()
	tx.PutBlock(orphan, blockRoot(41), 5, fakeSignedBlock(5, blockRoot(41)))
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	_, err := s.Regenerate(orphan, s)
	if err == nil {
		t.Fatal("expected error regenerating from an orphaned block with no known ancestor")
	}
	var unknown *beaconerrors.UnknownBlock
	if !beaconerrors.As(err, &unknown) {
		t.Fatalf("expected *errors.UnknownBlock, got %T: %v", err, err)
	}
}

func TestOpen_PersistsBlockToCold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cold")
	s, err := Open(params.Mainnet(), Archive, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	genesis, a, _, _ := buildChain(t, s)

	tx := s.Begin()
	tx.SetCheckpoint(Finalized, containers.Checkpoint{Epoch: 1, Root: a})
	if err := tx.Commit(); err != nil {
		t.Fatalf("finalizing Commit: %v", err)
	}

	if _, ok := s.blocks[genesis]; ok {
		t.Fatal("genesis should no longer be hot after pruning past finalization")
	}
	if _, ok, err := s.cold.getBlock(a); err != nil || !ok {
		t.Fatalf("expected finalized block a archived to cold store, ok=%v err=%v", ok, err)
	}
}
