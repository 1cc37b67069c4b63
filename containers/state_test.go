package containers

import (
	"testing"

	"github.com/ethcore/beaconcore/primitives"
)

func newTestState(n int) *BeaconState {
	validators := make([]Validator, n)
	balances := make([]primitives.Gwei, n)
	for i := range validators {
		validators[i] = Validator{
			EffectiveBalance: primitives.Gwei(32_000_000_000),
			ExitEpoch:        primitives.FarFutureEpoch,
		}
		balances[i] = primitives.Gwei(32_000_000_000)
	}
	return &BeaconState{
		Validators:  validators,
		Balances:    balances,
		BlockRoots:  make([]primitives.Bytes32, 4),
		RandaoMixes: make([]primitives.Bytes32, 4),
	}
}

func TestClone_DeepCopiesSlices(t *testing.T) {
	s := newTestState(2)
	clone := s.Clone()

	clone.Validators[0].Slashed = true
	clone.Balances[0] = 0
	clone.BlockRoots[0] = primitives.Bytes32{0xff}

	if s.Validators[0].Slashed {
		t.Fatal("mutating the clone's Validators must not affect the original")
	}
	if s.Balances[0] == 0 {
		t.Fatal("mutating the clone's Balances must not affect the original")
	}
	if s.BlockRoots[0] != (primitives.Bytes32{}) {
		t.Fatal("mutating the clone's BlockRoots must not affect the original")
	}
}

func TestActiveValidatorIndices_FiltersByActivationAndExit(t *testing.T) {
	s := newTestState(3)
	s.Validators[0].ActivationEpoch = 0
	s.Validators[1].ActivationEpoch = 5 // not yet active at epoch 2
	s.Validators[2].ActivationEpoch = 0
	s.Validators[2].ExitEpoch = 1 // already exited at epoch 2

	active := s.ActiveValidatorIndices(2)
	if len(active) != 1 || active[0] != 0 {
		t.Fatalf("ActiveValidatorIndices(2) = %v, want [0]", active)
	}
}

func TestTotalActiveBalance_FloorsAtIncrement(t *testing.T) {
	s := newTestState(1)
	s.Validators[0].ActivationEpoch = 0
	s.Validators[0].ExitEpoch = 0 // not active at epoch 0

	increment := primitives.Gwei(1_000_000_000)
	got := s.TotalActiveBalance(0, increment)
	if got != increment {
		t.Fatalf("TotalActiveBalance with no active validators = %d, want the floor %d", got, increment)
	}
}

func TestCurrentAndPreviousEpoch(t *testing.T) {
	s := newTestState(0)
	s.Slot = 65 // epoch 2 at SlotsPerEpoch=32

	if got := s.CurrentEpoch(32); got != 2 {
		t.Fatalf("CurrentEpoch = %d, want 2", got)
	}
	if got := s.PreviousEpoch(32); got != 1 {
		t.Fatalf("PreviousEpoch = %d, want 1", got)
	}

	s.Slot = 0
	if got := s.PreviousEpoch(32); got != 0 {
		t.Fatalf("PreviousEpoch at genesis = %d, want 0 (clamped)", got)
	}
}
