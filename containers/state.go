package containers

import "github.com/ethcore/beaconcore/primitives"

// BeaconState is the full consensus state (spec.md §3.2). Field order
// is the authoritative SSZ field order; list/vector capacities are
// enforced by the ssz-max/ssz-size tags, not by Go's type system, so
// every mutator that appends to a capped slice must check the limit
// itself (see the transition package).
type BeaconState struct {
	GenesisTime           uint64
	GenesisValidatorsRoot primitives.Bytes32 `ssz-size:"32"`
	Slot                  primitives.Slot
	Fork                  primitives.Fork
	LatestBlockHeader     BeaconBlockHeader

	BlockRoots []primitives.Bytes32 `ssz-size:"8192,32"`
	StateRoots []primitives.Bytes32 `ssz-size:"8192,32"`

	HistoricalRoots []primitives.Bytes32 `ssz-max:"16777216"`

	Eth1Data      Eth1Data
	Eth1DataVotes []Eth1Data `ssz-max:"2048"`
	Eth1DepositIndex uint64

	Validators []Validator      `ssz-max:"1099511627776"`
	Balances   []primitives.Gwei `ssz-max:"1099511627776"`

	RandaoMixes []primitives.Bytes32 `ssz-size:"65536,32"`

	Slashings []primitives.Gwei `ssz-size:"8192"`

	PreviousEpochAttestations []PendingAttestation `ssz-max:"4096"`
	CurrentEpochAttestations  []PendingAttestation `ssz-max:"4096"`

	JustificationBits [1]byte `ssz:"bitvector" ssz-size:"4"`

	PreviousJustifiedCheckpoint Checkpoint
	CurrentJustifiedCheckpoint  Checkpoint
	FinalizedCheckpoint         Checkpoint
}

// Clone returns a deep copy of the state so a mutator can apply field
// updates without aliasing the original's backing arrays — the "mutable
// copy" half of spec.md §4.C's read-view/mutable-copy split.
func (s *BeaconState) Clone() *BeaconState {
	cp := *s
	cp.BlockRoots = append([]primitives.Bytes32(nil), s.BlockRoots...)
	cp.StateRoots = append([]primitives.Bytes32(nil), s.StateRoots...)
	cp.HistoricalRoots = append([]primitives.Bytes32(nil), s.HistoricalRoots...)
	cp.Eth1DataVotes = append([]Eth1Data(nil), s.Eth1DataVotes...)
	cp.Validators = make([]Validator, len(s.Validators))
	for i := range s.Validators {
		v := s.Validators[i]
		cp.Validators[i] = v
	}
	cp.Balances = append([]primitives.Gwei(nil), s.Balances...)
	cp.RandaoMixes = append([]primitives.Bytes32(nil), s.RandaoMixes...)
	cp.Slashings = append([]primitives.Gwei(nil), s.Slashings...)
	cp.PreviousEpochAttestations = append([]PendingAttestation(nil), s.PreviousEpochAttestations...)
	cp.CurrentEpochAttestations = append([]PendingAttestation(nil), s.CurrentEpochAttestations...)
	return &cp
}

// ActiveValidatorIndices returns, in ascending order, the indices of
// every validator active at epoch.
func (s *BeaconState) ActiveValidatorIndices(epoch primitives.Epoch) []primitives.ValidatorIndex {
	indices := make([]primitives.ValidatorIndex, 0, len(s.Validators))
	for i, v := range s.Validators {
		if v.IsActiveAt(epoch) {
			indices = append(indices, primitives.ValidatorIndex(i))
		}
	}
	return indices
}

// TotalActiveBalance sums EffectiveBalance over every validator active
// at epoch, floored at EFFECTIVE_BALANCE_INCREMENT to avoid division by
// zero in downstream reward computations (the phase-0 `get_total_balance`
// floor).
func (s *BeaconState) TotalActiveBalance(epoch primitives.Epoch, increment primitives.Gwei) primitives.Gwei {
	var total primitives.Gwei
	for _, v := range s.Validators {
		if v.IsActiveAt(epoch) {
			total += v.EffectiveBalance
		}
	}
	if total < increment {
		return increment
	}
	return total
}

// CurrentEpoch returns the epoch containing s.Slot.
func (s *BeaconState) CurrentEpoch(slotsPerEpoch uint64) primitives.Epoch {
	return primitives.Epoch(uint64(s.Slot) / slotsPerEpoch)
}

// PreviousEpoch returns the epoch before CurrentEpoch, clamped at the
// genesis epoch (phase-0 `get_previous_epoch`).
func (s *BeaconState) PreviousEpoch(slotsPerEpoch uint64) primitives.Epoch {
	cur := s.CurrentEpoch(slotsPerEpoch)
	if cur == 0 {
		return 0
	}
	return cur - 1
}
