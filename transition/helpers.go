package transition

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

var errEmptyIndices = errors.New("transition: empty active validator set")

// domainRandao, domainBeaconAttester etc. are folded into cfg.Domain*
// already; getSeed mixes the relevant randao mix with the domain type
// and epoch the way phase-0's get_seed does.
func getSeed(s *containers.BeaconState, epoch primitives.Epoch, domainType [4]byte, cfg *params.SpecConfig) primitives.Bytes32 {
	mixEpoch := uint64(epoch) + cfg.EpochsPerHistoricalVector - cfg.MinSeedLookahead - 1
	mix := s.RandaoMixes[mixEpoch%cfg.EpochsPerHistoricalVector]

	buf := make([]byte, 0, 4+8+32)
	buf = append(buf, domainType[:]...)
	var epochBuf [8]byte
	binary.LittleEndian.PutUint64(epochBuf[:], uint64(epoch))
	buf = append(buf, epochBuf[:]...)
	buf = append(buf, mix[:]...)
	return crypto.Hash256(buf)
}

// GetBeaconProposerIndex implements get_beacon_proposer_index: the
// proposer for state.Slot is drawn from the current epoch's active
// validators, weighted by effective balance (spec.md §4.E process_block
// header step). Exported so a proposer duty (selecting which key signs
// the next block) can be computed without duplicating committee logic.
func GetBeaconProposerIndex(s *containers.BeaconState, cfg *params.SpecConfig) (primitives.ValidatorIndex, error) {
	epoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	seedBase := getSeed(s, epoch, cfg.DomainBeaconProposer, cfg)
	var slotBuf [8]byte
	binary.LittleEndian.PutUint64(slotBuf[:], uint64(s.Slot))
	seed := crypto.Hash256(append(append([]byte{}, seedBase[:]...), slotBuf[:]...))

	indices := s.ActiveValidatorIndices(epoch)
	return computeProposerIndex(s, indices, seed, cfg)
}

// committeeCountPerSlot implements get_committee_count_per_slot: the
// number of committees active validators are split into for one slot,
// never less than 1; no upper bound is applied.
func committeeCountPerSlot(activeCount uint64, cfg *params.SpecConfig) uint64 {
	count := activeCount / cfg.SlotsPerEpoch / cfg.MaxValidatorsPerCommittee
	if count < 1 {
		count = 1
	}
	return count
}

// beaconCommittee implements get_beacon_committee: the committee for
// (slot, committeeIndex), drawn from the epoch's active validator set.
func beaconCommittee(s *containers.BeaconState, slot primitives.Slot, committeeIndex primitives.CommitteeIndex, cfg *params.SpecConfig) []primitives.ValidatorIndex {
	epoch := primitives.Epoch(uint64(slot) / cfg.SlotsPerEpoch)
	indices := s.ActiveValidatorIndices(epoch)
	seed := getSeed(s, epoch, cfg.DomainBeaconAttester, cfg)

	committeesPerSlot := committeeCountPerSlot(uint64(len(indices)), cfg)
	slotOffset := uint64(slot) % cfg.SlotsPerEpoch
	index := slotOffset*committeesPerSlot + uint64(committeeIndex)
	count := committeesPerSlot * cfg.SlotsPerEpoch

	return computeCommittee(indices, seed, index, count)
}

// computeStartSlotAtEpoch returns the first slot of epoch.
func computeStartSlotAtEpoch(epoch primitives.Epoch, slotsPerEpoch uint64) primitives.Slot {
	return primitives.Slot(uint64(epoch) * slotsPerEpoch)
}

// getBlockRootAtSlot implements get_block_root_at_slot: the cached
// block root for a slot within the last SLOTS_PER_HISTORICAL_ROOT
// slots (spec.md §3.2 block_roots).
func getBlockRootAtSlot(s *containers.BeaconState, slot primitives.Slot, cfg *params.SpecConfig) primitives.Bytes32 {
	return s.BlockRoots[uint64(slot)%cfg.SlotsPerHistoricalRoot]
}

// getBlockRoot implements get_block_root: the block root at the first
// slot of epoch.
func getBlockRoot(s *containers.BeaconState, epoch primitives.Epoch, cfg *params.SpecConfig) primitives.Bytes32 {
	return getBlockRootAtSlot(s, computeStartSlotAtEpoch(epoch, cfg.SlotsPerEpoch), cfg)
}

// integerSqrt implements integer_sqrt: the largest integer x with
// x*x <= n, via Newton's method (used by get_base_reward).
func integerSqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// GetIndexedAttestation implements get_indexed_attestation: resolves
// an Attestation's aggregation_bits against its committee into the
// sorted list of attesting validator indices (spec.md §4.E). Exported
// so the orchestrator can resolve a block's attestations into
// LMD-GHOST votes without duplicating committee-assignment logic.
func GetIndexedAttestation(s *containers.BeaconState, att *containers.Attestation, cfg *params.SpecConfig) (*containers.IndexedAttestation, error) {
	committee := beaconCommittee(s, att.Data.Slot, att.Data.Index, cfg)
	bits := att.AggregationBits
	if uint64(len(committee)) != bits.Len() {
		return nil, errors.New("transition: aggregation bits length does not match committee size")
	}

	var attesting []primitives.ValidatorIndex
	for i, idx := range committee {
		if bits.BitAt(uint64(i)) {
			attesting = append(attesting, idx)
		}
	}
	sort.Slice(attesting, func(i, j int) bool { return attesting[i] < attesting[j] })

	return &containers.IndexedAttestation{
		AttestingIndices: attesting,
		Data:             att.Data,
		Signature:        att.Signature,
	}, nil
}
