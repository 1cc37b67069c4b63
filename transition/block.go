package transition

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	sszerr "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// ProcessBlock implements process_block: the header, RANDAO, and eth1
// data steps followed by every operation kind in the block body, in the
// exact order spec.md §4.E requires (header → randao → eth1_data →
// operations).
func ProcessBlock(s *containers.BeaconState, block *containers.BeaconBlock, cfg *params.SpecConfig) error {
	if err := processBlockHeader(s, block, cfg); err != nil {
		return err
	}
	if err := processRandao(s, block, cfg); err != nil {
		return err
	}
	processEth1Data(s, &block.Body.Eth1Data, cfg)
	return processOperations(s, &block.Body, cfg)
}

// processBlockHeader implements process_block_header: the incoming
// block must extend state.Slot with a known proposer and the correct
// parent, and the proposer must not already be slashed. It then replaces
// state.latest_block_header with a state-root-blanked copy of the
// incoming header, to be filled in by the caller's own
// hash_tree_root(state) once process_block finishes (spec.md §4.E).
func processBlockHeader(s *containers.BeaconState, block *containers.BeaconBlock, cfg *params.SpecConfig) error {
	if block.Slot != s.Slot {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "block slot does not match state slot"}
	}
	if block.Slot <= s.LatestBlockHeader.Slot {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "block slot not after latest block header"}
	}

	proposerIndex, err := GetBeaconProposerIndex(s, cfg)
	if err != nil {
		return err
	}
	if block.ProposerIndex != proposerIndex {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "incorrect proposer index"}
	}

	latestRoot, err := ssz.HashTreeRoot(&s.LatestBlockHeader)
	if err != nil {
		return err
	}
	if block.ParentRoot != latestRoot {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "parent root does not match latest block header"}
	}

	bodyRoot, err := ssz.HashTreeRoot(&block.Body)
	if err != nil {
		return err
	}
	s.LatestBlockHeader = containers.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     primitives.Bytes32{},
		BodyRoot:      bodyRoot,
	}

	proposer := &s.Validators[block.ProposerIndex]
	if proposer.Slashed {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "proposer is slashed"}
	}
	return nil
}

// processRandao implements process_randao: the proposer's RANDAO reveal
// must verify against its pubkey under DOMAIN_RANDAO for the current
// epoch, then mixes in to randao_mixes at the current epoch's slot.
func processRandao(s *containers.BeaconState, block *containers.BeaconBlock, cfg *params.SpecConfig) error {
	epoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	proposer := &s.Validators[block.ProposerIndex]
	domain := containers.Domain(s, cfg.DomainRandao, epoch)

	if err := verifySignature(epoch, domain, proposer.Pubkey, block.Body.RandaoReveal, sszerr.SigRandao); err != nil {
		return err
	}

	index := uint64(epoch) % cfg.EpochsPerHistoricalVector
	s.RandaoMixes[index] = xorMix(s.RandaoMixes[index], block.Body.RandaoReveal)
	return nil
}

// xorMix implements the "xor-with-the-hash-of-the-reveal" step of
// get_randao_mix: mix_randao = current_mix XOR hash(randao_reveal).
func xorMix(current primitives.Bytes32, reveal primitives.BlsSignature) primitives.Bytes32 {
	h := crypto.Hash256(reveal[:])
	var out primitives.Bytes32
	for i := range out {
		out[i] = current[i] ^ h[i]
	}
	return out
}

// processEth1Data implements process_eth1_data: records the block's
// vote, and adopts it as state.eth1_data once the number of matching
// recorded votes exceeds half the slots of a voting period
// (EPOCHS_PER_ETH1_VOTING_PERIOD * SLOTS_PER_EPOCH).
func processEth1Data(s *containers.BeaconState, vote *containers.Eth1Data, cfg *params.SpecConfig) {
	s.Eth1DataVotes = append(s.Eth1DataVotes, *vote)

	votingPeriodSlots := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch
	count := uint64(0)
	for i := range s.Eth1DataVotes {
		if s.Eth1DataVotes[i] == *vote {
			count++
		}
	}
	if count*2 > votingPeriodSlots {
		s.Eth1Data = *vote
	}
}
