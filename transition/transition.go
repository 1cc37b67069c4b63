// Package transition implements the phase-0 state-transition function:
// process_slots, process_block (and its header/randao/eth1_data/
// operations sub-steps), and process_epoch (spec.md §4.E). Every entry
// point takes an explicit *params.SpecConfig rather than reading global
// constants, and mutates the *containers.BeaconState it is given in
// place — callers that need the pre-state preserved must Clone it first
// (spec.md §4.C's read-view/mutable-copy split).
package transition

import (
	"github.com/ethcore/beaconcore/containers"
	sszerr "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// ProcessSlots implements process_slots: advances state.Slot one at a
// time until it equals targetSlot, caching each earlier slot's pre-advance
// state root into state_roots/block_roots and running ProcessEpoch at
// every epoch boundary crossed along the way (spec.md §4.E).
func ProcessSlots(s *containers.BeaconState, targetSlot primitives.Slot, cfg *params.SpecConfig) error {
	if targetSlot <= s.Slot {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: targetSlot, Reason: "target slot not after state slot"}
	}
	for s.Slot < targetSlot {
		if err := processSlot(s, cfg); err != nil {
			return err
		}
		s.Slot++
		if uint64(s.Slot)%cfg.SlotsPerEpoch == 0 {
			if err := ProcessEpoch(s, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// processSlot implements the per-slot caching step of process_slots:
// the pre-advance state root is written into state_roots, the pending
// latest_block_header is backfilled with it if still blank, and the
// resulting header's root is written into block_roots — the rotation
// that lets get_block_root(_at_slot) look back up to
// SLOTS_PER_HISTORICAL_ROOT slots (spec.md §3.2, §4.E).
func processSlot(s *containers.BeaconState, cfg *params.SpecConfig) error {
	stateRoot, err := ssz.HashTreeRoot(s)
	if err != nil {
		return err
	}
	s.StateRoots[uint64(s.Slot)%cfg.SlotsPerHistoricalRoot] = stateRoot

	if s.LatestBlockHeader.StateRoot.IsZero() {
		s.LatestBlockHeader.StateRoot = stateRoot
	}
	blockRoot, err := ssz.HashTreeRoot(&s.LatestBlockHeader)
	if err != nil {
		return err
	}
	s.BlockRoots[uint64(s.Slot)%cfg.SlotsPerHistoricalRoot] = blockRoot
	return nil
}

// Transition implements the top-level state_transition: advances pre up
// to the incoming block's slot (running any intervening epoch
// transitions), applies the block itself, and verifies the proposer's
// outer signature over it — the caller is responsible for checking the
// resulting state's hash-tree-root against block.StateRoot if it needs
// that determinism check enforced (spec.md §4.E, §9 determinism
// contract: "given the same pre-state and block, every conformant
// implementation produces bit-identical post-state").
func Transition(pre *containers.BeaconState, signed *containers.SignedBeaconBlock, cfg *params.SpecConfig, verifySig bool) (*containers.BeaconState, error) {
	post := pre.Clone()
	block := &signed.Message

	if err := ProcessSlots(post, block.Slot, cfg); err != nil {
		return nil, err
	}

	if verifySig {
		proposerIndex, err := GetBeaconProposerIndex(post, cfg)
		if err != nil {
			return nil, err
		}
		if uint64(proposerIndex) >= uint64(len(post.Validators)) {
			return nil, &sszerr.InvalidBlock{Kind: sszerr.InvalidHeader, Slot: block.Slot, Reason: "proposer index out of range"}
		}
		proposer := &post.Validators[proposerIndex]
		domain := containers.Domain(post, cfg.DomainBeaconProposer, post.CurrentEpoch(cfg.SlotsPerEpoch))
		if err := verifySignature(block, domain, proposer.Pubkey, signed.Signature, sszerr.SigBlock); err != nil {
			return nil, err
		}
	}

	if err := ProcessBlock(post, block, cfg); err != nil {
		return nil, err
	}
	return post, nil
}
