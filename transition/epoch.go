package transition

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// ProcessEpoch implements process_epoch: the five-step epoch transition
// run whenever state.Slot crosses an epoch boundary (spec.md §4.E).
// Each sub-step mutates s in place and must run in this exact order —
// later steps (slashings, effective-balance update) depend on the
// justified/finalized checkpoints and reward deltas computed earlier.
func ProcessEpoch(s *containers.BeaconState, cfg *params.SpecConfig) error {
	processJustificationAndFinalization(s, cfg)
	if err := processRewardsAndPenalties(s, cfg); err != nil {
		return err
	}
	processRegistryUpdates(s, cfg)
	processSlashings(s, cfg)
	processFinalUpdates(s, cfg)
	return nil
}

// pendingAttestingIndices resolves a buffered PendingAttestation's
// aggregation_bits against the committee for its (slot, index) —
// committees are a pure function of the current validator registry and
// epoch seed, so this is safe to recompute against s even though pa was
// recorded against an earlier state (spec.md §4.E get_attesting_indices).
func pendingAttestingIndices(s *containers.BeaconState, pa *containers.PendingAttestation, cfg *params.SpecConfig) []primitives.ValidatorIndex {
	committee := beaconCommittee(s, pa.Data.Slot, pa.Data.Index, cfg)
	var out []primitives.ValidatorIndex
	for i, idx := range committee {
		if uint64(i) < pa.AggregationBits.Len() && pa.AggregationBits.BitAt(uint64(i)) {
			out = append(out, idx)
		}
	}
	return out
}

// totalBalanceForIndices implements get_total_balance: the sum of
// effective balances over an arbitrary index set, floored at one
// increment so reward/penalty fractions never divide by zero.
func totalBalanceForIndices(s *containers.BeaconState, indices []primitives.ValidatorIndex, cfg *params.SpecConfig) primitives.Gwei {
	var total primitives.Gwei
	for _, idx := range indices {
		total += s.Validators[idx].EffectiveBalance
	}
	increment := primitives.Gwei(cfg.EffectiveBalanceIncrement)
	if total < increment {
		return increment
	}
	return total
}

// processJustificationAndFinalization implements
// process_justification_and_finalization: rolls the 4-bit justification
// bitfield, justifies the previous/current epoch when 2/3 of active
// balance attests to it, and finalizes whichever checkpoint the bit
// pattern + epoch distance allow (spec.md §3.4/§4.E, the phase-0
// Casper-FFG finality rule).
func processJustificationAndFinalization(s *containers.BeaconState, cfg *params.SpecConfig) {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	if currentEpoch <= 1 {
		return
	}
	previousEpoch := s.PreviousEpoch(cfg.SlotsPerEpoch)

	oldPreviousJustified := s.PreviousJustifiedCheckpoint
	oldCurrentJustified := s.CurrentJustifiedCheckpoint

	s.PreviousJustifiedCheckpoint = s.CurrentJustifiedCheckpoint
	bits := s.JustificationBits[0]
	bits = (bits << 1) & 0x0f
	s.JustificationBits[0] = bits

	// get_total_active_balance uses the current epoch's active set for
	// both the previous- and current-epoch target comparisons below —
	// using the previous epoch's active set instead would under/over-count
	// the 2/3 threshold whenever the registry churns across the boundary.
	totalActive := s.TotalActiveBalance(currentEpoch, primitives.Gwei(cfg.EffectiveBalanceIncrement))

	previousTargetBalance := matchingTargetBalance(s, previousEpoch, cfg)
	if previousTargetBalance*3 >= totalActive*2 {
		s.CurrentJustifiedCheckpoint = containers.Checkpoint{Epoch: previousEpoch, Root: getBlockRoot(s, previousEpoch, cfg)}
		s.JustificationBits[0] |= 0b010
	}

	currentTargetBalance := matchingTargetBalance(s, currentEpoch, cfg)
	if currentTargetBalance*3 >= totalActive*2 {
		s.CurrentJustifiedCheckpoint = containers.Checkpoint{Epoch: currentEpoch, Root: getBlockRoot(s, currentEpoch, cfg)}
		s.JustificationBits[0] |= 0b001
	}

	b := s.JustificationBits[0]
	bitSet := func(n uint) bool { return b&(1<<n) != 0 }

	if bitSet(1) && bitSet(2) && bitSet(3) && oldPreviousJustified.Epoch+3 == currentEpoch {
		s.FinalizedCheckpoint = oldPreviousJustified
	}
	if bitSet(1) && bitSet(2) && oldPreviousJustified.Epoch+2 == currentEpoch {
		s.FinalizedCheckpoint = oldPreviousJustified
	}
	if bitSet(0) && bitSet(1) && bitSet(2) && oldCurrentJustified.Epoch+2 == currentEpoch {
		s.FinalizedCheckpoint = oldCurrentJustified
	}
	if bitSet(0) && bitSet(1) && oldCurrentJustified.Epoch+1 == currentEpoch {
		s.FinalizedCheckpoint = oldCurrentJustified
	}
}

// matchingTargetBalance sums effective balance over the unslashed
// validators whose previous/current-epoch attestation(s) name epoch's
// start-slot block root as target (get_matching_target_attestations +
// get_attesting_balance, fused into one pass per SPEC_FULL.md's
// single-precomputation rewards design).
func matchingTargetBalance(s *containers.BeaconState, epoch primitives.Epoch, cfg *params.SpecConfig) primitives.Gwei {
	atts := s.PreviousEpochAttestations
	if epoch == s.CurrentEpoch(cfg.SlotsPerEpoch) {
		atts = s.CurrentEpochAttestations
	}
	targetRoot := getBlockRoot(s, epoch, cfg)

	seen := make(map[primitives.ValidatorIndex]bool)
	var indices []primitives.ValidatorIndex
	for i := range atts {
		pa := &atts[i]
		if pa.Data.Target.Root != targetRoot {
			continue
		}
		for _, idx := range pendingAttestingIndices(s, pa, cfg) {
			if s.Validators[idx].Slashed || seen[idx] {
				continue
			}
			seen[idx] = true
			indices = append(indices, idx)
		}
	}
	return totalBalanceForIndices(s, indices, cfg)
}

// attestationStatus is the single per-validator precomputation that
// drives processRewardsAndPenalties — one pass over the epoch's
// buffered attestations rather than the three independent
// get_matching_*_attestations scans the literal spec text describes
// (SPEC_FULL.md's rewards-and-penalties note).
type attestationStatus struct {
	eligible              bool
	matchingSource         bool
	matchingTarget         bool
	matchingHead           bool
	sourceInclusionDelay  primitives.Slot
	sourceProposerIndex   primitives.ValidatorIndex
	hasSourceInclusion    bool
}

// processRewardsAndPenalties implements get_attestation_deltas applied
// directly to balances: base rewards scaled by source/target/head
// participation, an inclusion-delay reward split with the including
// proposer, and an inactivity leak penalty once finality stalls
// (spec.md §4.E; no penalty/reward step runs for the genesis epoch).
func processRewardsAndPenalties(s *containers.BeaconState, cfg *params.SpecConfig) error {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	if currentEpoch <= 1 {
		return nil
	}
	previousEpoch := s.PreviousEpoch(cfg.SlotsPerEpoch)
	totalBalance := s.TotalActiveBalance(previousEpoch, primitives.Gwei(cfg.EffectiveBalanceIncrement))
	increment := primitives.Gwei(cfg.EffectiveBalanceIncrement)
	finalityDelay := uint64(previousEpoch) - uint64(s.FinalizedCheckpoint.Epoch)
	inLeak := finalityDelay > cfg.MinEpochsToInactivityPenalty

	statuses := make([]attestationStatus, len(s.Validators))
	for i := range s.Validators {
		v := &s.Validators[i]
		statuses[i].eligible = v.IsActiveAt(previousEpoch) || (v.Slashed && uint64(previousEpoch)+1 < uint64(v.WithdrawableEpoch))
	}

	sourceRoot := s.PreviousJustifiedCheckpoint.Root
	targetRoot := getBlockRoot(s, previousEpoch, cfg)
	for i := range s.PreviousEpochAttestations {
		pa := &s.PreviousEpochAttestations[i]
		matchesSource := pa.Data.Source.Root == sourceRoot && pa.Data.Source.Epoch == s.PreviousJustifiedCheckpoint.Epoch
		matchesTarget := pa.Data.Target.Root == targetRoot
		matchesHead := pa.Data.BeaconBlockRoot == getBlockRootAtSlot(s, pa.Data.Slot, cfg)

		for _, idx := range pendingAttestingIndices(s, pa, cfg) {
			st := &statuses[idx]
			if matchesSource {
				st.matchingSource = true
				if !st.hasSourceInclusion || pa.InclusionDelay < st.sourceInclusionDelay {
					st.hasSourceInclusion = true
					st.sourceInclusionDelay = pa.InclusionDelay
					st.sourceProposerIndex = pa.ProposerIndex
				}
			}
			if matchesTarget {
				st.matchingTarget = true
			}
			if matchesHead {
				st.matchingHead = true
			}
		}
	}

	baseReward := func(idx primitives.ValidatorIndex) primitives.Gwei {
		eb := s.Validators[idx].EffectiveBalance
		return primitives.Gwei(uint64(eb) * cfg.BaseRewardFactor / integerSqrt(uint64(totalBalance)) / cfg.BaseRewardsPerEpoch)
	}

	sourceBalance, targetBalance, headBalance := primitives.Gwei(0), primitives.Gwei(0), primitives.Gwei(0)
	for i := range statuses {
		if !statuses[i].eligible {
			continue
		}
		idx := primitives.ValidatorIndex(i)
		if statuses[i].matchingSource {
			sourceBalance += s.Validators[idx].EffectiveBalance
		}
		if statuses[i].matchingTarget {
			targetBalance += s.Validators[idx].EffectiveBalance
		}
		if statuses[i].matchingHead {
			headBalance += s.Validators[idx].EffectiveBalance
		}
	}
	if sourceBalance < increment {
		sourceBalance = increment
	}
	if targetBalance < increment {
		targetBalance = increment
	}
	if headBalance < increment {
		headBalance = increment
	}

	for i := range statuses {
		if !statuses[i].eligible {
			continue
		}
		idx := primitives.ValidatorIndex(i)
		br := baseReward(idx)

		applyDelta := func(matched bool, matchedBalance primitives.Gwei) {
			if matched {
				if inLeak {
					increaseBalance(s, idx, br)
				} else {
					num := uint64(br) * (uint64(matchedBalance) / uint64(increment))
					increaseBalance(s, idx, primitives.Gwei(num/(uint64(totalBalance)/uint64(increment))))
				}
			} else {
				decreaseBalance(s, idx, br)
			}
		}
		applyDelta(statuses[i].matchingSource, sourceBalance)
		applyDelta(statuses[i].matchingTarget, targetBalance)
		applyDelta(statuses[i].matchingHead, headBalance)

		if statuses[i].matchingSource && statuses[i].hasSourceInclusion {
			proposerReward := br / primitives.Gwei(cfg.ProposerRewardQuotient)
			increaseBalance(s, statuses[i].sourceProposerIndex, proposerReward)
			maxAttesterReward := br - proposerReward
			delay := uint64(statuses[i].sourceInclusionDelay)
			if delay == 0 {
				delay = 1
			}
			increaseBalance(s, idx, maxAttesterReward/primitives.Gwei(delay))
		}

		if inLeak {
			decreaseBalance(s, idx, primitives.Gwei(cfg.BaseRewardsPerEpoch)*br)
			if !statuses[i].matchingTarget {
				eb := s.Validators[idx].EffectiveBalance
				decreaseBalance(s, idx, eb*primitives.Gwei(finalityDelay)/primitives.Gwei(cfg.InactivityPenaltyQuotient))
			}
		}
	}
	return nil
}

// processRegistryUpdates implements process_registry_updates: advances
// eligible validators into the activation queue, then activates queued
// validators up to the epoch's churn limit, and ejects any active
// validator whose balance has fallen to or below EJECTION_BALANCE
// (spec.md §4.E).
func processRegistryUpdates(s *containers.BeaconState, cfg *params.SpecConfig) {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)

	for i := range s.Validators {
		v := &s.Validators[i]
		if v.IsEligibleForActivationQueue(primitives.Gwei(cfg.MaxEffectiveBalance)) {
			v.ActivationEligibilityEpoch = currentEpoch + 1
		}
		if v.IsActiveAt(currentEpoch) && v.EffectiveBalance <= primitives.Gwei(cfg.EjectionBalance) {
			initiateValidatorExit(s, primitives.ValidatorIndex(i), cfg)
		}
	}

	activationExitEpoch := computeActivationExitEpoch(currentEpoch, cfg)
	var queue []int
	for i := range s.Validators {
		v := &s.Validators[i]
		if v.ActivationEligibilityEpoch <= s.FinalizedCheckpoint.Epoch && v.ActivationEpoch == primitives.FarFutureEpoch {
			queue = append(queue, i)
		}
	}
	sortByEligibilityThenIndex(s, queue)

	activeCount := uint64(len(s.ActiveValidatorIndices(currentEpoch)))
	limit := validatorChurnLimit(activeCount, cfg)
	if uint64(len(queue)) < limit {
		limit = uint64(len(queue))
	}
	for _, i := range queue[:limit] {
		s.Validators[i].ActivationEpoch = activationExitEpoch
	}
}

func sortByEligibilityThenIndex(s *containers.BeaconState, queue []int) {
	for i := 1; i < len(queue); i++ {
		for j := i; j > 0; j-- {
			a, b := queue[j-1], queue[j]
			if s.Validators[a].ActivationEligibilityEpoch > s.Validators[b].ActivationEligibilityEpoch ||
				(s.Validators[a].ActivationEligibilityEpoch == s.Validators[b].ActivationEligibilityEpoch && a > b) {
				queue[j-1], queue[j] = queue[j], queue[j-1]
			}
		}
	}
}

// processSlashings implements process_slashings: applies a
// correlation-weighted penalty to every still-slashed validator whose
// slashing epoch lies within the current slashing window, on top of the
// immediate minimum penalty slash_validator already charged.
func processSlashings(s *containers.BeaconState, cfg *params.SpecConfig) {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	totalBalance := s.TotalActiveBalance(currentEpoch, primitives.Gwei(cfg.EffectiveBalanceIncrement))

	var slashingsSum primitives.Gwei
	for _, v := range s.Slashings {
		slashingsSum += v
	}
	adjusted := slashingsSum * 3
	if adjusted > totalBalance {
		adjusted = totalBalance
	}

	halfWindow := primitives.Epoch(cfg.EpochsPerSlashingsVector / 2)
	for i := range s.Validators {
		v := &s.Validators[i]
		if v.Slashed && currentEpoch+halfWindow == v.WithdrawableEpoch {
			increment := primitives.Gwei(cfg.EffectiveBalanceIncrement)
			penaltyNumerator := v.EffectiveBalance / increment * adjusted
			penalty := penaltyNumerator / totalBalance * increment
			decreaseBalance(s, primitives.ValidatorIndex(i), penalty)
		}
	}
}

// processFinalUpdates implements process_final_updates: the end-of-epoch
// bookkeeping that resets the eth1 voting window, rotates the
// effective-balance hysteresis, and rolls the historical-roots and
// per-epoch-attestation buffers forward (spec.md §4.E).
func processFinalUpdates(s *containers.BeaconState, cfg *params.SpecConfig) {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	nextEpoch := currentEpoch + 1

	if uint64(nextEpoch)%cfg.EpochsPerEth1VotingPeriod == 0 {
		s.Eth1DataVotes = nil
	}

	processEffectiveBalanceUpdates(s, cfg)

	s.Slashings[uint64(nextEpoch)%cfg.EpochsPerSlashingsVector] = 0

	randaoIndex := uint64(nextEpoch) % cfg.EpochsPerHistoricalVector
	mixIndex := uint64(currentEpoch) % cfg.EpochsPerHistoricalVector
	s.RandaoMixes[randaoIndex] = s.RandaoMixes[mixIndex]

	if uint64(nextEpoch)%(cfg.SlotsPerHistoricalRoot/cfg.SlotsPerEpoch) == 0 {
		root := historicalBatchRoot(s)
		s.HistoricalRoots = append(s.HistoricalRoots, root)
	}

	s.PreviousEpochAttestations = s.CurrentEpochAttestations
	s.CurrentEpochAttestations = nil
}

// processEffectiveBalanceUpdates implements the effective-balance update
// sub-step of process_final_updates: recomputes each validator's
// effective_balance from its real balance with hysteresis, so a small
// balance jitter near a quantization boundary doesn't flip it back and
// forth every epoch.
func processEffectiveBalanceUpdates(s *containers.BeaconState, cfg *params.SpecConfig) {
	const hysteresisQuotient = 4
	const hysteresisDownwardMultiplier = 1
	const hysteresisUpwardMultiplier = 5
	increment := primitives.Gwei(cfg.EffectiveBalanceIncrement)
	halfIncrement := increment / hysteresisQuotient

	for i := range s.Validators {
		v := &s.Validators[i]
		balance := s.Balances[i]
		if balance+halfIncrement*hysteresisDownwardMultiplier < v.EffectiveBalance ||
			v.EffectiveBalance+halfIncrement*hysteresisUpwardMultiplier < balance {
			newEB := balance - balance%increment
			if newEB > primitives.Gwei(cfg.MaxEffectiveBalance) {
				newEB = primitives.Gwei(cfg.MaxEffectiveBalance)
			}
			v.EffectiveBalance = newEB
		}
	}
}

// historicalBatch mirrors the two rolling vectors of BeaconState for the
// sole purpose of computing their combined hash-tree-root the same way
// BeaconState itself would (spec.md's HistoricalBatch container).
type historicalBatch struct {
	BlockRoots []primitives.Bytes32 `ssz-size:"8192,32"`
	StateRoots []primitives.Bytes32 `ssz-size:"8192,32"`
}

// historicalBatchRoot implements the HistoricalBatch commitment appended
// to state.historical_roots once every SLOTS_PER_HISTORICAL_ROOT slots.
func historicalBatchRoot(s *containers.BeaconState) primitives.Bytes32 {
	root, err := ssz.HashTreeRoot(&historicalBatch{BlockRoots: s.BlockRoots, StateRoots: s.StateRoots})
	if err != nil {
		return primitives.Bytes32{}
	}
	return root
}
