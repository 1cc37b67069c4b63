package transition

import (
	"sort"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

// computeActivationExitEpoch implements compute_activation_exit_epoch:
// the earliest epoch a newly-queued validator may activate, or an
// exiting validator may leave, after MAX_SEED_LOOKAHEAD epochs of
// randao unpredictability.
func computeActivationExitEpoch(epoch primitives.Epoch, cfg *params.SpecConfig) primitives.Epoch {
	return epoch + 1 + primitives.Epoch(cfg.MaxSeedLookahead)
}

// validatorChurnLimit implements get_validator_churn_limit: the number
// of validators that may activate or exit in a single epoch, bounded
// below by MIN_PER_EPOCH_CHURN_LIMIT.
func validatorChurnLimit(activeCount uint64, cfg *params.SpecConfig) uint64 {
	limit := activeCount / cfg.ChurnLimitQuotient
	if limit < cfg.MinPerEpochChurnLimit {
		return cfg.MinPerEpochChurnLimit
	}
	return limit
}

// initiateValidatorExit implements initiate_validator_exit: assigns
// the validator the earliest churn-limited exit epoch at or after
// every other already-exiting validator's exit epoch, and its
// withdrawable epoch MIN_VALIDATOR_WITHDRAWABILITY_DELAY after that.
func initiateValidatorExit(s *containers.BeaconState, index primitives.ValidatorIndex, cfg *params.SpecConfig) {
	v := &s.Validators[index]
	if v.ExitEpoch != primitives.FarFutureEpoch {
		return
	}

	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	exitEpochs := []primitives.Epoch{computeActivationExitEpoch(currentEpoch, cfg)}
	for i := range s.Validators {
		if s.Validators[i].ExitEpoch != primitives.FarFutureEpoch {
			exitEpochs = append(exitEpochs, s.Validators[i].ExitEpoch)
		}
	}
	sort.Slice(exitEpochs, func(i, j int) bool { return exitEpochs[i] < exitEpochs[j] })
	exitQueueEpoch := exitEpochs[len(exitEpochs)-1]

	exitQueueChurn := uint64(0)
	for i := range s.Validators {
		if s.Validators[i].ExitEpoch == exitQueueEpoch {
			exitQueueChurn++
		}
	}
	activeCount := uint64(len(s.ActiveValidatorIndices(currentEpoch)))
	if exitQueueChurn >= validatorChurnLimit(activeCount, cfg) {
		exitQueueEpoch++
	}

	v.ExitEpoch = exitQueueEpoch
	v.WithdrawableEpoch = exitQueueEpoch + primitives.Epoch(cfg.MinValidatorWithdrawabilityDelay)
}

// slashValidator implements slash_validator: marks the validator
// slashed, applies the immediate minimum slashing penalty, initiates
// its exit, and rewards the whistleblower (proposer when none is named
// separately) per spec.md §8 scenario 3.
func slashValidator(s *containers.BeaconState, slashedIndex primitives.ValidatorIndex, whistleblowerIndex *primitives.ValidatorIndex, cfg *params.SpecConfig) error {
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	initiateValidatorExit(s, slashedIndex, cfg)

	v := &s.Validators[slashedIndex]
	v.Slashed = true
	v.WithdrawableEpoch = maxEpoch(v.WithdrawableEpoch, currentEpoch+primitives.Epoch(cfg.EpochsPerSlashingsVector))

	slashingsIndex := uint64(currentEpoch) % cfg.EpochsPerSlashingsVector
	s.Slashings[slashingsIndex] += v.EffectiveBalance

	decreaseBalance(s, slashedIndex, v.EffectiveBalance/primitives.Gwei(cfg.MinSlashingPenaltyQuotient))

	proposerIndex, err := GetBeaconProposerIndex(s, cfg)
	if err != nil {
		return err
	}
	whistleblower := proposerIndex
	if whistleblowerIndex != nil {
		whistleblower = *whistleblowerIndex
	}

	whistleblowerReward := v.EffectiveBalance / primitives.Gwei(cfg.WhistleblowerRewardQuotient)
	proposerReward := whistleblowerReward / primitives.Gwei(cfg.ProposerRewardQuotient)
	increaseBalance(s, proposerIndex, proposerReward)
	increaseBalance(s, whistleblower, whistleblowerReward-proposerReward)
	return nil
}

func maxEpoch(a, b primitives.Epoch) primitives.Epoch {
	if a > b {
		return a
	}
	return b
}
