package containers

import "github.com/ethcore/beaconcore/primitives"

// Validator is one entry in BeaconState.Validators. FarFutureEpoch
// sentinels an unset activation_eligibility_epoch, activation_epoch,
// exit_epoch, or withdrawable_epoch (spec.md §3.2).
type Validator struct {
	Pubkey                     primitives.BlsPubkey `ssz-size:"48"`
	WithdrawalCredentials      primitives.Bytes32   `ssz-size:"32"`
	EffectiveBalance           primitives.Gwei
	Slashed                    bool
	ActivationEligibilityEpoch primitives.Epoch
	ActivationEpoch            primitives.Epoch
	ExitEpoch                  primitives.Epoch
	WithdrawableEpoch          primitives.Epoch
}

// IsActiveAt reports whether the validator is active at the given epoch.
func (v *Validator) IsActiveAt(epoch primitives.Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashableAt reports whether the validator can still be slashed at
// the given epoch (not already slashed, and not yet fully withdrawable).
func (v *Validator) IsSlashableAt(epoch primitives.Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// IsEligibleForActivationQueue reports whether the validator can enter
// the activation-eligibility queue.
func (v *Validator) IsEligibleForActivationQueue(maxEffectiveBalance primitives.Gwei) bool {
	return v.ActivationEligibilityEpoch == primitives.FarFutureEpoch && v.EffectiveBalance == maxEffectiveBalance
}
