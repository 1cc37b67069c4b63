package transition

import (
	"encoding/binary"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	sszerr "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// processOperations runs every operation kind in a block body in the
// exact order spec.md §4.E requires, after first rejecting with an
// InvalidOperation error any body whose per-kind operation count exceeds
// its cap (deposits are capped by the outstanding eth1 deposit backlog).
func processOperations(s *containers.BeaconState, body *containers.BeaconBlockBody, cfg *params.SpecConfig) error {
	if uint64(len(body.ProposerSlashings)) > cfg.MaxProposerSlashings ||
		uint64(len(body.AttesterSlashings)) > cfg.MaxAttesterSlashings ||
		uint64(len(body.Attestations)) > cfg.MaxAttestations ||
		uint64(len(body.VoluntaryExits)) > cfg.MaxVoluntaryExits {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "caps", Reason: "operation list exceeds cap"}
	}
	maxDeposits := maxDepositsForBlock(s, cfg)
	if uint64(len(body.Deposits)) > maxDeposits {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "deposit", Reason: "deposit count exceeds eth1 backlog"}
	}

	for i := range body.ProposerSlashings {
		if err := processProposerSlashing(s, &body.ProposerSlashings[i], cfg); err != nil {
			return err
		}
	}
	for i := range body.AttesterSlashings {
		if err := processAttesterSlashing(s, &body.AttesterSlashings[i], cfg); err != nil {
			return err
		}
	}
	for i := range body.Attestations {
		if err := processAttestation(s, &body.Attestations[i], cfg); err != nil {
			return err
		}
	}
	for i := range body.Deposits {
		if err := ProcessDeposit(s, &body.Deposits[i], cfg); err != nil {
			return err
		}
	}
	for i := range body.VoluntaryExits {
		if err := processVoluntaryExit(s, &body.VoluntaryExits[i], cfg); err != nil {
			return err
		}
	}
	return nil
}

// maxDepositsForBlock implements spec.md §4.E's
// MAX_DEPOSITS = min(MAX_DEPOSITS_CAP, eth1.deposit_count - state.eth1_deposit_index).
func maxDepositsForBlock(s *containers.BeaconState, cfg *params.SpecConfig) uint64 {
	backlog := uint64(0)
	if s.Eth1Data.DepositCount > s.Eth1DepositIndex {
		backlog = s.Eth1Data.DepositCount - s.Eth1DepositIndex
	}
	if backlog < cfg.MaxDepositsPerBlock {
		return backlog
	}
	return cfg.MaxDepositsPerBlock
}

// processProposerSlashing implements process_proposer_slashing: two
// headers for the same slot and proposer but different roots, both
// validly signed, slash the proposer (spec.md §4.E).
func processProposerSlashing(s *containers.BeaconState, ps *containers.ProposerSlashing, cfg *params.SpecConfig) error {
	h1, h2 := &ps.SignedHeader1.Message, &ps.SignedHeader2.Message
	if h1.Slot != h2.Slot {
		return invalidOp("proposer_slashing", "headers for different slots")
	}
	if h1.ProposerIndex != h2.ProposerIndex {
		return invalidOp("proposer_slashing", "headers for different proposers")
	}
	root1, err := ssz.HashTreeRoot(h1)
	if err != nil {
		return err
	}
	root2, err := ssz.HashTreeRoot(h2)
	if err != nil {
		return err
	}
	if root1 == root2 {
		return invalidOp("proposer_slashing", "headers are identical")
	}
	if uint64(h1.ProposerIndex) >= uint64(len(s.Validators)) {
		return invalidOp("proposer_slashing", "proposer index out of range")
	}
	proposer := &s.Validators[h1.ProposerIndex]
	if !proposer.IsSlashableAt(s.CurrentEpoch(cfg.SlotsPerEpoch)) {
		return invalidOp("proposer_slashing", "proposer not slashable")
	}

	epoch := primitives.Epoch(uint64(h1.Slot) / cfg.SlotsPerEpoch)
	domain := containers.Domain(s, cfg.DomainBeaconProposer, epoch)
	if err := verifySignature(h1, domain, proposer.Pubkey, ps.SignedHeader1.Signature, sszerr.SigProposerSlashing); err != nil {
		return err
	}
	if err := verifySignature(h2, domain, proposer.Pubkey, ps.SignedHeader2.Signature, sszerr.SigProposerSlashing); err != nil {
		return err
	}

	return slashValidator(s, h1.ProposerIndex, nil, cfg)
}

// processAttesterSlashing implements process_attester_slashing: either
// a double-vote or surround-vote pair of IndexedAttestations, both
// independently valid, slashes every validator in the sorted
// intersection of their attesting indices (spec.md §4.E, §8 scenario 3).
func processAttesterSlashing(s *containers.BeaconState, as *containers.AttesterSlashing, cfg *params.SpecConfig) error {
	a1, a2 := &as.Attestation1, &as.Attestation2
	if !isSlashableAttestationData(&a1.Data, &a2.Data) {
		return invalidOp("attester_slashing", "attestations are not slashable")
	}
	if err := validateIndexedAttestation(s, a1, cfg); err != nil {
		return err
	}
	if err := validateIndexedAttestation(s, a2, cfg); err != nil {
		return err
	}

	intersection := intersectSortedIndices(a1.AttestingIndices, a2.AttestingIndices)
	slashedAny := false
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	for _, idx := range intersection {
		if uint64(idx) >= uint64(len(s.Validators)) {
			continue
		}
		if s.Validators[idx].IsSlashableAt(currentEpoch) {
			if err := slashValidator(s, idx, nil, cfg); err != nil {
				return err
			}
			slashedAny = true
		}
	}
	if !slashedAny {
		return invalidOp("attester_slashing", "no slashable validator in intersection")
	}
	return nil
}

// isSlashableAttestationData implements is_slashable_attestation_data:
// true for a double vote (same target epoch, different data) or a
// surround vote (one attestation's source/target strictly surrounds
// the other's).
func isSlashableAttestationData(d1, d2 *containers.AttestationData) bool {
	doubleVote := d1.Target.Epoch == d2.Target.Epoch && !attestationDataEqual(d1, d2)
	surroundVote := d1.Source.Epoch < d2.Source.Epoch && d2.Target.Epoch < d1.Target.Epoch ||
		d2.Source.Epoch < d1.Source.Epoch && d1.Target.Epoch < d2.Target.Epoch
	return doubleVote || surroundVote
}

func attestationDataEqual(d1, d2 *containers.AttestationData) bool {
	r1, _ := ssz.HashTreeRoot(d1)
	r2, _ := ssz.HashTreeRoot(d2)
	return r1 == r2
}

func intersectSortedIndices(a, b []primitives.ValidatorIndex) []primitives.ValidatorIndex {
	var out []primitives.ValidatorIndex
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// processAttestation implements process_attestation: validates the
// target epoch, inclusion delay, and FFG source against the state, then
// buffers a PendingAttestation for reward accounting at the next epoch
// boundary (spec.md §4.E).
func processAttestation(s *containers.BeaconState, att *containers.Attestation, cfg *params.SpecConfig) error {
	data := att.Data
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)
	previousEpoch := s.PreviousEpoch(cfg.SlotsPerEpoch)

	if data.Target.Epoch != currentEpoch && data.Target.Epoch != previousEpoch {
		return invalidOp("attestation", "target epoch not current or previous")
	}
	if data.Target.Epoch != primitives.Epoch(uint64(data.Slot)/cfg.SlotsPerEpoch) {
		return invalidOp("attestation", "target epoch does not match slot")
	}
	if data.Slot+primitives.Slot(cfg.MinAttestationInclusionDelay) > s.Slot {
		return invalidOp("attestation", "inclusion delay not satisfied")
	}
	if s.Slot > uint64AddSlot(data.Slot, cfg.SlotsPerEpoch) {
		return invalidOp("attestation", "attestation too old")
	}

	var expectedSource containers.Checkpoint
	if data.Target.Epoch == currentEpoch {
		expectedSource = s.CurrentJustifiedCheckpoint
	} else {
		expectedSource = s.PreviousJustifiedCheckpoint
	}
	if data.Source.Epoch != expectedSource.Epoch || data.Source.Root != expectedSource.Root {
		return invalidOp("attestation", "FFG source mismatch")
	}

	indexed, err := GetIndexedAttestation(s, att, cfg)
	if err != nil {
		return invalidOp("attestation", err.Error())
	}
	if err := validateIndexedAttestation(s, indexed, cfg); err != nil {
		return err
	}

	proposerIndex, err := GetBeaconProposerIndex(s, cfg)
	if err != nil {
		return err
	}
	pending := containers.PendingAttestation{
		AggregationBits: att.AggregationBits,
		Data:            data,
		InclusionDelay:  s.Slot - data.Slot,
		ProposerIndex:   proposerIndex,
	}
	if data.Target.Epoch == currentEpoch {
		s.CurrentEpochAttestations = append(s.CurrentEpochAttestations, pending)
	} else {
		s.PreviousEpochAttestations = append(s.PreviousEpochAttestations, pending)
	}
	return nil
}

func uint64AddSlot(slot primitives.Slot, n uint64) primitives.Slot {
	v, err := slot.Add(n)
	if err != nil {
		return primitives.Slot(^uint64(0))
	}
	return v
}

// ProcessDeposit implements process_deposit: verifies Merkle inclusion
// against eth1_data.deposit_root, then either tops up a known
// validator's balance or activates a new one — an invalid deposit
// signature is silently skipped rather than rejecting the block
// (spec.md §4.E, §8 scenario 2). Exported because genesis construction
// invokes the exact same operation directly, outside of process_block.
func ProcessDeposit(s *containers.BeaconState, dep *containers.Deposit, cfg *params.SpecConfig) error {
	if err := verifyDepositMerkleProof(s, dep, cfg); err != nil {
		return err
	}
	s.Eth1DepositIndex++

	pubkey := dep.Data.Pubkey
	existingIndex := -1
	for i := range s.Validators {
		if s.Validators[i].Pubkey == pubkey {
			existingIndex = i
			break
		}
	}

	if existingIndex >= 0 {
		increaseBalance(s, primitives.ValidatorIndex(existingIndex), dep.Data.Amount)
		return nil
	}

	domain := containers.FixedDepositDomain(cfg, s.GenesisValidatorsRoot)
	depositMessage := struct {
		Pubkey                primitives.BlsPubkey `ssz-size:"48"`
		WithdrawalCredentials primitives.Bytes32   `ssz-size:"32"`
		Amount                primitives.Gwei
	}{dep.Data.Pubkey, dep.Data.WithdrawalCredentials, dep.Data.Amount}

	if err := verifySignature(&depositMessage, domain, dep.Data.Pubkey, dep.Data.Signature, sszerr.SigDeposit); err != nil {
		return nil // silently skipped per spec.md §4.E Deposit operation
	}

	s.Validators = append(s.Validators, containers.Validator{
		Pubkey:                     dep.Data.Pubkey,
		WithdrawalCredentials:      dep.Data.WithdrawalCredentials,
		EffectiveBalance:           effectiveBalanceFor(dep.Data.Amount, cfg),
		ActivationEligibilityEpoch: primitives.FarFutureEpoch,
		ActivationEpoch:            primitives.FarFutureEpoch,
		ExitEpoch:                  primitives.FarFutureEpoch,
		WithdrawableEpoch:          primitives.FarFutureEpoch,
	})
	s.Balances = append(s.Balances, dep.Data.Amount)
	return nil
}

func effectiveBalanceFor(amount primitives.Gwei, cfg *params.SpecConfig) primitives.Gwei {
	increment := primitives.Gwei(cfg.EffectiveBalanceIncrement)
	eb := amount - amount%increment
	if eb > primitives.Gwei(cfg.MaxEffectiveBalance) {
		eb = primitives.Gwei(cfg.MaxEffectiveBalance)
	}
	return eb
}

// verifyDepositMerkleProof checks dep.Proof against
// state.eth1_data.deposit_root at index state.eth1_deposit_index, per
// the incremental-Merkle-tree layout of the (out-of-scope, per
// spec.md §9) deposit contract.
func verifyDepositMerkleProof(s *containers.BeaconState, dep *containers.Deposit, cfg *params.SpecConfig) error {
	leaf, err := ssz.HashTreeRoot(&dep.Data)
	if err != nil {
		return err
	}
	node := leaf
	index := s.Eth1DepositIndex
	for i := uint64(0); i < cfg.DepositContractTreeDepth; i++ {
		var sibling primitives.Bytes32
		copy(sibling[:], dep.Proof[i][:])
		if (index>>i)&1 == 1 {
			node = crypto.HashConcat(sibling, node)
		} else {
			node = crypto.HashConcat(node, sibling)
		}
	}
	var countChunk primitives.Bytes32
	binary.LittleEndian.PutUint64(countChunk[:8], s.Eth1Data.DepositCount)
	node = crypto.HashConcat(node, countChunk)

	if node != s.Eth1Data.DepositRoot {
		return invalidOp("deposit", "merkle proof does not match deposit root")
	}
	return nil
}

// processVoluntaryExit implements process_voluntary_exit: a still-active
// validator that has waited PERSISTENT_COMMITTEE_PERIOD since activation
// and signs its own exit epoch initiates its exit (spec.md §4.E).
func processVoluntaryExit(s *containers.BeaconState, sve *containers.SignedVoluntaryExit, cfg *params.SpecConfig) error {
	exit := sve.Message
	if uint64(exit.ValidatorIndex) >= uint64(len(s.Validators)) {
		return invalidOp("voluntary_exit", "validator index out of range")
	}
	v := &s.Validators[exit.ValidatorIndex]
	currentEpoch := s.CurrentEpoch(cfg.SlotsPerEpoch)

	if !v.IsActiveAt(currentEpoch) {
		return invalidOp("voluntary_exit", "validator not active")
	}
	if v.ExitEpoch != primitives.FarFutureEpoch {
		return invalidOp("voluntary_exit", "validator already exiting")
	}
	if currentEpoch < exit.Epoch {
		return invalidOp("voluntary_exit", "exit epoch is in the future")
	}
	if currentEpoch < v.ActivationEpoch+primitives.Epoch(cfg.PersistentCommitteePeriod) {
		return invalidOp("voluntary_exit", "persistent committee period not elapsed")
	}

	domain := containers.Domain(s, cfg.DomainVoluntaryExit, exit.Epoch)
	if err := verifySignature(&exit, domain, v.Pubkey, sve.Signature, sszerr.SigExit); err != nil {
		return err
	}

	initiateValidatorExit(s, exit.ValidatorIndex, cfg)
	return nil
}

func invalidOp(kind, reason string) error {
	return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: kind, Reason: reason}
}
