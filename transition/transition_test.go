package transition

import (
	"encoding/binary"
	"testing"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/crypto/bls"
	sszerr "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// localSecretKey mirrors genesis.DeterministicSecretKey's derivation
// (transition cannot import genesis: genesis imports transition for
// ProcessDeposit, and Go forbids the cycle).
func localSecretKey(index uint64) *bls.SecretKey {
	var buf [40]byte
	copy(buf[:8], []byte("bcinterp"))
	binary.LittleEndian.PutUint64(buf[32:], index)
	seed := crypto.Hash256(buf[:])
	return bls.SecretKeyFromBytes([32]byte(seed))
}

// buildState constructs a minimal, fully active validator set with real
// BLS keys and correctly sized history vectors, the way genesis.BeaconState
// does, without depending on the genesis package.
func buildState(cfg *params.SpecConfig, n uint64) (*containers.BeaconState, []*bls.SecretKey) {
	keys := make([]*bls.SecretKey, n)
	validators := make([]containers.Validator, n)
	balances := make([]primitives.Gwei, n)
	for i := uint64(0); i < n; i++ {
		sk := localSecretKey(i)
		keys[i] = sk
		var pub primitives.BlsPubkey
		copy(pub[:], sk.PublicKey().Bytes())
		validators[i] = containers.Validator{
			Pubkey:                     pub,
			EffectiveBalance:           primitives.Gwei(cfg.MaxEffectiveBalance),
			ActivationEligibilityEpoch: 0,
			ActivationEpoch:            0,
			ExitEpoch:                  primitives.FarFutureEpoch,
			WithdrawableEpoch:          primitives.FarFutureEpoch,
		}
		balances[i] = primitives.Gwei(cfg.MaxEffectiveBalance)
	}

	s := &containers.BeaconState{
		Validators:  validators,
		Balances:    balances,
		BlockRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		StateRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		RandaoMixes: make([]primitives.Bytes32, cfg.EpochsPerHistoricalVector),
		Slashings:   make([]primitives.Gwei, cfg.EpochsPerSlashingsVector),
	}
	return s, keys
}

func TestIntegerSqrt(t *testing.T) {
	cases := map[uint64]uint64{
		0:  0,
		1:  1,
		3:  1,
		4:  2,
		17: 4,
		1024 * 1024: 1024,
	}
	for n, want := range cases {
		if got := integerSqrt(n); got != want {
			t.Errorf("integerSqrt(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestComputeShuffledIndex_IsPermutation(t *testing.T) {
	const n = 50
	seed := primitives.Bytes32{0x01, 0x02, 0x03}
	seen := make(map[uint64]bool, n)
	for i := uint64(0); i < n; i++ {
		out := computeShuffledIndex(i, n, seed)
		if out >= n {
			t.Fatalf("computeShuffledIndex(%d) = %d, out of range [0,%d)", i, out, n)
		}
		if seen[out] {
			t.Fatalf("computeShuffledIndex produced %d twice, not a permutation", out)
		}
		seen[out] = true
	}
}

func TestComputeCommittee_PartitionsIndices(t *testing.T) {
	const n = 64
	const count = 4
	indices := make([]primitives.ValidatorIndex, n)
	for i := range indices {
		indices[i] = primitives.ValidatorIndex(i)
	}
	seed := primitives.Bytes32{0xaa}

	seen := make(map[primitives.ValidatorIndex]bool, n)
	total := 0
	for c := uint64(0); c < count; c++ {
		committee := computeCommittee(indices, seed, c, count)
		total += len(committee)
		for _, idx := range committee {
			if seen[idx] {
				t.Fatalf("validator %d assigned to more than one committee", idx)
			}
			seen[idx] = true
		}
	}
	if total != n {
		t.Fatalf("committees cover %d validators, want %d", total, n)
	}
}

func TestGetBeaconProposerIndex_ReturnsActiveValidator(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 16)

	idx, err := GetBeaconProposerIndex(s, cfg)
	if err != nil {
		t.Fatalf("GetBeaconProposerIndex: %v", err)
	}
	if uint64(idx) >= uint64(len(s.Validators)) {
		t.Fatalf("proposer index %d out of range [0,%d)", idx, len(s.Validators))
	}
}

func TestProcessSlots_RejectsNonAdvancingSlot(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 4)
	s.Slot = 5

	if err := ProcessSlots(s, 5, cfg); err == nil {
		t.Fatal("expected an error advancing to the current slot")
	}
	if err := ProcessSlots(s, 4, cfg); err == nil {
		t.Fatal("expected an error advancing to a slot in the past")
	}
}

func TestProcessSlots_CachesStateAndBlockRoots(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 4)

	if err := ProcessSlots(s, 3, cfg); err != nil {
		t.Fatalf("ProcessSlots: %v", err)
	}
	if s.Slot != 3 {
		t.Fatalf("Slot = %d, want 3", s.Slot)
	}
	if s.StateRoots[0].IsZero() || s.StateRoots[1].IsZero() || s.StateRoots[2].IsZero() {
		t.Fatal("expected state_roots[0..2] to be populated by the slots crossed")
	}
	if s.BlockRoots[0].IsZero() {
		t.Fatal("expected block_roots[0] to be populated")
	}
}

func TestProcessEth1Data_AdoptsMajorityVote(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 4)
	votingPeriodSlots := cfg.EpochsPerEth1VotingPeriod * cfg.SlotsPerEpoch

	vote := containers.Eth1Data{DepositCount: 7, BlockHash: primitives.Bytes32{0x42}}
	needed := votingPeriodSlots/2 + 1
	for i := uint64(0); i < needed; i++ {
		processEth1Data(s, &vote, cfg)
	}

	if s.Eth1Data != vote {
		t.Fatalf("Eth1Data = %+v, want the majority vote %+v once the threshold is crossed", s.Eth1Data, vote)
	}
}

func TestProcessEth1Data_DoesNotAdoptMinorityVote(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 4)

	vote := containers.Eth1Data{DepositCount: 7, BlockHash: primitives.Bytes32{0x42}}
	processEth1Data(s, &vote, cfg)

	if s.Eth1Data == vote {
		t.Fatal("a single vote must not be adopted before a majority is reached")
	}
}

func TestProcessDeposit_TopsUpExistingValidator(t *testing.T) {
	cfg := params.Mainnet()
	s, keys := buildState(cfg, 2)

	var pub primitives.BlsPubkey
	copy(pub[:], keys[0].PublicKey().Bytes())
	dep := containers.Deposit{
		Data: containers.DepositData{
			Pubkey: pub,
			Amount: 1_000_000_000,
		},
	}
	sealSingleLeafDeposit(t, s, &dep, cfg)

	before := s.Balances[0]
	if err := ProcessDeposit(s, &dep, cfg); err != nil {
		t.Fatalf("ProcessDeposit: %v", err)
	}
	if len(s.Validators) != 2 {
		t.Fatalf("len(Validators) = %d, want 2 (top-up must not append)", len(s.Validators))
	}
	if s.Balances[0] != before+1_000_000_000 {
		t.Fatalf("Balances[0] = %d, want %d", s.Balances[0], before+1_000_000_000)
	}
	if s.Eth1DepositIndex != 1 {
		t.Fatalf("Eth1DepositIndex = %d, want 1", s.Eth1DepositIndex)
	}
}

func TestProcessDeposit_SkipsInvalidSignatureForNewValidator(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 0)

	dep := containers.Deposit{
		Data: containers.DepositData{
			Amount: primitives.Gwei(cfg.MaxEffectiveBalance),
			// Signature left zero: does not verify against Pubkey under
			// DOMAIN_DEPOSIT, so the validator must not be appended.
		},
	}
	sealSingleLeafDeposit(t, s, &dep, cfg)

	if err := ProcessDeposit(s, &dep, cfg); err != nil {
		t.Fatalf("ProcessDeposit must not return an error for a bad deposit signature, got: %v", err)
	}
	if len(s.Validators) != 0 {
		t.Fatalf("len(Validators) = %d, want 0 (invalid signature must be silently skipped)", len(s.Validators))
	}
	if s.Eth1DepositIndex != 1 {
		t.Fatal("eth1_deposit_index must still advance for a skipped deposit")
	}
}

func TestProcessDeposit_RejectsBadMerkleProof(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 0)

	dep := containers.Deposit{Data: containers.DepositData{Amount: 1}}
	sealSingleLeafDeposit(t, s, &dep, cfg)
	s.Eth1Data.DepositRoot[0] ^= 0xff // corrupt the root the proof must match

	if err := ProcessDeposit(s, &dep, cfg); err == nil {
		t.Fatal("expected an error for a deposit root mismatch")
	}
}

// sealSingleLeafDeposit treats dep as the sole deposit ever made against an
// otherwise-empty incremental Merkle tree: it hashes dep.Data, builds the
// proof and resulting root the same way genesis.depositMerkleTree would for
// a one-leaf tree (every sibling at index 0 is the zero hash for that
// level), and writes both the proof and state.eth1_data to match —
// the fixture ProcessDeposit's verifyDepositMerkleProof expects.
func sealSingleLeafDeposit(t *testing.T, s *containers.BeaconState, dep *containers.Deposit, cfg *params.SpecConfig) {
	t.Helper()
	leaf, err := ssz.HashTreeRoot(&dep.Data)
	if err != nil {
		t.Fatalf("HashTreeRoot(DepositData): %v", err)
	}

	z := zeroHashesForTest(cfg.DepositContractTreeDepth)
	node := leaf
	for i := uint64(0); i < cfg.DepositContractTreeDepth; i++ {
		dep.Proof[i] = [32]byte(z[i])
		node = crypto.HashConcat(node, z[i])
	}

	var countChunk primitives.Bytes32
	binary.LittleEndian.PutUint64(countChunk[:8], 1)
	s.Eth1Data.DepositRoot = crypto.HashConcat(node, countChunk)
	s.Eth1Data.DepositCount = 1
}

func zeroHashesForTest(depth uint64) []primitives.Bytes32 {
	z := make([]primitives.Bytes32, depth+1)
	for i := uint64(1); i <= depth; i++ {
		z[i] = crypto.HashConcat(z[i-1], z[i-1])
	}
	return z
}

func TestProcessVoluntaryExit_RejectsBeforePersistentCommitteePeriod(t *testing.T) {
	cfg := params.Mainnet()
	s, keys := buildState(cfg, 1)
	s.Slot = primitives.Slot(cfg.SlotsPerEpoch) // epoch 1: well short of PERSISTENT_COMMITTEE_PERIOD

	exit := containers.VoluntaryExit{Epoch: 1, ValidatorIndex: 0}
	domain := containers.Domain(s, cfg.DomainVoluntaryExit, exit.Epoch)
	root, err := containers.SigningRoot(&exit, domain)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	sig := keys[0].Sign(root[:])
	var sigBytes primitives.BlsSignature
	copy(sigBytes[:], sig.Bytes())

	sve := containers.SignedVoluntaryExit{Message: exit, Signature: sigBytes}
	err = processVoluntaryExit(s, &sve, cfg)
	if err == nil {
		t.Fatal("expected rejection before PERSISTENT_COMMITTEE_PERIOD has elapsed")
	}
	var invalid *sszerr.InvalidBlock
	if !sszerr.As(err, &invalid) {
		t.Fatalf("got %T, want *errors.InvalidBlock", err)
	}
}

func TestIsSlashableAttestationData_DetectsDoubleAndSurroundVotes(t *testing.T) {
	base := containers.AttestationData{
		Source: containers.Checkpoint{Epoch: 1},
		Target: containers.Checkpoint{Epoch: 2},
	}
	doubleVote := containers.AttestationData{
		Source: containers.Checkpoint{Epoch: 1},
		Target: containers.Checkpoint{Epoch: 2, Root: primitives.Bytes32{0x01}},
	}
	if !isSlashableAttestationData(&base, &doubleVote) {
		t.Fatal("expected a double vote (same target epoch, different data) to be slashable")
	}

	surroundVote := containers.AttestationData{
		Source: containers.Checkpoint{Epoch: 0},
		Target: containers.Checkpoint{Epoch: 3},
	}
	if !isSlashableAttestationData(&base, &surroundVote) {
		t.Fatal("expected a surround vote to be slashable")
	}

	notSlashable := containers.AttestationData{
		Source: containers.Checkpoint{Epoch: 2},
		Target: containers.Checkpoint{Epoch: 3},
	}
	if isSlashableAttestationData(&base, &notSlashable) {
		t.Fatal("two non-overlapping, non-identical votes must not be slashable")
	}
}

func TestMaxDepositsForBlock_ClampsToEth1Backlog(t *testing.T) {
	cfg := params.Mainnet()
	s, _ := buildState(cfg, 0)
	s.Eth1Data.DepositCount = 3
	s.Eth1DepositIndex = 1

	if got := maxDepositsForBlock(s, cfg); got != 2 {
		t.Fatalf("maxDepositsForBlock = %d, want 2 (backlog of 2, well under the cap)", got)
	}

	s.Eth1Data.DepositCount = cfg.MaxDepositsPerBlock * 2
	s.Eth1DepositIndex = 0
	if got := maxDepositsForBlock(s, cfg); got != cfg.MaxDepositsPerBlock {
		t.Fatalf("maxDepositsForBlock = %d, want the cap %d", got, cfg.MaxDepositsPerBlock)
	}
}
