// Package genesis builds the phase-0 genesis BeaconState and its
// zeroth BeaconBlock from a set of already-decoded deposits, the one
// construction spec.md folds into "Domain data model" without naming
// (SPEC_FULL.md §4.G). It deliberately stops short of the deposit
// contract's L1 watcher: callers hand it DepositData already verified
// against an eth1 block, per spec.md §9's open question on the
// out-of-scope eth1-cache arithmetic.
package genesis

import (
	"encoding/binary"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
	"github.com/ethcore/beaconcore/transition"
)

// validatorsSchema is a throwaway container carrying the same
// ssz-max tag as BeaconState.Validators, so genesis_validators_root can
// be computed with the List[Validator, VALIDATOR_REGISTRY_LIMIT] schema
// the real field uses instead of an untagged bare slice.
type validatorsSchema struct {
	Validators []containers.Validator `ssz-max:"1099511627776"`
}

// BeaconState builds the genesis state from deposits in inclusion
// order, mirroring the original source's initialize_beacon_state_from_eth1:
// every deposit is applied through the same transition.ProcessDeposit
// process_block operations use, then every validator whose deposit
// reached MAX_EFFECTIVE_BALANCE is activated immediately — the
// genesis-activation pass spec.md's distillation dropped when it folded
// "Domain data model" into one line.
func BeaconState(cfg *params.SpecConfig, genesisTime uint64, eth1BlockHash primitives.Bytes32, deposits []containers.Deposit) (*containers.BeaconState, error) {
	s := &containers.BeaconState{
		GenesisTime: genesisTime,
		Fork: primitives.Fork{
			PreviousVersion: cfg.GenesisForkVersion,
			CurrentVersion:  cfg.GenesisForkVersion,
			Epoch:           0,
		},
		BlockRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		StateRoots:  make([]primitives.Bytes32, cfg.SlotsPerHistoricalRoot),
		RandaoMixes: make([]primitives.Bytes32, cfg.EpochsPerHistoricalVector),
		Slashings:   make([]primitives.Gwei, cfg.EpochsPerSlashingsVector),
	}
	for i := range s.RandaoMixes {
		s.RandaoMixes[i] = eth1BlockHash
	}

	leaves := make([]primitives.Bytes32, len(deposits))
	for i := range deposits {
		leaf, err := depositDataRoot(&deposits[i].Data)
		if err != nil {
			return nil, err
		}
		leaves[i] = leaf
	}
	root, _ := depositMerkleTree(leaves, cfg.DepositContractTreeDepth)
	var countChunk primitives.Bytes32
	binary.LittleEndian.PutUint64(countChunk[:8], uint64(len(deposits)))
	s.Eth1Data = containers.Eth1Data{
		DepositRoot:  crypto.HashConcat(root, countChunk),
		DepositCount: uint64(len(deposits)),
		BlockHash:    eth1BlockHash,
	}

	for i := range deposits {
		if err := transition.ProcessDeposit(s, &deposits[i], cfg); err != nil {
			return nil, err
		}
	}

	activateGenesisValidators(s, cfg)

	gvRoot, err := ssz.HashTreeRoot(&validatorsSchema{Validators: s.Validators})
	if err != nil {
		return nil, err
	}
	s.GenesisValidatorsRoot = gvRoot

	emptyBody := containers.BeaconBlockBody{}
	bodyRoot, err := ssz.HashTreeRoot(&emptyBody)
	if err != nil {
		return nil, err
	}
	s.LatestBlockHeader = containers.BeaconBlockHeader{
		Slot:          0,
		ProposerIndex: 0,
		ParentRoot:    primitives.Bytes32{},
		StateRoot:     primitives.Bytes32{},
		BodyRoot:      bodyRoot,
	}

	return s, nil
}

// activateGenesisValidators implements the phase-0 genesis rule: a
// validator whose deposit reached MAX_EFFECTIVE_BALANCE is active from
// epoch 0, bypassing the normal activation queue (there is no prior
// finalized checkpoint to queue against at genesis).
func activateGenesisValidators(s *containers.BeaconState, cfg *params.SpecConfig) {
	maxEff := primitives.Gwei(cfg.MaxEffectiveBalance)
	for i := range s.Validators {
		if s.Validators[i].EffectiveBalance == maxEff {
			s.Validators[i].ActivationEligibilityEpoch = 0
			s.Validators[i].ActivationEpoch = 0
		}
	}
}

// Block returns the zeroth SignedBeaconBlock for state: slot 0,
// zero parent root, empty body, and a zero signature (the genesis
// block is never actually verified against a signature — store
// consumers special-case slot 0).
func Block(state *containers.BeaconState) (*containers.SignedBeaconBlock, error) {
	stateRoot, err := ssz.HashTreeRoot(state)
	if err != nil {
		return nil, err
	}
	return &containers.SignedBeaconBlock{
		Message: containers.BeaconBlock{
			Slot:          0,
			ProposerIndex: 0,
			ParentRoot:    primitives.Bytes32{},
			StateRoot:     stateRoot,
			Body:          containers.BeaconBlockBody{},
		},
	}, nil
}
