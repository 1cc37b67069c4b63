// Package params holds the chain configuration threaded explicitly
// through the core, replacing the source's global constant table with
// a single SpecConfig value (spec.md §9: "global singletons … become an
// explicit configuration value threaded through SpecConfig; testnets
// swap it by construction").
package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpecConfig collects every constant the state-transition function,
// fork choice, and chain store depend on. A node is parameterized by
// exactly one SpecConfig for its lifetime; mainnet and any testnet are
// both just values of this type.
type SpecConfig struct {
	// Time
	SecondsPerSlot uint64 `yaml:"SECONDS_PER_SLOT"`
	SlotsPerEpoch  uint64 `yaml:"SLOTS_PER_EPOCH"`

	// State list/vector capacities
	SlotsPerHistoricalRoot      uint64 `yaml:"SLOTS_PER_HISTORICAL_ROOT"`
	HistoricalRootsLimit        uint64 `yaml:"HISTORICAL_ROOTS_LIMIT"`
	EpochsPerEth1VotingPeriod   uint64 `yaml:"EPOCHS_PER_ETH1_VOTING_PERIOD"`
	ValidatorRegistryLimit      uint64 `yaml:"VALIDATOR_REGISTRY_LIMIT"`
	EpochsPerHistoricalVector   uint64 `yaml:"EPOCHS_PER_HISTORICAL_VECTOR"`
	EpochsPerSlashingsVector    uint64 `yaml:"EPOCHS_PER_SLASHINGS_VECTOR"`
	MaxValidatorsPerCommittee   uint64 `yaml:"MAX_VALIDATORS_PER_COMMITTEE"`

	// Per-block operation caps
	MaxProposerSlashings uint64 `yaml:"MAX_PROPOSER_SLASHINGS"`
	MaxAttesterSlashings uint64 `yaml:"MAX_ATTESTER_SLASHINGS"`
	MaxAttestations      uint64 `yaml:"MAX_ATTESTATIONS"`
	MaxDepositsPerBlock  uint64 `yaml:"MAX_DEPOSITS"`
	MaxVoluntaryExits    uint64 `yaml:"MAX_VOLUNTARY_EXITS"`

	// Gwei values
	MaxEffectiveBalance          uint64 `yaml:"MAX_EFFECTIVE_BALANCE"`
	EjectionBalance               uint64 `yaml:"EJECTION_BALANCE"`
	EffectiveBalanceIncrement     uint64 `yaml:"EFFECTIVE_BALANCE_INCREMENT"`
	MinDepositAmount              uint64 `yaml:"MIN_DEPOSIT_AMOUNT"`

	// Reward/penalty quotients
	BaseRewardFactor           uint64 `yaml:"BASE_REWARD_FACTOR"`
	BaseRewardsPerEpoch        uint64 `yaml:"BASE_REWARDS_PER_EPOCH"`
	WhistleblowerRewardQuotient uint64 `yaml:"WHISTLEBLOWER_REWARD_QUOTIENT"`
	ProposerRewardQuotient     uint64 `yaml:"PROPOSER_REWARD_QUOTIENT"`
	InactivityPenaltyQuotient  uint64 `yaml:"INACTIVITY_PENALTY_QUOTIENT"`
	MinSlashingPenaltyQuotient uint64 `yaml:"MIN_SLASHING_PENALTY_QUOTIENT"`
	MinEpochsToInactivityPenalty uint64 `yaml:"MIN_EPOCHS_TO_INACTIVITY_PENALTY"`

	// Deposit contract / registry
	DepositContractTreeDepth uint64 `yaml:"DEPOSIT_CONTRACT_TREE_DEPTH"`
	PersistentCommitteePeriod uint64 `yaml:"PERSISTENT_COMMITTEE_PERIOD"`
	MinValidatorWithdrawabilityDelay uint64 `yaml:"MIN_VALIDATOR_WITHDRAWABILITY_DELAY"`
	ShardCommitteePeriod     uint64 `yaml:"SHARD_COMMITTEE_PERIOD"`
	ChurnLimitQuotient       uint64 `yaml:"CHURN_LIMIT_QUOTIENT"`
	MinPerEpochChurnLimit    uint64 `yaml:"MIN_PER_EPOCH_CHURN_LIMIT"`

	// Time parameters
	MinAttestationInclusionDelay uint64 `yaml:"MIN_ATTESTATION_INCLUSION_DELAY"`
	MinSeedLookahead             uint64 `yaml:"MIN_SEED_LOOKAHEAD"`
	MaxSeedLookahead              uint64 `yaml:"MAX_SEED_LOOKAHEAD"`

	// Domains (4-byte little-endian as stored; see primitives.Bytes4)
	DomainBeaconProposer  [4]byte `yaml:"-"`
	DomainBeaconAttester  [4]byte `yaml:"-"`
	DomainRandao          [4]byte `yaml:"-"`
	DomainDeposit         [4]byte `yaml:"-"`
	DomainVoluntaryExit   [4]byte `yaml:"-"`

	// Store/archive
	StateStorageFrequency uint64 `yaml:"STATE_STORAGE_FREQUENCY"`
	ProtoArrayPruneThreshold uint32 `yaml:"PROTOARRAY_PRUNE_THRESHOLD"`

	GenesisForkVersion [4]byte `yaml:"-"`
}

// Mainnet returns the canonical phase-0 constant set.
func Mainnet() *SpecConfig {
	return &SpecConfig{
		SecondsPerSlot:              12,
		SlotsPerEpoch:               32,
		SlotsPerHistoricalRoot:      8192,
		HistoricalRootsLimit:        16777216,
		EpochsPerEth1VotingPeriod:   64,
		ValidatorRegistryLimit:      1099511627776,
		EpochsPerHistoricalVector:   65536,
		EpochsPerSlashingsVector:    8192,
		MaxValidatorsPerCommittee:   2048,
		MaxProposerSlashings:        16,
		MaxAttesterSlashings:        2,
		MaxAttestations:             128,
		MaxDepositsPerBlock:         16,
		MaxVoluntaryExits:           16,
		MaxEffectiveBalance:         32_000_000_000,
		EjectionBalance:             16_000_000_000,
		EffectiveBalanceIncrement:   1_000_000_000,
		MinDepositAmount:            1_000_000_000,
		BaseRewardFactor:            64,
		BaseRewardsPerEpoch:         4,
		WhistleblowerRewardQuotient: 512,
		ProposerRewardQuotient:      8,
		InactivityPenaltyQuotient:   1 << 25,
		MinSlashingPenaltyQuotient:  32,
		MinEpochsToInactivityPenalty: 4,
		DepositContractTreeDepth:    32,
		PersistentCommitteePeriod:   2048,
		MinValidatorWithdrawabilityDelay: 256,
		ShardCommitteePeriod:        256,
		ChurnLimitQuotient:          65536,
		MinPerEpochChurnLimit:       4,
		MinAttestationInclusionDelay: 1,
		MinSeedLookahead:            1,
		MaxSeedLookahead:            4,
		StateStorageFrequency:       32,
		ProtoArrayPruneThreshold:    256,
		DomainBeaconProposer:        [4]byte{0x00, 0x00, 0x00, 0x00},
		DomainBeaconAttester:        [4]byte{0x01, 0x00, 0x00, 0x00},
		DomainRandao:                [4]byte{0x02, 0x00, 0x00, 0x00},
		DomainDeposit:               [4]byte{0x03, 0x00, 0x00, 0x00},
		DomainVoluntaryExit:         [4]byte{0x04, 0x00, 0x00, 0x00},
		GenesisForkVersion:          [4]byte{0x00, 0x00, 0x00, 0x00},
	}
}

// Load reads a SpecConfig from a YAML file, starting from the mainnet
// defaults so a testnet preset only needs to override what differs.
func Load(path string) (*SpecConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec config: %w", err)
	}
	cfg := Mainnet()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse spec config: %w", err)
	}
	return cfg, nil
}
