package containers

import (
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// ComputeForkVersion returns fork.CurrentVersion when epoch is at or
// after fork.Epoch, else fork.PreviousVersion.
func ComputeForkVersion(fork primitives.Fork, epoch primitives.Epoch) primitives.Bytes4 {
	if epoch >= fork.Epoch {
		return fork.CurrentVersion
	}
	return fork.PreviousVersion
}

// ComputeDomain implements spec.md §4.E's get_domain: domain_type(4B)
// ∥ fork_version(epoch)(4B) ∥ genesis_validators_root[:24].
func ComputeDomain(domainType [4]byte, forkVersion primitives.Bytes4, genesisValidatorsRoot primitives.Bytes32) primitives.Bytes32 {
	var d primitives.Bytes32
	copy(d[0:4], domainType[:])
	copy(d[4:8], forkVersion[:])
	copy(d[8:32], genesisValidatorsRoot[:24])
	return d
}

// Domain computes get_domain(state, domainType, epoch) for the given
// state and an explicit target epoch (spec.md §4.E allows domain(..,
// epoch?) for a non-current epoch, e.g. a voluntary exit's own epoch).
func Domain(s *BeaconState, domainType [4]byte, epoch primitives.Epoch) primitives.Bytes32 {
	forkVersion := ComputeForkVersion(s.Fork, epoch)
	return ComputeDomain(domainType, forkVersion, s.GenesisValidatorsRoot)
}

// SigningRoot computes hash_tree_root(SigningData{object_root, domain})
// for any SSZ-tagged object, the root every BLS signature in the
// repository is actually taken over (spec.md §4.E).
func SigningRoot(object any, domain primitives.Bytes32) (primitives.Bytes32, error) {
	objectRoot, err := ssz.HashTreeRoot(object)
	if err != nil {
		return primitives.Bytes32{}, err
	}
	return ssz.HashTreeRoot(&SigningData{ObjectRoot: objectRoot, Domain: domain})
}

// FixedDepositDomain computes DOMAIN_DEPOSIT using the chain's genesis
// fork version rather than the state's current fork — deposits are
// signed cross-fork, so their domain is pinned (spec.md §4.E Deposit
// operation).
func FixedDepositDomain(cfg *params.SpecConfig, genesisValidatorsRoot primitives.Bytes32) primitives.Bytes32 {
	return ComputeDomain(cfg.DomainDeposit, cfg.GenesisForkVersion, genesisValidatorsRoot)
}
