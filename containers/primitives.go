// Package containers provides typed, SSZ-tagged views over every
// consensus container named in spec.md §3.2 and its extensions in
// SPEC_FULL.md §3: Checkpoint, Validator, BeaconBlockHeader,
// AttestationData, IndexedAttestation, BeaconState, and friends. Field
// order within each struct is the authoritative SSZ field order.
package containers

import (
	"github.com/ethcore/beaconcore/primitives"
)

// Checkpoint identifies a block at a specific epoch boundary for
// justification/finalization bookkeeping.
type Checkpoint struct {
	Epoch primitives.Epoch
	Root  primitives.Bytes32 `ssz-size:"32"`
}

// BeaconBlockHeader is the fixed-size summary of a block used for
// parent-chain linking and signing.
type BeaconBlockHeader struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Bytes32 `ssz-size:"32"`
	StateRoot     primitives.Bytes32 `ssz-size:"32"`
	BodyRoot      primitives.Bytes32 `ssz-size:"32"`
}

// SignedBeaconBlockHeader pairs a header with its proposer signature.
type SignedBeaconBlockHeader struct {
	Message   BeaconBlockHeader
	Signature primitives.BlsSignature `ssz-size:"96"`
}

// Eth1Data summarizes the deposit-contract state a block proposer
// observed on the execution chain.
type Eth1Data struct {
	DepositRoot  primitives.Bytes32 `ssz-size:"32"`
	DepositCount uint64
	BlockHash    primitives.Bytes32 `ssz-size:"32"`
}
