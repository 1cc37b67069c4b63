package containers

import (
	bitfield "github.com/OffchainLabs/go-bitfield"

	"github.com/ethcore/beaconcore/primitives"
)

// AttestationData describes a validator committee's observed chain
// view for one slot (spec.md §3.2).
type AttestationData struct {
	Slot            primitives.Slot
	Index           primitives.CommitteeIndex
	BeaconBlockRoot primitives.Bytes32 `ssz-size:"32"`
	Source          Checkpoint
	Target          Checkpoint
}

// Attestation is the on-the-wire, committee-aggregated vote carried in
// a block body; aggregation_bits marks which committee members
// contributed to the aggregate Signature.
type Attestation struct {
	AggregationBits bitfield.Bitlist `ssz:"bitlist" ssz-max:"2048"`
	Data            AttestationData
	Signature       primitives.BlsSignature `ssz-size:"96"`
}

// IndexedAttestation is the verifier-facing form of an Attestation:
// aggregation_bits resolved to the sorted, deduplicated list of
// attesting validator indices (spec.md §3.2).
type IndexedAttestation struct {
	AttestingIndices []primitives.ValidatorIndex `ssz-max:"2048"`
	Data             AttestationData
	Signature        primitives.BlsSignature `ssz-size:"96"`
}

// PendingAttestation is the element type of
// BeaconState.{Previous,Current}EpochAttestations — phase-0 buffers
// attestations rather than immediately converting them to rewards
// (SPEC_FULL.md §3 extension; dropped from spec.md's containers list).
type PendingAttestation struct {
	AggregationBits bitfield.Bitlist `ssz:"bitlist" ssz-max:"2048"`
	Data            AttestationData
	InclusionDelay  primitives.Slot
	ProposerIndex   primitives.ValidatorIndex
}
