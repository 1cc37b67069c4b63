package containers

import "github.com/ethcore/beaconcore/primitives"

// VoluntaryExit signals a validator's intent to leave the active set
// once PERSISTENT_COMMITTEE_PERIOD has elapsed since activation
// (SPEC_FULL.md §3 extension).
type VoluntaryExit struct {
	Epoch          primitives.Epoch
	ValidatorIndex primitives.ValidatorIndex
}

// SignedVoluntaryExit pairs a VoluntaryExit with its signature, signed
// with a domain pinned to Message.Epoch (spec.md §4.E).
type SignedVoluntaryExit struct {
	Message   VoluntaryExit
	Signature primitives.BlsSignature `ssz-size:"96"`
}

// BeaconBlockBody carries the operations a proposer includes in a
// block, each bounded by the per-kind cap named in spec.md §4.E.
type BeaconBlockBody struct {
	RandaoReveal      primitives.BlsSignature `ssz-size:"96"`
	Eth1Data          Eth1Data
	Graffiti          primitives.Bytes32 `ssz-size:"32"`
	ProposerSlashings []ProposerSlashing `ssz-max:"16"`
	AttesterSlashings []AttesterSlashing `ssz-max:"2"`
	Attestations      []Attestation      `ssz-max:"128"`
	Deposits          []Deposit          `ssz-max:"16"`
	VoluntaryExits    []SignedVoluntaryExit `ssz-max:"16"`
}

// BeaconBlock is the unsigned block envelope the state-transition
// function consumes (spec.md §4.E process_block).
type BeaconBlock struct {
	Slot          primitives.Slot
	ProposerIndex primitives.ValidatorIndex
	ParentRoot    primitives.Bytes32 `ssz-size:"32"`
	StateRoot     primitives.Bytes32 `ssz-size:"32"`
	Body          BeaconBlockBody
}

// SignedBeaconBlock pairs a BeaconBlock with the proposer's signature
// over its hash-tree-root (domain DOMAIN_BEACON_PROPOSER).
type SignedBeaconBlock struct {
	Message   BeaconBlock
	Signature primitives.BlsSignature `ssz-size:"96"`
}

// SigningData is the container hash-tree-root'd to produce a signing
// root: sha256-tree(object_root, domain) (spec.md §4.E: "signing_root
// container").
type SigningData struct {
	ObjectRoot primitives.Bytes32 `ssz-size:"32"`
	Domain     primitives.Bytes32 `ssz-size:"32"`
}
