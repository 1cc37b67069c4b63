package containers

// ProposerSlashing proves a proposer signed two distinct headers for
// the same slot.
type ProposerSlashing struct {
	SignedHeader1 SignedBeaconBlockHeader
	SignedHeader2 SignedBeaconBlockHeader
}

// AttesterSlashing proves two IndexedAttestations are mutually
// slashable (double-vote or surround-vote, spec.md §4.E).
type AttesterSlashing struct {
	Attestation1 IndexedAttestation
	Attestation2 IndexedAttestation
}
