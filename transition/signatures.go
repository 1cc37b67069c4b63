package transition

import (
	"github.com/ethcore/beaconcore/containers"
	sszerr "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/crypto/bls"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

// verifySignature checks a single BLS signature over object under the
// given domain, reporting kind on failure via *errors.InvalidSignature
// (spec.md §4.E: "All message signing is bls_verify(...)").
func verifySignature(object any, domain primitives.Bytes32, pubkey primitives.BlsPubkey, sig primitives.BlsSignature, kind sszerr.InvalidSignatureKind) error {
	signingRoot, err := containers.SigningRoot(object, domain)
	if err != nil {
		return err
	}
	pub, err := bls.PublicKeyFromBytes(pubkey[:])
	if err != nil {
		return &sszerr.InvalidSignature{Kind: kind}
	}
	s, err := bls.SignatureFromBytes(sig[:])
	if err != nil {
		return &sszerr.InvalidSignature{Kind: kind}
	}
	if !bls.Verify(pub, signingRoot[:], s) {
		return &sszerr.InvalidSignature{Kind: kind}
	}
	return nil
}

// validateIndexedAttestation implements validate_indexed_attestation:
// attesting_indices must be non-empty, strictly increasing, and bounded
// by MAX_VALIDATORS_PER_COMMITTEE; the aggregate public key of those
// validators must verify the single aggregate signature over
// AttestationData (spec.md §4.E).
func validateIndexedAttestation(s *containers.BeaconState, att *containers.IndexedAttestation, cfg *params.SpecConfig) error {
	indices := att.AttestingIndices
	if len(indices) == 0 {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "attestation", Reason: "empty attesting indices"}
	}
	if uint64(len(indices)) > cfg.MaxValidatorsPerCommittee {
		return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "attestation", Reason: "too many attesting indices"}
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "attestation", Reason: "attesting indices not strictly increasing"}
		}
	}

	pubs := make([]*bls.PublicKey, len(indices))
	for i, idx := range indices {
		if uint64(idx) >= uint64(len(s.Validators)) {
			return &sszerr.InvalidBlock{Kind: sszerr.InvalidOperation, OpKind: "attestation", Reason: "attesting index out of range"}
		}
		pub, err := bls.PublicKeyFromBytes(s.Validators[idx].Pubkey[:])
		if err != nil {
			return &sszerr.InvalidSignature{Kind: sszerr.SigAttestation}
		}
		pubs[i] = pub
	}
	aggregate := bls.AggregatePublicKeys(pubs)

	domain := containers.Domain(s, cfg.DomainBeaconAttester, att.Data.Target.Epoch)
	signingRoot, err := containers.SigningRoot(&att.Data, domain)
	if err != nil {
		return err
	}
	sig, err := bls.SignatureFromBytes(att.Signature[:])
	if err != nil {
		return &sszerr.InvalidSignature{Kind: sszerr.SigAttestation}
	}
	if !bls.VerifyAggregate(aggregate, signingRoot[:], sig) {
		return &sszerr.InvalidSignature{Kind: sszerr.SigAttestation}
	}
	return nil
}
