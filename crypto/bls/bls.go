// Package bls wraps github.com/supranational/blst for the BLS12-381
// signature operations the state-transition function needs: single
// verify, aggregate-pubkey verify, and signature aggregation, all under
// the min-pubkey-size ciphersuite (48-byte public keys, 96-byte
// signatures) spec.md §3.1 assumes.
package bls

import (
	blst "github.com/supranational/blst/bindings/go"

	"github.com/ethcore/beaconcore/errors"
)

const (
	PubkeyLength    = 48
	SignatureLength = 96
	SecretLength    = 32
)

var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

type SecretKey struct{ s blst.SecretKey }
type PublicKey struct{ p *blst.P1Affine }
type Signature struct{ s *blst.P2Affine }

// SecretKeyFromBytes reads the 32 bytes as a little-endian scalar and
// uses it directly as the SecretKey; no key-derivation step is applied.
func SecretKeyFromBytes(b [SecretLength]byte) *SecretKey {
	sk := new(blst.SecretKey)
	sk.FromLEndian(b[:])
	return &SecretKey{s: *sk}
}

// PublicKey derives the public key for a secret key.
func (sk *SecretKey) PublicKey() *PublicKey {
	p := new(blst.P1Affine).From(&sk.s)
	return &PublicKey{p: p}
}

// Sign produces a signature over msg under the fixed domain-separation
// tag used by the consensus layer.
func (sk *SecretKey) Sign(msg []byte) *Signature {
	s := new(blst.P2Affine).Sign(&sk.s, msg, dst)
	return &Signature{s: s}
}

// PublicKeyFromBytes deserializes a compressed 48-byte public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PubkeyLength {
		return nil, &errors.BadSSZ{Schema: "BlsPubkey", Reason: "wrong length"}
	}
	p := new(blst.P1Affine).Uncompress(b)
	if p == nil || !p.KeyValidate() {
		return nil, &errors.BadSSZ{Schema: "BlsPubkey", Reason: "invalid point"}
	}
	return &PublicKey{p: p}, nil
}

// SignatureFromBytes deserializes a compressed 96-byte signature.
func SignatureFromBytes(b []byte) (*Signature, error) {
	if len(b) != SignatureLength {
		return nil, &errors.BadSSZ{Schema: "BlsSignature", Reason: "wrong length"}
	}
	s := new(blst.P2Affine).Uncompress(b)
	if s == nil {
		return nil, &errors.BadSSZ{Schema: "BlsSignature", Reason: "invalid point"}
	}
	return &Signature{s: s}, nil
}

func (p *PublicKey) Bytes() []byte { return p.p.Compress() }
func (s *Signature) Bytes() []byte { return s.s.Compress() }

// Verify checks a single-key signature over msg.
func Verify(pub *PublicKey, msg []byte, sig *Signature) bool {
	return sig.s.Verify(true, pub.p, true, msg, dst)
}

// AggregatePublicKeys combines member keys into a single aggregate
// public key, as required by validate_indexed_attestation.
func AggregatePublicKeys(keys []*PublicKey) *PublicKey {
	agg := new(blst.P1Aggregate)
	pts := make([]*blst.P1Affine, len(keys))
	for i, k := range keys {
		pts[i] = k.p
	}
	agg.Aggregate(pts, true)
	aff := agg.ToAffine()
	return &PublicKey{p: aff}
}

// AggregateSignatures combines member signatures into a single
// aggregate signature.
func AggregateSignatures(sigs []*Signature) *Signature {
	agg := new(blst.P2Aggregate)
	pts := make([]*blst.P2Affine, len(sigs))
	for i, s := range sigs {
		pts[i] = s.s
	}
	agg.Aggregate(pts, true)
	aff := agg.ToAffine()
	return &Signature{s: aff}
}

// VerifyAggregate checks a single aggregate signature against a single
// aggregate public key over one message — the shape
// validate_indexed_attestation needs (all attesters sign the same
// AttestationData signing root).
func VerifyAggregate(pub *PublicKey, msg []byte, sig *Signature) bool {
	return Verify(pub, msg, sig)
}
