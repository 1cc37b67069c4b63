// Package crypto provides the single SHA-256 entrypoint every hash in
// the repository goes through, so a hardware-accelerated backend is a
// one-file swap.
package crypto

import (
	"crypto/sha256"

	"github.com/ethcore/beaconcore/primitives"
)

// Hash256 returns sha256(data).
func Hash256(data []byte) primitives.Bytes32 {
	return primitives.Bytes32(sha256.Sum256(data))
}

// HashConcat returns sha256(a || b), the pairwise node-combining hash
// the Merkle tree uses at every branch.
func HashConcat(a, b primitives.Bytes32) primitives.Bytes32 {
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var out primitives.Bytes32
	copy(out[:], h.Sum(nil))
	return out
}
