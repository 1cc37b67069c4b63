package genesis

import (
	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
)

// depositDataRoot is the Merkle leaf transition.ProcessDeposit's proof
// check is taken against: hash_tree_root(deposit.data).
func depositDataRoot(d *containers.DepositData) (primitives.Bytes32, error) {
	return ssz.HashTreeRoot(d)
}

// zeroHashes precomputes zero_hashes[0..depth] for an incremental
// Merkle tree of the given depth: zero_hashes[0] is the zero leaf,
// zero_hashes[i] is the root of an empty subtree of depth i.
func zeroHashes(depth uint64) []primitives.Bytes32 {
	z := make([]primitives.Bytes32, depth+1)
	for i := uint64(1); i <= depth; i++ {
		z[i] = crypto.HashConcat(z[i-1], z[i-1])
	}
	return z
}

// depositMerkleTree builds the fixed-depth binary Merkle tree the
// deposit contract's incremental tree produces over leaves, zero-padded
// up to 2^depth, and returns the root of that tree (before the
// deposit-count mix-in transition.ProcessDeposit's Merkle-proof check
// performs) plus a per-leaf inclusion proof.
func depositMerkleTree(leaves []primitives.Bytes32, depth uint64) (root primitives.Bytes32, proofs [][][32]byte) {
	zero := zeroHashes(depth)
	if len(leaves) == 0 {
		return zero[depth], nil
	}

	levels := make([][]primitives.Bytes32, depth+1)
	levels[0] = leaves
	cur := leaves
	for l := uint64(0); l < depth; l++ {
		next := make([]primitives.Bytes32, (len(cur)+1)/2)
		for i := range next {
			left := cur[2*i]
			var right primitives.Bytes32
			if 2*i+1 < len(cur) {
				right = cur[2*i+1]
			} else {
				right = zero[l]
			}
			next[i] = crypto.HashConcat(left, right)
		}
		levels[l+1] = next
		cur = next
	}
	root = levels[depth][0]

	proofs = make([][][32]byte, len(leaves))
	for i := range leaves {
		proof := make([][32]byte, depth)
		idx := i
		for l := uint64(0); l < depth; l++ {
			level := levels[l]
			sibIdx := idx ^ 1
			var sib primitives.Bytes32
			if sibIdx < len(level) {
				sib = level[sibIdx]
			} else {
				sib = zero[l]
			}
			proof[l] = [32]byte(sib)
			idx /= 2
		}
		proofs[i] = proof
	}
	return root, proofs
}
