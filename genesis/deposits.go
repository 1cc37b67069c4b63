package genesis

import (
	"encoding/binary"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto"
	"github.com/ethcore/beaconcore/crypto/bls"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

// DeterministicSecretKey derives validator i's secret key as the sha256
// of a 40-byte buffer holding "bcinterp" in bytes 0-7, zeros, and index
// as a little-endian uint64 in bytes 32-39, matching spec.md §8
// scenario 1's "64 deterministic deposits": a reproducible key schedule
// rather than an externally supplied keystore, the way interop/testnet
// genesis generators in the wider ecosystem seed their validator sets.
func DeterministicSecretKey(index uint64) *bls.SecretKey {
	var buf [40]byte
	copy(buf[:8], []byte("bcinterp"))
	binary.LittleEndian.PutUint64(buf[32:], index)
	seed := crypto.Hash256(buf[:])
	return bls.SecretKeyFromBytes([32]byte(seed))
}

// withdrawalCredentialsFor derives BLS withdrawal credentials (prefix
// 0x00 || sha256(pubkey)[1:]) for a deterministic validator, mirroring
// phase-0's BLS_WITHDRAWAL_PREFIX scheme.
func withdrawalCredentialsFor(pub *bls.PublicKey) primitives.Bytes32 {
	h := crypto.Hash256(pub.Bytes())
	h[0] = 0x00
	return h
}

// DeterministicDeposits builds count deposits of amount Gwei each from
// DeterministicSecretKey(0..count-1), each signed under the fixed
// genesis deposit domain, with valid Merkle inclusion proofs against
// the tree formed by the full deposit set — the shape BeaconState needs
// to process them via transition.ProcessDeposit exactly as process_block
// would (spec.md §8 scenario 1).
//
// genesisValidatorsRoot must be the zero Bytes32 for deposits destined
// for genesis.BeaconState: a fresh BeaconState's own GenesisValidatorsRoot
// field reads zero until every deposit has been applied, so
// process_deposit verifies genesis deposit signatures under that same
// zero root (only a post-genesis deposit, included in a later block,
// signs against the chain's real, by-then-nonzero root).
func DeterministicDeposits(cfg *params.SpecConfig, genesisValidatorsRoot primitives.Bytes32, count uint64, amount primitives.Gwei) ([]containers.Deposit, []*bls.SecretKey) {
	domain := containers.FixedDepositDomain(cfg, genesisValidatorsRoot)

	keys := make([]*bls.SecretKey, count)
	datas := make([]containers.DepositData, count)
	leaves := make([]primitives.Bytes32, count)
	for i := uint64(0); i < count; i++ {
		sk := DeterministicSecretKey(i)
		pub := sk.PublicKey()
		keys[i] = sk

		data := containers.DepositData{
			Amount: amount,
		}
		copy(data.Pubkey[:], pub.Bytes())
		data.WithdrawalCredentials = withdrawalCredentialsFor(pub)

		depositMessage := struct {
			Pubkey                primitives.BlsPubkey `ssz-size:"48"`
			WithdrawalCredentials primitives.Bytes32   `ssz-size:"32"`
			Amount                primitives.Gwei
		}{data.Pubkey, data.WithdrawalCredentials, data.Amount}
		root, err := containers.SigningRoot(&depositMessage, domain)
		if err != nil {
			panic("genesis: signing root for deterministic deposit: " + err.Error())
		}
		sig := sk.Sign(root[:])
		copy(data.Signature[:], sig.Bytes())

		datas[i] = data
		leaf, err := depositDataRoot(&data)
		if err != nil {
			panic("genesis: deposit data root: " + err.Error())
		}
		leaves[i] = leaf
	}

	_, proofs := depositMerkleTree(leaves, cfg.DepositContractTreeDepth)

	deposits := make([]containers.Deposit, count)
	for i := uint64(0); i < count; i++ {
		var d containers.Deposit
		d.Data = datas[i]
		copy(d.Proof[:cfg.DepositContractTreeDepth], proofs[i])
		deposits[i] = d
	}
	return deposits, keys
}
