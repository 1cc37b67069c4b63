package containers

import "github.com/ethcore/beaconcore/primitives"

// DepositData is the deposit-contract log entry a Deposit operation
// proves inclusion of (SPEC_FULL.md §3 extension; already referenced,
// but not defined, by spec.md's Deposit operation in §4.E).
type DepositData struct {
	Pubkey                primitives.BlsPubkey `ssz-size:"48"`
	WithdrawalCredentials primitives.Bytes32   `ssz-size:"32"`
	Amount                primitives.Gwei
	Signature             primitives.BlsSignature `ssz-size:"96"`
}

// DepositContractTreeDepth is the depth of the on-chain incremental
// Merkle tree deposits are proven against.
const DepositContractTreeDepth = 32

// Deposit carries a DepositData plus its Merkle proof against
// state.eth1_data.deposit_root at the current eth1_deposit_index.
type Deposit struct {
	Proof [DepositContractTreeDepth + 1][32]byte `ssz-size:"33,32"`
	Data  DepositData
}
