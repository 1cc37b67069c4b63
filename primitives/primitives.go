// Package primitives defines the 64-bit numeric and fixed-width byte
// primitives shared across the beacon-chain core, plus checked
// arithmetic over them.
package primitives

import (
	"fmt"
	"math"
)

// Slot, Epoch, ValidatorIndex, Gwei, and CommitteeIndex are all 64-bit
// unsigned integers. Slot, Epoch, and Gwei carry checked Add/Sub methods
// (below); ValidatorIndex and CommitteeIndex have none, and MulU64 is the
// only checked multiply.
type (
	Slot           uint64
	Epoch          uint64
	ValidatorIndex uint64
	Gwei           uint64
	CommitteeIndex uint64
)

// FarFutureEpoch is the sentinel used for "unset" epoch fields on a
// Validator (activation_eligibility_epoch, activation_epoch, exit_epoch,
// withdrawable_epoch).
const FarFutureEpoch = Epoch(math.MaxUint64)

// Bytes32 and Bytes4 are fixed-width immutable byte strings.
type Bytes32 [32]byte
type Bytes4 [4]byte

func (b Bytes32) IsZero() bool { return b == Bytes32{} }

// BlsPubkey, BlsSignature, and BlsSecret are the fixed-width wire
// representations of BLS12-381 keys and signatures (spec.md §3.1).
type BlsPubkey [48]byte
type BlsSignature [96]byte
type BlsSecret [32]byte

// Fork identifies the current and previous fork versions and the epoch
// at which the fork activated.
type Fork struct {
	PreviousVersion Bytes4
	CurrentVersion  Bytes4
	Epoch           Epoch
}

// ArithmeticError reports a checked-integer overflow or underflow. The
// state-transition function must never produce one on valid input —
// when it does, the caller is expected to fail fast (see errors.Arithmetic).
type ArithmeticError struct {
	Op       string
	A, B     uint64
	Overflow bool
}

func (e *ArithmeticError) Error() string {
	kind := "overflow"
	if !e.Overflow {
		kind = "underflow"
	}
	return fmt.Sprintf("arithmetic %s: %s(%d, %d)", kind, e.Op, e.A, e.B)
}

// AddU64 returns a+b, erroring on overflow.
func AddU64(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, &ArithmeticError{Op: "add", A: a, B: b, Overflow: true}
	}
	return sum, nil
}

// SubU64 returns a-b, erroring on underflow.
func SubU64(a, b uint64) (uint64, error) {
	if b > a {
		return 0, &ArithmeticError{Op: "sub", A: a, B: b, Overflow: false}
	}
	return a - b, nil
}

// MulU64 returns a*b, erroring on overflow.
func MulU64(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, &ArithmeticError{Op: "mul", A: a, B: b, Overflow: true}
	}
	return product, nil
}

// SatSubU64 subtracts with clamping at zero instead of erroring, for the
// balance-decrease paths spec.md requires to never underflow
// ("balance never underflows" in §4.E step 2).
func SatSubU64(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

func (s Slot) Add(n uint64) (Slot, error)           { v, err := AddU64(uint64(s), n); return Slot(v), err }
func (s Slot) Sub(n uint64) (Slot, error)           { v, err := SubU64(uint64(s), n); return Slot(v), err }
func (e Epoch) Add(n uint64) (Epoch, error)         { v, err := AddU64(uint64(e), n); return Epoch(v), err }
func (e Epoch) Sub(n uint64) (Epoch, error)         { v, err := SubU64(uint64(e), n); return Epoch(v), err }
func (g Gwei) Add(o Gwei) (Gwei, error)             { v, err := AddU64(uint64(g), uint64(o)); return Gwei(v), err }
func (g Gwei) Sub(o Gwei) (Gwei, error)             { v, err := SubU64(uint64(g), uint64(o)); return Gwei(v), err }
func (g Gwei) SatSub(o Gwei) Gwei                   { return Gwei(SatSubU64(uint64(g), uint64(o))) }
