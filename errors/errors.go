// Package errors defines the structured error taxonomy described in
// spec.md §7. Components return one of these kinds rather than a bare
// string so callers can branch with errors.As; every kind also carries
// enough context (root, slot, operation name) to log without
// re-deriving it from the caller's state.
package errors

import (
	"errors"
	"fmt"

	"github.com/ethcore/beaconcore/primitives"
)

// Is exposes the standard library errors.Is to callers that only import
// this package, so they do not need a second import for simple checks.
var Is = errors.Is

// As exposes the standard library errors.As to callers that only import
// this package.
var As = errors.As

// BadSSZ reports a framing/length/padding violation at the decode
// boundary. Non-fatal to the node: the offending message is dropped.
type BadSSZ struct {
	Schema string
	Reason string
}

func (e *BadSSZ) Error() string { return fmt.Sprintf("bad ssz (%s): %s", e.Schema, e.Reason) }

// Arithmetic reports a checked integer overflow/underflow. Must never
// occur on valid inputs; when it does, the node enters a fail-fast state.
type Arithmetic struct {
	Cause error
}

func (e *Arithmetic) Error() string { return fmt.Sprintf("arithmetic: %v", e.Cause) }
func (e *Arithmetic) Unwrap() error { return e.Cause }

// InvalidBlockKind classifies which sub-phase of process_block rejected
// the block.
type InvalidBlockKind string

const (
	InvalidHeader    InvalidBlockKind = "header"
	InvalidRandao    InvalidBlockKind = "randao"
	InvalidEth1      InvalidBlockKind = "eth1"
	InvalidOperation InvalidBlockKind = "operation"
)

// InvalidBlock reports that the STF rejected a specific block. Surfaced
// to the caller; not fatal to the node.
type InvalidBlock struct {
	Kind       InvalidBlockKind
	OpKind     string // populated when Kind == InvalidOperation
	Slot       primitives.Slot
	Reason     string
	WrappedErr error
}

func (e *InvalidBlock) Error() string {
	if e.Kind == InvalidOperation {
		return fmt.Sprintf("invalid block at slot %d: operation %s: %s", e.Slot, e.OpKind, e.Reason)
	}
	return fmt.Sprintf("invalid block at slot %d: %s: %s", e.Slot, e.Kind, e.Reason)
}

func (e *InvalidBlock) Unwrap() error { return e.WrappedErr }

// InvalidSignatureKind classifies which message type failed BLS
// verification.
type InvalidSignatureKind string

const (
	SigBlock            InvalidSignatureKind = "block"
	SigAttestation       InvalidSignatureKind = "attestation"
	SigExit              InvalidSignatureKind = "voluntary_exit"
	SigProposerSlashing  InvalidSignatureKind = "proposer_slashing"
	SigAttesterSlashing  InvalidSignatureKind = "attester_slashing"
	SigDeposit           InvalidSignatureKind = "deposit"
	SigRandao            InvalidSignatureKind = "randao"
)

// InvalidSignature reports a BLS verification failure for the named
// message kind.
type InvalidSignature struct {
	Kind InvalidSignatureKind
}

func (e *InvalidSignature) Error() string { return fmt.Sprintf("invalid %s signature", e.Kind) }

// NotViableHead reports that fork choice found no viable descendant for
// a justified root.
type NotViableHead struct {
	JustifiedRoot primitives.Bytes32
}

func (e *NotViableHead) Error() string {
	return fmt.Sprintf("no viable head from justified root %x", e.JustifiedRoot[:8])
}

// UnknownBlock reports a store miss for a block root.
type UnknownBlock struct {
	Root primitives.Bytes32
}

func (e *UnknownBlock) Error() string { return fmt.Sprintf("unknown block %x", e.Root[:8]) }

// UnknownState reports a store miss for a state root or owning block root.
type UnknownState struct {
	Root primitives.Bytes32
}

func (e *UnknownState) Error() string { return fmt.Sprintf("unknown state %x", e.Root[:8]) }

// Corrupt reports that an invariant was violated in persisted data. The
// node should enter a fail-fast state on this kind, same as Arithmetic.
type Corrupt struct {
	Reason string
}

func (e *Corrupt) Error() string { return fmt.Sprintf("corrupt store: %s", e.Reason) }

// Conflict reports a concurrent, conflicting finalization attempt.
type Conflict struct {
	Reason string
}

func (e *Conflict) Error() string { return fmt.Sprintf("conflicting commit: %s", e.Reason) }

// FailFast reports whether err is a kind that must halt the node rather
// than simply be surfaced to the caller (spec.md §7: "Any Arithmetic or
// Corrupt puts the node into a fail-fast state").
func FailFast(err error) bool {
	var a *Arithmetic
	var c *Corrupt
	return errors.As(err, &a) || errors.As(err, &c)
}
