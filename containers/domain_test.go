package containers

import (
	"testing"

	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
)

func TestComputeForkVersion_SelectsByEpoch(t *testing.T) {
	fork := primitives.Fork{
		PreviousVersion: primitives.Bytes4{0x01},
		CurrentVersion:  primitives.Bytes4{0x02},
		Epoch:           10,
	}
	if got := ComputeForkVersion(fork, 5); got != fork.PreviousVersion {
		t.Fatalf("ComputeForkVersion before the fork epoch = %v, want previous version", got)
	}
	if got := ComputeForkVersion(fork, 10); got != fork.CurrentVersion {
		t.Fatalf("ComputeForkVersion at the fork epoch = %v, want current version", got)
	}
	if got := ComputeForkVersion(fork, 20); got != fork.CurrentVersion {
		t.Fatalf("ComputeForkVersion after the fork epoch = %v, want current version", got)
	}
}

func TestComputeDomain_PacksDomainTypeForkVersionAndRoot(t *testing.T) {
	domainType := [4]byte{0x01, 0x00, 0x00, 0x00}
	forkVersion := primitives.Bytes4{0xaa, 0xbb, 0xcc, 0xdd}
	gvr := primitives.Bytes32{0x11, 0x22}

	got := ComputeDomain(domainType, forkVersion, gvr)
	if got[0:4] != [4]byte(domainType) {
		t.Fatalf("domain[0:4] = %x, want domain type %x", got[0:4], domainType)
	}
	var gotFork [4]byte
	copy(gotFork[:], got[4:8])
	if gotFork != [4]byte(forkVersion) {
		t.Fatalf("domain[4:8] = %x, want fork version %x", gotFork, forkVersion)
	}
	var gotRoot [24]byte
	copy(gotRoot[:], got[8:32])
	var wantRoot [24]byte
	copy(wantRoot[:], gvr[:24])
	if gotRoot != wantRoot {
		t.Fatalf("domain[8:32] = %x, want genesis validators root prefix %x", gotRoot, wantRoot)
	}
}

func TestSigningRoot_SensitiveToDomain(t *testing.T) {
	object := &Checkpoint{Epoch: 1, Root: primitives.Bytes32{0x42}}

	r1, err := SigningRoot(object, primitives.Bytes32{0x01})
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	r2, err := SigningRoot(object, primitives.Bytes32{0x02})
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if r1 == r2 {
		t.Fatal("SigningRoot must depend on the domain, not just the object")
	}

	r1Again, err := SigningRoot(object, primitives.Bytes32{0x01})
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	if r1 != r1Again {
		t.Fatal("SigningRoot must be deterministic for the same object and domain")
	}
}

func TestFixedDepositDomain_UsesGenesisForkVersionRegardlessOfState(t *testing.T) {
	cfg := params.Mainnet()
	gvr := primitives.Bytes32{0x33}

	got := FixedDepositDomain(cfg, gvr)
	want := ComputeDomain(cfg.DomainDeposit, cfg.GenesisForkVersion, gvr)
	if got != want {
		t.Fatalf("FixedDepositDomain = %x, want %x", got, want)
	}
}
