package orchestrator

import (
	"context"
	"testing"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/crypto/bls"
	"github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/genesis"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
	"github.com/ethcore/beaconcore/store"
	"github.com/ethcore/beaconcore/transition"
)

func buildGenesis(t *testing.T, cfg *params.SpecConfig, count uint64) (*containers.BeaconState, *containers.SignedBeaconBlock, []*bls.SecretKey) {
	t.Helper()
	deposits, keys := genesis.DeterministicDeposits(cfg, primitives.Bytes32{}, count, primitives.Gwei(cfg.MaxEffectiveBalance))
	state, err := genesis.BeaconState(cfg, 1700000000, primitives.Bytes32{0xaa}, deposits)
	if err != nil {
		t.Fatalf("genesis.BeaconState: %v", err)
	}
	block, err := genesis.Block(state)
	if err != nil {
		t.Fatalf("genesis.Block: %v", err)
	}
	return state, block, keys
}

// signBlock advances a clone of parent to block.Slot, derives the
// proposer for that slot, stamps ProposerIndex, fills in the
// post-processing state root placeholder, and signs over the
// resulting hash-tree-root the same way transition.Transition expects.
func signBlock(t *testing.T, cfg *params.SpecConfig, parent *containers.BeaconState, block *containers.BeaconBlock, keys []*bls.SecretKey) *containers.SignedBeaconBlock {
	t.Helper()
	advanced := parent.Clone()
	if err := transition.ProcessSlots(advanced, block.Slot, cfg); err != nil {
		t.Fatalf("ProcessSlots: %v", err)
	}
	proposerIndex, err := transition.GetBeaconProposerIndex(advanced, cfg)
	if err != nil {
		t.Fatalf("GetBeaconProposerIndex: %v", err)
	}
	block.ProposerIndex = proposerIndex

	epoch := advanced.CurrentEpoch(cfg.SlotsPerEpoch)
	randaoDomain := containers.Domain(advanced, cfg.DomainRandao, epoch)
	randaoRoot, err := containers.SigningRoot(epoch, randaoDomain)
	if err != nil {
		t.Fatalf("SigningRoot(epoch): %v", err)
	}
	randaoSig := keys[uint64(proposerIndex)].Sign(randaoRoot[:])
	copy(block.Body.RandaoReveal[:], randaoSig.Bytes())

	domain := containers.Domain(advanced, cfg.DomainBeaconProposer, epoch)
	signingRoot, err := containers.SigningRoot(block, domain)
	if err != nil {
		t.Fatalf("SigningRoot: %v", err)
	}
	sig := keys[uint64(proposerIndex)].Sign(signingRoot[:])

	var sigBytes primitives.BlsSignature
	copy(sigBytes[:], sig.Bytes())
	return &containers.SignedBeaconBlock{Message: *block, Signature: sigBytes}
}

func TestNew_SeedsGenesisHead(t *testing.T) {
	cfg := params.Mainnet()
	state, block, _ := buildGenesis(t, cfg, 8)

	st := store.New(cfg, store.Archive)
	o, err := New(cfg, st, block, state, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	genesisRoot, err := ssz.HashTreeRoot(&block.Message)
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}
	if o.Head() != genesisRoot {
		t.Fatalf("Head() = %x, want genesis root %x", o.Head(), genesisRoot)
	}

	cp := st.Checkpoint(store.Finalized)
	if cp.Root != genesisRoot || cp.Epoch != 0 {
		t.Fatalf("Finalized checkpoint = %+v, want epoch 0 root %x", cp, genesisRoot)
	}
}

func TestOnBlock_EmptyBlockAdvancesHead(t *testing.T) {
	cfg := params.Mainnet()
	state, genesisBlock, keys := buildGenesis(t, cfg, 8)

	st := store.New(cfg, store.Archive)
	o, err := New(cfg, st, genesisBlock, state, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	genesisRoot, _ := ssz.HashTreeRoot(&genesisBlock.Message)
	next := &containers.BeaconBlock{
		Slot:       1,
		ParentRoot: genesisRoot,
		Body: containers.BeaconBlockBody{
			Eth1Data: state.Eth1Data,
		},
	}
	signed := signBlock(t, cfg, state, next, keys)

	if err := o.OnBlock(context.Background(), signed); err != nil {
		t.Fatalf("OnBlock: %v", err)
	}

	blockRoot, _ := ssz.HashTreeRoot(&signed.Message)
	if o.Head() != blockRoot {
		t.Fatalf("Head() = %x, want %x", o.Head(), blockRoot)
	}

	select {
	case got := <-o.Events().HeadUpdate:
		if got != blockRoot {
			t.Fatalf("HeadUpdate event = %x, want %x", got, blockRoot)
		}
	default:
		t.Fatal("expected a HeadUpdate event")
	}
}

func TestOnBlock_RejectsBadProposerSignature(t *testing.T) {
	cfg := params.Mainnet()
	state, genesisBlock, keys := buildGenesis(t, cfg, 8)

	st := store.New(cfg, store.Archive)
	o, err := New(cfg, st, genesisBlock, state, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	genesisRoot, _ := ssz.HashTreeRoot(&genesisBlock.Message)
	next := &containers.BeaconBlock{
		Slot:       1,
		ParentRoot: genesisRoot,
		Body: containers.BeaconBlockBody{
			Eth1Data: state.Eth1Data,
		},
	}
	signed := signBlock(t, cfg, state, next, keys)
	signed.Signature[0] ^= 0xff

	err = o.OnBlock(context.Background(), signed)
	if err == nil {
		t.Fatal("expected an error for a corrupted proposer signature")
	}
	var sigErr *errors.InvalidSignature
	if !errors.As(err, &sigErr) {
		t.Fatalf("got %T, want *errors.InvalidSignature", err)
	}

	if o.Head() != genesisRoot {
		t.Fatalf("Head() = %x, want unchanged genesis root %x after rejected block", o.Head(), genesisRoot)
	}
}
