package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethcore/beaconcore/containers"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/protoarray"
	"github.com/ethcore/beaconcore/ssz"
	"github.com/ethcore/beaconcore/store"
	"github.com/ethcore/beaconcore/transition"
)

// Orchestrator drives the three consensus components — store,
// transition, protoarray — through one block at a time, the way the
// teacher's node.Node threads its chain/consensus/forkchoice packages
// together, but generalized to phase-0 semantics and narrowed to the
// single OnBlock entry point spec.md §4.G (as expanded in
// SPEC_FULL.md) asks for; networking and validator duties are
// explicitly out of scope (spec.md Non-goals).
type Orchestrator struct {
	mu sync.Mutex

	cfg   *params.SpecConfig
	store *store.Store
	fc    *protoarray.ProtoArray
	votes map[primitives.ValidatorIndex]store.VoteTracker

	events *EventSink
	logger *slog.Logger

	head primitives.Bytes32
}

// New seeds the store and proto-array with a genesis block/state pair
// and returns an Orchestrator ready to accept blocks via OnBlock.
//
// Genesis is seeded as its own justified and finalized checkpoint
// (rather than taking genesisState's own, zero-valued
// CurrentJustifiedCheckpoint/FinalizedCheckpoint fields at face value),
// matching phase-0's get_forkchoice_store anchor handling: the anchor
// block is trusted unconditionally, so FindHead has a root to descend
// from from the first call.
func New(cfg *params.SpecConfig, st *store.Store, genesisBlock *containers.SignedBeaconBlock, genesisState *containers.BeaconState, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	blockRoot, err := ssz.HashTreeRoot(&genesisBlock.Message)
	if err != nil {
		return nil, err
	}
	stateRoot, err := ssz.HashTreeRoot(genesisState)
	if err != nil {
		return nil, err
	}

	anchor := containers.Checkpoint{Epoch: genesisState.CurrentEpoch(cfg.SlotsPerEpoch), Root: blockRoot}

	tx := st.Begin()
	tx.PutBlock(blockRoot, primitives.Bytes32{}, genesisBlock.Message.Slot, genesisBlock)
	tx.PutState(stateRoot, blockRoot, genesisBlock.Message.Slot, genesisState)
	tx.SetCheckpoint(store.Justified, anchor)
	tx.SetCheckpoint(store.BestJustified, anchor)
	tx.SetCheckpoint(store.Finalized, anchor)
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	fc := protoarray.New(cfg.ProtoArrayPruneThreshold)
	fc.OnBlock(genesisBlock.Message.Slot, blockRoot, nil, stateRoot, anchor.Epoch, anchor.Epoch)

	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		fc:     fc,
		votes:  make(map[primitives.ValidatorIndex]store.VoteTracker),
		events: NewEventSink(),
		logger: logger,
		head:   blockRoot,
	}, nil
}

// Events returns the sink every OnBlock call publishes to.
func (o *Orchestrator) Events() *EventSink {
	return o.events
}

// Head returns the current canonical head, as of the last committed
// block.
func (o *Orchestrator) Head() primitives.Bytes32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.head
}

// OnBlock implements spec.md §4.G's on_block handler: it regenerates
// the parent state if necessary, runs the state-transition function,
// commits the resulting block/state/checkpoints to the store in one
// transaction, inserts the block into the proto-array, folds in any
// attestations it carries as LMD-GHOST votes, recomputes the head, and
// publishes the HeadUpdate/Finalized events that follow.
//
// An error at any stage aborts before anything is published or
// committed to the store — a rejected block leaves the orchestrator's
// state exactly as it was before the call.
func (o *Orchestrator) OnBlock(ctx context.Context, signed *containers.SignedBeaconBlock) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	block := &signed.Message
	parentRoot := block.ParentRoot

	parentState, ok := o.store.StateByBlock(parentRoot)
	if !ok {
		regenerated, err := o.store.Regenerate(parentRoot, o.store)
		if err != nil {
			return err
		}
		parentState = regenerated
	}
	oldBalances := append([]primitives.Gwei(nil), parentState.Balances...)
	prevJustified := o.store.Checkpoint(store.Justified)
	prevFinalized := o.store.Checkpoint(store.Finalized)

	post, err := transition.Transition(parentState, signed, o.cfg, true)
	if err != nil {
		o.logger.Warn("rejected block", "slot", block.Slot, "parent_root", parentRoot, "err", err)
		return err
	}

	blockRoot, err := ssz.HashTreeRoot(block)
	if err != nil {
		return err
	}
	stateRoot, err := ssz.HashTreeRoot(post)
	if err != nil {
		return err
	}

	// Store checkpoints only ever advance, mirroring the real
	// fork-choice on_block handler: a freshly processed block's state
	// reports its own current_justified/finalized_checkpoint fields,
	// which start at the zero checkpoint and only move forward at an
	// epoch boundary — they must never be allowed to regress the
	// anchored (genesis) checkpoint the store already holds.
	newJustified := prevJustified
	if post.CurrentJustifiedCheckpoint.Epoch > prevJustified.Epoch {
		newJustified = post.CurrentJustifiedCheckpoint
	}
	newFinalized := prevFinalized
	if post.FinalizedCheckpoint.Epoch > prevFinalized.Epoch {
		newFinalized = post.FinalizedCheckpoint
	}

	o.applyAttestationVotes(post, block.Body.Attestations)

	tx := o.store.Begin()
	tx.PutBlock(blockRoot, parentRoot, block.Slot, signed)
	tx.PutState(stateRoot, blockRoot, block.Slot, post)
	tx.SetCheckpoint(store.Justified, newJustified)
	tx.SetCheckpoint(store.Finalized, newFinalized)
	for idx, v := range o.votes {
		tx.SetVote(idx, v)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	o.fc.OnBlock(block.Slot, blockRoot, &parentRoot, stateRoot, newJustified.Epoch, newFinalized.Epoch)

	deltas, nextVotes := computeDeltas(o.votes, o.fc.Indices, len(o.fc.Nodes), oldBalances, post.Balances)
	o.votes = nextVotes
	if err := o.fc.ApplyScoreChanges(deltas, newJustified.Epoch, newFinalized.Epoch); err != nil {
		return err
	}

	head, err := o.fc.FindHead(newJustified.Root)
	if err != nil {
		return err
	}

	if newFinalized.Epoch > prevFinalized.Epoch {
		if err := o.fc.MaybePrune(newFinalized.Root); err != nil {
			o.logger.Warn("prune failed", "finalized_root", newFinalized.Root, "err", err)
		}
		o.events.Finalized <- newFinalized
	}

	if head != o.head {
		o.head = head
		o.events.HeadUpdate <- head
	}
	return nil
}

// applyAttestationVotes implements spec.md §4.G's LMD-GHOST vote
// resolution: every attestation in a newly processed block updates its
// attesters' latest message, provided the attestation's target epoch is
// not older than the validator's current one (a validator only ever
// moves its vote forward in time).
func (o *Orchestrator) applyAttestationVotes(s *containers.BeaconState, atts []containers.Attestation) {
	for i := range atts {
		indexed, err := transition.GetIndexedAttestation(s, &atts[i], o.cfg)
		if err != nil {
			continue
		}
		target := atts[i].Data.BeaconBlockRoot
		targetEpoch := atts[i].Data.Target.Epoch
		for _, idx := range indexed.AttestingIndices {
			v := o.votes[idx]
			if targetEpoch < v.NextEpoch {
				continue
			}
			v.NextRoot = target
			v.NextEpoch = targetEpoch
			o.votes[idx] = v
		}
	}
}
