package store

import (
	"sync"

	"github.com/ethcore/beaconcore/containers"
	beaconerrors "github.com/ethcore/beaconcore/errors"
	"github.com/ethcore/beaconcore/params"
	"github.com/ethcore/beaconcore/primitives"
	"github.com/ethcore/beaconcore/ssz"
	"github.com/ethcore/beaconcore/transition"
)

// Store is the dual hot/cold chain store of spec.md §4.F: a mutex-guarded
// hot set of non-finalized blocks, states, votes, and checkpoints, backed
// by an optional pebble cold archive for finalized history.
type Store struct {
	mu  sync.Mutex
	cfg *params.SpecConfig

	blocks     map[primitives.Bytes32]*containers.SignedBeaconBlock
	blockMeta  map[primitives.Bytes32]blockMeta
	states     map[primitives.Bytes32]*containers.BeaconState
	stateIndex map[primitives.Bytes32]stateLookup
	stateByBlock map[primitives.Bytes32]primitives.Bytes32

	votes       map[primitives.ValidatorIndex]VoteTracker
	checkpoints map[CheckpointKind]containers.Checkpoint

	mode Mode
	cold *coldStore
}

// New returns an empty store with no cold archive (everything stays
// hot/in-memory; suitable for tests and ephemeral nodes).
func New(cfg *params.SpecConfig, mode Mode) *Store {
	return &Store{
		cfg:          cfg,
		blocks:       make(map[primitives.Bytes32]*containers.SignedBeaconBlock),
		blockMeta:    make(map[primitives.Bytes32]blockMeta),
		states:       make(map[primitives.Bytes32]*containers.BeaconState),
		stateIndex:   make(map[primitives.Bytes32]stateLookup),
		stateByBlock: make(map[primitives.Bytes32]primitives.Bytes32),
		votes:        make(map[primitives.ValidatorIndex]VoteTracker),
		checkpoints:  make(map[CheckpointKind]containers.Checkpoint),
		mode:         mode,
	}
}

// Open returns a store whose finalized archive is persisted under dir.
func Open(cfg *params.SpecConfig, mode Mode, dir string) (*Store, error) {
	s := New(cfg, mode)
	cold, err := openCold(dir)
	if err != nil {
		return nil, err
	}
	s.cold = cold
	return s, nil
}

// Close releases the cold archive, if any.
func (s *Store) Close() error {
	return s.cold.Close()
}

// Get implements BlockProvider by answering from the hot set, falling
// back to the cold archive.
func (s *Store) Get(root primitives.Bytes32) (*containers.SignedBeaconBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(root)
}

func (s *Store) getLocked(root primitives.Bytes32) (*containers.SignedBeaconBlock, bool) {
	if b, ok := s.blocks[root]; ok {
		return b, true
	}
	if s.cold == nil {
		return nil, false
	}
	b, ok, err := s.cold.getBlock(root)
	if err != nil || !ok {
		return nil, false
	}
	return b, true
}

// selfProvider adapts a Store already held under s.mu to the
// BlockProvider interface, so finalization's regeneration fallback does
// not re-enter the lock.
type selfProvider struct{ s *Store }

func (p *selfProvider) Get(root primitives.Bytes32) (*containers.SignedBeaconBlock, bool) {
	return p.s.getLocked(root)
}

// StateByBlock returns the materialized state for root, if held hot or
// cold, without attempting regeneration.
func (s *Store) StateByBlock(root primitives.Bytes32) (*containers.BeaconState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateForBlockLocked(root)
}

func (s *Store) stateForBlockLocked(root primitives.Bytes32) (*containers.BeaconState, bool) {
	if sr, ok := s.stateByBlock[root]; ok {
		if st, ok := s.states[sr]; ok {
			return st, true
		}
	}
	if s.cold == nil {
		return nil, false
	}
	st, ok, err := s.cold.getState(root)
	if err != nil || !ok {
		return nil, false
	}
	return st, true
}

// Checkpoint returns the current value of the named checkpoint slot.
func (s *Store) Checkpoint(kind CheckpointKind) containers.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[kind]
}

// Vote returns the current vote tracker for a validator index.
func (s *Store) Vote(index primitives.ValidatorIndex) (VoteTracker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.votes[index]
	return v, ok
}

// Regenerate implements spec.md §4.F's state regeneration: finds the
// nearest ancestor of root with a materialized state, then replays the
// state-transition function forward block-by-block using provider to
// fetch the intervening blocks.
func (s *Store) Regenerate(root primitives.Bytes32, provider BlockProvider) (*containers.BeaconState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regenerateLocked(root, provider)
}

func (s *Store) regenerateLocked(root primitives.Bytes32, provider BlockProvider) (*containers.BeaconState, error) {
	if st, ok := s.stateForBlockLocked(root); ok {
		return st, nil
	}

	var chain []primitives.Bytes32
	cur := root
	var base *containers.BeaconState
	for {
		chain = append(chain, cur)
		meta, ok := s.blockMeta[cur]
		if !ok {
			return nil, &beaconerrors.UnknownBlock{Root: cur}
		}
		if meta.ParentRoot.IsZero() {
			return nil, &beaconerrors.Corrupt{Reason: "store: no ancestor state reachable for regeneration"}
		}
		if st, ok := s.stateForBlockLocked(meta.ParentRoot); ok {
			base = st
			break
		}
		cur = meta.ParentRoot
	}

	for i := len(chain) - 1; i >= 0; i-- {
		signed, ok := provider.Get(chain[i])
		if !ok {
			return nil, &beaconerrors.UnknownBlock{Root: chain[i]}
		}
		next, err := transition.Transition(base, signed, s.cfg, true)
		if err != nil {
			return nil, err
		}
		base = next
	}
	return base, nil
}

// finalize implements spec.md §4.F's finalization sequence, invoked by
// Commit when the FINALIZED checkpoint advances. The caller must already
// hold s.mu.
func (s *Store) finalize(cp containers.Checkpoint) error {
	root := cp.Root
	meta, ok := s.blockMeta[root]
	if !ok {
		return &beaconerrors.Corrupt{Reason: "store: finalized block root unknown"}
	}

	var chain []primitives.Bytes32
	cur := root
	for {
		m, ok := s.blockMeta[cur]
		if !ok {
			return &beaconerrors.Corrupt{Reason: "store: missing ancestor during finalization walk"}
		}
		if m.Finalized {
			break
		}
		chain = append(chain, cur)
		if m.ParentRoot.IsZero() {
			break
		}
		cur = m.ParentRoot
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	onChain := make(map[primitives.Bytes32]bool, len(chain))
	for _, r := range chain {
		onChain[r] = true
		m := s.blockMeta[r]
		m.Finalized = true
		s.blockMeta[r] = m
	}

	if s.cold != nil {
		for _, r := range chain {
			m := s.blockMeta[r]
			persist := s.mode == Archive && uint64(m.Slot)%s.cfg.StateStorageFrequency == 0
			if !persist && r != root {
				continue
			}
			st, ok := s.stateForBlockLocked(r)
			if !ok {
				regenerated, err := s.regenerateLocked(r, &selfProvider{s})
				if err != nil {
					return err
				}
				st = regenerated
			}
			if b, ok := s.blocks[r]; ok {
				if err := s.cold.putBlock(r, b); err != nil {
					return err
				}
			}
			if err := s.cold.putState(r, st); err != nil {
				return err
			}
		}
	}

	finalizedSlot := meta.Slot
	for r, m := range s.blockMeta {
		if m.Slot <= finalizedSlot && r != root {
			delete(s.blocks, r)
			delete(s.blockMeta, r)
			if sr, ok := s.stateByBlock[r]; ok {
				delete(s.states, sr)
				delete(s.stateIndex, sr)
				delete(s.stateByBlock, r)
			}
		}
	}
	if s.mode == Prune {
		for r := range onChain {
			if r == root {
				continue
			}
			if sr, ok := s.stateByBlock[r]; ok {
				delete(s.states, sr)
				delete(s.stateIndex, sr)
				delete(s.stateByBlock, r)
			}
		}
	}
	return nil
}

// stateRoot computes the hash-tree-root of a state, used to key the hot
// state map the same way a StoreTransaction's caller would derive it.
func stateRoot(s *containers.BeaconState) (primitives.Bytes32, error) {
	return ssz.HashTreeRoot(s)
}
