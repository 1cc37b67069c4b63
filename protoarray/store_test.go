package protoarray

import (
	"testing"

	"github.com/ethcore/beaconcore/primitives"
)

func root(b byte) primitives.Bytes32 {
	var r primitives.Bytes32
	r[31] = b
	return r
}

func TestFindHead_SingleChain(t *testing.T) {
	p := New(256)
	genesis := root(0)
	p.OnBlock(0, genesis, nil, root(0), 0, 0)

	a := root(1)
	p.OnBlock(1, a, &genesis, root(1), 0, 0)

	b := root(2)
	p.OnBlock(2, b, &a, root(2), 0, 0)

	deltas := make([]int64, len(p.Nodes))
	if err := p.ApplyScoreChanges(deltas, 0, 0); err != nil {
		t.Fatalf("ApplyScoreChanges: %v", err)
	}

	head, err := p.FindHead(genesis)
	if err != nil {
		t.Fatalf("FindHead: %v", err)
	}
	if head != b {
		t.Fatalf("head = %x, want %x", head, b)
	}
}

func TestFindHead_HeavierForkWins(t *testing.T) {
	p := New(256)
	genesis := root(0)
	p.OnBlock(0, genesis, nil, root(0), 0, 0)

	b1 := root(1)
	p.OnBlock(1, b1, &genesis, root(1), 0, 0)
	b2 := root(2)
	p.OnBlock(1, b2, &genesis, root(2), 0, 0)
	c2 := root(3)
	p.OnBlock(2, c2, &b2, root(3), 0, 0)

	deltas := make([]int64, len(p.Nodes))
	deltas[p.Indices[c2]] = 100 // weight flows from c2 up to b2
	deltas[p.Indices[b1]] = 1
	if err := p.ApplyScoreChanges(deltas, 0, 0); err != nil {
		t.Fatalf("ApplyScoreChanges: %v", err)
	}

	head, err := p.FindHead(genesis)
	if err != nil {
		t.Fatalf("FindHead: %v", err)
	}
	if head != c2 {
		t.Fatalf("head = %x, want c2 %x", head, c2)
	}
}

func TestApplyScoreChanges_WrongLength(t *testing.T) {
	p := New(256)
	p.OnBlock(0, root(0), nil, root(0), 0, 0)
	if err := p.ApplyScoreChanges([]int64{1, 2}, 0, 0); err == nil {
		t.Fatal("expected error for mismatched delta vector length")
	}
}

func TestMaybePrune(t *testing.T) {
	p := New(1)
	genesis := root(0)
	p.OnBlock(0, genesis, nil, root(0), 0, 0)
	a := root(1)
	p.OnBlock(1, a, &genesis, root(1), 0, 0)
	b := root(2)
	p.OnBlock(2, b, &a, root(2), 0, 0)

	deltas := make([]int64, len(p.Nodes))
	if err := p.ApplyScoreChanges(deltas, 0, 0); err != nil {
		t.Fatalf("ApplyScoreChanges: %v", err)
	}

	if err := p.MaybePrune(a); err != nil {
		t.Fatalf("MaybePrune: %v", err)
	}
	if _, ok := p.Indices[genesis]; ok {
		t.Fatal("genesis should have been pruned")
	}
	if _, ok := p.Indices[a]; !ok {
		t.Fatal("finalized root a should remain")
	}
	bNode := p.Nodes[p.Indices[b]]
	if bNode.ParentIndex != p.Indices[a] {
		t.Fatalf("b.ParentIndex = %d, want %d", bNode.ParentIndex, p.Indices[a])
	}
}

func TestOnBlock_Idempotent(t *testing.T) {
	p := New(256)
	genesis := root(0)
	p.OnBlock(0, genesis, nil, root(0), 0, 0)
	p.OnBlock(0, genesis, nil, root(0), 0, 0)
	if len(p.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1 (OnBlock must be idempotent)", len(p.Nodes))
	}
}
