package ssz

import (
	"bytes"
	"reflect"
	"testing"

	bitfield "github.com/OffchainLabs/go-bitfield"

	"github.com/ethcore/beaconcore/crypto"
	sszerr "github.com/ethcore/beaconcore/errors"
)

type fixedHeader struct {
	Slot uint64
	Root [32]byte `ssz-size:"32"`
}

func TestMarshalUnmarshal_FixedContainerRoundTrip(t *testing.T) {
	h := fixedHeader{Slot: 5, Root: [32]byte{1, 2, 3}}

	b, err := Marshal(&h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out fixedHeader
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, h)
	}

	root1, err := HashTreeRoot(&h)
	if err != nil {
		t.Fatalf("HashTreeRoot(original): %v", err)
	}
	root2, err := HashTreeRoot(&out)
	if err != nil {
		t.Fatalf("HashTreeRoot(decoded): %v", err)
	}
	if root1 != root2 {
		t.Fatalf("hash_tree_root(deserialize(serialize(x))) != hash_tree_root(x): %x != %x", root2, root1)
	}

	independent := fixedHeader{Slot: 5, Root: [32]byte{1, 2, 3}}
	root3, err := HashTreeRoot(&independent)
	if err != nil {
		t.Fatalf("HashTreeRoot(independent): %v", err)
	}
	if root3 != root1 {
		t.Fatal("two structurally distinct instances with equal field data must hash to equal roots")
	}
}

type listBody struct {
	Fixed uint64
	Items []uint64 `ssz-max:"16"`
}

func TestMarshalUnmarshal_VariableContainerRoundTrip(t *testing.T) {
	body := listBody{Fixed: 9, Items: []uint64{10, 20, 30}}

	schema := SchemaOf(reflect.TypeOf(body))
	if !schema.Fields[1].Schema.SuperNode {
		t.Fatal("a ssz-max uint64 slice field is expected to default to the super-node representation")
	}

	b, err := Marshal(&body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out listBody
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Fixed != body.Fixed || !reflect.DeepEqual(out.Items, body.Items) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, body)
	}

	root1, err := HashTreeRoot(&body)
	if err != nil {
		t.Fatalf("HashTreeRoot(original): %v", err)
	}
	root2, err := HashTreeRoot(&out)
	if err != nil {
		t.Fatalf("HashTreeRoot(decoded): %v", err)
	}
	if root1 != root2 {
		t.Fatal("decoded value must hash identically to the original")
	}
}

type byteListFixture struct {
	Data []byte `ssz-max:"64"`
}

func TestListHashTreeRoot_EmptyMatchesZeroHashRule(t *testing.T) {
	empty := byteListFixture{}
	schema := SchemaOf(reflect.TypeOf(empty))
	dataSchema := schema.Fields[0].Schema

	limitChunks := chunkCapacity(dataSchema.Elem, dataSchema.Limit)
	depth := ceilLog2(limitChunks)

	root, err := HashTreeRoot(&empty)
	if err != nil {
		t.Fatalf("HashTreeRoot: %v", err)
	}
	want := crypto.HashConcat(ZeroHash(depth), Uint64Chunk(0))
	if root != want {
		t.Fatalf("empty list root = %x, want sha256(zero_hash(depth) || uint256(0)) = %x", root, want)
	}
}

func TestListHashTreeRoot_NonEmptyRoundTrip(t *testing.T) {
	f := byteListFixture{Data: []byte{1, 2, 3, 4, 5}}

	b, err := Marshal(&f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out byteListFixture
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(out.Data, f.Data) {
		t.Fatalf("round trip mismatch: got %v, want %v", out.Data, f.Data)
	}

	root1, _ := HashTreeRoot(&f)
	root2, _ := HashTreeRoot(&out)
	if root1 != root2 {
		t.Fatal("decoded value must hash identically to the original")
	}
}

type bitlistFixture struct {
	Bits bitfield.Bitlist `ssz:"bitlist" ssz-max:"16"`
}

func TestBitlist_RoundTripAndBitAt(t *testing.T) {
	raw := NewBitlist(5)
	raw[0] |= 0b00001001 // set bit 0 and bit 3, leaving the sentinel bit (5) and padding intact

	f := bitlistFixture{Bits: bitfield.Bitlist(raw)}

	b, err := Marshal(&f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out bitlistFixture
	if err := Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal([]byte(out.Bits), []byte(f.Bits)) {
		t.Fatalf("round trip mismatch: got %v, want %v", []byte(out.Bits), []byte(f.Bits))
	}
	if out.Bits.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", out.Bits.Len())
	}
	if !out.Bits.BitAt(0) || out.Bits.BitAt(1) || !out.Bits.BitAt(3) {
		t.Fatal("decoded bitlist does not preserve the bits that were set")
	}
}

func TestBitlist_RejectsMissingSentinel(t *testing.T) {
	var out bitlistFixture
	// a bitlist field's SSZ bytes must carry the terminating 1-bit
	// sentinel; zero-length bytes can never encode one.
	err := unmarshalValue(nil, reflect.ValueOf(&out).Elem().Field(0), SchemaOf(reflect.TypeOf(out)).Fields[0].Schema)
	var badSSZ *sszerr.BadSSZ
	if err == nil {
		t.Fatal("expected BadSSZ for a bitlist with no sentinel bit")
	}
	if !sszerr.As(err, &badSSZ) {
		t.Fatalf("expected *errors.BadSSZ, got %T: %v", err, err)
	}
}

type bitVectorFixture struct {
	Bits [1]byte `ssz:"bitvector" ssz-size:"4"`
}

func TestBitvector_RejectsNonZeroPadding(t *testing.T) {
	f := bitVectorFixture{Bits: [1]byte{0b00010000}} // bit 4 is outside the 4-bit vector

	b, err := Marshal(&f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out bitVectorFixture
	err = Unmarshal(b, &out)
	var badSSZ *sszerr.BadSSZ
	if !sszerr.As(err, &badSSZ) {
		t.Fatalf("expected *errors.BadSSZ for non-zero bitvector padding, got %v", err)
	}
}

type variableElem struct {
	Data []byte `ssz-max:"8"`
}

func TestUnmarshalSequence_RejectsMisalignedOffset(t *testing.T) {
	schema := SchemaOf(reflect.TypeOf([]variableElem{}))
	var out []variableElem
	rv := reflect.ValueOf(&out).Elem()

	// a valid single-element offset table would read {4}; 5 is not a
	// multiple of 4 and must be rejected before any element is decoded.
	bad := []byte{5, 0, 0, 0}
	err := unmarshalValue(bad, rv, schema)
	var badSSZ *sszerr.BadSSZ
	if !sszerr.As(err, &badSSZ) {
		t.Fatalf("expected *errors.BadSSZ for a misaligned offset, got %v", err)
	}
}

func TestUnmarshalSequence_RejectsNonMonotonicOffsets(t *testing.T) {
	schema := SchemaOf(reflect.TypeOf([]variableElem{}))
	var out []variableElem
	rv := reflect.ValueOf(&out).Elem()

	// two offsets describing a two-element sequence where the second
	// offset points backwards before the first.
	bad := []byte{8, 0, 0, 0, 4, 0, 0, 0}
	err := unmarshalValue(bad, rv, schema)
	var badSSZ *sszerr.BadSSZ
	if !sszerr.As(err, &badSSZ) {
		t.Fatalf("expected *errors.BadSSZ for non-monotonic offsets, got %v", err)
	}
}

func TestGetSet_StructuralSharing(t *testing.T) {
	depth := uint64(2)
	leaves := []Node{
		NewLeaf(Uint64Chunk(1)),
		NewLeaf(Uint64Chunk(2)),
		NewLeaf(Uint64Chunk(3)),
		NewLeaf(Uint64Chunk(4)),
	}
	root := TreeFromChunks(leaves, depth)

	if got := Get(root, depth, 2); got.Root() != leaves[2].Root() {
		t.Fatalf("Get(root, depth, 2) = %x, want %x", got.Root(), leaves[2].Root())
	}

	replacement := NewLeaf(Uint64Chunk(99))
	newRoot := Set(root, depth, 2, replacement)

	if newRoot.Root() == root.Root() {
		t.Fatal("Set must produce a new root when the replaced leaf differs")
	}
	if got := Get(newRoot, depth, 2); got.Root() != replacement.Root() {
		t.Fatalf("Get(newRoot, depth, 2) = %x, want replacement %x", got.Root(), replacement.Root())
	}
	if got := Get(root, depth, 2); got.Root() != leaves[2].Root() {
		t.Fatal("the original tree must be unchanged after Set (persistence)")
	}

	// the sibling subtree covering indices {0,1} must be shared, not
	// rebuilt: its root is identical in both trees.
	origLeft := root.(*branch).left
	newLeft := newRoot.(*branch).left
	if origLeft.Root() != newLeft.Root() {
		t.Fatal("unrelated subtree must be shared across the update, not rebuilt")
	}
}

func TestSuperNode_HashMatchesPlainChunking(t *testing.T) {
	// 40 packed uint64 values spanning two super-node groups
	// (superNodeSpanChunks=8 chunks/group * 4 elements/chunk = 32
	// elements/group).
	raw := make([]byte, 40*8)
	for i := range raw {
		raw[i] = byte(i*7 + 1)
	}

	const outerDepth = 2 // width 4, enough to hold the 2 groups raw actually needs

	groups := groupChunksForSuperNode(raw)
	superRoot := TreeFromSuperNodeGroups(groups, outerDepth).Root()

	plainChunks := PackBasic(raw)
	plainRoot := TreeFromChunks(plainChunks, outerDepth+superNodeSpanDepth).Root()

	if superRoot != plainRoot {
		t.Fatalf("super-node root %x != plain-chunk root %x for identical leaf data", superRoot, plainRoot)
	}
}

func TestSuperNode_DepthArithmeticMatchesBalancesShapedField(t *testing.T) {
	type fixture struct {
		Balances []uint64 `ssz-max:"1099511627776"`
	}
	schema := SchemaOf(reflect.TypeOf(fixture{}))
	bf := schema.Fields[0].Schema
	if !bf.SuperNode {
		t.Fatal("a Balances-shaped ssz-max uint64 field must use the super-node representation")
	}

	limitChunks := chunkCapacity(bf.Elem, bf.Limit)
	outerDepth := ceilLog2((limitChunks + superNodeSpanChunks - 1) / superNodeSpanChunks)

	if got, want := outerDepth+superNodeSpanDepth, ceilLog2(limitChunks); got != want {
		t.Fatalf("outerDepth(%d)+superNodeSpanDepth(%d) = %d, want ceilLog2(limitChunks) = %d", outerDepth, superNodeSpanDepth, got, want)
	}
}
