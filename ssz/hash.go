package ssz

import (
	"reflect"

	"github.com/ethcore/beaconcore/primitives"
)

// HashTreeRoot computes the SHA-256-based Merkle commitment of v
// (spec.md §4.B). The underlying tree is rebuilt and its branch digests
// memoized on first Root() call; see Tree for callers that need the
// tree itself (e.g. to perform a Get/Set and reuse unrelated subtrees).
func HashTreeRoot(v any) (primitives.Bytes32, error) {
	n, err := Tree(v)
	if err != nil {
		return primitives.Bytes32{}, err
	}
	return n.Root(), nil
}

// Tree builds the persistent Node tree for v.
func Tree(v any) (Node, error) {
	rv := reflect.ValueOf(v)
	schema := SchemaOf(derefType(reflect.TypeOf(v)))
	return buildTree(indirect(rv), schema)
}

func buildTree(rv reflect.Value, schema *Schema) (Node, error) {
	rv = indirect(rv)
	switch schema.Kind {
	case KindBasic:
		chunk, err := basicChunk(rv, schema)
		if err != nil {
			return nil, err
		}
		return NewLeaf(chunk), nil

	case KindByteVector:
		chunks := PackBasic(bytesOf(rv))
		depth := ceilLog2((schema.ByteLen + 31) / 32)
		return TreeFromChunks(chunks, depth), nil

	case KindBitVector:
		chunks := PackBasic(bytesOf(rv))
		depth := ceilLog2((schema.ByteLen + 31) / 32)
		return TreeFromChunks(chunks, depth), nil

	case KindBitList:
		raw := bytesOf(rv)
		bitLen := bitlistBitLen(raw)
		chunks := PackBasic(raw)
		limitChunks := (schema.Limit + 255) / 256
		content := MerkleizeChunks(chunks, limitChunks)
		return NewBranch(content, NewLeaf(Uint64Chunk(bitLen))), nil

	case KindList:
		content, count, err := buildSequenceContent(rv, schema.Elem, schema.Limit, schema.SuperNode)
		if err != nil {
			return nil, err
		}
		return NewBranch(content, NewLeaf(Uint64Chunk(count))), nil

	case KindVector:
		content, _, err := buildSequenceContent(rv, schema.Elem, schema.VecLen, schema.SuperNode)
		if err != nil {
			return nil, err
		}
		return content, nil

	case KindContainer:
		chunks := make([]Node, len(schema.Fields))
		for i, f := range schema.Fields {
			n, err := buildTree(rv.Field(f.Index), f.Schema)
			if err != nil {
				return nil, err
			}
			chunks[i] = n
		}
		depth := ceilLog2(uint64(len(schema.Fields)))
		return TreeFromChunks(chunks, depth), nil

	default:
		return nil, errUnsupportedKind(schema)
	}
}

func basicChunk(rv reflect.Value, schema *Schema) (primitives.Bytes32, error) {
	switch schema.BitSize {
	case 1:
		return BoolChunk(rv.Bool()), nil
	default:
		return Uint64Chunk(rv.Uint()), nil
	}
}

// buildSequenceContent builds the (pre-length-mix) content tree for a
// List or Vector and returns it plus the element count actually present.
func buildSequenceContent(rv reflect.Value, elem *Schema, capacity uint64, superNode bool) (Node, uint64, error) {
	n := rv.Len()

	if elem.Kind == KindBasic {
		raw := make([]byte, 0, n*int(elem.fixedSize))
		for i := 0; i < n; i++ {
			b, err := marshalValue(rv.Index(i), elem)
			if err != nil {
				return nil, 0, err
			}
			raw = append(raw, b...)
		}
		limitChunks := chunkCapacity(elem, capacity)

		if superNode && limitChunks >= superNodeSpanChunks {
			outerDepth := ceilLog2((limitChunks + superNodeSpanChunks - 1) / superNodeSpanChunks)
			groups := groupChunksForSuperNode(raw)
			return TreeFromSuperNodeGroups(groups, outerDepth), uint64(n), nil
		}

		chunks := PackBasic(raw)
		return MerkleizeChunks(chunks, limitChunks), uint64(n), nil
	}

	chunks := make([]Node, n)
	for i := 0; i < n; i++ {
		c, err := buildTree(rv.Index(i), elem)
		if err != nil {
			return nil, 0, err
		}
		chunks[i] = c
	}
	depth := ceilLog2(capacity)
	return TreeFromChunks(chunks, depth), uint64(n), nil
}

func errUnsupportedKind(schema *Schema) error {
	return &unsupportedKindError{schema.Kind}
}

type unsupportedKindError struct{ kind Kind }

func (e *unsupportedKindError) Error() string { return "ssz: unsupported kind in tree builder" }
