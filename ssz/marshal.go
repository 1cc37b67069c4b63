package ssz

import (
	"encoding/binary"
	"fmt"
	"reflect"

	sszerr "github.com/ethcore/beaconcore/errors"
)

// Marshal serializes v — a struct, pointer, slice, or array carrying
// ssz-size/ssz-max/ssz struct tags — to its canonical SSZ wire encoding
// (spec.md §6.1).
func Marshal(v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	schema := SchemaOf(derefType(reflect.TypeOf(v)))
	return marshalValue(indirect(rv), schema)
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func marshalValue(rv reflect.Value, schema *Schema) ([]byte, error) {
	rv = indirect(rv)
	switch schema.Kind {
	case KindBasic:
		return marshalBasic(rv, schema)
	case KindByteVector, KindBitVector, KindBitList:
		return bytesOf(rv), nil
	case KindList:
		return marshalSequence(rv, schema.Elem, int(rv.Len()))
	case KindVector:
		if uint64(rv.Len()) != schema.VecLen {
			return nil, &sszerr.BadSSZ{Schema: "vector", Reason: fmt.Sprintf("length %d != %d", rv.Len(), schema.VecLen)}
		}
		return marshalSequence(rv, schema.Elem, int(schema.VecLen))
	case KindContainer:
		return marshalContainer(rv, schema)
	default:
		return nil, &sszerr.BadSSZ{Schema: "unknown", Reason: "unsupported kind"}
	}
}

func marshalBasic(rv reflect.Value, schema *Schema) ([]byte, error) {
	switch schema.BitSize {
	case 1:
		if rv.Bool() {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case 8:
		return []byte{byte(rv.Uint())}, nil
	case 16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(rv.Uint()))
		return b, nil
	case 32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(rv.Uint()))
		return b, nil
	case 64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, rv.Uint())
		return b, nil
	default:
		return nil, &sszerr.BadSSZ{Schema: "basic", Reason: "unsupported bit size"}
	}
}

func marshalSequence(rv reflect.Value, elem *Schema, count int) ([]byte, error) {
	if elem.IsFixedSize() {
		out := make([]byte, 0, int(elem.FixedSize())*count)
		for i := 0; i < count; i++ {
			b, err := marshalValue(rv.Index(i), elem)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	}
	items := make([][]byte, count)
	for i := 0; i < count; i++ {
		b, err := marshalValue(rv.Index(i), elem)
		if err != nil {
			return nil, err
		}
		items[i] = b
	}
	return encodeVariableSequence(items), nil
}

func marshalContainer(rv reflect.Value, schema *Schema) ([]byte, error) {
	fixedPart := make([]byte, 0, schema.fixedSize)
	var variableParts [][]byte
	var offsetPositions []int

	for _, f := range schema.Fields {
		b, err := marshalValue(rv.Field(f.Index), f.Schema)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if f.Schema.IsFixedSize() {
			fixedPart = append(fixedPart, b...)
		} else {
			offsetPositions = append(offsetPositions, len(fixedPart))
			fixedPart = append(fixedPart, make([]byte, 4)...)
			variableParts = append(variableParts, b)
		}
	}

	cumulative := uint32(len(fixedPart))
	varIdx := 0
	for _, f := range schema.Fields {
		if !f.Schema.IsFixedSize() {
			binary.LittleEndian.PutUint32(fixedPart[offsetPositions[varIdx]:], cumulative)
			cumulative += uint32(len(variableParts[varIdx]))
			varIdx++
		}
	}

	out := fixedPart
	for _, v := range variableParts {
		out = append(out, v...)
	}
	return out, nil
}

// encodeVariableSequence encodes a list/vector of variable-size items:
// a 4-byte offset per item followed by the items' concatenated bytes,
// the same offset-table shape a variable-size container uses for each
// of its variable-size fields (spec.md §6.1).
func encodeVariableSequence(items [][]byte) []byte {
	headerLen := uint32(len(items)) * 4
	out := make([]byte, headerLen)
	cumulative := headerLen
	for i, b := range items {
		binary.LittleEndian.PutUint32(out[i*4:], cumulative)
		cumulative += uint32(len(b))
	}
	for _, b := range items {
		out = append(out, b...)
	}
	return out
}
