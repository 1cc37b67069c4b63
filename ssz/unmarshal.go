package ssz

import (
	"encoding/binary"
	"fmt"
	"reflect"

	sszerr "github.com/ethcore/beaconcore/errors"
)

// Unmarshal decodes SSZ wire bytes into v (a pointer to a struct,
// slice, or array carrying the usual ssz struct tags), failing with
// *errors.BadSSZ on size mismatch, misaligned offsets, or an element
// count exceeding the schema's ssz-max limit (spec.md §4.B).
func Unmarshal(data []byte, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return &sszerr.BadSSZ{Schema: "root", Reason: "destination must be a non-nil pointer"}
	}
	schema := SchemaOf(derefType(rv.Type()))
	return unmarshalValue(data, indirect(rv), schema)
}

func unmarshalValue(data []byte, rv reflect.Value, schema *Schema) error {
	rv = indirect(rv)
	switch schema.Kind {
	case KindBasic:
		return unmarshalBasic(data, rv, schema)
	case KindByteVector:
		if uint64(len(data)) != schema.ByteLen {
			return &sszerr.BadSSZ{Schema: "bytevector", Reason: fmt.Sprintf("want %d bytes, got %d", schema.ByteLen, len(data))}
		}
		setBytes(rv, data)
		return nil
	case KindBitVector:
		if uint64(len(data)) != schema.ByteLen {
			return &sszerr.BadSSZ{Schema: "bitvector", Reason: fmt.Sprintf("want %d bytes, got %d", schema.ByteLen, len(data))}
		}
		if err := checkBitvectorPadding(data, schema.BitLen); err != nil {
			return err
		}
		setBytes(rv, data)
		return nil
	case KindBitList:
		maxBytes := (schema.Limit/8 + 1) + 1
		if uint64(len(data)) > maxBytes {
			return &sszerr.BadSSZ{Schema: "bitlist", Reason: "exceeds Lmax"}
		}
		if len(data) == 0 || data[len(data)-1] == 0 {
			return &sszerr.BadSSZ{Schema: "bitlist", Reason: "missing sentinel bit"}
		}
		if bitlistBitLen(data) > schema.Limit {
			return &sszerr.BadSSZ{Schema: "bitlist", Reason: "exceeds Lmax"}
		}
		setBytes(rv, data)
		return nil
	case KindList:
		return unmarshalSequence(data, rv, schema.Elem, schema.Limit, -1)
	case KindVector:
		return unmarshalSequence(data, rv, schema.Elem, 0, int(schema.VecLen))
	case KindContainer:
		return unmarshalContainer(data, rv, schema)
	default:
		return &sszerr.BadSSZ{Schema: "unknown", Reason: "unsupported kind"}
	}
}

// checkBitvectorPadding enforces that trailing pad bits in the last
// byte of a bitvector are zero (spec.md §6.1).
func checkBitvectorPadding(data []byte, bitLen uint64) error {
	usedBitsInLastByte := bitLen % 8
	if usedBitsInLastByte == 0 {
		return nil
	}
	last := data[len(data)-1]
	mask := byte(0xFF << usedBitsInLastByte)
	if last&mask != 0 {
		return &sszerr.BadSSZ{Schema: "bitvector", Reason: "non-zero padding bits"}
	}
	return nil
}

func unmarshalBasic(data []byte, rv reflect.Value, schema *Schema) error {
	if uint64(len(data)) != schema.fixedSize {
		return &sszerr.BadSSZ{Schema: "basic", Reason: "wrong length"}
	}
	switch schema.BitSize {
	case 1:
		if data[0] > 1 {
			return &sszerr.BadSSZ{Schema: "bool", Reason: "non-boolean byte"}
		}
		rv.SetBool(data[0] == 1)
	case 8:
		rv.SetUint(uint64(data[0]))
	case 16:
		rv.SetUint(uint64(binary.LittleEndian.Uint16(data)))
	case 32:
		rv.SetUint(uint64(binary.LittleEndian.Uint32(data)))
	case 64:
		rv.SetUint(binary.LittleEndian.Uint64(data))
	default:
		return &sszerr.BadSSZ{Schema: "basic", Reason: "unsupported bit size"}
	}
	return nil
}

// unmarshalSequence decodes a List (fixedCount==-1, bounded by limit)
// or a Vector (fixedCount>=0, exact element count) of elem-typed
// elements from data.
func unmarshalSequence(data []byte, rv reflect.Value, elem *Schema, limit uint64, fixedCount int) error {
	if elem.IsFixedSize() {
		elemSize := int(elem.FixedSize())
		if elemSize == 0 {
			if len(data) != 0 {
				return &sszerr.BadSSZ{Schema: "sequence", Reason: "unexpected bytes for zero-size element"}
			}
			return nil
		}
		if len(data)%elemSize != 0 {
			return &sszerr.BadSSZ{Schema: "sequence", Reason: "length not a multiple of element size"}
		}
		count := len(data) / elemSize
		if fixedCount >= 0 && count != fixedCount {
			return &sszerr.BadSSZ{Schema: "sequence", Reason: fmt.Sprintf("want %d elements, got %d", fixedCount, count)}
		}
		if fixedCount < 0 && limit > 0 && uint64(count) > limit {
			return &sszerr.BadSSZ{Schema: "sequence", Reason: "exceeds Lmax"}
		}
		slice := reflect.MakeSlice(sliceTypeOf(rv, elem), count, count)
		for i := 0; i < count; i++ {
			if err := unmarshalValue(data[i*elemSize:(i+1)*elemSize], elemAt(slice, rv, i), elem); err != nil {
				return err
			}
		}
		assignSequence(rv, slice, count)
		return nil
	}

	// Variable-size elements: an offset table followed by concatenated items.
	if len(data) == 0 {
		assignSequence(rv, reflect.MakeSlice(sliceTypeOf(rv, elem), 0, 0), 0)
		return nil
	}
	if len(data) < 4 {
		return &sszerr.BadSSZ{Schema: "sequence", Reason: "too short for offset table"}
	}
	firstOffset := binary.LittleEndian.Uint32(data[0:4])
	if firstOffset%4 != 0 {
		return &sszerr.BadSSZ{Schema: "sequence", Reason: "misaligned offset"}
	}
	count := int(firstOffset / 4)
	if fixedCount >= 0 && count != fixedCount {
		return &sszerr.BadSSZ{Schema: "sequence", Reason: "vector element count mismatch"}
	}
	if fixedCount < 0 && limit > 0 && uint64(count) > limit {
		return &sszerr.BadSSZ{Schema: "sequence", Reason: "exceeds Lmax"}
	}
	offsets := make([]uint32, count+1)
	for i := 0; i < count; i++ {
		off := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		if i > 0 && off < offsets[i-1] {
			return &sszerr.BadSSZ{Schema: "sequence", Reason: "non-monotonic offsets"}
		}
		offsets[i] = off
	}
	offsets[count] = uint32(len(data))

	slice := reflect.MakeSlice(sliceTypeOf(rv, elem), count, count)
	for i := 0; i < count; i++ {
		if offsets[i] > offsets[i+1] || offsets[i+1] > uint32(len(data)) {
			return &sszerr.BadSSZ{Schema: "sequence", Reason: "offset out of range"}
		}
		if err := unmarshalValue(data[offsets[i]:offsets[i+1]], elemAt(slice, rv, i), elem); err != nil {
			return err
		}
	}
	assignSequence(rv, slice, count)
	return nil
}

// sliceTypeOf returns the slice type to build results into: rv's own
// type when rv is already a slice (Lists), or a generic slice of the
// element's Go type when rv is a fixed array (Vectors).
func sliceTypeOf(rv reflect.Value, elem *Schema) reflect.Type {
	if rv.Kind() == reflect.Slice {
		return rv.Type()
	}
	return reflect.SliceOf(elem.goType)
}

func elemAt(slice, rv reflect.Value, i int) reflect.Value {
	return slice.Index(i)
}

func assignSequence(rv reflect.Value, slice reflect.Value, count int) {
	if rv.Kind() == reflect.Array {
		for i := 0; i < count; i++ {
			rv.Index(i).Set(slice.Index(i))
		}
		return
	}
	rv.Set(slice)
}

func unmarshalContainer(data []byte, rv reflect.Value, schema *Schema) error {
	offset := 0
	type pending struct {
		field FieldSchema
		start int
	}
	var pendings []pending

	for _, f := range schema.Fields {
		if f.Schema.IsFixedSize() {
			size := int(f.Schema.FixedSize())
			if offset+size > len(data) {
				return &sszerr.BadSSZ{Schema: "container", Reason: fmt.Sprintf("field %s out of range", f.Name)}
			}
			if err := unmarshalValue(data[offset:offset+size], rv.Field(f.Index), f.Schema); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
			offset += size
		} else {
			if offset+4 > len(data) {
				return &sszerr.BadSSZ{Schema: "container", Reason: "truncated offset table"}
			}
			pendings = append(pendings, pending{field: f, start: offset})
			offset += 4
		}
	}

	fixedEnd := offset
	var boundaries []int
	for _, p := range pendings {
		off := binary.LittleEndian.Uint32(data[p.start : p.start+4])
		if int(off) < fixedEnd || int(off) > len(data) {
			return &sszerr.BadSSZ{Schema: "container", Reason: fmt.Sprintf("field %s offset out of range", p.field.Name)}
		}
		boundaries = append(boundaries, int(off))
	}
	boundaries = append(boundaries, len(data))

	for i, p := range pendings {
		start, end := boundaries[i], boundaries[i+1]
		if start > end {
			return &sszerr.BadSSZ{Schema: "container", Reason: fmt.Sprintf("field %s has negative length", p.field.Name)}
		}
		if err := unmarshalValue(data[start:end], rv.Field(p.field.Index), p.field.Schema); err != nil {
			return fmt.Errorf("field %s: %w", p.field.Name, err)
		}
	}
	return nil
}
