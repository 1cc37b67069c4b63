// Package ssz implements a content-addressed persistent binary Merkle
// tree: a schema registry built once per Go type via reflection and
// `ssz-size`/`ssz-max`/`ssz` struct tags, a persistent tree of Node
// values with structural sharing, and serialize/deserialize/
// hash-tree-root operations over that tree.
package ssz

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// Kind classifies a schema node. Every SSZ value in the repository is
// one of these.
type Kind int

const (
	KindBasic Kind = iota // uintN or bool — packs multiple values per 32-byte chunk
	KindByteVector
	KindBitVector
	KindBitList
	KindList
	KindVector
	KindContainer
)

// FieldSchema describes one field of a Container schema.
type FieldSchema struct {
	Name   string
	Index  int // index into the reflected struct's fields
	Schema *Schema
}

// Schema fully describes one SSZ type: its kind, its SSZ-encoded size
// when fixed, its Merkle depth, and — for composites — its children.
type Schema struct {
	Kind Kind

	// KindBasic
	BitSize int // 8, 16, 32, or 64, or 1 for bool; no Go type maps to uint128 or uint256

	// KindByteVector / KindBitVector: byte length and (for bitvector) bit length
	ByteLen uint64
	BitLen  uint64

	// KindList / KindBitList: max element count (Lmax) or max bit count
	Limit uint64

	// KindVector: fixed element count
	VecLen uint64

	// KindList / KindVector element schema
	Elem *Schema

	// KindContainer
	Fields []FieldSchema

	// SuperNode hints that a List of uniform basic elements should use
	// the packed super-node leaf representation (spec.md §4.B).
	SuperNode bool

	fixed     bool
	fixedSize uint64
	goType    reflect.Type
}

// IsFixedSize reports whether the SSZ encoding of this schema has a
// constant byte length.
func (s *Schema) IsFixedSize() bool { return s.fixed }

// FixedSize returns the constant encoded byte length; only valid when
// IsFixedSize() is true.
func (s *Schema) FixedSize() uint64 { return s.fixedSize }

var schemaCache sync.Map // reflect.Type -> *Schema

// SchemaOf builds (or returns the cached) Schema for a Go type, reading
// `ssz-size`, `ssz-max`, `ssz` ("bitlist"/"bitvector"), and
// `ssz-supernode` struct tags off the container's fields.
func SchemaOf(t reflect.Type) *Schema {
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*Schema)
	}
	s := buildSchema(t, "", "", "")
	schemaCache.Store(t, s)
	return s
}

func buildSchema(t reflect.Type, sszTag, sizeTag, maxTag string) *Schema {
	switch t.Kind() {
	case reflect.Bool:
		return &Schema{Kind: KindBasic, BitSize: 1, fixed: true, fixedSize: 1, goType: t}
	case reflect.Uint8:
		return &Schema{Kind: KindBasic, BitSize: 8, fixed: true, fixedSize: 1, goType: t}
	case reflect.Uint16:
		return &Schema{Kind: KindBasic, BitSize: 16, fixed: true, fixedSize: 2, goType: t}
	case reflect.Uint32:
		return &Schema{Kind: KindBasic, BitSize: 32, fixed: true, fixedSize: 4, goType: t}
	case reflect.Uint64:
		return &Schema{Kind: KindBasic, BitSize: 64, fixed: true, fixedSize: 8, goType: t}
	case reflect.Array:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			if sszTag == "bitvector" {
				n, _ := strconv.ParseUint(sizeTag, 10, 64)
				return &Schema{Kind: KindBitVector, BitLen: n, ByteLen: uint64(t.Len()), fixed: true, fixedSize: uint64(t.Len()), goType: t}
			}
			return &Schema{Kind: KindByteVector, ByteLen: uint64(t.Len()), fixed: true, fixedSize: uint64(t.Len()), goType: t}
		}
		es := buildSchema(elem, "", "", "")
		sc := &Schema{Kind: KindVector, VecLen: uint64(t.Len()), Elem: es, goType: t}
		if es.fixed {
			sc.fixed = true
			sc.fixedSize = es.fixedSize * sc.VecLen
		}
		return sc
	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			if sszTag == "bitlist" {
				limit, _ := strconv.ParseUint(maxTag, 10, 64)
				return &Schema{Kind: KindBitList, Limit: limit, goType: t}
			}
			limit, _ := strconv.ParseUint(maxTag, 10, 64)
			return &Schema{Kind: KindList, Elem: &Schema{Kind: KindBasic, BitSize: 8, fixed: true, fixedSize: 1}, Limit: limit, goType: t}
		}
		es := buildSchema(elem, "", "", "")
		// A slice field carrying ssz-size (rather than ssz-max) is a
		// Vector of configurable length backed by a Go slice instead of a
		// fixed array — the shape BeaconState's block_roots/state_roots/
		// randao_mixes/slashings need, since their length is a SpecConfig
		// value, not a Go compile-time constant (spec.md §3.2).
		if sizeTag != "" {
			vecLen := firstSizeToken(sizeTag)
			sc := &Schema{Kind: KindVector, VecLen: vecLen, Elem: es, goType: t}
			if es.fixed {
				sc.fixed = true
				sc.fixedSize = es.fixedSize * vecLen
			}
			return sc
		}
		limit, _ := strconv.ParseUint(maxTag, 10, 64)
		return &Schema{Kind: KindList, Elem: es, Limit: limit, goType: t, SuperNode: maxTag != "" && isUniformBasicSlice(elem)}
	case reflect.Struct:
		return buildContainerSchema(t)
	case reflect.Ptr:
		return buildSchema(t.Elem(), sszTag, sizeTag, maxTag)
	default:
		panic(fmt.Sprintf("ssz: unsupported kind %s for type %s", t.Kind(), t))
	}
}

// firstSizeToken parses the leading comma-separated integer out of an
// ssz-size tag (e.g. "8192,32" -> 8192), the only part relevant once
// reflection already knows the element's own schema.
func firstSizeToken(tag string) uint64 {
	tag = strings.SplitN(tag, ",", 2)[0]
	n, _ := strconv.ParseUint(tag, 10, 64)
	return n
}

func isUniformBasicSlice(elem reflect.Type) bool {
	switch elem.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Bool:
		return true
	default:
		return false
	}
}

func buildContainerSchema(t reflect.Type) *Schema {
	fields := make([]FieldSchema, 0, t.NumField())
	fixed := true
	var fixedSize uint64
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" { // unexported
			continue
		}
		sszTag := sf.Tag.Get("ssz")
		sizeTag := sf.Tag.Get("ssz-size")
		maxTag := sf.Tag.Get("ssz-max")
		if sszTag == "-" {
			continue
		}
		fieldSchema := buildSchema(sf.Type, sszTag, sizeTag, maxTag)
		if tag, ok := sf.Tag.Lookup("ssz-supernode"); ok && strings.EqualFold(tag, "true") {
			fieldSchema.SuperNode = true
		}
		fields = append(fields, FieldSchema{Name: sf.Name, Index: i, Schema: fieldSchema})
		if !fieldSchema.fixed {
			fixed = false
		} else {
			fixedSize += fieldSchema.fixedSize
		}
	}
	sc := &Schema{Kind: KindContainer, Fields: fields, goType: t}
	if fixed {
		sc.fixed = true
		sc.fixedSize = fixedSize
	}
	return sc
}

// ceilLog2 returns the smallest d with 2^d >= n (0 for n<=1).
func ceilLog2(n uint64) uint64 {
	if n <= 1 {
		return 0
	}
	var d uint64
	v := uint64(1)
	for v < n {
		v <<= 1
		d++
	}
	return d
}

// nextPowerOfTwo returns the smallest power of two >= n (1 for n==0).
func nextPowerOfTwo(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	v := uint64(1)
	for v < n {
		v <<= 1
	}
	return v
}

// chunkCapacity returns the number of 32-byte chunks a List[T, Lmax] or
// Vector[T, L] needs at full capacity, before any length-mixing — i.e.
// spec.md §3.3's "chunk_capacity(L)".
func chunkCapacity(elem *Schema, length uint64) uint64 {
	if elem.Kind == KindBasic {
		perChunk := uint64(32) // bool packs 32 per chunk like uint8
		if elem.BitSize > 1 {
			perChunk = uint64(32 / (elem.BitSize / 8))
		}
		if perChunk == 0 {
			perChunk = 1
		}
		return (length + perChunk - 1) / perChunk
	}
	return length
}
