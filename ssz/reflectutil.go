package ssz

import "reflect"

// indirect dereferences rv if it is a non-nil pointer, allocating a new
// zero value when it is nil. Domain containers use pointers to nested
// structs (e.g. *Checkpoint) as well as plain structs, so every walker
// below routes through this first.
func indirect(rv reflect.Value) reflect.Value {
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	return rv
}

// bytesOf returns the raw bytes backing a fixed byte array or a byte
// slice (including named types such as bitfield.Bitlist, whose
// underlying element kind is uint8).
func bytesOf(rv reflect.Value) []byte {
	rv = indirect(rv)
	switch rv.Kind() {
	case reflect.Array:
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b
	case reflect.Slice:
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b
	default:
		return nil
	}
}

// setBytes writes data into a fixed byte array or byte slice field,
// allocating a new slice of the field's named type when needed.
func setBytes(rv reflect.Value, data []byte) {
	rv = indirect(rv)
	switch rv.Kind() {
	case reflect.Array:
		reflect.Copy(rv, reflect.ValueOf(data))
	case reflect.Slice:
		ns := reflect.MakeSlice(rv.Type(), len(data), len(data))
		reflect.Copy(ns, reflect.ValueOf(data))
		rv.Set(ns)
	}
}
