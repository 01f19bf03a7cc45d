package reactive

import "reflect"

// Identical reports whether a and b are the same value by identity.
//
// Comparable values (numbers, strings, structs of comparable fields,
// interfaces holding such values) compare with ==. Slices compare by
// backing array and length, maps, pointers and channels by address.
// Functions and structs holding uncomparable fields are never identical,
// so writing one always counts as a change.
func Identical(a, b any) bool {
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Slice:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() == vb.IsNil()
		}
		return va.Len() == vb.Len() && va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	case reflect.Func:
		return va.IsNil() && vb.IsNil()
	}

	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}

// DeepEquals compares by structure. Use it with WithEquals for signals whose
// writers rebuild equal values and should not trigger propagation.
func DeepEquals[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}

// identical is the default equality of signals and computeds.
func identical[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		return Identical(a, b)
	}
}
