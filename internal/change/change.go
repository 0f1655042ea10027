// Package change decides whether a proposed value differs from the current one.
//
// Writers use it to suppress no-op writes and notifications. Two modes exist:
//   - Shallow compares top-level entries of maps, structs, slices and arrays
//     by identity-like equality, the way a selector-aware subscriber decides
//     whether the slice it renders changed.
//   - Deep compares the whole value tree.
//
// A type mismatch is always a change.
package change

import (
	"reflect"
)

// Deep reports whether a and b are structurally equal all the way down.
// Values of different dynamic types are never equal, even when they would
// encode to the same JSON.
func Deep(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Shallow reports whether a and b hold the same top-level entries.
//
// Scalars are compared by value. For maps, structs, slices and arrays each
// top-level element is compared with scalarEqual: scalars by value, and
// reference types (maps, slices, pointers, funcs, chans) by identity.
func Shallow(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	return shallowValue(va, vb)
}

func shallowValue(va, vb reflect.Value) bool {
	switch va.Kind() {
	case reflect.Pointer, reflect.Interface:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		if va.Kind() == reflect.Pointer && va.Pointer() == vb.Pointer() {
			return true
		}
		return shallowValue(va.Elem(), vb.Elem())
	case reflect.Map:
		if va.IsNil() != vb.IsNil() || va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			other := vb.MapIndex(iter.Key())
			if !other.IsValid() || !scalarEqual(iter.Value(), other) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < va.NumField(); i++ {
			if !scalarEqual(va.Field(i), vb.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if va.Kind() == reflect.Slice && va.IsNil() != vb.IsNil() {
			return false
		}
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !scalarEqual(va.Index(i), vb.Index(i)) {
				return false
			}
		}
		return true
	default:
		return scalarEqual(va, vb)
	}
}

// scalarEqual compares one level: comparable values by ==, reference values
// by identity. Interface wrappers are unwrapped first.
func scalarEqual(va, vb reflect.Value) bool {
	for va.Kind() == reflect.Interface && !va.IsNil() {
		va = va.Elem()
	}
	for vb.Kind() == reflect.Interface && !vb.IsNil() {
		vb = vb.Elem()
	}
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Interface:
		return va.IsNil() && vb.IsNil()
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		if va.Kind() == reflect.Slice {
			return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
		}
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() {
		return va.Equal(vb)
	}
	if va.CanInterface() && vb.CanInterface() {
		return reflect.DeepEqual(va.Interface(), vb.Interface())
	}
	return false
}
