package atom

import (
	"math"
	"reflect"
)

// defaultEqual compares values the way the store decides whether a value
// changed: value equality for comparable values (numbers, strings, pointers,
// comparable structs), reference identity for slices, maps, channels and
// functions, and deep equality for other non-comparable values. NaN equals
// NaN, so an atom stuck at NaN does not notify on every pass.
func defaultEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && (av == bv || math.IsNaN(av) && math.IsNaN(bv))
	case float32:
		bv, ok := b.(float32)
		return ok && (av == bv || av != av && bv != bv)
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}

	if b == nil {
		return false
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Len() == rb.Len() && ra.UnsafePointer() == rb.UnsafePointer()
	case reflect.Map, reflect.Chan:
		return ra.UnsafePointer() == rb.UnsafePointer()
	case reflect.Func:
		return ra.IsNil() && rb.IsNil()
	}
	if ra.Comparable() {
		return ra.Equal(rb)
	}
	return reflect.DeepEqual(a, b)
}

// DeepEqual is an equality function for WithEquals that compares values
// structurally, for derived atoms that rebuild slices, maps or structs on
// every computation.
func DeepEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
