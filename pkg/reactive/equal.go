package reactive

import "reflect"

// isEqual implements an Object.is-style comparison generic over any T: a
// cheap interface `==` when T is comparable, falling back to
// reflect.DeepEqual for slice/map/func-shaped values where `==` would
// panic. This mirrors the teacher's signal equality check, which special-
// cases comparable kinds before falling back to reflect.
func isEqual[T any](a, b T) (eq bool) {
	av, bv := any(a), any(b)
	defer func() {
		if recover() != nil {
			eq = reflect.DeepEqual(av, bv)
		}
	}()
	return av == bv
}
