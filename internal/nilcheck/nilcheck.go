// Package nilcheck provides the generic "is this a null reference"
// check shared by the components that reject null keys/values
// (AppendLog, Cache), since Go generics have no single syntax for it.
package nilcheck

import "reflect"

// IsNil reports whether x carries a nil reference. Only kinds that can
// meaningfully be nil (pointer, interface, map, slice, chan, func) are
// checked; value types such as int or string have no null
// representation and are never reported nil.
func IsNil[T any](x T) bool {
	v := reflect.ValueOf(x)
	if !v.IsValid() {
		// a nil interface value (T an interface type) has no dynamic kind
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}
