package action

import "reflect"

// MergeFunc combines the defaults with the input of one call.
type MergeFunc[I any] func(defaults, in I) I

// Defaulter is implemented by inputs that know how to fill their unset fields
// from a defaults value. Explicit fields must win over defaults.
type Defaulter[I any] interface {
	WithDefaults(defaults I) I
}

// Merge is the default policy: explicit input overrides defaults. Inputs
// implementing Defaulter merge field by field; for other types a zero input
// means "no input" and yields the defaults, anything else is used as given.
func Merge[I any](defaults, in I) I {
	if d, ok := any(in).(Defaulter[I]); ok {
		return d.WithDefaults(defaults)
	}
	if isZero(in) {
		return defaults
	}
	return in
}

// MergeMaps merges map-shaped input key by key. Keys present in the input win
// over the same keys in defaults. Neither argument is modified.
func MergeMaps[M ~map[K]V, K comparable, V any](defaults, in M) M {
	if len(defaults) == 0 {
		return in
	}
	out := make(M, len(defaults)+len(in))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range in {
		out[k] = v
	}
	return out
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	return rv.IsZero()
}
