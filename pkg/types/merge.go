package types

import "reflect"

// dataDefaulter is implemented by writable shapes that fill their own unset
// fields from defaults.
type dataDefaulter[W any] interface {
	WithDefaults(defaults W) W
}

// mergeData layers in over d. Map-shaped data merges key by key with keys in
// in winning; types implementing WithDefaults decide for themselves; any other
// value is taken from d only when in is zero.
func mergeData[W any](d, in W) W {
	if m, ok := any(in).(dataDefaulter[W]); ok {
		return m.WithDefaults(d)
	}

	dv := reflect.ValueOf(&d).Elem()
	iv := reflect.ValueOf(&in).Elem()
	if iv.Kind() == reflect.Map {
		if dv.Len() == 0 {
			return in
		}
		out := reflect.MakeMapWithSize(iv.Type(), dv.Len()+iv.Len())
		for it := dv.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), it.Value())
		}
		for it := iv.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), it.Value())
		}
		return out.Interface().(W)
	}
	if iv.IsZero() {
		return d
	}
	return in
}
