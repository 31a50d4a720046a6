package layering

import "reflect"

// Clone returns a deep copy of value. Maps, slices, pointers and structs are
// duplicated so the result shares no mutable state with the input.
func Clone[T any](value T) T {
	var zero T
	cloned := cloneValue(reflect.ValueOf(value))
	if !cloned.IsValid() {
		return zero
	}
	out, ok := cloned.Interface().(T)
	if !ok {
		return value
	}
	return out
}

// MergeMaps composes two JSON-shaped maps. Keys present in strong win; nested
// maps present on both sides are merged recursively; everything else from
// weak is carried over. Neither input is mutated.
func MergeMaps(strong, weak map[string]any) map[string]any {
	if strong == nil && weak == nil {
		return nil
	}
	out := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		out[key] = Clone(value)
	}
	for key, value := range strong {
		strongMap, strongIsMap := value.(map[string]any)
		weakMap, weakIsMap := out[key].(map[string]any)
		if strongIsMap && weakIsMap {
			out[key] = MergeMaps(strongMap, weakMap)
			continue
		}
		out[key] = Clone(value)
	}
	return out
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			value := cloneValue(iter.Value())
			if !value.IsValid() {
				value = reflect.Zero(v.Type().Elem())
			}
			clone.SetMapIndex(iter.Key(), value)
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			value := cloneValue(v.Index(i))
			if !value.IsValid() {
				continue
			}
			clone.Index(i).Set(value)
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	default:
		return v
	}
}
