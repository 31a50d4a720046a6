package strata

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/goliatone/go-strata/layering"
)

// MergeStrategy combines a lower-precedence accumulated value with a higher
// precedence layer value. Resolution is a left fold of Merge over the layers
// that define a property, weakest first, starting from the default. Strategies
// are named so registrations can be compared.
type MergeStrategy interface {
	Name() string
	Merge(low, high any) (any, error)
}

type mergeFunc struct {
	name string
	// impl is the code pointer of the caller-supplied function, if any.
	impl uintptr
	fn   func(low, high any) (any, error)
}

func (m mergeFunc) Name() string { return m.name }

func (m mergeFunc) Merge(low, high any) (any, error) { return m.fn(low, high) }

// NewMergeStrategy wraps fn as a named strategy.
func NewMergeStrategy(name string, fn func(low, high any) (any, error)) MergeStrategy {
	return mergeFunc{name: name, impl: funcPointer(fn), fn: fn}
}

func funcPointer(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// sameStrategy reports whether a and b merge the same way.
func sameStrategy(a, b MergeStrategy) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Name() != b.Name() {
		return false
	}
	fa, okA := a.(mergeFunc)
	fb, okB := b.(mergeFunc)
	if okA || okB {
		return okA && okB && fa.impl == fb.impl
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return true
}

func defaultStrategy(kind ValueKind) MergeStrategy {
	switch kind.Kind {
	case KindObject:
		return ObjectMerge(kind.Fields)
	case KindReferenceList:
		return ReferenceConcat()
	case KindObjectList:
		return ObjectListConcat()
	default:
		return Override(kind.Primitive)
	}
}

// Override lets the higher layer win outright. Values are checked against t.
func Override(t PrimitiveType) MergeStrategy {
	if t == "" {
		t = TypeAny
	}
	return mergeFunc{
		name: "override:" + string(t),
		fn: func(_ any, high any) (any, error) {
			if err := checkPrimitive(t, high); err != nil {
				return nil, err
			}
			return layering.Clone(high), nil
		},
	}
}

func checkPrimitive(t PrimitiveType, value any) error {
	if value == nil {
		return nil
	}
	switch t {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %s", shapeOf(value))
		}
	case TypeNumber:
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %s", shapeOf(value))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %s", shapeOf(value))
		}
	default:
		switch value.(type) {
		case map[string]any, []any:
			return fmt.Errorf("expected primitive, got %s", shapeOf(value))
		}
	}
	return nil
}

// ObjectMerge merges objects field by field: each field of high is folded onto
// the same field of low using that field's own strategy, other fields of low
// are kept.
func ObjectMerge(fields DescriptorSet) MergeStrategy {
	return mergeFunc{
		name: "object",
		fn: func(low, high any) (any, error) {
			highMap, ok := high.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object, got %s", shapeOf(high))
			}
			out := map[string]any{}
			if low != nil {
				lowMap, ok := low.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("expected object accumulator, got %s", shapeOf(low))
				}
				out = layering.Clone(lowMap)
			}
			for _, key := range sortedKeys(highMap) {
				field, ok := fields.Lookup(key)
				if !ok {
					return nil, fmt.Errorf("unknown field %q", key)
				}
				current, present := out[key]
				if !present {
					current = layering.Clone(field.Default)
				}
				merged, err := field.Merge.Merge(current, highMap[key])
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", key, err)
				}
				out[key] = merged
			}
			return out, nil
		},
	}
}

// KeyFunc returns the identity used to de-duplicate list items.
type KeyFunc func(item any) (string, error)

// ContentKey identifies an item by its "name" field when it has one and by a
// digest of its canonical JSON otherwise.
func ContentKey(item any) (string, error) {
	if m, ok := item.(map[string]any); ok {
		if name, ok := m["name"].(string); ok && name != "" {
			return "name:" + name, nil
		}
	}
	digest, err := layering.ContentKey(item)
	if err != nil {
		return "", err
	}
	return "content:" + digest, nil
}

// ConcatDedup accumulates list items across layers: the result is low followed
// by the items of high whose key is not already present.
func ConcatDedup(key KeyFunc) MergeStrategy {
	if key == nil {
		key = ContentKey
	}
	return mergeFunc{
		name: "concat",
		impl: funcPointer(key),
		fn: func(low, high any) (any, error) {
			lowList, err := asList(low)
			if err != nil {
				return nil, err
			}
			highList, err := asList(high)
			if err != nil {
				return nil, err
			}
			seen := make(map[string]struct{}, len(lowList)+len(highList))
			out := make([]any, 0, len(lowList)+len(highList))
			for _, list := range [][]any{lowList, highList} {
				for _, item := range list {
					k, err := key(item)
					if err != nil {
						return nil, err
					}
					if _, dup := seen[k]; dup {
						continue
					}
					seen[k] = struct{}{}
					out = append(out, layering.Clone(item))
				}
			}
			return out, nil
		},
	}
}

// Replace overrides a whole list; used for subset lists such as enabled base
// maps where a later layer restates the selection.
func Replace() MergeStrategy {
	return mergeFunc{
		name: "replace",
		fn: func(_ any, high any) (any, error) {
			list, err := asList(high)
			if err != nil {
				return nil, err
			}
			return layering.Clone(list), nil
		},
	}
}

// ReferenceConcat merges reference lists. Items are entity ids or objects
// with an "id" plus per-reference fields. Entries are kept in first-appearance
// order; a later entry for a known id merges its fields onto the existing one
// and an entry with "removed": true drops the id.
func ReferenceConcat() MergeStrategy {
	return mergeFunc{
		name: "references",
		fn: func(low, high any) (any, error) {
			return concatByID(low, high, true)
		},
	}
}

// ObjectListConcat is ReferenceConcat for lists of objects that are not
// catalog entities; every item must be an object carrying an "id".
func ObjectListConcat() MergeStrategy {
	return mergeFunc{
		name: "object-list",
		fn: func(low, high any) (any, error) {
			return concatByID(low, high, false)
		},
	}
}

const (
	referenceIDField      = "id"
	referenceRemovedField = "removed"
)

func concatByID(low, high any, allowBareIDs bool) (any, error) {
	lowList, err := asList(low)
	if err != nil {
		return nil, err
	}
	highList, err := asList(high)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(lowList)+len(highList))
	index := make(map[string]int, len(lowList)+len(highList))
	apply := func(item any) error {
		id, fields, removed, err := listEntry(item, allowBareIDs)
		if err != nil {
			return err
		}
		pos, exists := index[id]
		if removed {
			if exists {
				out = append(out[:pos], out[pos+1:]...)
				delete(index, id)
				for k, v := range index {
					if v > pos {
						index[k] = v - 1
					}
				}
			}
			return nil
		}
		if exists {
			out[pos] = layering.MergeMaps(fields, out[pos])
			return nil
		}
		index[id] = len(out)
		out = append(out, fields)
		return nil
	}
	for _, item := range lowList {
		if err := apply(item); err != nil {
			return nil, err
		}
	}
	for _, item := range highList {
		if err := apply(item); err != nil {
			return nil, err
		}
	}

	result := make([]any, len(out))
	for i, entry := range out {
		result[i] = entry
	}
	return result, nil
}

func listEntry(item any, allowBareIDs bool) (string, map[string]any, bool, error) {
	switch typed := item.(type) {
	case string:
		if !allowBareIDs {
			return "", nil, false, fmt.Errorf("expected object item, got string")
		}
		if strings.TrimSpace(typed) == "" {
			return "", nil, false, fmt.Errorf("empty reference id")
		}
		return typed, map[string]any{referenceIDField: typed}, false, nil
	case map[string]any:
		id, ok := typed[referenceIDField].(string)
		if !ok || strings.TrimSpace(id) == "" {
			return "", nil, false, fmt.Errorf("list item missing %q", referenceIDField)
		}
		removed, _ := typed[referenceRemovedField].(bool)
		fields := layering.Clone(typed)
		delete(fields, referenceRemovedField)
		return id, fields, removed, nil
	default:
		return "", nil, false, fmt.Errorf("unsupported list item %s", shapeOf(item))
	}
}

func asList(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", shapeOf(value))
	}
	return list, nil
}

func shapeOf(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
