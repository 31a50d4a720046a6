package strata

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

type mergeFixture struct {
	Description string             `json:"description"`
	Cases       []mergeFixtureCase `json:"cases"`
}

type mergeFixtureCase struct {
	Name      string          `json:"name"`
	Strategy  string          `json:"strategy"`
	Low       json.RawMessage `json:"low"`
	High      json.RawMessage `json:"high"`
	Expect    json.RawMessage `json:"expect"`
	ExpectErr string          `json:"expectErr"`
}

func TestMergeStrategiesFromFixture(t *testing.T) {
	var fx mergeFixture
	loadJSONFixture(t, "merge_strategies.json", &fx)

	strategies := map[string]MergeStrategy{
		"override:string": Override(TypeString),
		"override:number": Override(TypeNumber),
		"override:any":    Override(""),
		"object":          ObjectMerge(testStyleFields),
		"concat":          ConcatDedup(nil),
		"replace":         Replace(),
		"references":      ReferenceConcat(),
		"object-list":     ObjectListConcat(),
	}

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			strategy, ok := strategies[tc.Strategy]
			if !ok {
				t.Fatalf("unknown strategy %q", tc.Strategy)
			}
			if strategy.Name() != tc.Strategy {
				t.Fatalf("expected strategy name %q, got %q", tc.Strategy, strategy.Name())
			}

			got, err := strategy.Merge(decodeRaw(t, tc.Low), decodeRaw(t, tc.High))
			if tc.ExpectErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("merge: %v", err)
			}
			if want := decodeRaw(t, tc.Expect); !reflect.DeepEqual(want, got) {
				t.Errorf("merge mismatch:\nwant: %#v\n got: %#v", want, got)
			}
		})
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	low := []any{map[string]any{"id": "A", "label": "a"}}
	high := []any{map[string]any{"id": "A", "label": "b"}}

	if _, err := ReferenceConcat().Merge(low, high); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if low[0].(map[string]any)["label"] != "a" {
		t.Fatalf("low input mutated")
	}

	style := map[string]any{"color": "#000000"}
	if _, err := ObjectMerge(testStyleFields).Merge(style, map[string]any{"color": "#ffffff"}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if style["color"] != "#000000" {
		t.Fatalf("object accumulator mutated")
	}
}

func TestContentKey(t *testing.T) {
	named, err := ContentKey(map[string]any{"name": "License", "content": "x"})
	if err != nil || named != "name:License" {
		t.Fatalf("expected name key, got %q, %v", named, err)
	}
	first, _ := ContentKey(map[string]any{"a": 1.0, "b": "x"})
	second, _ := ContentKey(map[string]any{"b": "x", "a": 1})
	if first != second || !strings.HasPrefix(first, "content:") {
		t.Fatalf("expected stable content key, got %q and %q", first, second)
	}
}

func TestCustomMergeStrategy(t *testing.T) {
	registry := NewRegistry()
	maxStrategy := NewMergeStrategy("max", func(low, high any) (any, error) {
		l, _ := low.(float64)
		h, _ := high.(float64)
		if l > h {
			return l, nil
		}
		return h, nil
	})
	registry.MustRegister("tile", Number("maxZoom", WithDefault(0), WithMerge(maxStrategy)))
	catalog := NewCatalog(WithRegistry(registry), WithOrdering(newTestOrdering(t)))
	tile := mustAdd(t, catalog, "tile", "tile")
	mustSet(t, tile, LayerDefaults, "maxZoom", 18)
	mustSet(t, tile, LayerUserEdit, "maxZoom", 12)

	if got := mustResolve(t, tile, "maxZoom"); got != float64(18) {
		t.Fatalf("expected custom strategy to keep the maximum, got %v", got)
	}
}

func decodeRaw(t *testing.T, raw json.RawMessage) any {
	t.Helper()
	if len(raw) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}
