package strata

import (
	"reflect"
	"testing"
	"time"
)

func TestFunctionRegistryRegisterAndCall(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Double", func(args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("double", func(args ...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected case-insensitive duplicate to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}

	got, err := registry.Call("DOUBLE", 2.0)
	if err != nil || got != 4.0 {
		t.Fatalf("unexpected call result %v, %v", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function to fail")
	}
	if !registry.Has("double") {
		t.Fatalf("expected Has to report the function")
	}
}

func TestFunctionRegistryCloneIsIndependent(t *testing.T) {
	registry := NewCatalogFunctions()
	clone := registry.Clone()
	if err := clone.Register("extra", func(args ...any) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if registry.Has("extra") {
		t.Fatalf("clone registrations leaked into source")
	}
	want := []string{"coalesce", "join", "lower", "upper"}
	if got := registry.Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected names %v", got)
	}
}

func TestCatalogFunctions(t *testing.T) {
	registry := NewCatalogFunctions()

	cases := []struct {
		name string
		args []any
		want any
	}{
		{"coalesce", []any{nil, "", "osm"}, "osm"},
		{"coalesce", []any{nil}, nil},
		{"join", []any{"-", "a", nil, "b", 3}, "a-b-3"},
		{"lower", []any{"OSM"}, "osm"},
		{"upper", []any{"osm"}, "OSM"},
	}
	for _, tc := range cases {
		got, err := registry.Call(tc.name, tc.args...)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s(%v): want %v, got %v", tc.name, tc.args, tc.want, got)
		}
	}
	if _, err := registry.Call("lower", 1); err == nil {
		t.Fatalf("expected lower to reject non-strings")
	}
}

func TestMemoryProgramCache(t *testing.T) {
	cache := NewMemoryProgramCache(-1)
	cache.Set("expr:a", 1)
	if got, ok := cache.Get("expr:a"); !ok || got != 1 {
		t.Fatalf("expected cached value, got %v %v", got, ok)
	}

	short := NewMemoryProgramCache(10 * time.Millisecond)
	short.Set("expr:b", 2)
	time.Sleep(30 * time.Millisecond)
	if _, ok := short.Get("expr:b"); ok {
		t.Fatalf("expected entry to expire")
	}

	var nilCache *MemoryProgramCache
	nilCache.Set("x", 1)
	if _, ok := nilCache.Get("x"); ok || nilCache.Len() != 0 {
		t.Fatalf("nil cache must be inert")
	}
}
