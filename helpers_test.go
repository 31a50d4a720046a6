package strata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
)

const (
	testTypeBaseMap     = "basemap"
	testTypeGroup       = "group"
	testTypeBaseMapList = "basemaplist"
	testTypeLayerSet    = "layerset"
)

var (
	testStyleFields = NewDescriptorSet("style-fields",
		String("color", WithDefault("#2f80ed")),
		Number("width", WithDefault(1)),
		Boolean("fill", WithDefault(false)),
	)

	testInfoSet = NewDescriptorSet("info",
		String("name", WithDefault("")),
		String("displayName", WithDerivedDefault(`name != "" ? name : entity.id`)),
		InfoList("info"),
	)

	testBaseMapSet = NewDescriptorSet("basemap",
		String("url"),
		Number("opacity", WithDefault(0.8)),
		ObjectProperty("style", testStyleFields),
	)

	testGroupSet = NewDescriptorSet("group",
		References("members"),
		Boolean("isOpen", WithDefault(false)),
	)

	testBaseMapListSet = NewDescriptorSet("basemaplist",
		References("items"),
		References("enabled", WithMerge(Replace())),
		String("defaultBaseMapId"),
	)

	testLayerSetSet = NewDescriptorSet("layerset",
		Objects("layers"),
	)
)

// testingT is the subset of testing.TB that rapid.T also provides.
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}

func newTestRegistry(t testingT) *Registry {
	t.Helper()
	registry := NewRegistry()
	declare := func(name string, sets ...DescriptorSet) {
		if _, err := registry.DeclareEntityType(name, sets...); err != nil {
			t.Fatalf("declare %s: %v", name, err)
		}
	}
	declare(testTypeBaseMap, testInfoSet, testBaseMapSet)
	declare(testTypeGroup, testInfoSet, testGroupSet)
	declare(testTypeBaseMapList, testBaseMapListSet)
	declare(testTypeLayerSet, testLayerSetSet)
	return registry
}

func newTestOrdering(t testingT) *Ordering {
	t.Helper()
	ordering, err := NewOrdering(WellKnownLayers()...)
	if err != nil {
		t.Fatalf("ordering: %v", err)
	}
	return ordering
}

func newTestCatalog(t testingT, opts ...CatalogOption) *Catalog {
	t.Helper()
	base := []CatalogOption{
		WithRegistry(newTestRegistry(t)),
		WithOrdering(newTestOrdering(t)),
	}
	return NewCatalog(append(base, opts...)...)
}

func mustAdd(t testingT, c *Catalog, id, entityType string) *Entity {
	t.Helper()
	entity, err := c.Add(id, entityType)
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
	return entity
}

func mustSet(t testingT, e *Entity, layer, property string, value any) {
	t.Helper()
	if err := e.SetValue(layer, property, value); err != nil {
		t.Fatalf("set %s.%s@%s: %v", e.ID(), property, layer, err)
	}
}

func mustResolve(t testingT, e *Entity, property string) any {
	t.Helper()
	value, err := e.Resolve(property)
	if err != nil {
		t.Fatalf("resolve %s.%s: %v", e.ID(), property, err)
	}
	return value
}

func ids(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func referenceIDs(refs []ResolvedReference) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.ID
	}
	return out
}

func assertDeepEqual(t testingT, want, got any) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("value mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func loadJSONFixture(t testingT, name string, dst any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode fixture %s: %v", name, err)
	}
}
