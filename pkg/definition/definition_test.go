package definition_test

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/pkg/definition"
)

func newCatalog(t *testing.T) *strata.Catalog {
	t.Helper()
	registry := strata.NewRegistry()
	registry.MustDeclareEntityType("basemap", strata.NewDescriptorSet("basemap",
		strata.String("name", strata.WithDefault("")),
		strata.Number("opacity", strata.WithDefault(1.0)),
	))
	registry.MustDeclareEntityType("basemaplist", strata.NewDescriptorSet("basemaplist",
		strata.References("basemaps"),
	))
	ordering, err := strata.NewOrdering(strata.WellKnownLayers()...)
	if err != nil {
		t.Fatalf("ordering: %v", err)
	}
	return strata.NewCatalog(strata.WithRegistry(registry), strata.WithOrdering(ordering))
}

func TestLoadResolvesIncludes(t *testing.T) {
	doc, err := definition.Load(filepath.Join("testdata", "catalog.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	var ids []string
	for _, def := range doc.Entities {
		ids = append(ids, def.ID)
	}
	if want := []string{"topo", "osm", "defaults"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected entity order %v, got %v", want, ids)
	}
	if len(doc.Sources) != 3 {
		t.Fatalf("expected 3 source files, got %v", doc.Sources)
	}
	if filepath.Base(doc.Sources[2]) != "catalog.yaml" {
		t.Fatalf("expected including file to be read last, got %v", doc.Sources)
	}

	osm, ok := doc.Lookup("osm")
	if !ok {
		t.Fatalf("expected osm definition")
	}
	if osm.Values["name"] != "OpenStreetMap" {
		t.Fatalf("expected included name to survive, got %v", osm.Values["name"])
	}
	if osm.Values["opacity"] != 0.8 {
		t.Fatalf("expected including file to extend values, got %v", osm.Values["opacity"])
	}
}

func TestLoadDetectsIncludeCycle(t *testing.T) {
	_, err := definition.Load(filepath.Join("testdata", "cycle_a.yaml"))
	if !errors.Is(err, definition.ErrIncludeCycle) {
		t.Fatalf("expected ErrIncludeCycle, got %v", err)
	}
}

func TestLoadRejectsTypeConflict(t *testing.T) {
	if _, err := definition.Load(filepath.Join("testdata", "conflict.json")); err == nil {
		t.Fatalf("expected type conflict error")
	}
}

func TestParseValidatesEntities(t *testing.T) {
	cases := map[string]string{
		"missing_id":   "entities:\n  - type: basemap\n",
		"missing_type": "entities:\n  - id: osm\n",
		"bad_yaml":     "entities: [",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := definition.Parse([]byte(payload)); err == nil {
				t.Fatalf("expected parse error")
			}
		})
	}
}

func TestApplyMatchesLayerToDocument(t *testing.T) {
	catalog := newCatalog(t)
	stale := catalog.MustAdd("stale", "basemap")
	stale.MustSetValue(strata.LayerSharedDefinition, "name", "Old")
	stale.MustSetValue(strata.LayerUserEdit, "name", "Mine")

	_, result, err := definition.LoadAndApply(catalog, filepath.Join("testdata", "catalog.yaml"), strata.LayerSharedDefinition)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if want := []string{"topo", "osm", "defaults"}; !reflect.DeepEqual(result.Added, want) {
		t.Fatalf("expected added %v, got %v", want, result.Added)
	}
	if want := []string{"stale"}; !reflect.DeepEqual(result.Cleared, want) {
		t.Fatalf("expected cleared %v, got %v", want, result.Cleared)
	}
	if stale.HasLayer(strata.LayerSharedDefinition) || !stale.HasLayer(strata.LayerUserEdit) {
		t.Fatalf("expected only the definition layer to be cleared")
	}

	osm, _ := catalog.Get("osm")
	if got := osm.MustResolve("opacity"); got != 0.8 {
		t.Fatalf("expected opacity 0.8, got %v", got)
	}
	list, _ := catalog.Get("defaults")
	if got := list.MustResolve("basemaps"); !reflect.DeepEqual(got, []any{"osm", "topo"}) {
		t.Fatalf("unexpected basemaps %v", got)
	}

	osm.MustSetValue(strata.LayerUserEdit, "name", "Edited")
	doc := &definition.Document{Entities: []definition.EntityDefinition{
		{ID: "osm", Type: "basemap", Values: map[string]any{"name": "OSM v2"}},
	}}
	result, err = definition.Apply(catalog, doc, strata.LayerSharedDefinition)
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if want := []string{"osm"}; !reflect.DeepEqual(result.Updated, want) {
		t.Fatalf("expected updated %v, got %v", want, result.Updated)
	}
	if got := osm.MustResolve("name"); got != "Edited" {
		t.Fatalf("expected user edit to keep precedence, got %v", got)
	}
	if got := osm.MustResolve("opacity"); got != 1.0 {
		t.Fatalf("expected opacity back to default, got %v", got)
	}
}

func TestApplyRejectsTypeMismatch(t *testing.T) {
	catalog := newCatalog(t)
	catalog.MustAdd("osm", "basemaplist")
	doc := &definition.Document{Entities: []definition.EntityDefinition{{ID: "osm", Type: "basemap"}}}
	if _, err := definition.Apply(catalog, doc, strata.LayerSharedDefinition); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestApplyRejectsUnregisteredLayer(t *testing.T) {
	_, err := definition.Apply(newCatalog(t), &definition.Document{}, "scratch")
	if !errors.Is(err, strata.ErrUnregisteredLayer) {
		t.Fatalf("expected ErrUnregisteredLayer, got %v", err)
	}
}
