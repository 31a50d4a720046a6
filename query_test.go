package strata

import (
	"reflect"
	"testing"
)

func TestEntityQuery(t *testing.T) {
	catalog := newTestCatalog(t)
	osm := mustAdd(t, catalog, "osm", testTypeBaseMap)
	mustSet(t, osm, LayerUserEdit, "style", map[string]any{"color": "#333333"})
	mustSet(t, osm, LayerSharedDefinition, "info", []any{
		map[string]any{"name": "License", "content": "ODbL"},
		map[string]any{"name": "Source", "content": "OSM"},
	})

	color, err := osm.QueryFirst("$.style.color")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if color != "#333333" {
		t.Fatalf("unexpected color %v", color)
	}

	names, err := osm.Query("$.info[*].name")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !reflect.DeepEqual(names, []any{"License", "Source"}) {
		t.Fatalf("unexpected names %v", names)
	}

	missing, err := osm.QueryFirst("$.style.dash")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing path, got %v, %v", missing, err)
	}
	if _, err := osm.Query("$.["); err == nil {
		t.Fatalf("expected invalid selector to fail")
	}
}

func TestEntitySnapshot(t *testing.T) {
	catalog := newTestCatalog(t)
	osm := mustAdd(t, catalog, "osm", testTypeBaseMap)
	mustSet(t, osm, LayerDefaults, "name", "OSM")

	snapshot, err := osm.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot) != len(osm.Type().PropertyIDs()) {
		t.Fatalf("expected every declared property, got %v", snapshot)
	}
	if snapshot["displayName"] != "OSM" || snapshot["url"] != nil {
		t.Fatalf("unexpected snapshot %v", snapshot)
	}
}
