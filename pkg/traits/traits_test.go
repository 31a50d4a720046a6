package traits_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/pkg/traits"
)

func TestRegisterCatalogTypes(t *testing.T) {
	registry := strata.NewRegistry()
	if err := traits.RegisterCatalogTypes(registry); err != nil {
		t.Fatalf("register: %v", err)
	}
	if want := []string{traits.TypeBaseMap, traits.TypeBaseMapList, traits.TypeGroup}; !reflect.DeepEqual(registry.Types(), want) {
		t.Fatalf("expected types %v, got %v", want, registry.Types())
	}
	basemap, _ := registry.Type(traits.TypeBaseMap)
	if want := []string{"info", "url", "style"}; !reflect.DeepEqual(basemap.Sets(), want) {
		t.Fatalf("expected sets %v, got %v", want, basemap.Sets())
	}
	if err := traits.RegisterCatalogTypes(registry); err != nil {
		t.Fatalf("expected re-registration of identical sets to succeed: %v", err)
	}
}

func TestConflictingSetIsRejected(t *testing.T) {
	registry := strata.NewRegistry()
	clash := strata.NewDescriptorSet("clash", strata.Number("name"))
	_, err := registry.DeclareEntityType("broken", traits.Info, clash)
	if !errors.Is(err, strata.ErrDescriptorConflict) {
		t.Fatalf("expected ErrDescriptorConflict, got %v", err)
	}
}

func TestEnabledSubsetKeepsFullOrder(t *testing.T) {
	catalog, err := traits.NewCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	catalog.MustAdd("bing-aerial", traits.TypeBaseMap)
	catalog.MustAdd("osm", traits.TypeBaseMap)
	list := catalog.MustAdd("basemap-list", traits.TypeBaseMapList)
	list.MustSetValue(strata.LayerDefaults, "items", []string{"bing-aerial", "osm"})
	list.MustSetValue(strata.LayerDefaults, "enabledBaseMaps", []string{"bing-aerial", "osm"})
	list.MustSetValue(strata.LayerUserEdit, "enabledBaseMaps", []string{"osm"})

	if got := list.MustResolve("enabledBaseMaps"); !reflect.DeepEqual(got, []any{"osm"}) {
		t.Fatalf("expected enabled [osm], got %v", got)
	}
	if got := list.MustResolve("items"); !reflect.DeepEqual(got, []any{"bing-aerial", "osm"}) {
		t.Fatalf("expected full order kept, got %v", got)
	}
	subset, err := list.ResolveSubset("items", "enabledBaseMaps")
	if err != nil {
		t.Fatalf("subset: %v", err)
	}
	if len(subset) != 1 || subset[0].ID != "osm" {
		t.Fatalf("unexpected subset %+v", subset)
	}
}

func TestDisplayNameFallsBackToID(t *testing.T) {
	catalog, err := traits.NewCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	osm := catalog.MustAdd("osm", traits.TypeBaseMap)
	if got := osm.MustResolve("displayName"); got != "osm" {
		t.Fatalf("expected id fallback, got %v", got)
	}
	osm.MustSetValue(strata.LayerSharedDefinition, "name", "OpenStreetMap")
	if got := osm.MustResolve("displayName"); got != "OpenStreetMap" {
		t.Fatalf("expected name, got %v", got)
	}
	if diags := osm.Diagnostics(); len(diags) != 0 {
		t.Fatalf("unexpected diagnostics %v", diags)
	}
}

func TestStyleMergesFieldByField(t *testing.T) {
	catalog, err := traits.NewCatalog()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	osm := catalog.MustAdd("osm", traits.TypeBaseMap)
	osm.MustSetValue(strata.LayerSharedDefinition, "style", map[string]any{"color": "#000000", "width": 3})
	osm.MustSetValue(strata.LayerUserEdit, "style", map[string]any{"fill": true})

	want := map[string]any{"color": "#000000", "width": 3.0, "fill": true}
	if got := osm.MustResolve("style"); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
