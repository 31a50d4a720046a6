package strata

import (
	"fmt"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

var propertyLayers = []string{LayerDefaults, LayerSharedDefinition, LayerServerLoaded, LayerUserEdit, LayerOverride}

func drawLayerSubset(t *rapid.T, label string) []string {
	var out []string
	for _, layer := range propertyLayers {
		if rapid.Bool().Draw(t, label+":"+layer) {
			out = append(out, layer)
		}
	}
	return out
}

func TestPropertyDeterminism(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		osm := mustAdd(rt, catalog, "osm", testTypeBaseMap)
		for _, layer := range drawLayerSubset(rt, "opacity") {
			mustSet(rt, osm, layer, "opacity", rapid.Float64Range(0, 1).Draw(rt, "opacity@"+layer))
		}
		for _, layer := range drawLayerSubset(rt, "color") {
			mustSet(rt, osm, layer, "style", map[string]any{
				"color": rapid.StringMatching(`#[0-9a-f]{6}`).Draw(rt, "color@"+layer),
			})
		}

		first, err := osm.Snapshot()
		if err != nil {
			rt.Fatalf("snapshot: %v", err)
		}
		second, err := osm.Snapshot()
		if err != nil {
			rt.Fatalf("snapshot: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			rt.Fatalf("resolution is not deterministic:\n%#v\n%#v", first, second)
		}
	})
}

func TestPropertyPrecedence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		osm := mustAdd(rt, catalog, "osm", testTypeBaseMap)
		layers := drawLayerSubset(rt, "url")
		values := map[string]string{}
		for _, layer := range layers {
			value := rapid.StringMatching(`[a-z]{1,8}\.com`).Draw(rt, "url@"+layer)
			values[layer] = value
			mustSet(rt, osm, layer, "url", value)
		}

		got := mustResolve(rt, osm, "url")
		if len(layers) == 0 {
			if got != nil {
				rt.Fatalf("expected nil without layers, got %v", got)
			}
			return
		}
		strongest := layers[len(layers)-1]
		if got != values[strongest] {
			rt.Fatalf("expected %s value %q, got %v", strongest, values[strongest], got)
		}
	})
}

func TestPropertyAccumulation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		osm := mustAdd(rt, catalog, "osm", testTypeBaseMap)

		var want []any
		seen := map[string]struct{}{}
		for _, layer := range drawLayerSubset(rt, "info") {
			names := rapid.SliceOfN(rapid.SampledFrom([]string{"License", "Source", "Terms", "Contact"}), 1, 4).Draw(rt, "info@"+layer)
			items := make([]any, 0, len(names))
			for _, name := range names {
				item := map[string]any{"name": name, "content": layer}
				items = append(items, item)
				if _, dup := seen[name]; !dup {
					seen[name] = struct{}{}
					want = append(want, item)
				}
			}
			mustSet(rt, osm, layer, "info", items)
		}

		got, _ := mustResolve(rt, osm, "info").([]any)
		if len(got) != len(want) {
			rt.Fatalf("expected %d distinct items, got %d", len(want), len(got))
		}
		for i := range want {
			if !reflect.DeepEqual(want[i], got[i]) {
				rt.Fatalf("item %d: want %v, got %v", i, want[i], got[i])
			}
		}
	})
}

func TestPropertyIdempotence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		group := mustAdd(rt, catalog, "group", testTypeGroup)
		layer := rapid.SampledFrom(propertyLayers).Draw(rt, "layer")
		members := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3}`), 0, 5, rapid.ID[string]).Draw(rt, "members")

		mustSet(rt, group, layer, "members", members)
		before := mustResolve(rt, group, "members")
		mustSet(rt, group, layer, "members", members)
		after := mustResolve(rt, group, "members")
		if !reflect.DeepEqual(before, after) {
			rt.Fatalf("re-applying the same value changed the result: %v -> %v", before, after)
		}
	})
}

func drawInfoItems(t *rapid.T, label string) []any {
	count := rapid.IntRange(0, 3).Draw(t, label+":count")
	items := make([]any, 0, count)
	for i := 0; i < count; i++ {
		items = append(items, map[string]any{
			"name":    rapid.SampledFrom([]string{"License", "Source", "Notes"}).Draw(t, fmt.Sprintf("%s:name:%d", label, i)),
			"content": rapid.StringMatching(`[a-z]{0,6}`).Draw(t, fmt.Sprintf("%s:content:%d", label, i)),
		})
	}
	return items
}

// drawMemberEntries draws a reference list mixing bare ids, entries with
// per-reference fields, removal markers and an id unknown to the catalog.
func drawMemberEntries(t *rapid.T, label string, pool []string) []any {
	var entries []any
	for _, id := range append(append([]string(nil), pool...), "ghost") {
		switch rapid.IntRange(0, 3).Draw(t, label+":"+id) {
		case 1:
			entries = append(entries, id)
		case 2:
			entries = append(entries, map[string]any{
				"id":    id,
				"label": rapid.StringMatching(`[A-Z][a-z]{0,5}`).Draw(t, label+":label:"+id),
			})
		case 3:
			entries = append(entries, map[string]any{"id": id, "removed": true})
		}
	}
	return entries
}

func TestPropertyRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		osm := mustAdd(rt, catalog, "osm", testTypeBaseMap)
		for _, layer := range drawLayerSubset(rt, "values") {
			mustSet(rt, osm, layer, "name", rapid.StringMatching(`[A-Za-z ]{0,12}`).Draw(rt, "name@"+layer))
			mustSet(rt, osm, layer, "opacity", rapid.Float64Range(0, 1).Draw(rt, "opacity@"+layer))
			mustSet(rt, osm, layer, "style", map[string]any{
				"width": float64(rapid.IntRange(0, 8).Draw(rt, "width@"+layer)),
				"fill":  rapid.Bool().Draw(rt, "fill@"+layer),
			})
			if items := drawInfoItems(rt, "info@"+layer); len(items) > 0 {
				mustSet(rt, osm, layer, "info", items)
			}
		}

		pool := []string{"map-0", "map-1", "map-2"}
		for _, id := range pool {
			mustAdd(rt, catalog, id, testTypeBaseMap)
		}
		group := mustAdd(rt, catalog, "group", testTypeGroup)
		for _, layer := range drawLayerSubset(rt, "members") {
			if entries := drawMemberEntries(rt, "members@"+layer, pool); len(entries) > 0 {
				mustSet(rt, group, layer, "members", entries)
			}
		}
		for _, id := range pool {
			if rapid.Bool().Draw(rt, "remove:"+id) {
				if err := catalog.Remove(id); err != nil {
					rt.Fatalf("remove %s: %v", id, err)
				}
			}
		}

		data, err := catalog.MarshalJSON()
		if err != nil {
			rt.Fatalf("marshal: %v", err)
		}
		fresh := newTestCatalog(rt)
		if err := fresh.Load(data); err != nil {
			rt.Fatalf("load: %v", err)
		}

		for _, id := range []string{"osm", "group"} {
			original, _ := catalog.Get(id)
			decoded, ok := fresh.Get(id)
			if !ok {
				rt.Fatalf("%s missing after load", id)
			}
			before, err := original.Snapshot()
			if err != nil {
				rt.Fatalf("snapshot: %v", err)
			}
			after, err := decoded.Snapshot()
			if err != nil {
				rt.Fatalf("snapshot after load: %v", err)
			}
			if !reflect.DeepEqual(before, after) {
				rt.Fatalf("round trip changed %s:\n%#v\n%#v", id, before, after)
			}
		}

		decodedGroup, _ := fresh.Get("group")
		before, err := group.ResolveReferences("members")
		if err != nil {
			rt.Fatalf("references: %v", err)
		}
		after, err := decodedGroup.ResolveReferences("members")
		if err != nil {
			rt.Fatalf("references after load: %v", err)
		}
		if len(before) != len(after) {
			rt.Fatalf("member count changed: %d -> %d", len(before), len(after))
		}
		for i := range before {
			if before[i].ID != after[i].ID || before[i].Dangling != after[i].Dangling ||
				!reflect.DeepEqual(before[i].Fields, after[i].Fields) {
				rt.Fatalf("member %d changed: %+v -> %+v", i, before[i].Reference, after[i].Reference)
			}
		}
	})
}

func TestPropertyRemovalTransparency(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		catalog := newTestCatalog(rt)
		count := rapid.IntRange(1, 6).Draw(rt, "count")
		members := make([]string, count)
		for i := range members {
			members[i] = fmt.Sprintf("map-%d", i)
			mustAdd(rt, catalog, members[i], testTypeBaseMap)
		}
		group := mustAdd(rt, catalog, "group", testTypeGroup)
		split := rapid.IntRange(0, count).Draw(rt, "split")
		mustSet(rt, group, LayerDefaults, "members", members[:split])
		mustSet(rt, group, LayerUserEdit, "members", members[split:])

		before := mustResolve(rt, group, "members")
		victim := rapid.SampledFrom(members).Draw(rt, "victim")
		if err := catalog.Remove(victim); err != nil {
			rt.Fatalf("remove: %v", err)
		}
		hidden, _ := mustResolve(rt, group, "members").([]any)
		for _, id := range hidden {
			if id == victim {
				rt.Fatalf("removed member %s still visible", victim)
			}
		}
		if err := catalog.Restore(victim); err != nil {
			rt.Fatalf("restore: %v", err)
		}
		if after := mustResolve(rt, group, "members"); !reflect.DeepEqual(before, after) {
			rt.Fatalf("restore changed the list: %v -> %v", before, after)
		}
	})
}
