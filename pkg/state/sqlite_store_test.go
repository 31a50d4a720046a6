package state_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/pkg/state"
)

func openTestStore(t *testing.T, opts ...state.SQLiteOption) *state.SQLiteStore {
	t.Helper()
	store, err := state.OpenSQLite(filepath.Join(t.TempDir(), "layers.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := openTestStore(t, state.WithClock(func() time.Time { return fixed }))
	ref := state.Ref{EntityID: "osm", Layer: strata.LayerServerLoaded}

	_, _, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.False(t, ok)

	values := map[string]any{
		"name":   "OSM",
		"layers": []any{"a", map[string]any{"id": "b", "removed": true}},
		"style":  map[string]any{"opacity": 0.5},
	}
	saved, err := store.Save(ctx, ref, values, state.Meta{Extra: map[string]string{"origin": "capabilities"}})
	require.NoError(t, err)
	require.NotEmpty(t, saved.SnapshotID)
	require.Equal(t, fixed, saved.UpdatedAt)

	got, meta, ok, err := store.Load(ctx, ref)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, values, got)
	require.Equal(t, saved.ETag, meta.ETag)
	require.Equal(t, saved.SnapshotID, meta.SnapshotID)
	require.Equal(t, fixed, meta.UpdatedAt)
	require.Equal(t, "capabilities", meta.Extra["origin"])
}

func TestSQLiteStoreUpsertAndRefs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []string{"topo", "osm"} {
		_, err := store.Save(ctx, state.Ref{EntityID: id, Layer: strata.LayerUserEdit}, map[string]any{"name": id}, state.Meta{})
		require.NoError(t, err)
	}
	_, err := store.Save(ctx, state.Ref{EntityID: "osm", Layer: strata.LayerUserEdit}, map[string]any{"name": "again"}, state.Meta{})
	require.NoError(t, err)

	refs, err := store.Refs(ctx, strata.LayerUserEdit)
	require.NoError(t, err)
	require.Equal(t, []state.Ref{
		{EntityID: "osm", Layer: strata.LayerUserEdit},
		{EntityID: "topo", Layer: strata.LayerUserEdit},
	}, refs)

	got, _, ok, err := store.Load(ctx, state.Ref{EntityID: "osm", Layer: strata.LayerUserEdit})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "again", got["name"])

	require.NoError(t, store.Delete(ctx, state.Ref{EntityID: "osm", Layer: strata.LayerUserEdit}))
	require.NoError(t, store.Delete(ctx, state.Ref{EntityID: "osm", Layer: strata.LayerUserEdit}))
	refs, err = store.Refs(ctx, strata.LayerUserEdit)
	require.NoError(t, err)
	require.Len(t, refs, 1)
}

func TestSQLiteStoreBacksLoader(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	source := newTestCatalog(t)
	osm, _ := source.Get("osm")
	osm.MustSetValue(strata.LayerUserEdit, "opacity", 0.25)

	_, err := state.Loader{Store: store, Catalog: source}.Persist(ctx, strata.LayerUserEdit, "osm")
	require.NoError(t, err)

	target := newTestCatalog(t)
	n, err := state.Loader{Store: store, Catalog: target}.Hydrate(ctx, strata.LayerUserEdit)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	restored, _ := target.Get("osm")
	require.Equal(t, 0.25, restored.MustResolve("opacity"))
}

func TestSQLiteStoreRejectsIncompleteRef(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Save(context.Background(), state.Ref{EntityID: "osm"}, nil, state.Meta{})
	require.Error(t, err)
}
