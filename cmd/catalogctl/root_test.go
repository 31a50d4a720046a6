package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	return runHere(t, args...)
}

func runHere(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func definitionPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)
	return path
}

func TestResolveCommand(t *testing.T) {
	defs := definitionPath(t)
	out, err := run(t, "-d", defs, "resolve", "osm", "name", "opacity")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "OpenStreetMap", got["name"])
	require.Equal(t, 0.8, got["opacity"])
}

func TestResolveCommandQuery(t *testing.T) {
	defs := definitionPath(t)
	out, err := run(t, "-d", defs, "resolve", "osm", "--query", "$.url")
	require.NoError(t, err)

	var got []any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []any{"https://tile.openstreetmap.org"}, got)
}

func TestResolveCommandExpandsReferences(t *testing.T) {
	defs := definitionPath(t)
	out, err := run(t, "-d", defs, "resolve", "basemaps", "items", "--expand")
	require.NoError(t, err)

	var got map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got["items"], 3)
	require.Equal(t, "missing", got["items"][2]["id"])
	require.Equal(t, true, got["items"][2]["dangling"])
}

func TestResolveUnknownEntity(t *testing.T) {
	_, err := run(t, "resolve", "nope")
	require.Error(t, err)
}

func TestTraceCommand(t *testing.T) {
	defs := definitionPath(t)
	out, err := run(t, "-d", defs, "trace", "osm", "name")
	require.NoError(t, err)
	require.Contains(t, out, "shared-definition")
	require.Contains(t, out, "OpenStreetMap")
}

func TestSchemaCommand(t *testing.T) {
	out, err := run(t, "schema", "basemap")
	require.NoError(t, err)
	require.Contains(t, out, `"fields"`)
	require.Contains(t, out, `"user-edit"`)

	out, err = run(t, "schema", "--format", "openapi")
	require.NoError(t, err)
	require.Contains(t, out, `"openapi": "3.1.0"`)

	_, err = run(t, "schema", "--format", "xml")
	require.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	defs := definitionPath(t)
	out, err := run(t, "-d", defs, "check")
	require.NoError(t, err)
	require.Contains(t, out, "broken")
	require.Contains(t, out, "checked 4 entities, 1 diagnostics")

	out, err = run(t, "-d", defs, "check", "--match", "o*")
	require.NoError(t, err)
	require.Contains(t, out, "checked 1 entities, 0 diagnostics")

	_, err = run(t, "-d", defs, "check", "--strict")
	require.Error(t, err)
}

func TestSetPersistsThroughStore(t *testing.T) {
	defs := definitionPath(t)
	t.Chdir(t.TempDir())
	store := filepath.Join(t.TempDir(), "layers.db")

	out, err := runHere(t, "-d", defs, "--store", store, "set", "osm", "opacity", "0.25")
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &written))
	require.Equal(t, 0.25, written["value"])
	etag, _ := written["etag"].(string)
	require.NotEmpty(t, etag)

	out, err = runHere(t, "-d", defs, "--store", store, "resolve", "osm", "opacity")
	require.NoError(t, err)
	require.Contains(t, out, "0.25")

	_, err = runHere(t, "-d", defs, "--store", store, "set", "--if-match", "stale", "osm", "opacity", "0.5")
	require.Error(t, err)

	_, err = runHere(t, "-d", defs, "--store", store, "set", "--if-match", etag, "osm", "opacity", "null")
	require.NoError(t, err)
	out, err = runHere(t, "-d", defs, "--store", store, "resolve", "osm", "opacity")
	require.NoError(t, err)
	require.Contains(t, out, "0.8")
}

func TestShareRoundTrip(t *testing.T) {
	defs := definitionPath(t)
	t.Chdir(t.TempDir())
	store := filepath.Join(t.TempDir(), "layers.db")

	_, err := runHere(t, "-d", defs, "--store", store, "set", "osm", "name", `"Mine"`)
	require.NoError(t, err)
	payload, err := runHere(t, "-d", defs, "--store", store, "share", "encode", "--layer", "user-edit")
	require.NoError(t, err)
	payload = strings.TrimSpace(payload)
	require.NotEmpty(t, payload)

	out, err := runHere(t, "-d", defs, "share", "decode", payload)
	require.NoError(t, err)
	require.Contains(t, out, "Mine")
}
