package openapi

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	strata "github.com/goliatone/go-strata"
)

func TestNewGeneratorOptions(t *testing.T) {
	custom := NewGenerator(
		WithOpenAPIVersion("3.0.3"),
		WithInfo("Custom Catalog", "2.0.0", WithInfoDescription("custom schema")),
		WithBasePath("catalog/"),
		WithContentType("application/merge-patch+json"),
	)

	internal, ok := custom.(generator)
	if !ok {
		t.Fatalf("expected generator implementation, got %T", custom)
	}
	if got := internal.config.openAPIVersion; got != "3.0.3" {
		t.Fatalf("expected openapi version 3.0.3, got %q", got)
	}
	if got := internal.config.info.Title; got != "Custom Catalog" {
		t.Fatalf("expected info title Custom Catalog, got %q", got)
	}
	if got := internal.config.info.Description; got != "custom schema" {
		t.Fatalf("expected info description, got %q", got)
	}
	if got := internal.config.basePath; got != "/catalog" {
		t.Fatalf("expected base path /catalog, got %q", got)
	}
	if got := internal.config.contentType; got != "application/merge-patch+json" {
		t.Fatalf("expected custom content type, got %q", got)
	}
}

func TestGeneratorFixtures(t *testing.T) {
	t.Parallel()

	registry := fixtureRegistry()
	cases := []string{
		"document_basemap.json",
	}

	for _, name := range cases {
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fx := loadFixture(t, name)
			typ, ok := registry.Type(fx.Type)
			if !ok {
				t.Fatalf("fixture type %q not registered", fx.Type)
			}

			doc, err := NewGenerator().Generate(typ)
			if err != nil {
				t.Fatalf("Generate returned error: %v", err)
			}
			if doc.Format != strata.SchemaFormatOpenAPI {
				t.Fatalf("expected format %q, got %q", strata.SchemaFormatOpenAPI, doc.Format)
			}
			got, ok := doc.Document.(map[string]any)
			if !ok {
				t.Fatalf("expected schema document map[string]any, got %T", doc.Document)
			}
			assertJSONEqual(t, fx.Expect.Document, got)
		})
	}
}

func TestGeneratorSharesIdenticalNestedComponents(t *testing.T) {
	registry := strata.NewRegistry()
	style := strata.NewDescriptorSet("style", strata.String("color"))
	first := registry.MustDeclareEntityType("a", strata.NewDescriptorSet("a", strata.ObjectProperty("style", style)))
	second := registry.MustDeclareEntityType("b", strata.NewDescriptorSet("b", strata.ObjectProperty("style", style)))

	doc, err := NewGenerator().Generate(first, second)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	schemas := doc.Document.(map[string]any)["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["a_style"]; !ok {
		t.Fatalf("expected a_style component, got %v", keys(schemas))
	}
	if _, ok := schemas["b_style"]; ok {
		t.Fatalf("expected identical nested schema to be shared, got %v", keys(schemas))
	}
	layer := schemas["bLayer"].(map[string]any)["properties"].(map[string]any)
	if ref := layer["style"].(map[string]any)["$ref"]; ref != "#/components/schemas/a_style" {
		t.Fatalf("expected shared reference, got %v", ref)
	}
}

func TestGeneratorWithoutTypes(t *testing.T) {
	t.Parallel()

	doc, err := NewGenerator().Generate()
	if err != nil {
		t.Fatalf("Generate() returned error: %v", err)
	}
	schema, ok := doc.Document.(map[string]any)
	if !ok {
		t.Fatalf("expected map document, got %T", doc.Document)
	}
	if err := validateDocument(schema); err != nil {
		t.Fatalf("empty generation produced invalid document: %v", err)
	}
	if _, ok := schema["components"]; ok {
		t.Fatalf("expected no components without types")
	}
}

func TestGeneratorRejectsNilType(t *testing.T) {
	if _, err := NewGenerator().Generate(nil); err == nil {
		t.Fatalf("expected error for nil entity type")
	}
}

func TestGeneratorConcurrentAccess(t *testing.T) {
	t.Parallel()

	registry := fixtureRegistry()
	typ, _ := registry.Type("basemap")
	generator := NewGenerator()

	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			doc, err := generator.Generate(typ)
			if err != nil {
				t.Errorf("Generate returned error: %v", err)
				return
			}
			if doc.Document == nil {
				t.Errorf("expected document payload")
			}
		}()
	}
	wg.Wait()
}

func fixtureRegistry() *strata.Registry {
	registry := strata.NewRegistry()
	style := strata.NewDescriptorSet("style",
		strata.String("color", strata.WithDefault("#fff")),
		strata.Number("opacity", strata.WithDefault(1)),
	)
	registry.MustDeclareEntityType("basemap", strata.NewDescriptorSet("basemap",
		strata.String("url", strata.WithDisplayName("URL")),
		strata.ObjectProperty("style", style),
		strata.References("members"),
	))
	return registry
}

type fixture struct {
	Type   string `json:"type"`
	Expect struct {
		Document map[string]any `json:"document"`
	} `json:"expect"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()

	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %q: %v", path, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("unmarshal fixture %q: %v", path, err)
	}
	return fx
}

func assertJSONEqual(t *testing.T, want, got map[string]any) {
	t.Helper()

	wantBytes := mustMarshal(t, want)
	gotBytes := mustMarshal(t, got)
	if !bytes.Equal(wantBytes, gotBytes) {
		t.Fatalf("schema mismatch\nwant: %s\ngot:  %s", wantBytes, gotBytes)
	}
}

func mustMarshal(t *testing.T, value any) []byte {
	t.Helper()

	raw, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return raw
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}
