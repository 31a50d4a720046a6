package definition

import (
	"fmt"

	"github.com/goliatone/go-strata"
)

// Result summarises what Apply changed.
type Result struct {
	Added   []string
	Updated []string
	Cleared []string
}

// Apply makes layer in catalog match doc. Entities are created when absent,
// each defined entity's layer is replaced by its definition values, and
// entities that hold the layer without being defined lose it. Removed
// entities are updated in place and stay removed.
func Apply(catalog *strata.Catalog, doc *Document, layer string) (Result, error) {
	var result Result
	if catalog == nil {
		return result, fmt.Errorf("definition: catalog is required")
	}
	if doc == nil {
		return result, fmt.Errorf("definition: document is required")
	}
	if !catalog.Ordering().Has(layer) {
		return result, &strata.UnregisteredLayerError{Layer: layer}
	}

	defined := make(map[string]struct{}, len(doc.Entities))
	for _, def := range doc.Entities {
		defined[def.ID] = struct{}{}
		entity, state := catalog.Lookup(def.ID)
		switch state {
		case strata.StateAbsent:
			added, err := catalog.Add(def.ID, def.Type)
			if err != nil {
				return result, fmt.Errorf("definition: add %q: %w", def.ID, err)
			}
			entity = added
			result.Added = append(result.Added, def.ID)
		default:
			if entity.TypeName() != def.Type {
				return result, fmt.Errorf("definition: entity %q is a %q, defined as %q", def.ID, entity.TypeName(), def.Type)
			}
			result.Updated = append(result.Updated, def.ID)
		}
		if err := entity.ReplaceLayer(layer, def.Values); err != nil {
			return result, fmt.Errorf("definition: apply %q: %w", def.ID, err)
		}
	}

	for _, entity := range append(catalog.Entities(), catalog.Removed()...) {
		if _, ok := defined[entity.ID()]; ok || !entity.HasLayer(layer) {
			continue
		}
		if err := entity.ClearLayer(layer); err != nil {
			return result, fmt.Errorf("definition: clear %q: %w", entity.ID(), err)
		}
		result.Cleared = append(result.Cleared, entity.ID())
	}
	return result, nil
}

// LoadAndApply loads path and applies it to layer.
func LoadAndApply(catalog *strata.Catalog, path, layer string) (*Document, Result, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, Result{}, err
	}
	result, err := Apply(catalog, doc, layer)
	return doc, result, err
}
