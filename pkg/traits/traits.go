// Package traits declares the descriptor sets shared by the built-in catalog
// entity types. Entity types are unions of these sets; collisions are
// rejected by the registry.
package traits

import (
	"github.com/goliatone/go-strata"
)

// Built-in entity type names.
const (
	TypeBaseMap     = "basemap"
	TypeGroup       = "group"
	TypeBaseMapList = "basemaplist"
)

// Url describes where an item's data is fetched from.
var Url = strata.NewDescriptorSet("url",
	strata.String("url",
		strata.WithDisplayName("URL"),
		strata.WithDescription("The base URL of the data source."),
	),
	strata.Boolean("forceProxy",
		strata.WithDisplayName("Force proxy"),
		strata.WithDefault(false),
	),
	strata.Number("cacheDuration",
		strata.WithDescription("Seconds responses may be cached by the proxy."),
		strata.WithDefault(0),
	),
)

// Info carries human-facing documentation.
var Info = strata.NewDescriptorSet("info",
	strata.String("name", strata.WithDisplayName("Name"), strata.WithDefault("")),
	strata.String("description", strata.WithDisplayName("Description")),
	strata.String("displayName",
		strata.WithDescription("Name shown in the workbench, falling back to the id."),
		strata.WithDerivedDefault(`name != "" ? name : entity.id`),
	),
	strata.InfoList("info",
		strata.WithDescription("Free-form sections accumulated from every layer."),
	),
)

var styleFields = strata.NewDescriptorSet("style-fields",
	strata.String("color", strata.WithDefault("#2f80ed")),
	strata.Number("width", strata.WithDefault(1)),
	strata.Boolean("fill", strata.WithDefault(false)),
)

// Style groups presentation settings.
var Style = strata.NewDescriptorSet("style",
	strata.Number("opacity", strata.WithDisplayName("Opacity"), strata.WithDefault(0.8)),
	strata.ObjectProperty("style", styleFields, strata.WithDisplayName("Style")),
)

// Group makes an entity a container of other entities.
var Group = strata.NewDescriptorSet("group",
	strata.References("members",
		strata.WithDisplayName("Members"),
		strata.WithDescription("Ids of the entities in the group, in display order."),
	),
	strata.Boolean("isOpen", strata.WithDefault(false)),
)

// BaseMapList keeps the full basemap order separate from the subset the
// user enabled.
var BaseMapList = strata.NewDescriptorSet("basemaplist",
	strata.References("items",
		strata.WithDisplayName("Basemaps"),
		strata.WithDescription("Every available basemap, in display order."),
	),
	strata.References("enabledBaseMaps",
		strata.WithDisplayName("Enabled basemaps"),
		strata.WithMerge(strata.Replace()),
	),
	strata.String("defaultBaseMapId"),
	strata.String("previewBaseMapId"),
)

// RegisterCatalogTypes declares the built-in entity types in r.
func RegisterCatalogTypes(r *strata.Registry) error {
	types := []struct {
		name string
		sets []strata.DescriptorSet
	}{
		{TypeBaseMap, []strata.DescriptorSet{Info, Url, Style}},
		{TypeGroup, []strata.DescriptorSet{Info, Group}},
		{TypeBaseMapList, []strata.DescriptorSet{BaseMapList}},
	}
	for _, t := range types {
		if _, err := r.DeclareEntityType(t.name, t.sets...); err != nil {
			return err
		}
	}
	return nil
}

// NewCatalog returns a catalog over a fresh registry holding the built-in
// types and a fresh ordering holding the well-known layers. opts are applied
// after those two, so callers can still replace either.
func NewCatalog(opts ...strata.CatalogOption) (*strata.Catalog, error) {
	registry := strata.NewRegistry()
	if err := RegisterCatalogTypes(registry); err != nil {
		return nil, err
	}
	ordering, err := strata.NewOrdering(strata.WellKnownLayers()...)
	if err != nil {
		return nil, err
	}
	base := []strata.CatalogOption{strata.WithRegistry(registry), strata.WithOrdering(ordering)}
	return strata.NewCatalog(append(base, opts...)...), nil
}
