package strata

import (
	"fmt"
	"strings"
)

// FieldDescriptor documents one property path of an entity type.
type FieldDescriptor struct {
	EntityType string `json:"entity_type"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	Type       string `json:"type,omitempty"`
	Merge      string `json:"merge"`
	Default    any    `json:"default,omitempty"`
	Derived    string `json:"derived,omitempty"`
	Label      string `json:"label,omitempty"`
}

// DefaultSchemaGenerator returns the built-in descriptor-based schema generator.
func DefaultSchemaGenerator() SchemaGenerator {
	return descriptorGenerator{}
}

type descriptorGenerator struct{}

func (descriptorGenerator) Generate(types ...*EntityType) (SchemaDocument, error) {
	fields := []FieldDescriptor{}
	for _, typ := range types {
		if typ == nil {
			return SchemaDocument{}, fmt.Errorf("strata: schema: nil entity type")
		}
		for _, d := range typ.Descriptors() {
			fields = append(fields, describeField(typ.Name(), "", d)...)
		}
	}
	return SchemaDocument{
		Format:   SchemaFormatDescriptors,
		Document: fields,
	}, nil
}

func describeField(entityType, prefix string, d PropertyDescriptor) []FieldDescriptor {
	path := joinPath(prefix, d.ID)
	field := FieldDescriptor{
		EntityType: entityType,
		Path:       path,
		Kind:       d.Kind.Kind.String(),
		Type:       string(d.Kind.Primitive),
		Merge:      strategyName(d.Merge),
		Default:    d.Default,
		Derived:    d.DerivedDefault,
		Label:      d.DisplayName,
	}
	out := []FieldDescriptor{field}
	if d.Kind.Kind == KindObject {
		for _, nested := range d.Kind.Fields.Descriptors {
			out = append(out, describeField(entityType, path, nested)...)
		}
	}
	return out
}

// Schema documents the entity type with the descriptor generator.
func (t *EntityType) Schema() []FieldDescriptor {
	doc, _ := DefaultSchemaGenerator().Generate(t)
	fields, _ := doc.Document.([]FieldDescriptor)
	return fields
}

// Schema runs generator over the named entity types, every registered type
// when none are named, and attaches the layers of the catalog's ordering.
func (c *Catalog) Schema(generator SchemaGenerator, typeNames ...string) (SchemaDocument, error) {
	if generator == nil {
		generator = DefaultSchemaGenerator()
	}
	if len(typeNames) == 0 {
		typeNames = c.registry.Types()
	}
	types := make([]*EntityType, 0, len(typeNames))
	for _, name := range typeNames {
		typ, ok := c.registry.Type(name)
		if !ok {
			return SchemaDocument{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, name)
		}
		types = append(types, typ)
	}
	doc, err := generator.Generate(types...)
	if err != nil {
		return SchemaDocument{}, err
	}
	for _, scope := range c.ordering.Scopes() {
		doc.Scopes = append(doc.Scopes, SchemaScope{
			Name:     scope.Name,
			Label:    scope.Label,
			Priority: scope.Priority,
		})
	}
	return doc, nil
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
