package openapi

import (
	strata "github.com/goliatone/go-strata"
)

// schemaNode is the OpenAPI rendition of one property descriptor. Nested
// object descriptors become child nodes so they can be published as
// components.
type schemaNode struct {
	Type        string
	Format      string
	Title       string
	Description string
	Default     any
	Properties  map[string]*schemaNode
	Order       []string
	Items       *schemaNode
	Required    []string
	OneOf       []*schemaNode
	extensions  map[string]any
}

func nodeForDescriptor(d strata.PropertyDescriptor) *schemaNode {
	node := nodeForKind(d.Kind)
	node.Title = d.DisplayName
	node.Description = d.Description
	node.Default = d.Default
	node.extension("x-strata-merge", mergeName(d))
	if d.DerivedDefault != "" {
		node.extension("x-strata-derived", d.DerivedDefault)
	}
	return node
}

func nodeForKind(kind strata.ValueKind) *schemaNode {
	switch kind.Kind {
	case strata.KindObject:
		return nodeForFields(kind.Fields)
	case strata.KindReferenceList:
		return &schemaNode{
			Type: "array",
			Items: &schemaNode{OneOf: []*schemaNode{
				{Type: "string"},
				referenceEntryNode(true),
			}},
		}
	case strata.KindObjectList:
		return &schemaNode{
			Type:  "array",
			Items: referenceEntryNode(false),
		}
	default:
		return primitiveNode(kind.Primitive)
	}
}

func nodeForFields(fields strata.DescriptorSet) *schemaNode {
	node := newObjectNode()
	for _, field := range fields.Descriptors {
		node.Properties[field.ID] = nodeForDescriptor(field)
		node.Order = append(node.Order, field.ID)
	}
	return node
}

// referenceEntryNode describes one list entry: an object keyed by id whose
// other fields are open, optionally carrying the removal marker.
func referenceEntryNode(removable bool) *schemaNode {
	node := newObjectNode()
	node.Properties["id"] = &schemaNode{Type: "string"}
	node.Order = append(node.Order, "id")
	if removable {
		node.Properties["removed"] = &schemaNode{Type: "boolean"}
		node.Order = append(node.Order, "removed")
	}
	node.Required = []string{"id"}
	return node
}

func primitiveNode(t strata.PrimitiveType) *schemaNode {
	switch t {
	case strata.TypeString:
		return &schemaNode{Type: "string"}
	case strata.TypeNumber:
		return &schemaNode{Type: "number"}
	case strata.TypeBoolean:
		return &schemaNode{Type: "boolean"}
	default:
		return &schemaNode{}
	}
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) extension(key string, value any) {
	if value == nil || value == "" {
		return
	}
	if n.extensions == nil {
		n.extensions = map[string]any{}
	}
	n.extensions[key] = value
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Title != "" {
		result["title"] = n.Title
	}
	if n.Description != "" {
		result["description"] = n.Description
	}
	if n.Default != nil {
		result["default"] = n.Default
	}
	if len(n.Required) > 0 {
		result["required"] = append([]string{}, n.Required...)
	}
	for key, value := range n.extensions {
		result[key] = value
	}
	return result
}

func mergeName(d strata.PropertyDescriptor) string {
	if d.Merge == nil {
		return ""
	}
	return d.Merge.Name()
}
