package openapi

import (
	"fmt"
	"sort"

	strata "github.com/goliatone/go-strata"
)

type openAPIDocumentBuilder struct {
	config   generatorConfig
	registry *componentRegistry
}

func newOpenAPIDocumentBuilder(config generatorConfig) *openAPIDocumentBuilder {
	return &openAPIDocumentBuilder{
		config:   config,
		registry: newComponentRegistry(),
	}
}

func (b *openAPIDocumentBuilder) build(types []*strata.EntityType) (map[string]any, error) {
	paths := make(map[string]any, len(types))
	for _, typ := range types {
		if typ == nil {
			return nil, fmt.Errorf("openapi: entity type cannot be nil")
		}
		layerRef, err := b.layerComponent(typ)
		if err != nil {
			return nil, err
		}
		entityRef, err := b.registry.forceName(typ.Name(), entitySchema(typ.Name(), layerRef))
		if err != nil {
			return nil, err
		}
		paths[b.pathFor(typ.Name())] = map[string]any{
			"put": b.operation(typ.Name(), entityRef),
		}
	}

	document := map[string]any{
		"openapi": b.config.openAPIVersion,
		"info":    b.buildInfo(),
		"paths":   paths,
	}
	if components := b.registry.componentsMap(); components != nil {
		document["components"] = map[string]any{
			"schemas": components,
		}
	}

	if err := validateDocument(document); err != nil {
		return nil, err
	}
	return document, nil
}

func (b *openAPIDocumentBuilder) buildInfo() map[string]any {
	info := map[string]any{
		"title":   b.config.info.Title,
		"version": b.config.info.Version,
	}
	if b.config.info.Description != "" {
		info["description"] = b.config.info.Description
	}
	return info
}

func (b *openAPIDocumentBuilder) pathFor(typeName string) string {
	return fmt.Sprintf("%s/%s/{id}", b.config.basePath, typeName)
}

func (b *openAPIDocumentBuilder) operation(typeName, entityRef string) map[string]any {
	return map[string]any{
		"operationId": "put:" + typeName,
		"parameters": []any{
			map[string]any{
				"name":     "id",
				"in":       "path",
				"required": true,
				"schema":   map[string]any{"type": "string"},
			},
		},
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				b.config.contentType: map[string]any{
					"schema": map[string]any{"$ref": entityRef},
				},
			},
		},
		"responses": map[string]any{
			"204": map[string]any{"description": "Stored"},
		},
	}
}

// layerComponent publishes the shape of one layer of typ: a sparse object
// holding any subset of its declared properties.
func (b *openAPIDocumentBuilder) layerComponent(typ *strata.EntityType) (string, error) {
	properties := map[string]any{}
	for _, d := range typ.Descriptors() {
		schema, err := b.schemaFor(nodeForDescriptor(d), combineComponentName(typ.Name(), d.ID))
		if err != nil {
			return "", err
		}
		properties[d.ID] = schema
	}
	layer := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	return b.registry.forceName(typ.Name()+"Layer", layer)
}

// entitySchema is the serialised entity: id, type and one member per layer.
func entitySchema(typeName, layerRef string) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"id", "type"},
		"properties": map[string]any{
			"id":   map[string]any{"type": "string"},
			"type": map[string]any{"type": "string", "const": typeName},
		},
		"additionalProperties": map[string]any{"$ref": layerRef},
	}
}

// schemaFor renders node. Objects with declared fields are published as
// components named after nameHint; an empty hint inlines them.
func (b *openAPIDocumentBuilder) schemaFor(node *schemaNode, nameHint string) (map[string]any, error) {
	if node == nil {
		return map[string]any{}, nil
	}
	result := node.baseMap()

	if len(node.Properties) > 0 {
		props := make(map[string]any, len(node.Properties))
		names := append([]string{}, node.Order...)
		sort.Strings(names)
		for _, key := range names {
			child, err := b.schemaFor(node.Properties[key], childHint(nameHint, key))
			if err != nil {
				return nil, err
			}
			props[key] = child
		}
		result["properties"] = props
		if nameHint != "" {
			ref, err := b.registry.register(nameHint, result)
			if err != nil {
				return nil, err
			}
			return map[string]any{"$ref": ref}, nil
		}
	}

	if node.Items != nil {
		items, err := b.schemaFor(node.Items, "")
		if err != nil {
			return nil, err
		}
		result["items"] = items
	}

	if len(node.OneOf) > 0 {
		variants := make([]any, 0, len(node.OneOf))
		for _, variant := range node.OneOf {
			schema, err := b.schemaFor(variant, "")
			if err != nil {
				return nil, err
			}
			variants = append(variants, schema)
		}
		result["oneOf"] = variants
	}
	return result, nil
}

func childHint(parent, key string) string {
	if parent == "" {
		return ""
	}
	return combineComponentName(parent, key)
}

func combineComponentName(parts ...string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	if len(filtered) == 0 {
		return "Schema"
	}
	out := filtered[0]
	for _, part := range filtered[1:] {
		out += "_" + part
	}
	return out
}

func validateDocument(document map[string]any) error {
	if document == nil {
		return fmt.Errorf("openapi: document cannot be nil")
	}
	openapi, _ := document["openapi"].(string)
	if openapi == "" {
		return fmt.Errorf("openapi: document missing version string")
	}
	info, _ := document["info"].(map[string]any)
	if info == nil {
		return fmt.Errorf("openapi: document missing info section")
	}
	if title, _ := info["title"].(string); title == "" {
		return fmt.Errorf("openapi: info.title must be set")
	}
	if version, _ := info["version"].(string); version == "" {
		return fmt.Errorf("openapi: info.version must be set")
	}
	paths, ok := document["paths"].(map[string]any)
	if !ok {
		return fmt.Errorf("openapi: document missing paths")
	}
	for pathKey, pathValue := range paths {
		pathItem, _ := pathValue.(map[string]any)
		if len(pathItem) == 0 {
			return fmt.Errorf("openapi: path %q missing operations", pathKey)
		}
		for method, operationValue := range pathItem {
			operation, _ := operationValue.(map[string]any)
			if operation == nil {
				return fmt.Errorf("openapi: operation %s %s invalid payload", method, pathKey)
			}
			if _, ok := operation["operationId"].(string); !ok {
				return fmt.Errorf("openapi: operation %s %s missing operationId", method, pathKey)
			}
			requestBody, _ := operation["requestBody"].(map[string]any)
			if requestBody == nil {
				return fmt.Errorf("openapi: operation %s %s missing requestBody", method, pathKey)
			}
			content, _ := requestBody["content"].(map[string]any)
			if len(content) == 0 {
				return fmt.Errorf("openapi: operation %s %s requestBody missing content", method, pathKey)
			}
			if _, ok := operation["responses"].(map[string]any); !ok {
				return fmt.Errorf("openapi: operation %s %s missing responses", method, pathKey)
			}
		}
	}
	return nil
}
