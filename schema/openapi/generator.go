package openapi

import (
	strata "github.com/goliatone/go-strata"
)

type generator struct {
	config generatorConfig
}

// NewGenerator constructs an OpenAPI 3.1 schema generator. Each entity type
// is published as a component together with the component of its layers,
// and nested object properties become components of their own.
func NewGenerator(opts ...GeneratorOption) strata.SchemaGenerator {
	cfg := defaultGeneratorConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return generator{config: cfg}
}

func (g generator) Generate(types ...*strata.EntityType) (strata.SchemaDocument, error) {
	document, err := newOpenAPIDocumentBuilder(g.config).build(types)
	if err != nil {
		return strata.SchemaDocument{}, err
	}
	return strata.SchemaDocument{
		Format:   strata.SchemaFormatOpenAPI,
		Document: document,
	}, nil
}
