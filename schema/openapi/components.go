package openapi

import (
	"fmt"
	"regexp"

	"github.com/goliatone/go-strata/layering"
)

// componentRegistry publishes object schemas under components/schemas.
// Identical schemas share one component, keyed by a digest of their JSON.
type componentRegistry struct {
	byDigest  map[string]string
	schemas   map[string]map[string]any
	usedNames map[string]struct{}
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		byDigest:  map[string]string{},
		schemas:   map[string]map[string]any{},
		usedNames: map[string]struct{}{},
	}
}

// register stores schema under a name derived from nameHint and returns its
// $ref. A schema already registered under another name is reused.
func (r *componentRegistry) register(nameHint string, schema map[string]any) (string, error) {
	digest, err := layering.ContentKey(schema)
	if err != nil {
		return "", fmt.Errorf("openapi: digest component %s: %w", nameHint, err)
	}
	if name, ok := r.byDigest[digest]; ok {
		return componentRef(name), nil
	}
	name := r.uniqueName(nameHint)
	r.byDigest[digest] = name
	r.schemas[name] = schema
	return componentRef(name), nil
}

// forceName stores schema under exactly name, failing on collisions. Entity
// types are published this way so their component names are predictable.
func (r *componentRegistry) forceName(name string, schema map[string]any) (string, error) {
	safe := sanitizeComponentName(name)
	if safe == "" {
		return "", fmt.Errorf("openapi: invalid component name %q", name)
	}
	if _, exists := r.usedNames[safe]; exists {
		return "", fmt.Errorf("openapi: component %q already defined", safe)
	}
	r.usedNames[safe] = struct{}{}
	r.schemas[safe] = schema
	return componentRef(safe), nil
}

func (r *componentRegistry) uniqueName(name string) string {
	safe := sanitizeComponentName(name)
	if safe == "" {
		safe = "Schema"
	}
	if _, exists := r.usedNames[safe]; !exists {
		r.usedNames[safe] = struct{}{}
		return safe
	}
	suffix := 1
	for {
		candidate := fmt.Sprintf("%s%d", safe, suffix)
		if _, exists := r.usedNames[candidate]; !exists {
			r.usedNames[candidate] = struct{}{}
			return candidate
		}
		suffix++
	}
}

func (r *componentRegistry) componentsMap() map[string]any {
	if len(r.schemas) == 0 {
		return nil
	}
	out := make(map[string]any, len(r.schemas))
	for name, schema := range r.schemas {
		out[name] = schema
	}
	return out
}

func componentRef(name string) string {
	return "#/components/schemas/" + name
}

var componentNameRegexp = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func sanitizeComponentName(name string) string {
	name = componentNameRegexp.ReplaceAllString(name, "_")
	name = trimUnderscores(name)
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}

func trimUnderscores(input string) string {
	start := 0
	for start < len(input) && input[start] == '_' {
		start++
	}
	end := len(input)
	for end > start && input[end-1] == '_' {
		end--
	}
	return input[start:end]
}
