// Package definition loads shared entity definitions from YAML or JSON files
// and applies them to a catalog layer, typically shared-definition.
//
// A definition file lists entities and may include further files through
// doublestar globs resolved relative to the including file:
//
//	include:
//	  - basemaps/**/*.yaml
//	entities:
//	  - id: osm
//	    type: basemap
//	    values:
//	      name: OpenStreetMap
//
// Later definitions of the same id extend earlier ones key by key, and the
// including file is read after its includes.
package definition

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

var ErrIncludeCycle = errors.New("definition: include cycle")

// Document is the merged content of a definition file and its includes.
type Document struct {
	Include  []string           `yaml:"include,omitempty" json:"include,omitempty"`
	Entities []EntityDefinition `yaml:"entities" json:"entities"`

	// Sources lists every file read, includes first.
	Sources []string `yaml:"-" json:"-"`
}

// EntityDefinition declares the values one entity receives in the target
// layer.
type EntityDefinition struct {
	ID     string         `yaml:"id" json:"id"`
	Type   string         `yaml:"type" json:"type"`
	Values map[string]any `yaml:"values,omitempty" json:"values,omitempty"`
}

// Lookup returns the definition with id.
func (d *Document) Lookup(id string) (EntityDefinition, bool) {
	for _, def := range d.Entities {
		if def.ID == id {
			return def, true
		}
	}
	return EntityDefinition{}, false
}

// Load reads path and every file it includes.
func Load(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("definition: resolve %q: %w", path, err)
	}
	doc := &Document{}
	index := map[string]int{}
	if err := load(abs, doc, index, map[string]bool{}); err != nil {
		return nil, err
	}
	return doc, nil
}

// Parse decodes a single definition payload. Includes are kept verbatim and
// not resolved.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("definition: parse: %w", err)
	}
	for i, def := range doc.Entities {
		if err := def.validate(); err != nil {
			return nil, fmt.Errorf("definition: entity %d: %w", i, err)
		}
	}
	return &doc, nil
}

func load(path string, doc *Document, index map[string]int, stack map[string]bool) error {
	if stack[path] {
		return fmt.Errorf("%w: %s", ErrIncludeCycle, path)
	}
	if slices.Contains(doc.Sources, path) {
		return nil
	}
	stack[path] = true
	defer delete(stack, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("definition: read %q: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	for _, pattern := range file.Include {
		matches, err := includeMatches(dir, pattern)
		if err != nil {
			return fmt.Errorf("definition: include %q from %q: %w", pattern, path, err)
		}
		for _, match := range matches {
			if err := load(match, doc, index, stack); err != nil {
				return err
			}
		}
	}

	doc.Include = append(doc.Include, file.Include...)
	doc.Sources = append(doc.Sources, path)
	for _, def := range file.Entities {
		if err := doc.merge(def, index); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func includeMatches(dir, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 && !hasMeta(pattern) {
		return nil, fmt.Errorf("no such file %q", pattern)
	}
	slices.Sort(matches)
	return matches, nil
}

func hasMeta(pattern string) bool {
	for _, r := range pattern {
		switch r {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

func (d *Document) merge(def EntityDefinition, index map[string]int) error {
	pos, ok := index[def.ID]
	if !ok {
		index[def.ID] = len(d.Entities)
		def.Values = maps.Clone(def.Values)
		d.Entities = append(d.Entities, def)
		return nil
	}
	existing := &d.Entities[pos]
	if existing.Type != def.Type {
		return fmt.Errorf("definition: entity %q redefined as %q, was %q", def.ID, def.Type, existing.Type)
	}
	if existing.Values == nil {
		existing.Values = map[string]any{}
	}
	maps.Copy(existing.Values, def.Values)
	return nil
}

func (def EntityDefinition) validate() error {
	if def.ID == "" {
		return fmt.Errorf("id is required")
	}
	if def.Type == "" {
		return fmt.Errorf("type is required for %q", def.ID)
	}
	return nil
}
