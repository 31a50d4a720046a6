package strata

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
)

// Snapshot resolves every declared property of the entity. The map is keyed
// by property id and owned by the caller.
func (e *Entity) Snapshot() (map[string]any, error) {
	snapshot := make(map[string]any, len(e.typ.PropertyIDs()))
	for _, id := range e.typ.PropertyIDs() {
		value, err := e.Resolve(id)
		if err != nil {
			return nil, err
		}
		snapshot[id] = value
	}
	return snapshot, nil
}

// Query evaluates a JSONPath expression against the entity's snapshot, for
// example "$.style.color" or "$.info[*].name".
func (e *Entity) Query(selector string) ([]any, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("strata: invalid jsonpath %q: %w", selector, err)
	}
	snapshot, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return x.Get(snapshot), nil
}

// QueryFirst returns the first match of selector, or nil.
func (e *Entity) QueryFirst(selector string) (any, error) {
	results, err := e.Query(selector)
	if err != nil || len(results) == 0 {
		return nil, err
	}
	return results[0], nil
}
