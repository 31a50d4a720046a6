package strata

import (
	"fmt"

	"github.com/goliatone/go-strata/layering"
)

// Reference is a weak, id-based pointer from a reference-list property to a
// catalog entity, with the per-reference fields layers attached to it.
type Reference struct {
	ID       string         `json:"id"`
	Property string         `json:"property"`
	Fields   map[string]any `json:"fields,omitempty"`
}

// ResolvedReference is a Reference paired with its target. Dangling is set,
// and Entity nil, when the id is unknown to the catalog; callers render a
// placeholder instead of failing.
type ResolvedReference struct {
	Reference
	Entity   *Entity `json:"-"`
	Dangling bool    `json:"dangling,omitempty"`
}

// ResolveReferences resolves a reference-list property into its members in
// first-appearance order. Members whose target is removed are hidden but stay
// in the stored layers, so restoring the target brings them back in place.
func (e *Entity) ResolveReferences(property string) ([]ResolvedReference, error) {
	d, err := e.typ.Lookup(property)
	if err != nil {
		return nil, err
	}
	if d.Kind.Kind != KindReferenceList {
		return nil, fmt.Errorf("%w: %s.%s is %s", ErrNotReferenceList, e.TypeName(), property, d.Kind)
	}
	value, err := e.resolveDescriptor(d)
	if err != nil {
		return nil, err
	}
	return e.catalog.resolveMembers(property, value), nil
}

// ResolveSubset returns the members of listProperty that also appear in
// subsetProperty, keeping the order of listProperty. It models lists whose
// membership and order are defined once while a later layer only chooses
// which members are enabled.
func (e *Entity) ResolveSubset(listProperty, subsetProperty string) ([]ResolvedReference, error) {
	members, err := e.ResolveReferences(listProperty)
	if err != nil {
		return nil, err
	}
	subset, err := e.Resolve(subsetProperty)
	if err != nil {
		return nil, err
	}
	list, _ := subset.([]any)
	enabled := make(map[string]struct{}, len(list))
	for _, item := range list {
		if id, ok := entryID(item); ok {
			enabled[id] = struct{}{}
		}
	}
	out := make([]ResolvedReference, 0, len(enabled))
	for _, member := range members {
		if _, ok := enabled[member.ID]; ok {
			out = append(out, member)
		}
	}
	return out, nil
}

// Referrers lists the live entities whose reference-list properties contain
// id in any layer, in catalog order.
func (c *Catalog) Referrers(id string) []*Entity {
	var out []*Entity
	for _, entity := range c.Entities() {
		if entity.references(id) {
			out = append(out, entity)
		}
	}
	return out
}

func (e *Entity) references(id string) bool {
	for _, d := range e.typ.Descriptors() {
		if d.Kind.Kind != KindReferenceList {
			continue
		}
		for _, name := range e.layersDefining(d.ID) {
			list, _ := e.layers[name][d.ID].([]any)
			for _, item := range list {
				if itemID, ok := entryID(item); ok && itemID == id {
					return true
				}
			}
		}
	}
	return false
}

func (c *Catalog) resolveMembers(property string, value any) []ResolvedReference {
	list, _ := value.([]any)
	out := make([]ResolvedReference, 0, len(list))
	for _, item := range list {
		id, ok := entryID(item)
		if !ok {
			continue
		}
		entity, state := c.Lookup(id)
		if state == StateRemoved {
			continue
		}
		ref := ResolvedReference{
			Reference: Reference{ID: id, Property: property, Fields: entryFields(item)},
			Entity:    entity,
			Dangling:  state == StateAbsent,
		}
		out = append(out, ref)
	}
	return out
}

// visibleIDs turns a folded reference list into the ids of its members that
// are not removed. Dangling ids are kept.
func (c *Catalog) visibleIDs(value any) any {
	if value == nil {
		return nil
	}
	members := c.resolveMembers("", value)
	out := make([]any, 0, len(members))
	for _, member := range members {
		out = append(out, member.ID)
	}
	return out
}

func entryID(item any) (string, bool) {
	switch typed := item.(type) {
	case string:
		return typed, typed != ""
	case map[string]any:
		id, ok := typed[referenceIDField].(string)
		return id, ok && id != ""
	default:
		return "", false
	}
}

func entryFields(item any) map[string]any {
	m, ok := item.(map[string]any)
	if !ok || len(m) <= 1 {
		return nil
	}
	fields := make(map[string]any, len(m)-1)
	for key, value := range m {
		if key == referenceIDField {
			continue
		}
		fields[key] = layering.Clone(value)
	}
	return fields
}
