package strata

import (
	"errors"
	"time"

	"github.com/goliatone/go-strata/layering"
)

// Resolve returns the effective value of property: the descriptor default
// folded with every layer that defines the property, weakest first. Reference
// lists resolve to their visible member ids. Malformed layer values do not
// fail the call; they are recorded as diagnostics and the property falls back
// to its default. The returned value is a copy.
func (e *Entity) Resolve(property string) (any, error) {
	d, err := e.typ.Lookup(property)
	if err != nil {
		return nil, err
	}
	value, err := e.resolveDescriptor(d)
	if err != nil {
		return nil, err
	}
	if d.Kind.Kind == KindReferenceList {
		return e.catalog.visibleIDs(value), nil
	}
	return layering.Clone(value), nil
}

// MustResolve panics on structural errors.
func (e *Entity) MustResolve(property string) any {
	value, err := e.Resolve(property)
	if err != nil {
		panic(err)
	}
	return value
}

// ResolveWithTrace resolves property and reports, strongest layer first, the
// raw value each of the entity's layers holds for it.
func (e *Entity) ResolveWithTrace(property string) (any, Trace, error) {
	value, err := e.Resolve(property)
	if err != nil {
		return nil, Trace{}, err
	}
	d, _ := e.typ.Lookup(property)
	scopes, err := e.catalog.ordering.Sort(e.layerOrder)
	if err != nil {
		return nil, Trace{}, e.withEntity(err)
	}
	trace := Trace{
		EntityID: e.id,
		Property: property,
		Value:    value,
		Default:  layering.Clone(d.Default),
		Layers:   make([]Provenance, 0, len(scopes)),
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		raw, found := e.GetRawValue(scopes[i].Name, property)
		trace.Layers = append(trace.Layers, Provenance{
			Scope: scopes[i],
			Value: raw,
			Found: found,
		})
	}
	return value, trace, nil
}

// resolveDescriptor folds the layers defining d. The result is cached until
// the property is written or the layer ordering changes, and must not be
// mutated by callers. Derived defaults see visible reference ids, so their
// cache entries also expire when the catalog's lifecycle generation moves.
func (e *Entity) resolveDescriptor(d PropertyDescriptor) (any, error) {
	version := e.catalog.ordering.Version()
	var generation uint64
	if d.DerivedDefault != "" {
		generation = e.catalog.generation
	}
	if cached, ok := e.cache[d.ID]; ok && cached.version == version && cached.generation == generation {
		return cached.value, nil
	}

	start := time.Now()
	scopes, err := e.catalog.ordering.Sort(e.layersDefining(d.ID))
	if err != nil {
		return nil, e.withEntity(err)
	}

	var diags []Diagnostic
	def, diag, err := e.defaultFor(d)
	if err != nil {
		return nil, err
	}
	if diag != nil {
		diags = append(diags, *diag)
	}

	acc := layering.Clone(def)
	for _, scope := range scopes {
		merged, err := d.Merge.Merge(acc, e.layers[scope.Name][d.ID])
		if err != nil {
			diags = append(diags, Diagnostic{
				EntityID: e.id,
				Property: d.ID,
				Layer:    scope.Name,
				Err: &InvalidMergeInputError{
					EntityID: e.id,
					Property: d.ID,
					Layer:    scope.Name,
					Strategy: d.Merge.Name(),
					Err:      err,
				},
				At: time.Now(),
			})
			acc = layering.Clone(def)
			break
		}
		acc = merged
	}

	e.setDiagnostics(d.ID, diags)
	e.cache[d.ID] = cachedValue{version: version, generation: generation, value: acc}
	e.catalog.cfg.logger.Log(LogEvent{
		Level:    LogLevelDebug,
		Message:  "property resolved",
		EntityID: e.id,
		Property: d.ID,
		Duration: time.Since(start),
	})
	return acc, nil
}

// layersDefining returns the names of the layers holding a value for
// property, in insertion order.
func (e *Entity) layersDefining(property string) []string {
	names := make([]string, 0, len(e.layerOrder))
	for _, name := range e.layerOrder {
		if _, ok := e.layers[name][property]; ok {
			names = append(names, name)
		}
	}
	return names
}

// staticDefault is the descriptor default; objects without one start from
// the defaults of their fields.
func staticDefault(d PropertyDescriptor) any {
	if d.Default != nil || d.Kind.Kind != KindObject {
		return d.Default
	}
	return fieldDefaults(d.Kind.Fields)
}

func fieldDefaults(fields DescriptorSet) any {
	out := map[string]any{}
	for _, field := range fields.Descriptors {
		if value := staticDefault(field); value != nil {
			out[field.ID] = layering.Clone(value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *Entity) withEntity(err error) error {
	var unregistered *UnregisteredLayerError
	if errors.As(err, &unregistered) && unregistered.EntityID == "" {
		unregistered.EntityID = e.id
	}
	return err
}
