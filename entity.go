package strata

import (
	"errors"
	"reflect"

	"github.com/goliatone/go-strata/layering"
	"github.com/goliatone/go-strata/pkg/activity"
)

// Entity is an addressable catalog object. It owns its layer store: an
// insertion-ordered set of named layers, each a sparse map from property id
// to raw value. Entities are created through a Catalog and are not safe for
// concurrent mutation.
type Entity struct {
	id      string
	typ     *EntityType
	catalog *Catalog

	layers     map[string]map[string]any
	layerOrder []string

	cache       map[string]cachedValue
	diagnostics map[string][]Diagnostic
}

type cachedValue struct {
	version    uint64
	generation uint64
	value      any
}

func newEntity(c *Catalog, id string, typ *EntityType) *Entity {
	return &Entity{
		id:          id,
		typ:         typ,
		catalog:     c,
		layers:      map[string]map[string]any{},
		cache:       map[string]cachedValue{},
		diagnostics: map[string][]Diagnostic{},
	}
}

// ID returns the catalog-wide identifier.
func (e *Entity) ID() string {
	return e.id
}

// Type returns the descriptor table applied to the entity.
func (e *Entity) Type() *EntityType {
	return e.typ
}

// TypeName returns the entity type discriminator.
func (e *Entity) TypeName() string {
	return e.typ.Name()
}

// Catalog returns the catalog that owns the entity.
func (e *Entity) Catalog() *Catalog {
	return e.catalog
}

// SetValue writes value for property into layer. A nil value removes the
// layer's opinion. Writing the value already stored is a no-op.
func (e *Entity) SetValue(layer, property string, value any) error {
	scope, ok := e.catalog.ordering.Lookup(layer)
	if !ok {
		return &UnregisteredLayerError{Layer: layer, EntityID: e.id}
	}
	if _, err := e.typ.Lookup(property); err != nil {
		return err
	}
	if value == nil {
		return e.ClearValue(layer, property)
	}
	normalized, err := layering.Normalize(value)
	if err != nil {
		return &InvalidMergeInputError{EntityID: e.id, Property: property, Layer: layer, Err: err}
	}

	values := e.layers[layer]
	previous, existed := values[property]
	if existed && reflect.DeepEqual(previous, normalized) {
		return nil
	}
	if values == nil {
		values = map[string]any{}
		e.layers[layer] = values
		e.layerOrder = append(e.layerOrder, layer)
	}
	values[property] = normalized
	e.invalidate(property)

	e.catalog.emit(activity.BuildLayerSetEvent(e.eventInput(scope, property, previous, normalized)))
	return nil
}

// MustSetValue panics when SetValue fails. Intended for fixtures and
// bootstrap code writing known-good values.
func (e *Entity) MustSetValue(layer, property string, value any) {
	if err := e.SetValue(layer, property, value); err != nil {
		panic(err)
	}
}

// ClearValue removes layer's opinion on property.
func (e *Entity) ClearValue(layer, property string) error {
	scope, ok := e.catalog.ordering.Lookup(layer)
	if !ok {
		return &UnregisteredLayerError{Layer: layer, EntityID: e.id}
	}
	if _, err := e.typ.Lookup(property); err != nil {
		return err
	}
	values := e.layers[layer]
	previous, existed := values[property]
	if !existed {
		return nil
	}
	delete(values, property)
	if len(values) == 0 {
		e.dropLayer(layer)
	}
	e.invalidate(property)

	e.catalog.emit(activity.BuildLayerClearedEvent(e.eventInput(scope, property, previous, nil)))
	return nil
}

// ClearLayer drops every value the entity holds in layer.
func (e *Entity) ClearLayer(layer string) error {
	scope, ok := e.catalog.ordering.Lookup(layer)
	if !ok {
		return &UnregisteredLayerError{Layer: layer, EntityID: e.id}
	}
	values, ok := e.layers[layer]
	if !ok {
		return nil
	}
	e.dropLayer(layer)
	for property := range values {
		e.invalidate(property)
	}
	e.catalog.emit(activity.BuildLayerClearedEvent(e.eventInput(scope, "", nil, nil)))
	return nil
}

// GetRawValue returns the value stored for property in layer, without any
// merging. ok is false when the layer has no opinion.
func (e *Entity) GetRawValue(layer, property string) (any, bool) {
	value, ok := e.layers[layer][property]
	if !ok {
		return nil, false
	}
	return layering.Clone(value), true
}

// HasLayer reports whether the entity holds any value in layer.
func (e *Entity) HasLayer(layer string) bool {
	_, ok := e.layers[layer]
	return ok
}

// LayerNames lists the entity's layers in insertion order.
func (e *Entity) LayerNames() []string {
	return append([]string(nil), e.layerOrder...)
}

// LayerValues returns a copy of the values held in layer.
func (e *Entity) LayerValues(layer string) map[string]any {
	values, ok := e.layers[layer]
	if !ok {
		return nil
	}
	return layering.Clone(values)
}

// Diagnostics returns the recoverable problems found while resolving the
// entity's properties, in declaration order.
func (e *Entity) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, id := range e.typ.PropertyIDs() {
		out = append(out, e.diagnostics[id]...)
	}
	return out
}

func (e *Entity) dropLayer(layer string) {
	delete(e.layers, layer)
	for i, name := range e.layerOrder {
		if name == layer {
			e.layerOrder = append(e.layerOrder[:i], e.layerOrder[i+1:]...)
			break
		}
	}
}

// invalidate drops the cached value of property and of every property whose
// default is derived, since those read the whole entity.
func (e *Entity) invalidate(property string) {
	delete(e.cache, property)
	for _, d := range e.typ.Descriptors() {
		if d.DerivedDefault != "" {
			delete(e.cache, d.ID)
		}
	}
}

// copyLayersFrom deep-copies src's layer store into e.
func (e *Entity) copyLayersFrom(src *Entity) {
	for _, name := range src.layerOrder {
		e.layers[name] = layering.Clone(src.layers[name])
		e.layerOrder = append(e.layerOrder, name)
	}
}

func (e *Entity) eventInput(scope Scope, property string, oldValue, newValue any) activity.EntityEventInput {
	return activity.EntityEventInput{
		ActorID:    e.catalog.cfg.actor,
		EntityID:   e.id,
		EntityType: e.typ.Name(),
		Property:   property,
		OldValue:   oldValue,
		NewValue:   newValue,
		Layer: activity.LayerContext{
			Name:     scope.Name,
			Label:    scope.Label,
			Priority: scope.Priority,
		},
	}
}

func (e *Entity) setDiagnostics(property string, diags []Diagnostic) {
	if len(diags) == 0 {
		delete(e.diagnostics, property)
		return
	}
	e.diagnostics[property] = diags
	for _, diag := range diags {
		event := LogEvent{
			Level:    LogLevelWarn,
			Message:  "property resolved to default",
			EntityID: diag.EntityID,
			Property: diag.Property,
			Layer:    diag.Layer,
			Err:      diag.Err,
		}
		var evalErr *EvaluationError
		if errors.As(diag.Err, &evalErr) {
			event.Message = "derived default failed"
			event.Engine = evalErr.Engine
			event.Expr = evalErr.Expr
		}
		e.catalog.cfg.logger.Log(event)
	}
}

// ReplaceLayer swaps the whole content of layer for values. It is how
// collaborators apply a freshly loaded source (a definition file, a server
// capabilities document, a persisted user layer) in one step. Every property
// is validated before anything is written.
func (e *Entity) ReplaceLayer(layer string, values map[string]any) error {
	scope, ok := e.catalog.ordering.Lookup(layer)
	if !ok {
		return &UnregisteredLayerError{Layer: layer, EntityID: e.id}
	}
	next := make(map[string]any, len(values))
	for property, value := range values {
		if _, err := e.typ.Lookup(property); err != nil {
			return err
		}
		if value == nil {
			continue
		}
		normalized, err := layering.Normalize(value)
		if err != nil {
			return &InvalidMergeInputError{EntityID: e.id, Property: property, Layer: layer, Err: err}
		}
		next[property] = normalized
	}

	previous := e.layers[layer]
	if reflect.DeepEqual(previous, next) || (len(previous) == 0 && len(next) == 0) {
		return nil
	}
	for property := range previous {
		e.invalidate(property)
	}
	for property := range next {
		e.invalidate(property)
	}
	if len(next) == 0 {
		e.dropLayer(layer)
		e.catalog.emit(activity.BuildLayerClearedEvent(e.eventInput(scope, "", nil, nil)))
		return nil
	}
	if previous == nil {
		e.layerOrder = append(e.layerOrder, layer)
	}
	e.layers[layer] = next
	e.catalog.emit(activity.BuildLayerSetEvent(e.eventInput(scope, "", nil, layering.Clone(next))))
	return nil
}
