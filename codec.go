package strata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	entityIDKey   = "id"
	entityTypeKey = "type"
)

// MarshalJSON encodes the entity as
//
//	{"id": ..., "type": ..., "<layer>": {"<property>": value}, ...}
//
// with layers written weakest first. Layers whose name is no longer
// registered keep their insertion position at the end.
func (e *Entity) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, entityIDKey, e.id, true); err != nil {
		return nil, err
	}
	if err := writeMember(&buf, entityTypeKey, e.TypeName(), false); err != nil {
		return nil, err
	}
	for _, name := range e.sortedLayerNames() {
		if err := writeMember(&buf, name, e.layers[name], false); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	encodedKey, err := json.Marshal(key)
	if err != nil {
		return err
	}
	encodedValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("strata: encode %s: %w", key, err)
	}
	buf.Write(encodedKey)
	buf.WriteByte(':')
	buf.Write(encodedValue)
	return nil
}

func (e *Entity) sortedLayerNames() []string {
	scopes, err := e.catalog.ordering.Sort(e.layerOrder)
	if err != nil {
		return e.LayerNames()
	}
	names := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		names = append(names, scope.Name)
	}
	return names
}

// DecodeEntity adds the entity encoded in data to the catalog. Every layer
// must be registered and every property declared for the entity type. Null
// property values carry no opinion and are dropped, as with SetValue.
func (c *Catalog) DecodeEntity(data []byte) (*Entity, error) {
	staged, err := c.stageEntity(data)
	if err != nil {
		return nil, err
	}
	return c.commitEntity(staged)
}

// stagedEntity is a decoded entity that has been validated against the
// registry and ordering but not yet added.
type stagedEntity struct {
	id     string
	typ    string
	scopes []Scope
	layers map[string]map[string]any
}

func (c *Catalog) stageEntity(data []byte) (stagedEntity, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return stagedEntity{}, fmt.Errorf("strata: decode entity: %w", err)
	}
	var id, typ string
	if err := decodeString(raw, entityIDKey, &id); err != nil {
		return stagedEntity{}, err
	}
	if err := decodeString(raw, entityTypeKey, &typ); err != nil {
		return stagedEntity{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return stagedEntity{}, fmt.Errorf("strata: decode entity: %q is required", entityIDKey)
	}

	layers := make(map[string]map[string]any, len(raw))
	names := make([]string, 0, len(raw))
	for key, value := range raw {
		if key == entityIDKey || key == entityTypeKey {
			continue
		}
		var values map[string]any
		if err := json.Unmarshal(value, &values); err != nil {
			return stagedEntity{}, fmt.Errorf("strata: decode entity %s layer %s: %w", id, key, err)
		}
		for property, v := range values {
			if v == nil {
				delete(values, property)
			}
		}
		layers[key] = values
		names = append(names, key)
	}
	scopes, err := c.ordering.Sort(names)
	if err != nil {
		var unregistered *UnregisteredLayerError
		if errors.As(err, &unregistered) {
			unregistered.EntityID = id
		}
		return stagedEntity{}, err
	}

	entityType, ok := c.registry.Type(typ)
	if !ok {
		return stagedEntity{}, fmt.Errorf("%w: %q", ErrUnknownEntityType, typ)
	}
	for _, values := range layers {
		for property := range values {
			if _, err := entityType.Lookup(property); err != nil {
				return stagedEntity{}, err
			}
		}
	}
	return stagedEntity{id: id, typ: typ, scopes: scopes, layers: layers}, nil
}

func (c *Catalog) commitEntity(staged stagedEntity) (*Entity, error) {
	entity, err := c.Add(staged.id, staged.typ)
	if err != nil {
		return nil, err
	}
	for _, scope := range staged.scopes {
		if len(staged.layers[scope.Name]) == 0 {
			continue
		}
		entity.layers[scope.Name] = staged.layers[scope.Name]
		entity.layerOrder = append(entity.layerOrder, scope.Name)
	}
	return entity, nil
}

func decodeString(raw map[string]json.RawMessage, key string, dst *string) error {
	value, ok := raw[key]
	if !ok {
		return fmt.Errorf("strata: decode entity: %q is required", key)
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return fmt.Errorf("strata: decode entity %s: %w", key, err)
	}
	return nil
}

type catalogDocument struct {
	Entities []json.RawMessage `json:"entities"`
	Removed  []string          `json:"removed,omitempty"`
}

// MarshalJSON encodes every entity, live and removed, in insertion order
// together with the ids of the removed ones.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	doc := catalogDocument{Entities: make([]json.RawMessage, 0, len(c.order))}
	for _, id := range c.order {
		encoded, err := c.entities[id].MarshalJSON()
		if err != nil {
			return nil, err
		}
		doc.Entities = append(doc.Entities, encoded)
		if _, removed := c.removed[id]; removed {
			doc.Removed = append(doc.Removed, id)
		}
	}
	return json.Marshal(doc)
}

// Load adds the entities of a document produced by MarshalJSON. Entities
// listed as removed are tombstoned after all entities are added. The whole
// document is validated first; on error the catalog is left unchanged.
func (c *Catalog) Load(data []byte) error {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("strata: decode catalog: %w", err)
	}

	staged := make([]stagedEntity, 0, len(doc.Entities))
	incoming := make(map[string]struct{}, len(doc.Entities))
	for _, encoded := range doc.Entities {
		entity, err := c.stageEntity(encoded)
		if err != nil {
			return err
		}
		if _, exists := c.entities[entity.id]; exists {
			return fmt.Errorf("%w: %q", ErrEntityExists, entity.id)
		}
		if _, dup := incoming[entity.id]; dup {
			return fmt.Errorf("%w: %q", ErrEntityExists, entity.id)
		}
		incoming[entity.id] = struct{}{}
		staged = append(staged, entity)
	}
	tombstones := make(map[string]struct{}, len(doc.Removed))
	for _, id := range doc.Removed {
		_, loaded := incoming[id]
		_, removed := tombstones[id]
		if removed || (!loaded && c.State(id) != StateLive) {
			return fmt.Errorf("%w: removed id %q", ErrEntityNotFound, id)
		}
		tombstones[id] = struct{}{}
	}

	for _, entity := range staged {
		if _, err := c.commitEntity(entity); err != nil {
			return err
		}
	}
	for _, id := range doc.Removed {
		if err := c.Remove(id); err != nil {
			return err
		}
	}
	return nil
}
