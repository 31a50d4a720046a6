package strata

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EntityType is the full property table for one kind of entity. It is built
// once at startup and read without locking afterwards.
type EntityType struct {
	name        string
	descriptors map[string]PropertyDescriptor
	order       []string
	sets        []string
}

// Name returns the entity type discriminator.
func (t *EntityType) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// Lookup returns the descriptor for id or an UnknownPropertyError.
func (t *EntityType) Lookup(id string) (PropertyDescriptor, error) {
	if t == nil {
		return PropertyDescriptor{}, &UnknownPropertyError{Property: id}
	}
	d, ok := t.descriptors[id]
	if !ok {
		return PropertyDescriptor{}, &UnknownPropertyError{EntityType: t.name, Property: id}
	}
	return d, nil
}

// Descriptors returns every descriptor in registration order.
func (t *EntityType) Descriptors() []PropertyDescriptor {
	if t == nil {
		return nil
	}
	out := make([]PropertyDescriptor, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.descriptors[id])
	}
	return out
}

// PropertyIDs lists property ids in registration order.
func (t *EntityType) PropertyIDs() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.order...)
}

// Sets lists the descriptor sets the type was composed from.
func (t *EntityType) Sets() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.sets...)
}

func (t *EntityType) add(d PropertyDescriptor) error {
	if existing, ok := t.descriptors[d.ID]; ok {
		if existing.compatible(d) {
			return nil
		}
		return fmt.Errorf("%w: %s.%s registered as %s/%s, got %s/%s", ErrDescriptorConflict,
			t.name, d.ID, existing.Kind, strategyName(existing.Merge), d.Kind, strategyName(d.Merge))
	}
	t.descriptors[d.ID] = d
	t.order = append(t.order, d.ID)
	return nil
}

// Registry stores entity types keyed by name.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[string]*EntityType),
	}
}

// Register adds d to entityType, creating the type on first use. Registering
// an identical descriptor twice is a no-op; a different kind or merge
// strategy for the same id fails with ErrDescriptorConflict.
func (r *Registry) Register(entityType string, d PropertyDescriptor) error {
	if strings.TrimSpace(entityType) == "" {
		return fmt.Errorf("%w: entity type must not be empty", ErrInvalidDescriptor)
	}
	normalized, err := d.normalize()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typeLocked(entityType).add(normalized)
}

// MustRegister panics when Register fails.
func (r *Registry) MustRegister(entityType string, d PropertyDescriptor) {
	if err := r.Register(entityType, d); err != nil {
		panic(err)
	}
}

// DeclareEntityType composes descriptor sets into the table for name. The
// union is flat; an id declared by two sets with different shapes fails and
// leaves the registry untouched.
func (r *Registry) DeclareEntityType(name string, sets ...DescriptorSet) (*EntityType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: entity type must not be empty", ErrInvalidDescriptor)
	}

	staged := &EntityType{name: name, descriptors: map[string]PropertyDescriptor{}}
	for _, set := range sets {
		for _, d := range set.Descriptors {
			normalized, err := d.normalize()
			if err != nil {
				return nil, err
			}
			if err := staged.add(normalized); err != nil {
				return nil, fmt.Errorf("%w (set %q)", err, set.Name)
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.typeLocked(name)
	for _, id := range staged.order {
		if existing, ok := target.descriptors[id]; ok && !existing.compatible(staged.descriptors[id]) {
			return nil, fmt.Errorf("%w: %s.%s", ErrDescriptorConflict, name, id)
		}
	}
	for _, id := range staged.order {
		_ = target.add(staged.descriptors[id])
	}
	for _, set := range sets {
		if set.Name != "" && !containsString(target.sets, set.Name) {
			target.sets = append(target.sets, set.Name)
		}
	}
	return target, nil
}

// MustDeclareEntityType panics when DeclareEntityType fails.
func (r *Registry) MustDeclareEntityType(name string, sets ...DescriptorSet) *EntityType {
	t, err := r.DeclareEntityType(name, sets...)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the descriptor for (entityType, id).
func (r *Registry) Lookup(entityType, id string) (PropertyDescriptor, error) {
	t, ok := r.Type(entityType)
	if !ok {
		return PropertyDescriptor{}, &UnknownPropertyError{EntityType: entityType, Property: id}
	}
	return t.Lookup(id)
}

// Type returns the entity type registered under name.
func (r *Registry) Type(name string) (*EntityType, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns registered type names sorted alphabetically.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops every registration. Only meant for test setup and teardown.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]*EntityType)
}

func (r *Registry) typeLocked(name string) *EntityType {
	if r.types == nil {
		r.types = make(map[string]*EntityType)
	}
	t, ok := r.types[name]
	if !ok {
		t = &EntityType{name: name, descriptors: map[string]PropertyDescriptor{}}
		r.types[name] = t
	}
	return t
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
