package strata

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-strata/pkg/activity"
	"github.com/google/uuid"
)

// EntityState distinguishes a tombstoned entity from one that never existed.
type EntityState int

const (
	// StateAbsent means the id is unknown to the catalog.
	StateAbsent EntityState = iota
	// StateLive means the entity is present and visible.
	StateLive
	// StateRemoved means the entity was removed but is kept as a tombstone,
	// so references to it are hidden rather than dangling.
	StateRemoved
)

func (s EntityState) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateRemoved:
		return "removed"
	default:
		return "absent"
	}
}

// Catalog is the registry of entities keyed by id. Entities refer to each
// other by id only; their lifetime is governed solely by the catalog.
type Catalog struct {
	cfg      catalogConfig
	ordering *Ordering
	registry *Registry

	entities map[string]*Entity
	order    []string
	removed  map[string]struct{}

	generation uint64
	emitter    *activity.Emitter
	evaluator  Evaluator
}

// NewCatalog builds an empty catalog. Without options it reads the default
// registry and ordering.
func NewCatalog(opts ...CatalogOption) *Catalog {
	cfg := applyCatalogOptions(opts)
	return &Catalog{
		cfg:      cfg,
		ordering: cfg.ordering,
		registry: cfg.registry,
		entities: map[string]*Entity{},
		removed:  map[string]struct{}{},
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: len(cfg.activityHooks) > 0,
			Channel: cfg.channel,
		}),
	}
}

// Registry returns the descriptor registry entity types are looked up in.
func (c *Catalog) Registry() *Registry {
	return c.registry
}

// Ordering returns the layer ordering used for resolution.
func (c *Catalog) Ordering() *Ordering {
	return c.ordering
}

// Generation changes whenever an entity is added, removed, restored or
// purged.
func (c *Catalog) Generation() uint64 {
	return c.generation
}

// Add creates an entity of entityType under id. An empty id gets a random
// UUID. Ids must be unique among live and removed entities.
func (c *Catalog) Add(id, entityType string) (*Entity, error) {
	typ, ok := c.registry.Type(entityType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := c.entities[id]; exists {
		return nil, fmt.Errorf("%w: %q", ErrEntityExists, id)
	}
	entity := newEntity(c, id, typ)
	c.entities[id] = entity
	c.order = append(c.order, id)
	c.generation++
	c.emit(activity.BuildEntityAddedEvent(c.lifecycleInput(entity)))
	return entity, nil
}

// MustAdd panics when Add fails.
func (c *Catalog) MustAdd(id, entityType string) *Entity {
	entity, err := c.Add(id, entityType)
	if err != nil {
		panic(err)
	}
	return entity
}

// Get returns the live entity with id.
func (c *Catalog) Get(id string) (*Entity, bool) {
	entity, state := c.Lookup(id)
	if state != StateLive {
		return nil, false
	}
	return entity, true
}

// Lookup returns the entity with id together with its state. Removed
// entities are returned so callers can inspect or restore them.
func (c *Catalog) Lookup(id string) (*Entity, EntityState) {
	entity, ok := c.entities[id]
	if !ok {
		return nil, StateAbsent
	}
	if _, removed := c.removed[id]; removed {
		return entity, StateRemoved
	}
	return entity, StateLive
}

// State reports whether id is live, removed or absent.
func (c *Catalog) State(id string) EntityState {
	_, state := c.Lookup(id)
	return state
}

// Remove tombstones a live entity. Reference lists stop showing it but keep
// it in their stored layers.
func (c *Catalog) Remove(id string) error {
	entity, state := c.Lookup(id)
	if state != StateLive {
		return fmt.Errorf("%w: %q is %s", ErrEntityNotFound, id, state)
	}
	c.removed[id] = struct{}{}
	c.generation++
	c.emit(activity.BuildEntityRemovedEvent(c.lifecycleInput(entity)))
	return nil
}

// Restore brings a removed entity back. References to it reappear at their
// original positions.
func (c *Catalog) Restore(id string) error {
	entity, state := c.Lookup(id)
	if state != StateRemoved {
		return fmt.Errorf("%w: %q is %s", ErrEntityNotFound, id, state)
	}
	delete(c.removed, id)
	c.generation++
	c.emit(activity.BuildEntityRestoredEvent(c.lifecycleInput(entity)))
	return nil
}

// Purge forgets id entirely. References to it become dangling.
func (c *Catalog) Purge(id string) error {
	entity, state := c.Lookup(id)
	if state == StateAbsent {
		return fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	delete(c.entities, id)
	delete(c.removed, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.generation++
	c.emit(activity.BuildEntityPurgedEvent(c.lifecycleInput(entity)))
	return nil
}

// Clone adds a new entity of the same type whose layers are a deep copy of
// id's. An empty newID gets a random UUID.
func (c *Catalog) Clone(id, newID string) (*Entity, error) {
	src, state := c.Lookup(id)
	if state == StateAbsent {
		return nil, fmt.Errorf("%w: %q", ErrEntityNotFound, id)
	}
	clone, err := c.Add(newID, src.TypeName())
	if err != nil {
		return nil, err
	}
	clone.copyLayersFrom(src)
	return clone, nil
}

// Entities returns live entities in insertion order.
func (c *Catalog) Entities() []*Entity {
	return c.collect(StateLive)
}

// Removed returns tombstoned entities in insertion order.
func (c *Catalog) Removed() []*Entity {
	return c.collect(StateRemoved)
}

// Len reports the number of live entities.
func (c *Catalog) Len() int {
	return len(c.entities) - len(c.removed)
}

// Diagnostics aggregates the recoverable per-property problems of every live
// entity. Properties are only diagnosed once they have been resolved.
func (c *Catalog) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, entity := range c.Entities() {
		out = append(out, entity.Diagnostics()...)
	}
	return out
}

// ResolveAll resolves every declared property of every live entity and
// returns the resulting diagnostics. Structural errors abort the walk.
func (c *Catalog) ResolveAll() ([]Diagnostic, error) {
	for _, entity := range c.Entities() {
		if _, err := entity.Snapshot(); err != nil {
			return nil, err
		}
	}
	return c.Diagnostics(), nil
}

func (c *Catalog) collect(want EntityState) []*Entity {
	out := make([]*Entity, 0, len(c.order))
	for _, id := range c.order {
		entity, state := c.Lookup(id)
		if state == want {
			out = append(out, entity)
		}
	}
	return out
}

func (c *Catalog) lifecycleInput(e *Entity) activity.EntityEventInput {
	return activity.EntityEventInput{
		ActorID:    c.cfg.actor,
		EntityID:   e.id,
		EntityType: e.TypeName(),
	}
}

func (c *Catalog) emit(event activity.Event) {
	if !c.emitter.Enabled() {
		return
	}
	if err := c.emitter.Emit(context.Background(), event); err != nil {
		c.cfg.logger.Log(LogEvent{
			Level:    LogLevelWarn,
			Message:  "activity hook failed",
			EntityID: event.ObjectID,
			Err:      err,
		})
	}
}
