package activity

import (
	"strings"
	"time"
)

// Verbs emitted by the catalog.
const (
	VerbLayerSet       = "strata.layer.set"
	VerbLayerCleared   = "strata.layer.cleared"
	VerbEntityAdded    = "strata.entity.added"
	VerbEntityRemoved  = "strata.entity.removed"
	VerbEntityRestored = "strata.entity.restored"
	VerbEntityPurged   = "strata.entity.purged"
)

// LayerContext captures the precedence bucket a change was written into.
type LayerContext struct {
	Name     string
	Label    string
	Priority int
}

// EntityEventInput describes the common fields for catalog change events.
type EntityEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	EntityID   string
	EntityType string
	Channel    string
	Property   string
	OldValue   any
	NewValue   any
	Layer      LayerContext
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildLayerSetEvent describes a value written into one layer of a property.
func BuildLayerSetEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbLayerSet, input)
}

// BuildLayerClearedEvent describes a layer value removed from a property, or
// a whole layer removed from an entity when Property is empty.
func BuildLayerClearedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbLayerCleared, input)
}

// BuildEntityAddedEvent describes an entity entering the catalog.
func BuildEntityAddedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityAdded, input)
}

// BuildEntityRemovedEvent describes an entity becoming a tombstone.
func BuildEntityRemovedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityRemoved, input)
}

// BuildEntityRestoredEvent describes a tombstone returning to the live set.
func BuildEntityRestoredEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityRestored, input)
}

// BuildEntityPurgedEvent describes an entity dropped from the catalog.
func BuildEntityPurgedEvent(input EntityEventInput) Event {
	return buildEntityEvent(VerbEntityPurged, input)
}

func buildEntityEvent(verb string, input EntityEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.EntityType != "" {
		metadata = ensureMetadata(metadata)
		metadata["entity_type"] = input.EntityType
	}
	if input.Property != "" {
		metadata = ensureMetadata(metadata)
		metadata["property"] = input.Property
	}
	if input.Layer.Name != "" {
		metadata = ensureMetadata(metadata)
		metadata["layer"] = input.Layer.Name
		metadata["layer_priority"] = input.Layer.Priority
		if input.Layer.Label != "" {
			metadata["layer_label"] = input.Layer.Label
		}
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	objectType := "strata.entity"
	if entityType := strings.TrimSpace(input.EntityType); entityType != "" {
		objectType = "strata." + entityType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(input.EntityID),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
