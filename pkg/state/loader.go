package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-strata"
	"github.com/goliatone/go-strata/layering"
)

// Loader moves layers between a Store and a catalog.
type Loader struct {
	Store   Store
	Catalog *strata.Catalog
}

func (l Loader) validate() error {
	if l.Store == nil {
		return fmt.Errorf("state: store is required")
	}
	if l.Catalog == nil {
		return fmt.Errorf("state: catalog is required")
	}
	return nil
}

// Hydrate loads layer for the given entities, or for every live entity when
// ids is empty, and replaces the in-memory layer with the stored values.
// Entities without a stored record are left untouched. It returns how many
// entities were hydrated.
func (l Loader) Hydrate(ctx context.Context, layer string, ids ...string) (int, error) {
	if err := l.validate(); err != nil {
		return 0, err
	}
	if !l.Catalog.Ordering().Has(layer) {
		return 0, &strata.UnregisteredLayerError{Layer: layer}
	}
	entities, err := l.entities(ids)
	if err != nil {
		return 0, err
	}

	hydrated := 0
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return hydrated, err
		}
		ref := Ref{EntityID: entity.ID(), Layer: layer}
		values, _, ok, err := l.Store.Load(ctx, ref)
		if err != nil {
			return hydrated, fmt.Errorf("state: load %q for entity %q: %w", layer, entity.ID(), err)
		}
		if !ok {
			continue
		}
		if err := entity.ReplaceLayer(layer, values); err != nil {
			return hydrated, fmt.Errorf("state: hydrate %q for entity %q: %w", layer, entity.ID(), err)
		}
		hydrated++
	}
	return hydrated, nil
}

// Persist saves the current content of layer for the given entities, or for
// every live entity when ids is empty. Entities without the layer are saved
// as empty records so a later Hydrate clears stale values.
func (l Loader) Persist(ctx context.Context, layer string, ids ...string) ([]Meta, error) {
	if err := l.validate(); err != nil {
		return nil, err
	}
	if !l.Catalog.Ordering().Has(layer) {
		return nil, &strata.UnregisteredLayerError{Layer: layer}
	}
	entities, err := l.entities(ids)
	if err != nil {
		return nil, err
	}

	out := make([]Meta, 0, len(entities))
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		values := entity.LayerValues(layer)
		if values == nil {
			values = map[string]any{}
		}
		meta, err := l.Store.Save(ctx, Ref{EntityID: entity.ID(), Layer: layer}, values, Meta{})
		if err != nil {
			return out, fmt.Errorf("state: save %q for entity %q: %w", layer, entity.ID(), err)
		}
		out = append(out, meta)
	}
	return out, nil
}

// Mutate loads one stored layer, applies fn, validates the result against
// the entity type by replacing the in-memory layer, then saves. A non-empty
// meta.ETag must match the stored tag.
func (l Loader) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (Meta, error) {
	if err := l.validate(); err != nil {
		return Meta{}, err
	}
	if _, err := ref.Identifier(); err != nil {
		return Meta{}, err
	}
	if fn == nil {
		return Meta{}, fmt.Errorf("state: mutator is required")
	}
	entity, ok := l.Catalog.Get(ref.EntityID)
	if !ok {
		return Meta{}, fmt.Errorf("%w: %q", strata.ErrEntityNotFound, ref.EntityID)
	}

	values, loadedMeta, ok, err := l.Store.Load(ctx, ref)
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %q for entity %q: %w", ref.Layer, ref.EntityID, err)
	}
	if !ok {
		values = map[string]any{}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" {
		current := loadedMeta.ETag
		if current == "" {
			current, err = ETag(values)
			if err != nil {
				return loadedMeta, err
			}
		}
		if meta.ETag != current {
			return loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, current)
		}
	}

	next := layering.Clone(values)
	if next == nil {
		next = map[string]any{}
	}
	if err := fn(next); err != nil {
		return loadedMeta, err
	}

	previous := entity.LayerValues(ref.Layer)
	if err := entity.ReplaceLayer(ref.Layer, next); err != nil {
		return loadedMeta, err
	}

	saveMeta := Meta{SnapshotID: meta.SnapshotID, UpdatedAt: meta.UpdatedAt, Extra: loadedMeta.Extra}
	if meta.Extra != nil {
		saveMeta.Extra = meta.Extra
	}
	saved, err := l.Store.Save(ctx, ref, entity.LayerValues(ref.Layer), saveMeta)
	if err != nil {
		err = fmt.Errorf("state: save %q for entity %q: %w", ref.Layer, ref.EntityID, err)
		// keep memory and storage in agreement
		if rollbackErr := entity.ReplaceLayer(ref.Layer, previous); rollbackErr != nil {
			err = errors.Join(err, fmt.Errorf("state: restore %q for entity %q: %w", ref.Layer, ref.EntityID, rollbackErr))
		}
		return loadedMeta, err
	}
	return saved, nil
}

func (l Loader) entities(ids []string) ([]*strata.Entity, error) {
	if len(ids) == 0 {
		return l.Catalog.Entities(), nil
	}
	out := make([]*strata.Entity, 0, len(ids))
	for _, id := range ids {
		entity, ok := l.Catalog.Get(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", strata.ErrEntityNotFound, id)
		}
		out = append(out, entity)
	}
	return out, nil
}
