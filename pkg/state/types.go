package state

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-strata/layering"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted layer of one entity.
type Ref struct {
	EntityID string
	Layer    string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves the values of a single layer reference.
type Store interface {
	Load(ctx context.Context, ref Ref) (values map[string]any, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, values map[string]any, meta Meta) (Meta, error)
}

// Mutator edits the values of one layer in place.
type Mutator func(values map[string]any) error

// Identifier returns the canonical storage key "<layer>/<entity id>".
func (r Ref) Identifier() (string, error) {
	if r.Layer == "" {
		return "", fmt.Errorf("state: layer is required")
	}
	if r.EntityID == "" {
		return "", fmt.Errorf("state: entity id is required for layer %q", r.Layer)
	}
	return r.Layer + "/" + r.EntityID, nil
}

// stamp fills the store-owned parts of meta for values about to be saved.
func stamp(values map[string]any, meta Meta, now time.Time) (Meta, error) {
	out := cloneMeta(meta)
	etag, err := ETag(values)
	if err != nil {
		return Meta{}, err
	}
	out.ETag = etag
	if out.SnapshotID == "" {
		out.SnapshotID = uuid.NewString()
	}
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now.UTC()
	}
	return out, nil
}

// ETag returns the content digest of values. Nil and empty maps share a tag.
func ETag(values map[string]any) (string, error) {
	if values == nil {
		values = map[string]any{}
	}
	key, err := layering.ContentKey(values)
	if err != nil {
		return "", fmt.Errorf("state: etag: %w", err)
	}
	return key, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra != nil {
		out.Extra = maps.Clone(meta.Extra)
	}
	return out
}
