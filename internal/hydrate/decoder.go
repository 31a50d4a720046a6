package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Context identifies the entity a snapshot was resolved from.
type Context struct {
	EntityID   string
	EntityType string
}

func (c Context) String() string {
	if c.EntityType == "" {
		return c.EntityID
	}
	return c.EntityType + "/" + c.EntityID
}

// PreHook lets callers reshape the resolved snapshot before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated struct after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default JSON decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts resolved entity snapshots into typed structs.
type Decoder[T any] struct {
	preHooks     []PreHook
	postHooks    []PostHook[T]
	configureDec []func(*json.Decoder)
	custom       CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithRequired fails decoding when any of keys resolved to null.
func WithRequired[T any](keys ...string) DecoderOption[T] {
	return WithPreHook[T](RequireKeys(keys...))
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields rejects snapshot properties T has no field for.
func WithDisallowUnknownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

// WithCustomDecoder replaces the default JSON decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts snapshot into T applying configured hooks. The snapshot is
// copied first so hooks may mutate it freely.
func (d *Decoder[T]) Decode(ctx Context, snapshot map[string]any) (T, error) {
	var zero T

	if snapshot == nil {
		return zero, fmt.Errorf("hydrate: snapshot is nil for %s", ctx)
	}

	current, err := cloneSnapshot(snapshot)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone snapshot for %s: %w", ctx, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %s failed: %w", ctx, err)
		}
	} else {
		buffer, err := json.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal snapshot for %s: %w", ctx, err)
		}
		decoder := json.NewDecoder(bytes.NewReader(buffer))
		for _, configure := range d.configureDec {
			if configure != nil {
				configure(decoder)
			}
		}
		if err := decoder.Decode(&result); err != nil {
			return zero, fmt.Errorf("hydrate: decode %s: %w", ctx, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx, err)
		}
	}

	return result, nil
}

// RequireKeys returns a PreHook failing when any key is missing or null.
func RequireKeys(keys ...string) PreHook {
	return func(_ Context, snapshot map[string]any) (map[string]any, error) {
		var missing []string
		for _, key := range keys {
			if snapshot[key] == nil {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("missing required properties: %s", strings.Join(missing, ", "))
		}
		return snapshot, nil
	}
}

// DropNulls returns a PreHook removing null properties, so decoding keeps
// the zero values or struct defaults T was initialised with.
func DropNulls() PreHook {
	return func(_ Context, snapshot map[string]any) (map[string]any, error) {
		for key, value := range snapshot {
			if value == nil {
				delete(snapshot, key)
			}
		}
		return snapshot, nil
	}
}

func cloneSnapshot(snapshot map[string]any) (map[string]any, error) {
	buffer, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
