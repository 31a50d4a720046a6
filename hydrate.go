package strata

import (
	"github.com/goliatone/go-strata/internal/hydrate"
)

// Decode resolves every property of e and decodes the snapshot into T using
// the JSON tags of T. Properties without a counterpart in T are ignored.
// Properties listed in required must not resolve to null.
func Decode[T any](e *Entity, required ...string) (T, error) {
	return decodeEntity[T](e, required)
}

// DecodeStrict is Decode but fails when the entity has a property T cannot
// hold.
func DecodeStrict[T any](e *Entity, required ...string) (T, error) {
	return decodeEntity[T](e, required, hydrate.WithDisallowUnknownFields[T]())
}

func decodeEntity[T any](e *Entity, required []string, opts ...hydrate.DecoderOption[T]) (T, error) {
	var zero T
	snapshot, err := e.Snapshot()
	if err != nil {
		return zero, err
	}
	if len(required) > 0 {
		opts = append(opts, hydrate.WithRequired[T](required...))
	}
	opts = append(opts, hydrate.WithPreHook[T](hydrate.DropNulls()))
	ctx := hydrate.Context{EntityID: e.ID(), EntityType: e.TypeName()}
	return hydrate.NewDecoder[T](opts...).Decode(ctx, snapshot)
}
