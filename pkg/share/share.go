// Package share turns a catalog into a compact URL-safe string and back, so
// a set of layers (usually user edits) can travel in a link.
//
// Payload layout: base64url(zstd(JSON envelope)). The envelope carries a
// format version and the catalog document produced by Catalog.MarshalJSON.
package share

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/goliatone/go-strata"
)

// Version is the envelope format written by Encode.
const Version = 1

// MaxDecodedSize bounds the decompressed payload accepted by Decode.
const MaxDecodedSize = 8 << 20

var (
	ErrUnsupportedVersion = errors.New("share: unsupported payload version")
	ErrPayloadTooLarge    = errors.New("share: payload too large")
)

var encoding = base64.RawURLEncoding

type envelope struct {
	Version int             `json:"v"`
	Catalog json.RawMessage `json:"catalog"`
}

type catalogDocument struct {
	Entities []json.RawMessage `json:"entities"`
	Removed  []string          `json:"removed,omitempty"`
}

// Option configures Encode.
type Option func(*config)

type config struct {
	layers []string
	level  zstd.EncoderLevel
}

// WithLayers restricts the payload to the named layers. Entities holding none
// of them are left out.
func WithLayers(layers ...string) Option {
	return func(c *config) {
		c.layers = append(c.layers, layers...)
	}
}

// WithLevel selects the zstd compression level.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(c *config) {
		c.level = level
	}
}

// Encode serialises catalog into a share payload.
func Encode(catalog *strata.Catalog, opts ...Option) (string, error) {
	if catalog == nil {
		return "", fmt.Errorf("share: catalog is required")
	}
	cfg := config{level: zstd.SpeedBestCompression}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	raw, err := catalog.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("share: encode catalog: %w", err)
	}
	if len(cfg.layers) > 0 {
		if raw, err = filterLayers(raw, cfg.layers); err != nil {
			return "", err
		}
	}
	body, err := json.Marshal(envelope{Version: Version, Catalog: raw})
	if err != nil {
		return "", fmt.Errorf("share: encode envelope: %w", err)
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed, zstd.WithEncoderLevel(cfg.level))
	if err != nil {
		return "", fmt.Errorf("share: creating zstd encoder: %w", err)
	}
	if _, err := encoder.Write(body); err != nil {
		encoder.Close()
		return "", fmt.Errorf("share: compressing: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("share: closing encoder: %w", err)
	}
	return encoding.EncodeToString(compressed.Bytes()), nil
}

// Decode applies a share payload to catalog. Entities missing from catalog
// are added; existing entities of the same type get every shared layer
// replaced. Entities marked removed in the payload are removed. It returns
// the ids of the entities touched, in payload order.
func Decode(payload string, catalog *strata.Catalog) ([]string, error) {
	if catalog == nil {
		return nil, fmt.Errorf("share: catalog is required")
	}
	doc, err := decodeDocument(payload)
	if err != nil {
		return nil, err
	}

	touched := make([]string, 0, len(doc.Entities))
	for _, raw := range doc.Entities {
		id, err := applyEntity(catalog, raw)
		if err != nil {
			return touched, err
		}
		touched = append(touched, id)
	}
	for _, id := range doc.Removed {
		if catalog.State(id) != strata.StateLive {
			continue
		}
		if err := catalog.Remove(id); err != nil {
			return touched, fmt.Errorf("share: remove %q: %w", id, err)
		}
	}
	return touched, nil
}

func decodeDocument(payload string) (catalogDocument, error) {
	var doc catalogDocument
	compressed, err := encoding.DecodeString(payload)
	if err != nil {
		return doc, fmt.Errorf("share: decode base64: %w", err)
	}
	decoder, err := zstd.NewReader(bytes.NewReader(compressed), zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		return doc, fmt.Errorf("share: creating zstd decoder: %w", err)
	}
	defer decoder.Close()

	body, err := io.ReadAll(io.LimitReader(decoder, MaxDecodedSize+1))
	if err != nil {
		return doc, fmt.Errorf("share: decompressing: %w", err)
	}
	if len(body) > MaxDecodedSize {
		return doc, ErrPayloadTooLarge
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return doc, fmt.Errorf("share: decode envelope: %w", err)
	}
	if env.Version != Version {
		return doc, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
	}
	if err := json.Unmarshal(env.Catalog, &doc); err != nil {
		return doc, fmt.Errorf("share: decode catalog: %w", err)
	}
	return doc, nil
}

func applyEntity(catalog *strata.Catalog, raw json.RawMessage) (string, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return "", fmt.Errorf("share: decode entity: %w", err)
	}
	var id, typ string
	if err := json.Unmarshal(members["id"], &id); err != nil || id == "" {
		return "", fmt.Errorf("share: entity without id")
	}
	if err := json.Unmarshal(members["type"], &typ); err != nil {
		return "", fmt.Errorf("share: entity %q without type", id)
	}

	entity, state := catalog.Lookup(id)
	if state == strata.StateAbsent {
		if _, err := catalog.DecodeEntity(raw); err != nil {
			return "", fmt.Errorf("share: add %q: %w", id, err)
		}
		return id, nil
	}
	if entity.TypeName() != typ {
		return "", fmt.Errorf("share: entity %q is a %q, payload has %q", id, entity.TypeName(), typ)
	}

	layers := make([]string, 0, len(members))
	for key := range members {
		if key != "id" && key != "type" {
			layers = append(layers, key)
		}
	}
	ordered, err := catalog.Ordering().Sort(layers)
	if err != nil {
		return "", err
	}
	for _, scope := range ordered {
		var values map[string]any
		if err := json.Unmarshal(members[scope.Name], &values); err != nil {
			return "", fmt.Errorf("share: decode layer %q of %q: %w", scope.Name, id, err)
		}
		if err := entity.ReplaceLayer(scope.Name, values); err != nil {
			return "", fmt.Errorf("share: apply %q: %w", id, err)
		}
	}
	return id, nil
}

// filterLayers drops every layer not in keep from a catalog document.
func filterLayers(raw []byte, keep []string) ([]byte, error) {
	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("share: filter layers: %w", err)
	}
	filtered := catalogDocument{Entities: make([]json.RawMessage, 0, len(doc.Entities))}
	kept := map[string]struct{}{}
	for _, entity := range doc.Entities {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(entity, &members); err != nil {
			return nil, fmt.Errorf("share: filter layers: %w", err)
		}
		hasLayer := false
		for key := range members {
			if key == "id" || key == "type" {
				continue
			}
			if !slices.Contains(keep, key) {
				delete(members, key)
				continue
			}
			hasLayer = true
		}
		if !hasLayer {
			continue
		}
		encoded, err := json.Marshal(members)
		if err != nil {
			return nil, fmt.Errorf("share: filter layers: %w", err)
		}
		filtered.Entities = append(filtered.Entities, encoded)
		var id string
		_ = json.Unmarshal(members["id"], &id)
		kept[id] = struct{}{}
	}
	for _, id := range doc.Removed {
		if _, ok := kept[id]; ok {
			filtered.Removed = append(filtered.Removed, id)
		}
	}
	return json.Marshal(filtered)
}
