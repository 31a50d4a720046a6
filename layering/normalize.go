package layering

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"lukechampine.com/blake3"
)

// Normalize converts value into its JSON-shaped equivalent: objects become
// map[string]any, arrays []any, numbers float64. Values that already went
// through Normalize compare equal with reflect.DeepEqual after a round trip
// through encoding/json, which keeps serialised layers faithful.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typed := value.(type) {
	case string, bool, float64:
		return typed, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("layering: normalize %T: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("layering: normalize %T: %w", value, err)
	}
	return out, nil
}

// CanonicalJSON encodes value with sorted object keys. encoding/json already
// sorts map keys, so normalising first is enough to make the output stable
// for structurally equal inputs.
func CanonicalJSON(value any) ([]byte, error) {
	normalized, err := Normalize(value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// ContentKey returns a blake3 digest of the canonical encoding of value.
func ContentKey(value any) (string, error) {
	raw, err := CanonicalJSON(value)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
