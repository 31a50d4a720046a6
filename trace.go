package strata

import (
	"encoding/json"
)

// Trace captures provenance for one property: the resolved value and every
// layer of the entity, strongest first, with the raw value it holds.
type Trace struct {
	EntityID string       `json:"entity_id"`
	Property string       `json:"property"`
	Value    any          `json:"value"`
	Default  any          `json:"default,omitempty"`
	Layers   []Provenance `json:"layers"`
}

// Provenance details how a specific layer contributed to a traced property.
type Provenance struct {
	Scope Scope `json:"scope"`
	Value any   `json:"value,omitempty"`
	Found bool  `json:"found"`
}

// Winner returns the strongest layer defining the property. For override
// properties that is the layer whose value was resolved.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
