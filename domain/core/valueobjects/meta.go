package valueobjects

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Meta is an open attribute bag. Each value is an arbitrary JSON value
// kept opaque by the store. Fidelity is semantic, not byte-level: values
// are compacted on write, so insignificant whitespace is not preserved.
type Meta map[string]json.RawMessage

// Normalize returns a copy with every value compacted, so all backends
// hand back byte-identical values. Invalid JSON is an error.
func (m Meta) Normalize() (Meta, error) {
	if m == nil {
		return nil, nil
	}
	out := make(Meta, len(m))
	for k, v := range m {
		c, err := compactJSON(v)
		if err != nil {
			return nil, fmt.Errorf("meta %q: %w", k, err)
		}
		out[k] = c
	}
	return out, nil
}

// Clone deep-copies the bag.
func (m Meta) Clone() Meta {
	if m == nil {
		return nil
	}
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Get decodes the value at key into v. It reports false when key is absent.
func (m Meta) Get(key string, v interface{}) (bool, error) {
	raw, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func compactJSON(v json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(v)) == 0 {
		return json.RawMessage("null"), nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.Bytes()), nil
}
