// Package normalize extracts a displayable text result and media links
// from a terminal orchestration payload. The backend guarantees no
// schema: the payload may be a JSON object with results under several
// historical locations, or a string-serialized Python-repr-like blob.
// The cascade here encodes that instability explicitly, ordered from
// most structured to last resort, and never fails: absence of
// extractable content degrades to a default, not an error.
package normalize

import (
	"encoding/json"
	"sort"
)

// Payload is a terminal payload in one of two variants: a structured
// JSON object, or a raw string the backend failed to serialize as
// JSON.
type Payload struct {
	obj   map[string]any
	raw   string
	isRaw bool
}

// FromRaw classifies a raw terminal payload. JSON objects become the
// structured variant; JSON strings and anything unparseable become
// the raw variant.
func FromRaw(data json.RawMessage) Payload {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err == nil {
		return Payload{obj: obj}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return Payload{raw: s, isRaw: true}
	}
	return Payload{raw: string(data), isRaw: true}
}

// FromObject wraps an already-decoded payload object.
func FromObject(obj map[string]any) Payload {
	return Payload{obj: obj}
}

// FromString wraps a raw string payload.
func FromString(s string) Payload {
	return Payload{raw: s, isRaw: true}
}

// IsRaw reports whether the payload arrived as an unstructured string.
func (p Payload) IsRaw() bool {
	return p.isRaw
}

// Object returns the structured form, nil for raw payloads.
func (p Payload) Object() map[string]any {
	return p.obj
}

// Raw returns the raw string form, empty for structured payloads.
func (p Payload) Raw() string {
	return p.raw
}

// mapField returns a nested map-valued field.
func mapField(obj map[string]any, key string) (map[string]any, bool) {
	if obj == nil {
		return nil, false
	}
	m, ok := obj[key].(map[string]any)
	return m, ok
}

// sortedKeys gives deterministic iteration over probe maps. The source
// JSON's insertion order is lost by Go maps; key order was never
// significant to correctness, so lexical order pins the choice.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
