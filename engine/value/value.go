// Package value defines a recursive, JSON-shaped payload type used
// throughout the engine for webhook bodies, action parameters, and
// rendered template output, so every layer shares one canonical
// representation instead of passing around bare map[string]any/[]any/any.
package value

import "encoding/json"

// Value is any JSON-representable data: nil, bool, float64, string,
// Object, or Array. It exists so field-path resolution, condition
// evaluation, and template rendering can share one walk implementation
// regardless of where the data originated.
type Value = any

// Object is a JSON object.
type Object = map[string]any

// Array is a JSON array.
type Array = []any

// FromJSON unmarshals raw JSON bytes into a Value tree using
// map[string]any/[]any/float64 as Go's encoding/json does by default.
func FromJSON(raw []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// AsObject asserts v is a JSON object, returning ok=false otherwise.
func AsObject(v Value) (Object, bool) {
	obj, ok := v.(Object)
	return obj, ok
}

// AsArray asserts v is a JSON array, returning ok=false otherwise.
func AsArray(v Value) (Array, bool) {
	arr, ok := v.(Array)
	return arr, ok
}

// Clone deep-copies a Value tree built from map[string]any/[]any/scalars.
// Scalars are immutable in Go so they are returned as-is.
func Clone(v Value) Value {
	switch t := v.(type) {
	case Object:
		out := make(Object, len(t))
		for k, vv := range t {
			out[k] = Clone(vv)
		}
		return out
	case Array:
		out := make(Array, len(t))
		for i, vv := range t {
			out[i] = Clone(vv)
		}
		return out
	default:
		return t
	}
}
