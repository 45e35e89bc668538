// Package optional carries the "was this field supplied" bit for partial
// update payloads.
package optional

import "encoding/json"

// Value is a field that may be absent from a JSON object. Set is true when the
// key was present, including when its value was null; Null reports the latter.
type Value[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Of[T any](v T) Value[T] {
	return Value[T]{Set: true, Value: v}
}

func (o *Value[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Null = string(data) == "null"
	if o.Null {
		var zero T
		o.Value = zero
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Get returns the value and whether it was supplied.
func (o Value[T]) Get() (T, bool) {
	return o.Value, o.Set
}
