// Package codec converts store entities to and from their storable JSON form.
//
// Decoding is strict: a missing or null required field, an unknown enum value
// or a malformed date key is a DecodeError. Nothing is defaulted silently.
//
// Opaque JSON fields are stored compacted. Entities with such fields implement
// Canonical, and Decode returns the canonical form.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Validator is implemented by every storable entity
type Validator interface {
	Validate() error
}

// Codec encodes and decodes one storable shape
type Codec[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(data []byte) (T, error)
}

// DecodeError reports a stored or imported value that does not have the
// expected shape
type DecodeError struct {
	Entity string
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %q: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Entity, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errMissing = fmt.Errorf("required field is missing or null")

// Record is the codec for a single JSON object
type Record[T Validator] struct {
	Entity   string
	Required []string
}

// Encode validates v before marshalling it
func (c Record[T]) Encode(v T) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, &DecodeError{Entity: c.Entity, Err: err}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &DecodeError{Entity: c.Entity, Err: err}
	}
	return data, nil
}

// Decode checks required fields on the raw object, then unmarshals and validates
func (c Record[T]) Decode(data []byte) (T, error) {
	var zero T

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return zero, &DecodeError{Entity: c.Entity, Err: err}
	}
	if raw == nil {
		return zero, &DecodeError{Entity: c.Entity, Err: fmt.Errorf("value is null")}
	}
	for _, field := range c.Required {
		v, ok := raw[field]
		if !ok || isNull(v) {
			return zero, &DecodeError{Entity: c.Entity, Field: field, Err: errMissing}
		}
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, &DecodeError{Entity: c.Entity, Err: err}
	}
	if err := out.Validate(); err != nil {
		return zero, &DecodeError{Entity: c.Entity, Err: err}
	}
	if cz, ok := any(out).(interface{ Canonical() T }); ok {
		out = cz.Canonical()
	}
	return out, nil
}

// DecodeList decodes a JSON array of records. A null or absent array is an error.
func (c Record[T]) DecodeList(data []byte) ([]T, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &DecodeError{Entity: c.Entity, Err: err}
	}
	if items == nil {
		return nil, &DecodeError{Entity: c.Entity, Err: fmt.Errorf("list is null")}
	}

	out := make([]T, 0, len(items))
	for i, item := range items {
		v, err := c.Decode(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// Buckets is the codec for a date-keyed map of records, the layout of the
// journal and report archive blobs
type Buckets[E Validator] struct {
	Entity  string
	Element Record[E]
	// KeyOf, when set, must return the bucket key for every element
	KeyOf func(E) string
	// ValidKey validates bucket keys
	ValidKey func(string) error
}

// Encode validates every key and element, then marshals the map
func (c Buckets[E]) Encode(m map[string][]E) ([]byte, error) {
	if m == nil {
		m = map[string][]E{}
	}
	for _, key := range sortedKeys(m) {
		if err := c.checkKey(key); err != nil {
			return nil, err
		}
		for i, e := range m[key] {
			if err := e.Validate(); err != nil {
				return nil, &DecodeError{Entity: c.Entity, Field: fmt.Sprintf("%s[%d]", key, i), Err: err}
			}
			if err := c.checkElementKey(key, i, e); err != nil {
				return nil, err
			}
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, &DecodeError{Entity: c.Entity, Err: err}
	}
	return data, nil
}

// Decode decodes every bucket strictly
func (c Buckets[E]) Decode(data []byte) (map[string][]E, error) {
	var raw map[string][]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Entity: c.Entity, Err: err}
	}
	if raw == nil {
		return nil, &DecodeError{Entity: c.Entity, Err: fmt.Errorf("value is null")}
	}

	out := make(map[string][]E, len(raw))
	for key, items := range raw {
		if err := c.checkKey(key); err != nil {
			return nil, err
		}
		bucket := make([]E, 0, len(items))
		for i, item := range items {
			e, err := c.Element.Decode(item)
			if err != nil {
				return nil, &DecodeError{Entity: c.Entity, Field: fmt.Sprintf("%s[%d]", key, i), Err: err}
			}
			if err := c.checkElementKey(key, i, e); err != nil {
				return nil, err
			}
			bucket = append(bucket, e)
		}
		out[key] = bucket
	}
	return out, nil
}

func (c Buckets[E]) checkKey(key string) error {
	if c.ValidKey == nil {
		return nil
	}
	if err := c.ValidKey(key); err != nil {
		return &DecodeError{Entity: c.Entity, Field: key, Err: err}
	}
	return nil
}

func (c Buckets[E]) checkElementKey(key string, i int, e E) error {
	if c.KeyOf == nil {
		return nil
	}
	if got := c.KeyOf(e); got != key {
		return &DecodeError{
			Entity: c.Entity,
			Field:  fmt.Sprintf("%s[%d]", key, i),
			Err:    fmt.Errorf("element belongs to bucket %q", got),
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Version is the codec for the integer schemaVersion blob
type Version struct{}

func (Version) Encode(v int) ([]byte, error) {
	if v < 0 {
		return nil, &DecodeError{Entity: "schemaVersion", Err: fmt.Errorf("version cannot be negative, got %d", v)}
	}
	return json.Marshal(v)
}

func (Version) Decode(data []byte) (int, error) {
	var v *int
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, &DecodeError{Entity: "schemaVersion", Err: err}
	}
	if v == nil {
		return 0, &DecodeError{Entity: "schemaVersion", Err: fmt.Errorf("value is null")}
	}
	if *v < 0 {
		return 0, &DecodeError{Entity: "schemaVersion", Err: fmt.Errorf("version cannot be negative, got %d", *v)}
	}
	return *v, nil
}
