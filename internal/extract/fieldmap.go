package extract

import (
	"bytes"
	"encoding/json"
)

// FieldMap is an insertion-ordered map from field name to value. It is the
// output unit of every parser.
type FieldMap struct {
	keys   []string
	values map[string]any
}

// NewFieldMap returns an empty FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{values: make(map[string]any)}
}

// Set stores v under key. Re-setting a key keeps its original position.
func (f *FieldMap) Set(key string, v any) *FieldMap {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = v
	return f
}

// Get returns the value stored under key.
func (f *FieldMap) Get(key string) (any, bool) {
	v, ok := f.values[key]
	return v, ok
}

// String returns the value under key if it is a string, otherwise "".
func (f *FieldMap) String(key string) string {
	s, _ := f.values[key].(string)
	return s
}

// Keys returns the field names in insertion order.
func (f *FieldMap) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of fields.
func (f *FieldMap) Len() int {
	return len(f.keys)
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (f *FieldMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order. Nested values
// are decoded with encoding/json defaults.
func (f *FieldMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil {
		return err
	}
	*f = FieldMap{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		f.Set(key, v)
	}
	_, err := dec.Token()
	return err
}
