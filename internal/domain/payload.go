package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a single key/value pair of a payload.
type Field struct {
	Key   string
	Value string
}

// Payload is the JSON object sent as one request body. Keys keep column
// order and values are never empty. A Payload is immutable; accessors return
// copies.
type Payload struct {
	fields []Field
}

// BuildPayload produces the payload for a normalized row, keyed in column
// order. Columns missing from the row are left out entirely.
func BuildPayload(row NormalizedRow, columns []string) Payload {
	fields := make([]Field, 0, len(row))
	for _, column := range columns {
		value, ok := row[column]
		if !ok || value == "" {
			continue
		}
		fields = append(fields, Field{Key: column, Value: value})
	}
	return Payload{fields: fields}
}

// NewPayload builds a payload from explicit fields. Empty values are dropped
// and a repeated key replaces the earlier value in place.
func NewPayload(fields ...Field) Payload {
	p := Payload{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		p.fields = appendField(p.fields, f)
	}
	return p
}

func appendField(fields []Field, f Field) []Field {
	if f.Value == "" {
		return fields
	}
	for i := range fields {
		if fields[i].Key == f.Key {
			fields[i].Value = f.Value
			return fields
		}
	}
	return append(fields, f)
}

func (p Payload) Len() int { return len(p.fields) }

func (p Payload) Get(key string) (string, bool) {
	for _, f := range p.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.fields))
	for _, f := range p.fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func (p Payload) Fields() []Field {
	out := make([]Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Clone returns a payload that shares no storage with p.
func (p Payload) Clone() Payload {
	return Payload{fields: p.Fields()}
}

// Equal reports whether both payloads hold the same fields in the same order.
func (p Payload) Equal(other Payload) bool {
	if len(p.fields) != len(other.fields) {
		return false
	}
	for i := range p.fields {
		if p.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

func (p Payload) String() string {
	raw, err := p.MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func (p Payload) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat object of string values, keeping key order.
func (p *Payload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = Payload{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}

	fields := make([]Field, 0)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("payload key must be a string")
		}

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("payload field %q: %w", key, err)
		}
		fields = appendField(fields, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = Payload{fields: fields}
	return nil
}
