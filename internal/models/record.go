// Package models defines the domain types for codex.
package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Field is one validated front matter value, kept in schema order.
type Field struct {
	Name  string
	Value any
}

// Record is the compiled form of one collection document.
type Record struct {
	Collection string
	ID         string
	Path       string
	Body       string
	Fields     []Field
	Checksum   string
}

// Value returns the named value of the record, including the fixed id and body fields.
func (r Record) Value(name string) (any, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "body":
		return r.Body, true
	}
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record with the same shape as its generated module:
// id, body, then every field in schema order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(i int, name string, v any) error {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}
	if err := write(0, "id", r.ID); err != nil {
		return nil, err
	}
	if err := write(1, "body", r.Body); err != nil {
		return nil, err
	}
	for i, f := range r.Fields {
		if err := write(i+2, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FileMetadata is a lightweight directory listing entry.
type FileMetadata struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}
