// Package schema declares the front matter shape of a collection, validates
// raw front matter against it and describes it as structural types.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Kind enumerates the supported type variants.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBoolean
	KindArray
	KindEnum
	KindOptional
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindArray:
		return "array"
	case KindEnum:
		return "enum"
	case KindOptional:
		return "optional"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// String formats understood by the validator.
const (
	FormatURI      = "uri"
	FormatDate     = "date"
	FormatDateTime = "date-time"
	FormatEmail    = "email"
)

var formats = []string{FormatURI, FormatDate, FormatDateTime, FormatEmail}

// Type is one node of a field's type. Values are immutable; refinement
// methods return copies.
type Type struct {
	kind     Kind
	elem     *Type
	values   []string
	nonEmpty bool
	format   string
}

func String() *Type  { return &Type{kind: KindString} }
func Number() *Type  { return &Type{kind: KindNumber} }
func Boolean() *Type { return &Type{kind: KindBoolean} }

// Array is a list whose items are all of type elem.
func Array(elem *Type) *Type {
	return &Type{kind: KindArray, elem: elem}
}

// Enum accepts exactly one of values.
func Enum(values ...string) *Type {
	return &Type{kind: KindEnum, values: append([]string(nil), values...)}
}

// Optional marks inner as not required. Optional(Optional(t)) is Optional(t).
func Optional(inner *Type) *Type {
	if inner != nil && inner.kind == KindOptional {
		return inner
	}
	return &Type{kind: KindOptional, elem: inner}
}

// NonEmpty requires a string to have at least one character.
func (t *Type) NonEmpty() *Type {
	c := *t
	c.nonEmpty = true
	return &c
}

// Format requires a string to match a named format (uri, date, date-time, email).
func (t *Type) Format(name string) *Type {
	c := *t
	c.format = name
	return &c
}

// Optional reports whether the field may be absent.
func (t *Type) Optional() bool { return t.kind == KindOptional }

func (t *Type) Kind() Kind       { return t.kind }
func (t *Type) Elem() *Type      { return t.elem }
func (t *Type) Values() []string { return append([]string(nil), t.values...) }

// Inner strips an Optional wrapper.
func (t *Type) Inner() *Type {
	if t.kind == KindOptional {
		return t.elem
	}
	return t
}

// TypeString renders the structural type: primitives by name, arrays as T[],
// enums as a union of quoted literals.
func (t *Type) TypeString() string {
	switch t.kind {
	case KindOptional:
		return t.elem.TypeString()
	case KindArray:
		inner := t.elem.TypeString()
		if t.elem.kind == KindEnum && len(t.elem.values) > 1 {
			inner = "(" + inner + ")"
		}
		return inner + "[]"
	case KindEnum:
		parts := make([]string, len(t.values))
		for i, v := range t.values {
			b, _ := json.Marshal(v)
			parts[i] = string(b)
		}
		return strings.Join(parts, " | ")
	}
	return t.kind.String()
}

func (t *Type) validate() error {
	if t == nil {
		return fmt.Errorf("missing type")
	}
	switch t.kind {
	case KindString:
		if t.format != "" && !slices.Contains(formats, t.format) {
			return fmt.Errorf("unknown string format %q", t.format)
		}
	case KindNumber, KindBoolean:
	case KindArray:
		if t.elem == nil {
			return fmt.Errorf("array needs an item type")
		}
		if t.elem.kind == KindOptional {
			return fmt.Errorf("array items cannot be optional")
		}
		return t.elem.validate()
	case KindEnum:
		if len(t.values) == 0 {
			return fmt.Errorf("enum needs at least one value")
		}
	case KindOptional:
		if t.elem == nil {
			return fmt.Errorf("optional needs an inner type")
		}
		return t.elem.validate()
	default:
		return fmt.Errorf("unknown kind %d", int(t.kind))
	}
	return nil
}

func (t *Type) jsonSchema() map[string]any {
	switch t.kind {
	case KindOptional:
		return t.elem.jsonSchema()
	case KindString:
		s := map[string]any{"type": "string"}
		if t.nonEmpty {
			s["minLength"] = 1
		}
		if t.format != "" {
			s["format"] = t.format
		}
		return s
	case KindNumber:
		return map[string]any{"type": "number"}
	case KindBoolean:
		return map[string]any{"type": "boolean"}
	case KindArray:
		return map[string]any{"type": "array", "items": t.elem.jsonSchema()}
	case KindEnum:
		return map[string]any{"type": "string", "enum": t.values}
	}
	return map[string]any{}
}

// FieldDef names a Type inside a Schema.
type FieldDef struct {
	Name string
	Type *Type
}

// Field declares a named field.
func Field(name string, t *Type) FieldDef {
	return FieldDef{Name: name, Type: t}
}

// Schema is an ordered set of fields.
type Schema struct {
	fields []FieldDef
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// reserved holds the fixed record exports plus every word that cannot name a
// binding in an ES module: keywords, strict-mode and module reserved words,
// literals, and the restricted eval/arguments.
var reserved = []string{
	"id", "body",
	"await", "break", "case", "catch", "class", "const", "continue", "debugger",
	"default", "delete", "do", "else", "enum", "export", "extends", "false",
	"finally", "for", "function", "if", "import", "in", "instanceof", "new",
	"null", "return", "super", "switch", "this", "throw", "true", "try",
	"typeof", "var", "void", "while", "with", "yield",
	"implements", "interface", "let", "package", "private", "protected",
	"public", "static",
	"arguments", "eval",
}

// Object builds a Schema from fields in declaration order. Field names must
// be usable as exported module bindings and must not shadow id or body.
func Object(fields ...FieldDef) (*Schema, error) {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if !identRe.MatchString(f.Name) {
			return nil, fmt.Errorf("schema: field %q is not a valid identifier", f.Name)
		}
		if slices.Contains(reserved, f.Name) {
			return nil, fmt.Errorf("schema: field name %q is reserved", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if err := f.Type.validate(); err != nil {
			return nil, fmt.Errorf("schema: field %q: %w", f.Name, err)
		}
	}
	return &Schema{fields: append([]FieldDef(nil), fields...)}, nil
}

// MustObject is Object that panics on error.
func MustObject(fields ...FieldDef) *Schema {
	s, err := Object(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Fields returns the declared fields in order.
func (s *Schema) Fields() []FieldDef {
	if s == nil {
		return nil
	}
	return append([]FieldDef(nil), s.fields...)
}

// Lookup returns the type of the named field.
func (s *Schema) Lookup(name string) (*Type, bool) {
	if s == nil {
		return nil, false
	}
	for _, f := range s.fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// JSONSchema returns the draft 2020-12 JSON Schema document for s.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.fields))
	required := []string{}
	for _, f := range s.fields {
		props[f.Name] = f.Type.jsonSchema()
		if !f.Type.Optional() {
			required = append(required, f.Name)
		}
	}
	doc := map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}
