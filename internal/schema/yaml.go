package schema

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// fieldSpec is the YAML form of a Type:
//
//	title: string
//	date: {type: string, format: date}
//	tags: {type: array, items: string, optional: true}
//	author: {type: enum, values: [josh, jonathan]}
type fieldSpec struct {
	Type     string     `yaml:"type"`
	Items    *fieldSpec `yaml:"items"`
	Values   []string   `yaml:"values"`
	Optional bool       `yaml:"optional"`
	NonEmpty bool       `yaml:"nonempty"`
	Format   string     `yaml:"format"`
}

// UnmarshalYAML accepts the shorthand scalar form ("string") as well as the mapping form.
func (s *fieldSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.Type = node.Value
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field spec must be a type name or a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(specKeys, key.Value) {
			return fmt.Errorf("line %d: unknown key %q in field spec", key.Line, key.Value)
		}
	}
	type plain fieldSpec
	return node.Decode((*plain)(s))
}

// specKeys are the keys a mapping field spec may carry.
var specKeys = []string{"type", "items", "values", "optional", "nonempty", "format"}

func (s *fieldSpec) build() (*Type, error) {
	var t *Type
	switch s.Type {
	case "string":
		t = String()
		if s.NonEmpty {
			t = t.NonEmpty()
		}
		if s.Format != "" {
			t = t.Format(s.Format)
		}
	case "number":
		t = Number()
	case "boolean":
		t = Boolean()
	case "array":
		if s.Items == nil {
			return nil, fmt.Errorf("array needs items")
		}
		elem, err := s.Items.build()
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		t = Array(elem)
	case "enum":
		t = Enum(s.Values...)
	case "":
		return nil, fmt.Errorf("type is required")
	default:
		return nil, fmt.Errorf("unknown type %q", s.Type)
	}
	if s.Optional {
		t = Optional(t)
	}
	return t, nil
}

// UnmarshalYAML decodes a mapping of field name to field spec, keeping the
// mapping's key order as the field order.
func (s *Schema) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("schema: line %d: fields must be a mapping", node.Line)
	}
	fields := make([]FieldDef, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var spec fieldSpec
		if err := val.Decode(&spec); err != nil {
			return fmt.Errorf("schema: field %q: %w", key.Value, err)
		}
		t, err := spec.build()
		if err != nil {
			return fmt.Errorf("schema: line %d: field %q: %w", key.Line, key.Value, err)
		}
		fields = append(fields, Field(key.Value, t))
	}
	built, err := Object(fields...)
	if err != nil {
		return err
	}
	*s = *built
	return nil
}
