package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/starford/codex/internal/models"
)

// FieldDescriptor is the structural description of one record field.
type FieldDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Optional bool   `json:"optional"`
}

// Fixed returns the descriptors every record carries regardless of schema.
func Fixed() []FieldDescriptor {
	return []FieldDescriptor{
		{Name: "id", Type: "string"},
		{Name: "body", Type: "string"},
	}
}

// Adapter validates raw front matter against a Schema and describes it.
// A nil schema accepts anything and describes only the fixed fields.
type Adapter struct {
	schema    *Schema
	validator *jsonschema.Schema
}

// NewAdapter compiles s into a validator. s may be nil.
func NewAdapter(s *Schema) (*Adapter, error) {
	a := &Adapter{schema: s}
	if s == nil {
		return a, nil
	}
	doc, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("schema: encode: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource("schema.json", bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	v, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	a.validator = v
	return a, nil
}

// Schema returns the wrapped schema, possibly nil.
func (a *Adapter) Schema() *Schema {
	return a.schema
}

// Describe derives the field descriptors: id and body, then each schema
// field in declaration order.
func (a *Adapter) Describe() []FieldDescriptor {
	out := Fixed()
	for _, f := range a.schema.Fields() {
		out = append(out, FieldDescriptor{
			Name:     f.Name,
			Type:     f.Type.TypeString(),
			Optional: f.Type.Optional(),
		})
	}
	return out
}

// JSONSchema returns the indented JSON Schema document, or nil without a schema.
func (a *Adapter) JSONSchema() ([]byte, error) {
	if a.schema == nil {
		return nil, nil
	}
	return json.MarshalIndent(a.schema.JSONSchema(), "", "  ")
}

// Validate checks raw against the schema and returns the declared fields in
// schema order. Values are normalized through JSON so they encode the same
// way they were validated. Undeclared keys are dropped; absent optional
// fields are omitted.
func (a *Adapter) Validate(raw map[string]any) ([]models.Field, error) {
	if a.schema == nil {
		return []models.Field{}, nil
	}
	doc, err := normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: normalize front matter: %w", err)
	}

	var issues []Issue
	for _, f := range a.schema.fields {
		if _, ok := doc[f.Name]; !ok && !f.Type.Optional() {
			issues = append(issues, Issue{Field: f.Name, Message: "is required"})
		}
	}

	if err := a.validator.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("schema: validate: %w", err)
		}
		for _, leaf := range leaves(verr) {
			field := firstSegment(leaf.InstanceLocation)
			if field == "" {
				// Missing properties; already reported above.
				continue
			}
			issues = append(issues, Issue{Field: field, Message: strings.TrimSpace(leaf.Message)})
		}
	}

	if len(issues) > 0 {
		a.sortIssues(issues)
		return nil, &ValidationError{Issues: issues}
	}

	out := make([]models.Field, 0, len(a.schema.fields))
	for _, f := range a.schema.fields {
		if v, ok := doc[f.Name]; ok {
			out = append(out, models.Field{Name: f.Name, Value: v})
		}
	}
	return out, nil
}

func (a *Adapter) sortIssues(issues []Issue) {
	pos := make(map[string]int, len(a.schema.fields))
	for i, f := range a.schema.fields {
		pos[f.Name] = i
	}
	sort.SliceStable(issues, func(i, j int) bool {
		return pos[issues[i].Field] < pos[issues[j].Field]
	})
}

func leaves(err *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return []*jsonschema.ValidationError{err}
	}
	var out []*jsonschema.ValidationError
	for _, c := range err.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// firstSegment returns the top-level property of a JSON pointer ("/tags/0" → "tags").
func firstSegment(pointer string) string {
	p := strings.TrimPrefix(pointer, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "~1", "/")
	return strings.ReplaceAll(p, "~0", "~")
}

// normalize converts YAML-decoded values into their JSON form. Dates decoded
// as time.Time become "2006-01-02" (midnight UTC) or RFC 3339 strings.
func normalize(raw map[string]any) (map[string]any, error) {
	data, err := json.Marshal(toJSONable(raw))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func toJSONable(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[k] = toJSONable(val)
		}
		return m
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, val := range x {
			m[fmt.Sprint(k)] = toJSONable(val)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, val := range x {
			s[i] = toJSONable(val)
		}
		return s
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	}
	return v
}
