// Package collection groups the documents of one base directory: discovery,
// id uniqueness, sorting, the synthesized accessor module and the Go-side
// list/get accessors.
package collection

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/pipeline"
	"github.com/starford/codex/internal/schema"
)

// Order is a sort direction.
type Order string

const (
	Ascending  Order = "ascending"
	Descending Order = "descending"
)

// Sort orders list results by one record field.
type Sort struct {
	Field string
	Order Order
}

// Config describes one collection.
type Config struct {
	Name       string
	Base       string // directory relative to the source root
	Pattern    string // informational; matching is by Extensions
	Extensions []string
	Schema     *schema.Schema // nil accepts any front matter
	Sort       *Sort
	Pre        []pipeline.MarkdownStage
	Post       []pipeline.HTMLStage
}

var (
	nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	extRe  = regexp.MustCompile(`^\.[A-Za-z0-9]+$`)
)

// WithDefaults fills in the name, extensions and pattern when unset.
func (c Config) WithDefaults() Config {
	c.Base = strings.TrimPrefix(path.Clean(strings.ReplaceAll(c.Base, "\\", "/")), "./")
	if c.Name == "" && c.Base != "." && c.Base != "/" {
		c.Name = path.Base(c.Base)
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".md"}
	}
	if c.Pattern == "" {
		c.Pattern = "*" + c.Extensions[0]
	}
	if c.Sort != nil && c.Sort.Order == "" {
		s := *c.Sort
		s.Order = Ascending
		c.Sort = &s
	}
	return c
}

// Module returns the virtual module specifier, "#<name>".
func (c Config) Module() string {
	return "#" + c.Name
}

// Validate checks the collection shape and its sort specification.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Match(nameRe)),
		validation.Field(&c.Base, validation.Required, validation.By(relativeDir)),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Required, validation.Match(extRe))),
	)
	if err != nil {
		return fmt.Errorf("%w: collection %q: %v", apperr.ErrInvalidConfig, c.Name, err)
	}
	if c.Sort != nil {
		return c.validateSort()
	}
	return nil
}

func relativeDir(value any) error {
	s, _ := value.(string)
	if s == "." || s == "/" || strings.HasPrefix(s, "/") || s == ".." || strings.HasPrefix(s, "../") {
		return fmt.Errorf("must be a sub-directory of the root")
	}
	return nil
}

// SortError reports a sort specification that cannot be applied.
type SortError struct {
	Collection string
	Field      string
	Reason     string
}

func (e *SortError) Error() string {
	return fmt.Sprintf("collection %q: sort on %q: %s", e.Collection, e.Field, e.Reason)
}

func (e *SortError) Unwrap() error {
	return apperr.ErrInvalidConfig
}

func (c Config) validateSort() error {
	s := c.Sort
	fail := func(reason string) error {
		return &SortError{Collection: c.Name, Field: s.Field, Reason: reason}
	}
	if s.Field == "" {
		return fail("field is required")
	}
	if s.Order != Ascending && s.Order != Descending {
		return fail(fmt.Sprintf("order must be %q or %q", Ascending, Descending))
	}
	if s.Field == "id" {
		return nil
	}
	t, ok := c.Schema.Lookup(s.Field)
	if !ok {
		return fail("field is not declared by the schema")
	}
	if t.Optional() {
		return fail("optional fields cannot be sorted on")
	}
	switch t.Kind() {
	case schema.KindString, schema.KindNumber, schema.KindEnum:
		return nil
	}
	return fail(fmt.Sprintf("type %s is not comparable", t.TypeString()))
}
