// Package compiler turns one collection document into a record module:
// pipeline run, schema validation, module emission and declaration refresh.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/codex/internal/checksum"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/pipeline"
	"github.com/starford/codex/internal/schema"
	"github.com/starford/codex/internal/typegen"
)

// ErrPassThrough is returned for files the compiler does not handle. Callers
// leave such files untouched.
var ErrPassThrough = errors.New("compiler: not a collection document")

// Error wraps a failure compiling a single file.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Declarations receives the current field descriptors after each compile.
type Declarations interface {
	Emit(collection string, target typegen.Target, descriptors []schema.FieldDescriptor) error
}

// Observer is told the outcome and duration of every compile attempt.
type Observer func(collection string, d time.Duration, err error)

// Options configures a Compiler for one collection.
type Options struct {
	Collection   string
	Base         string // slash separated, relative to the source root
	Module       string // virtual module specifier, e.g. "#posts"
	Extensions   []string
	Adapter      *schema.Adapter
	Runner       *pipeline.Runner
	Source       pipeline.Source
	Declarations Declarations // optional
	Observer     Observer     // optional
}

// Output is the compiled record and its module text.
type Output struct {
	Record models.Record
	Code   string
}

// Compiler compiles documents of one collection.
type Compiler struct {
	opts      Options
	schemaSum string
}

// New returns a Compiler. A nil Adapter accepts any front matter; a nil
// Runner runs no user stages.
func New(opts Options) (*Compiler, error) {
	if opts.Source == nil {
		return nil, errors.New("compiler: source is required")
	}
	if len(opts.Extensions) == 0 {
		return nil, errors.New("compiler: at least one extension is required")
	}
	if opts.Adapter == nil {
		a, err := schema.NewAdapter(nil)
		if err != nil {
			return nil, err
		}
		opts.Adapter = a
	}
	if opts.Runner == nil {
		opts.Runner = pipeline.NewRunner(nil, nil)
	}
	opts.Base = cleanBase(opts.Base)
	if opts.Module == "" {
		opts.Module = "#" + opts.Collection
	}
	shape, err := json.Marshal(opts.Adapter.Describe())
	if err != nil {
		return nil, fmt.Errorf("compiler: describe schema: %w", err)
	}
	return &Compiler{opts: opts, schemaSum: checksum.Sum(shape)}, nil
}

// sum fingerprints a document source together with the collection and its
// schema shape, so a schema change invalidates every indexed record.
func (c *Compiler) sum(source []byte) string {
	return checksum.New().
		AddString(c.opts.Collection).
		AddString(c.schemaSum).
		Add(source).
		Hex()
}

// Collection returns the collection name.
func (c *Compiler) Collection() string { return c.opts.Collection }

// Adapter returns the schema adapter in use.
func (c *Compiler) Adapter() *schema.Adapter { return c.opts.Adapter }

// Accepts reports whether p is a document of this collection: a direct child
// of the base directory with one of the configured extensions.
func (c *Compiler) Accepts(p string) bool {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleanBase(path.Dir(p)) != c.opts.Base {
		return false
	}
	return HasExtension(p, c.opts.Extensions)
}

// Compile produces the record module for p. It returns ErrPassThrough when p
// does not belong to the collection. On failure no output is produced.
func (c *Compiler) Compile(ctx context.Context, p string) (*Output, error) {
	if !c.Accepts(p) {
		return nil, ErrPassThrough
	}
	start := time.Now()
	out, err := c.compile(ctx, p)
	if c.opts.Observer != nil {
		c.opts.Observer(c.opts.Collection, time.Since(start), err)
	}
	return out, err
}

func (c *Compiler) compile(ctx context.Context, p string) (*Output, error) {
	doc, err := pipeline.Load(c.opts.Source, p)
	if err != nil {
		return nil, &Error{Path: p, Err: err}
	}
	res, err := c.opts.Runner.Run(ctx, doc)
	if err != nil {
		return nil, &Error{Path: p, Err: err}
	}
	fields, err := c.opts.Adapter.Validate(res.FrontMatter)
	if err != nil {
		return nil, &Error{Path: p, Err: err}
	}

	rec := models.Record{
		Collection: c.opts.Collection,
		ID:         ID(p),
		Path:       p,
		Body:       res.Body,
		Fields:     fields,
		Checksum:   c.sum(doc.Source),
	}
	code, err := Module(rec)
	if err != nil {
		return nil, &Error{Path: p, Err: err}
	}

	if c.opts.Declarations != nil {
		target := typegen.Target{Module: c.opts.Module, Base: c.opts.Base}
		if err := c.opts.Declarations.Emit(c.opts.Collection, target, c.opts.Adapter.Describe()); err != nil {
			return nil, &Error{Path: p, Err: err}
		}
	}
	return &Output{Record: rec, Code: code}, nil
}

// ID derives a record identifier from a file path: the base name without its
// extension.
func ID(p string) string {
	name := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(name, path.Ext(name))
}

// HasExtension reports whether p ends in one of exts (case-insensitive).
func HasExtension(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

var templateEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`", "${", `\${`)

// Module renders the ES module text for rec: id, body, then one constant per
// field in order.
func Module(rec models.Record) (string, error) {
	var b strings.Builder
	id, err := encode(rec.ID)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "export const id = %s\n", id)
	b.WriteString("export const body = `")
	b.WriteString(templateEscaper.Replace(rec.Body))
	b.WriteString("`\n")
	for _, f := range rec.Fields {
		v, err := encode(f.Value)
		if err != nil {
			return "", fmt.Errorf("encode field %s: %w", f.Name, err)
		}
		fmt.Fprintf(&b, "export const %s = %s\n", f.Name, v)
	}
	return b.String(), nil
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func cleanBase(base string) string {
	base = path.Clean(strings.ReplaceAll(base, "\\", "/"))
	return strings.TrimPrefix(base, "./")
}
