// Package typegen writes the TypeScript declaration file describing every
// collection's record type and accessor signatures.
package typegen

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ettle/strcase"
	"github.com/gertd/go-pluralize"

	"github.com/starford/codex/internal/schema"
)

const header = `/*
 * Types generated by codex. Do not edit.
 */
`

var plural = pluralize.NewClient()

// Writer persists the declaration file.
type Writer interface {
	Write(path string, content []byte) error
}

// WriteError reports a declaration file that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("typegen: write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Target identifies the collection a fragment describes.
type Target struct {
	// Module is the virtual module specifier, e.g. "#posts".
	Module string
	// Base is the collection directory; its last element names the type.
	Base string
}

// Emitter keeps one declaration fragment per collection and rewrites the
// whole file on every Emit.
type Emitter struct {
	w    Writer
	path string

	mu        sync.Mutex
	fragments map[string]string
	contents  string
}

// NewEmitter returns an Emitter writing to path through w.
func NewEmitter(w Writer, path string) *Emitter {
	return &Emitter{w: w, path: path, fragments: make(map[string]string)}
}

// Path returns the declaration file path.
func (e *Emitter) Path() string {
	return e.path
}

// Emit replaces the fragment for collection and rewrites the file.
func (e *Emitter) Emit(collection string, target Target, descriptors []schema.FieldDescriptor) error {
	fragment := Fragment(target, descriptors)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.fragments[collection] = fragment
	contents := e.render()
	if err := e.w.Write(e.path, []byte(contents)); err != nil {
		return &WriteError{Path: e.path, Err: err}
	}
	e.contents = contents
	return nil
}

// Contents returns the most recently written file text.
func (e *Emitter) Contents() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contents
}

func (e *Emitter) render() string {
	names := make([]string, 0, len(e.fragments))
	for name := range e.fragments {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(header)
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(e.fragments[name])
	}
	return b.String()
}

// Fragment renders the ambient module declaration for one collection.
func Fragment(target Target, descriptors []schema.FieldDescriptor) string {
	name := TypeName(target.Base)

	var b strings.Builder
	fmt.Fprintf(&b, "declare module %q {\n", target.Module)
	fmt.Fprintf(&b, "  export type %s = {\n", name)
	for _, d := range descriptors {
		opt := ""
		if d.Optional {
			opt = "?"
		}
		fmt.Fprintf(&b, "    %s%s: %s\n", d.Name, opt, d.Type)
	}
	b.WriteString("  }\n\n")
	fmt.Fprintf(&b, "  export function list(): Promise<%s[]>\n", name)
	fmt.Fprintf(&b, "  export function get(id: string): Promise<%s>\n", name)
	b.WriteString("}\n")
	return b.String()
}

// TypeName derives the record type name from a collection directory:
// "posts" → "Post", "src/blog-posts" and "blogPosts" → "BlogPost". Case
// boundaries split words before the last one is singularized.
func TypeName(base string) string {
	word := path.Base(strings.ReplaceAll(base, "\\", "/"))
	if word == "" || word == "." || word == "/" {
		return "Record"
	}
	word = strcase.ToSnake(word)
	word = strings.NewReplacer("-", " ", "_", " ", ".", " ").Replace(word)
	parts := strings.Fields(word)
	if len(parts) == 0 {
		return "Record"
	}
	parts[len(parts)-1] = plural.Singular(parts[len(parts)-1])
	return strcase.ToPascal(strings.Join(parts, " "))
}
