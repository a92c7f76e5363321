// Package pipeline turns a markdown document into front matter and rendered
// HTML through an ordered set of stages.
package pipeline

import "fmt"

// Stage names reported by Error.
const (
	StageRead      = "read"
	StageParse     = "parse"
	StagePre       = "pre"
	StageHeader    = "header"
	StageRender    = "render"
	StageConvert   = "convert"
	StagePost      = "post"
	StageSerialize = "serialize"
)

// Document is one markdown file read for a single run.
type Document struct {
	Path   string
	Source []byte
}

// Result is the outcome of a run: the decoded header block and the rendered body.
type Result struct {
	FrontMatter map[string]any
	Body        string
}

// Error reports the stage that failed for a document.
type Error struct {
	Path  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline: %s: %s stage: %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Source reads documents by path.
type Source interface {
	Read(path string) ([]byte, error)
}

// Load reads path from src into a Document.
func Load(src Source, path string) (Document, error) {
	data, err := src.Read(path)
	if err != nil {
		return Document{}, &Error{Path: path, Stage: StageRead, Err: err}
	}
	return Document{Path: path, Source: data}, nil
}
