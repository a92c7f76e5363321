package pipeline

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
)

// MarkdownStage runs on the markdown AST before the header block is decoded
// and before rendering.
type MarkdownStage interface {
	TransformMarkdown(doc Document, root ast.Node, source []byte) error
}

// MarkdownStageFunc adapts a function to MarkdownStage.
type MarkdownStageFunc func(doc Document, root ast.Node, source []byte) error

// TransformMarkdown calls f.
func (f MarkdownStageFunc) TransformMarkdown(doc Document, root ast.Node, source []byte) error {
	return f(doc, root, source)
}

// HTMLStage runs on the rendered HTML tree. root is a synthetic <body>
// element whose children are the rendered nodes.
type HTMLStage interface {
	TransformHTML(doc Document, root *html.Node) error
}

// HTMLStageFunc adapts a function to HTMLStage.
type HTMLStageFunc func(doc Document, root *html.Node) error

// TransformHTML calls f.
func (f HTMLStageFunc) TransformHTML(doc Document, root *html.Node) error {
	return f(doc, root)
}

// Extension is a pre-stage that configures the goldmark engine instead of
// walking the tree.
type Extension struct {
	goldmark.Extender
}

// TransformMarkdown is a no-op; the work happens when the engine is built.
func (Extension) TransformMarkdown(Document, ast.Node, []byte) error {
	return nil
}
