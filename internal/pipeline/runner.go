package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"gopkg.in/yaml.v3"
)

// headerFormat captures the YAML block verbatim; decoding happens after the
// pre-stages have run.
var headerFormat = frontmatter.NewFormat("---", "---", func(data []byte, v any) error {
	raw, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("unexpected header target %T", v)
	}
	*raw = append([]byte(nil), data...)
	return nil
})

// Runner executes the fixed stage order for one document at a time:
// parse, pre-stages, header decode, render, tree conversion, post-stages,
// serialization. A Runner holds no per-document state and is safe for
// concurrent use.
type Runner struct {
	pre  []MarkdownStage
	post []HTMLStage
}

// NewRunner returns a Runner with the given user stages.
func NewRunner(pre []MarkdownStage, post []HTMLStage) *Runner {
	return &Runner{pre: pre, post: post}
}

// RunFile loads path from src and runs it.
func (r *Runner) RunFile(ctx context.Context, src Source, path string) (*Result, error) {
	doc, err := Load(src, path)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, doc)
}

// Run processes doc through every stage. The first failing stage aborts the run.
func (r *Runner) Run(ctx context.Context, doc Document) (*Result, error) {
	fail := func(stage string, err error) error {
		return &Error{Path: doc.Path, Stage: stage, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, fail(StageParse, err)
	}

	var header []byte
	body, err := frontmatter.Parse(bytes.NewReader(doc.Source), &header, headerFormat)
	if err != nil {
		return nil, fail(StageParse, err)
	}

	md := r.engine()
	pctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(body), parser.WithContext(pctx))

	for _, st := range r.pre {
		if err := ctx.Err(); err != nil {
			return nil, fail(StagePre, err)
		}
		if err := st.TransformMarkdown(doc, root, body); err != nil {
			return nil, fail(StagePre, err)
		}
	}

	fm := map[string]any{}
	if len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &fm); err != nil {
			return nil, fail(StageHeader, err)
		}
		if fm == nil {
			fm = map[string]any{}
		}
	}

	var rendered bytes.Buffer
	if err := md.Renderer().Render(&rendered, body, root); err != nil {
		return nil, fail(StageRender, err)
	}

	container := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(&rendered, container)
	if err != nil {
		return nil, fail(StageConvert, err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}

	for _, st := range r.post {
		if err := ctx.Err(); err != nil {
			return nil, fail(StagePost, err)
		}
		if err := st.TransformHTML(doc, container); err != nil {
			return nil, fail(StagePost, err)
		}
	}

	var out strings.Builder
	for c := container.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&out, c); err != nil {
			return nil, fail(StageSerialize, err)
		}
	}

	return &Result{FrontMatter: fm, Body: out.String()}, nil
}

// engine builds a fresh goldmark instance so no parser state is shared
// between documents.
func (r *Runner) engine() goldmark.Markdown {
	var exts []goldmark.Extender
	for _, st := range r.pre {
		if ext, ok := st.(goldmark.Extender); ok {
			exts = append(exts, ext)
		}
	}
	return goldmark.New(goldmark.WithExtensions(exts...))
}
