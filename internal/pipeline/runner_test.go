package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark/ast"
	"golang.org/x/net/html"
)

type mapSource map[string]string

func (m mapSource) Read(path string) ([]byte, error) {
	s, ok := m[path]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return []byte(s), nil
}

func run(t *testing.T, r *Runner, src string) *Result {
	t.Helper()
	res, err := r.Run(context.Background(), Document{Path: "posts/a.md", Source: []byte(src)})
	require.NoError(t, err)
	return res
}

func TestRun_FrontMatterAndBody(t *testing.T) {
	r := NewRunner(nil, nil)
	res := run(t, r, "---\ntitle: Hello\ntags:\n  - go\n  - codex\n---\n# Heading\n\nSome *text*.\n")

	assert.Equal(t, "Hello", res.FrontMatter["title"])
	assert.Equal(t, []any{"go", "codex"}, res.FrontMatter["tags"])
	assert.Contains(t, res.Body, "<h1>Heading</h1>")
	assert.Contains(t, res.Body, "<p>Some <em>text</em>.</p>")
	assert.NotContains(t, res.Body, "title: Hello")
}

func TestRun_NoFrontMatter(t *testing.T) {
	r := NewRunner(nil, nil)
	res := run(t, r, "Just a paragraph.\n")

	assert.NotNil(t, res.FrontMatter)
	assert.Empty(t, res.FrontMatter)
	assert.Equal(t, "<p>Just a paragraph.</p>\n", res.Body)
}

func TestRun_MalformedHeaderFails(t *testing.T) {
	r := NewRunner(nil, nil)
	_, err := r.Run(context.Background(), Document{Path: "posts/bad.md", Source: []byte("---\ntitle: [unclosed\n---\nbody\n")})
	require.Error(t, err)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageHeader, perr.Stage)
	assert.Equal(t, "posts/bad.md", perr.Path)
}

func TestRun_StageOrder(t *testing.T) {
	var calls []string
	pre1 := MarkdownStageFunc(func(_ Document, root ast.Node, _ []byte) error {
		calls = append(calls, "pre1")
		return nil
	})
	pre2 := MarkdownStageFunc(func(_ Document, root ast.Node, _ []byte) error {
		calls = append(calls, "pre2")
		return nil
	})
	post1 := HTMLStageFunc(func(_ Document, _ *html.Node) error {
		calls = append(calls, "post1")
		return nil
	})
	post2 := HTMLStageFunc(func(_ Document, _ *html.Node) error {
		calls = append(calls, "post2")
		return nil
	})

	r := NewRunner([]MarkdownStage{pre1, pre2}, []HTMLStage{post1, post2})
	run(t, r, "---\ntitle: x\n---\nbody\n")

	assert.Equal(t, []string{"pre1", "pre2", "post1", "post2"}, calls)
}

func TestRun_PreStageErrorStopsPipeline(t *testing.T) {
	boom := errors.New("boom")
	postCalled := false
	r := NewRunner(
		[]MarkdownStage{MarkdownStageFunc(func(Document, ast.Node, []byte) error { return boom })},
		[]HTMLStage{HTMLStageFunc(func(Document, *html.Node) error {
			postCalled = true
			return nil
		})},
	)
	_, err := r.Run(context.Background(), Document{Path: "posts/a.md", Source: []byte("body")})

	require.ErrorIs(t, err, boom)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StagePre, perr.Stage)
	assert.False(t, postCalled)
}

func TestRun_PreStageSeesTree(t *testing.T) {
	var headings int
	count := MarkdownStageFunc(func(_ Document, root ast.Node, _ []byte) error {
		return ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if entering && n.Kind() == ast.KindHeading {
				headings++
			}
			return ast.WalkContinue, nil
		})
	})
	r := NewRunner([]MarkdownStage{count}, nil)
	run(t, r, "# One\n\n## Two\n\ntext\n")
	assert.Equal(t, 2, headings)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(nil, nil).Run(ctx, Document{Path: "a.md", Source: []byte("x")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunFile_ReadFailure(t *testing.T) {
	r := NewRunner(nil, nil)
	_, err := r.RunFile(context.Background(), mapSource{}, "posts/missing.md")
	require.ErrorIs(t, err, fs.ErrNotExist)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageRead, perr.Stage)
}

func TestRunFile_ReadsSource(t *testing.T) {
	r := NewRunner(nil, nil)
	res, err := r.RunFile(context.Background(), mapSource{"posts/a.md": "---\ntitle: A\n---\nhi\n"}, "posts/a.md")
	require.NoError(t, err)
	assert.Equal(t, "A", res.FrontMatter["title"])
}

func TestBuiltin_GFMTable(t *testing.T) {
	gfm, err := LookupMarkdownStage("gfm")
	require.NoError(t, err)
	res := run(t, NewRunner([]MarkdownStage{gfm}, nil), "| a | b |\n|---|---|\n| 1 | 2 |\n")
	assert.Contains(t, res.Body, "<table>")

	plain := run(t, NewRunner(nil, nil), "| a | b |\n|---|---|\n| 1 | 2 |\n")
	assert.NotContains(t, plain.Body, "<table>")
}

func TestBuiltin_StripTitle(t *testing.T) {
	st, err := LookupMarkdownStage("strip-title")
	require.NoError(t, err)
	res := run(t, NewRunner([]MarkdownStage{st}, nil), "# Title\n\nParagraph.\n")
	assert.NotContains(t, res.Body, "<h1>")
	assert.Contains(t, res.Body, "<p>Paragraph.</p>")
}

func TestBuiltin_HeadingIDs(t *testing.T) {
	st, err := LookupMarkdownStage("heading-ids")
	require.NoError(t, err)
	res := run(t, NewRunner([]MarkdownStage{st}, nil), "## Getting Started\n")
	assert.Contains(t, res.Body, `id="getting-started"`)
}

func TestBuiltin_ExternalLinksAndLazyImages(t *testing.T) {
	links, err := LookupHTMLStage("external-links")
	require.NoError(t, err)
	images, err := LookupHTMLStage("lazy-images")
	require.NoError(t, err)

	res := run(t, NewRunner(nil, []HTMLStage{links, images}),
		"[out](https://example.com) and [in](/posts/b)\n\n![alt](/img.png)\n")

	assert.Contains(t, res.Body, `<a href="https://example.com" target="_blank" rel="noopener noreferrer">out</a>`)
	assert.Contains(t, res.Body, `<a href="/posts/b">in</a>`)
	assert.Contains(t, res.Body, `loading="lazy"`)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := LookupMarkdownStage("nope")
	assert.Error(t, err)
	_, err = LookupHTMLStage("nope")
	assert.Error(t, err)
	assert.Contains(t, MarkdownStageNames(), "gfm")
	assert.Contains(t, HTMLStageNames(), "external-links")
}
