package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var markdownStages = map[string]func() MarkdownStage{
	"gfm":             func() MarkdownStage { return Extension{extension.GFM} },
	"table":           func() MarkdownStage { return Extension{extension.Table} },
	"strikethrough":   func() MarkdownStage { return Extension{extension.Strikethrough} },
	"linkify":         func() MarkdownStage { return Extension{extension.Linkify} },
	"tasklist":        func() MarkdownStage { return Extension{extension.TaskList} },
	"footnote":        func() MarkdownStage { return Extension{extension.Footnote} },
	"definition-list": func() MarkdownStage { return Extension{extension.DefinitionList} },
	"typographer":     func() MarkdownStage { return Extension{extension.Typographer} },
	"heading-ids":     func() MarkdownStage { return Extension{headingIDs{}} },
	"raw-html":        func() MarkdownStage { return Extension{rawHTML{}} },
	"strip-title":     func() MarkdownStage { return MarkdownStageFunc(stripTitle) },
}

var htmlStages = map[string]func() HTMLStage{
	"external-links": func() HTMLStage { return HTMLStageFunc(externalLinks) },
	"lazy-images":    func() HTMLStage { return HTMLStageFunc(lazyImages) },
}

// LookupMarkdownStage returns the built-in pre-stage registered under name.
func LookupMarkdownStage(name string) (MarkdownStage, error) {
	f, ok := markdownStages[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown markdown stage %q", name)
	}
	return f(), nil
}

// LookupHTMLStage returns the built-in post-stage registered under name.
func LookupHTMLStage(name string) (HTMLStage, error) {
	f, ok := htmlStages[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("pipeline: unknown html stage %q", name)
	}
	return f(), nil
}

// MarkdownStageNames lists the built-in pre-stage names, sorted.
func MarkdownStageNames() []string {
	return sortedKeys(markdownStages)
}

// HTMLStageNames lists the built-in post-stage names, sorted.
func HTMLStageNames() []string {
	return sortedKeys(htmlStages)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type headingIDs struct{}

func (headingIDs) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithAutoHeadingID())
}

type rawHTML struct{}

func (rawHTML) Extend(m goldmark.Markdown) {
	m.Renderer().AddOptions(gmhtml.WithUnsafe())
}

// stripTitle removes a leading level-1 heading; collections usually carry the
// title in front matter.
func stripTitle(_ Document, root ast.Node, _ []byte) error {
	first := root.FirstChild()
	if h, ok := first.(*ast.Heading); ok && h.Level == 1 {
		root.RemoveChild(root, first)
	}
	return nil
}

func externalLinks(_ Document, root *html.Node) error {
	walkElements(root, func(n *html.Node) {
		if n.DataAtom != atom.A {
			return
		}
		href := attr(n, "href")
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			return
		}
		setAttr(n, "target", "_blank")
		setAttr(n, "rel", "noopener noreferrer")
	})
	return nil
}

func lazyImages(_ Document, root *html.Node) error {
	walkElements(root, func(n *html.Node) {
		if n.DataAtom == atom.Img && attr(n, "loading") == "" {
			setAttr(n, "loading", "lazy")
		}
	})
	return nil
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walkElements(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
