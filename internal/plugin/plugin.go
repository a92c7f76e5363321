// Package plugin is the bundler-facing surface of codex: the resolve, load
// and transform hooks over every configured collection.
package plugin

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/compiler"
)

// Host dispatches hook calls to the collection that owns them.
type Host struct {
	collections []*collection.Collection
	byName      map[string]*collection.Collection
}

// New returns a Host over cols. Collection names must be unique and no two
// collections may share a base directory.
func New(cols ...*collection.Collection) (*Host, error) {
	h := &Host{byName: make(map[string]*collection.Collection, len(cols))}
	bases := make(map[string]string, len(cols))
	for _, c := range cols {
		if _, dup := h.byName[c.Name()]; dup {
			return nil, fmt.Errorf("plugin: duplicate collection name %q", c.Name())
		}
		base := c.Config().Base
		if other, dup := bases[base]; dup {
			return nil, fmt.Errorf("plugin: collections %q and %q share base %q", other, c.Name(), base)
		}
		bases[base] = c.Name()
		h.byName[c.Name()] = c
		h.collections = append(h.collections, c)
	}
	return h, nil
}

// Collections returns the collections in configuration order.
func (h *Host) Collections() []*collection.Collection {
	return append([]*collection.Collection(nil), h.collections...)
}

// Collection looks a collection up by name.
func (h *Host) Collection(name string) (*collection.Collection, bool) {
	c, ok := h.byName[name]
	return c, ok
}

// Owner returns the collection whose documents include p.
func (h *Host) Owner(p string) (*collection.Collection, bool) {
	for _, c := range h.collections {
		if c.Compiler().Accepts(p) {
			return c, true
		}
	}
	return nil, false
}

// ResolveID claims a collection's virtual module request. When nested bases
// both match a path request, such as posts and archive/posts, the longest
// base wins.
func (h *Host) ResolveID(request string) (string, bool) {
	var (
		best    string
		bestLen = -1
	)
	for _, c := range h.collections {
		id, ok := c.Synthesizer().Resolve(request)
		if !ok {
			continue
		}
		if request == id {
			return id, true
		}
		if n := len(c.Config().Base); n > bestLen {
			best, bestLen = id, n
		}
	}
	return best, bestLen >= 0
}

// Load returns the source of a resolved collection module. ok is false for
// ids no collection owns.
func (h *Host) Load(moduleID string) (code string, ok bool, err error) {
	for _, c := range h.collections {
		if c.Synthesizer().ModuleID() != moduleID {
			continue
		}
		code, err := c.Synthesizer().Load(moduleID)
		return code, true, err
	}
	return "", false, nil
}

// Transform compiles p with its owning collection. Files no collection owns
// return compiler.ErrPassThrough.
func (h *Host) Transform(ctx context.Context, p string) (*compiler.Output, error) {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
	c, ok := h.Owner(p)
	if !ok {
		return nil, compiler.ErrPassThrough
	}
	return c.Compiler().Compile(ctx, p)
}
