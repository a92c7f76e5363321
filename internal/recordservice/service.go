// Package recordservice serves compiled records to the preview API and the
// MCP tools.
package recordservice

import (
	"context"
	"fmt"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/plugin"
	"github.com/starford/codex/internal/schema"
)

// CollectionInfo describes one configured collection.
type CollectionInfo struct {
	Name       string                   `json:"name"`
	Base       string                   `json:"base"`
	Module     string                   `json:"module"`
	Pattern    string                   `json:"pattern"`
	Extensions []string                 `json:"extensions"`
	Records    int                      `json:"records"`
	Sort       *SortInfo                `json:"sort,omitempty"`
	Fields     []schema.FieldDescriptor `json:"fields"`
}

// SortInfo is the sort specification of a collection.
type SortInfo struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// Declarations exposes the current declaration file text.
type Declarations interface {
	Contents() string
}

// Service coordinates collections and the record index.
type Service struct {
	host  *plugin.Host
	db    index.RecordIndex
	decls Declarations
}

// NewService creates a new record service. db and decls may be nil.
func NewService(host *plugin.Host, db index.RecordIndex, decls Declarations) *Service {
	return &Service{host: host, db: db, decls: decls}
}

// Collections lists every collection with its current record count.
func (s *Service) Collections(_ context.Context) ([]CollectionInfo, error) {
	cols := s.host.Collections()
	out := make([]CollectionInfo, 0, len(cols))
	for _, c := range cols {
		info, err := describe(c)
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Collection describes a single collection.
func (s *Service) Collection(_ context.Context, name string) (*CollectionInfo, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	info, err := describe(c)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// List returns the records of a collection in list order.
func (s *Service) List(ctx context.Context, name string) ([]models.Record, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return c.List(ctx)
}

// Get returns one record. Unknown collections and ids wrap apperr.ErrNotFound.
func (s *Service) Get(ctx context.Context, name, id string) (*models.Record, error) {
	c, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

// Module returns the accessor module source of a collection.
func (s *Service) Module(_ context.Context, name string) (string, error) {
	c, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	code, _, err := s.host.Load(c.Synthesizer().ModuleID())
	return code, err
}

// Search queries the index. A named collection must exist.
func (s *Service) Search(_ context.Context, q index.Query) ([]index.SearchResult, error) {
	if q.Collection != "" {
		if _, err := s.lookup(q.Collection); err != nil {
			return nil, err
		}
	}
	if s.db == nil {
		return []index.SearchResult{}, nil
	}
	results, err := s.db.Search(q)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

// Declarations returns the declaration file as last written.
func (s *Service) Declarations() string {
	if s.decls == nil {
		return ""
	}
	return s.decls.Contents()
}

func (s *Service) lookup(name string) (*collection.Collection, error) {
	c, ok := s.host.Collection(name)
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, apperr.ErrNotFound)
	}
	return c, nil
}

func describe(c *collection.Collection) (CollectionInfo, error) {
	cfg := c.Config()
	entries, err := c.Entries()
	if err != nil {
		return CollectionInfo{}, err
	}
	info := CollectionInfo{
		Name:       cfg.Name,
		Base:       cfg.Base,
		Module:     cfg.Module(),
		Pattern:    cfg.Pattern,
		Extensions: cfg.Extensions,
		Records:    len(entries),
		Fields:     c.Compiler().Adapter().Describe(),
	}
	if cfg.Sort != nil {
		info.Sort = &SortInfo{Field: cfg.Sort.Field, Order: string(cfg.Sort.Order)}
	}
	return info, nil
}
