package collection

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/compiler"
	"github.com/starford/codex/internal/models"
)

// Lister lists the files of one directory.
type Lister interface {
	List(dir string, exts []string) ([]models.FileMetadata, error)
}

// Entry is one discovered document.
type Entry struct {
	ID        string
	Path      string
	UpdatedAt time.Time
}

// CollisionError reports two files deriving the same identifier.
type CollisionError struct {
	Collection string
	ID         string
	First      string
	Second     string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("collection %q: %s and %s both map to id %q", e.Collection, e.First, e.Second, e.ID)
}

func (e *CollisionError) Unwrap() error {
	return apperr.ErrConflict
}

// Scan lists the collection directory (non-recursive), derives ids and
// returns the entries sorted by id. A missing directory is an empty
// collection. Ids that differ only in case collide, since they name the same
// file on case-insensitive file systems.
func Scan(store Lister, cfg Config) ([]Entry, error) {
	files, err := store.List(cfg.Base, cfg.Extensions)
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", cfg.Name, err)
	}
	seen := make(map[string]string, len(files))
	out := make([]Entry, 0, len(files))
	for _, f := range files {
		id := compiler.ID(f.Path)
		key := strings.ToLower(id)
		if first, dup := seen[key]; dup {
			return nil, &CollisionError{Collection: cfg.Name, ID: id, First: first, Second: f.Path}
		}
		seen[key] = f.Path
		out = append(out, Entry{ID: id, Path: f.Path, UpdatedAt: f.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
