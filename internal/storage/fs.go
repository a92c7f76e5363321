package storage

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/codex/internal/models"
)

const tmpPrefix = ".codex-tmp-"

// FS is a Provider confined to one directory through os.Root, so neither
// ".." segments nor symlinks can reach outside it.
type FS struct {
	dir  string
	root *os.Root
}

// NewFS opens dir, which must be an existing directory.
func NewFS(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: open root: %w", err)
	}
	return &FS{dir: abs, root: root}, nil
}

// Dir returns the absolute project directory.
func (f *FS) Dir() string { return f.dir }

// Close releases the root handle.
func (f *FS) Close() error { return f.root.Close() }

// name normalises a project path for os.Root. Absolute and parent-relative
// paths fail early with ErrOutsideRoot.
func name(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" {
		return ".", nil
	}
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	clean := path.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return clean, nil
}

func hasExt(file string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := path.Ext(file)
	return slices.ContainsFunc(exts, func(e string) bool { return strings.EqualFold(e, ext) })
}

// List skips dot files and sub-directories.
func (f *FS) List(dir string, exts []string) ([]models.FileMetadata, error) {
	d, err := name(dir)
	if err != nil {
		return nil, err
	}
	h, err := f.root.Open(d)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}
	defer h.Close()
	entries, err := h.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", dir, err)
	}

	out := make([]models.FileMetadata, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !hasExt(e.Name(), exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		out = append(out, models.FileMetadata{
			Path:      path.Join(d, e.Name()),
			Name:      e.Name(),
			UpdatedAt: info.ModTime(),
		})
	}
	slices.SortFunc(out, func(a, b models.FileMetadata) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func (f *FS) Read(p string) ([]byte, error) {
	n, err := name(p)
	if err != nil {
		return nil, err
	}
	data, err := f.root.ReadFile(n)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", p, err)
	}
	return data, nil
}

// Write stages content in a sibling temp file and renames it over p, so
// readers see either the old or the new bytes.
func (f *FS) Write(p string, content []byte) error {
	n, err := name(p)
	if err != nil {
		return err
	}
	if n == "." {
		return errors.New("storage: write: empty path")
	}
	if dir := path.Dir(n); dir != "." {
		if err := f.root.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}

	tmp := path.Join(path.Dir(n), tmpPrefix+uuid.NewString())
	if err := f.writeTemp(tmp, content); err != nil {
		_ = f.root.Remove(tmp)
		return err
	}
	if err := f.root.Rename(tmp, n); err != nil {
		_ = f.root.Remove(tmp)
		return fmt.Errorf("storage: rename %s: %w", p, err)
	}
	return nil
}

func (f *FS) writeTemp(tmp string, content []byte) error {
	h, err := f.root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	if _, err := h.Write(content); err != nil {
		h.Close()
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := h.Sync(); err != nil {
		h.Close()
		return fmt.Errorf("storage: fsync: %w", err)
	}
	return h.Close()
}

func (f *FS) Delete(p string) error {
	n, err := name(p)
	if err != nil {
		return err
	}
	if err := f.root.Remove(n); err != nil {
		return fmt.Errorf("storage: delete %s: %w", p, err)
	}
	return nil
}

var _ Provider = (*FS)(nil)

