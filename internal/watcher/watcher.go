// Package watcher rebuilds collection outputs as source documents change.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/codex/internal/build"
	"github.com/starford/codex/internal/compiler"
	"github.com/starford/codex/internal/models"
)

// Builder is the incremental build surface the watcher drives.
type Builder interface {
	Build(ctx context.Context) (*build.Report, error)
	BuildFile(ctx context.Context, path string) (*models.Record, error)
	RemoveFile(ctx context.Context, path string) error
}

// Options configures Watch.
type Options struct {
	Root     string   // absolute project root
	Ignore   []string // directories relative to Root that are never watched
	Debounce time.Duration
	Logger   *slog.Logger
}

// session collects changed paths until the tree has been quiet for the
// debounce window, then applies them in one batch. Editors that save in
// several writes therefore trigger a single rebuild per file.
type session struct {
	root    string
	b       Builder
	w       *fsnotify.Watcher
	ignored func(string) bool
	logger  *slog.Logger

	pending map[string]struct{} // slash paths relative to root
	full    bool                // a rename or new directory needs a full pass
}

// Watch watches the project root until ctx is cancelled. Directories created
// at runtime join the watch set.
func Watch(ctx context.Context, b Builder, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	s := &session{
		root:    opts.Root,
		b:       b,
		w:       w,
		ignored: ignoreFunc(opts.Root, opts.Ignore),
		logger:  logger,
		pending: make(map[string]struct{}),
	}
	if err := s.watchTree(opts.Root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", opts.Root))

	quiet := time.NewTimer(debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case <-quiet.C:
			s.flush(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if s.record(ev) {
				quiet.Reset(debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// record notes ev and reports whether anything is now pending.
func (s *session) record(ev fsnotify.Event) bool {
	if s.ignored(ev.Name) || ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := s.watchTree(ev.Name); err != nil {
				s.logger.Warn("watcher: add dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			// Files may have landed before the watch was added.
			s.full = true
			return true
		}
	}
	rel, err := filepath.Rel(s.root, ev.Name)
	if err != nil {
		return false
	}
	s.pending[filepath.ToSlash(rel)] = struct{}{}
	// fsnotify reports only the old name of a rename; the new name may sit
	// outside any watched directory.
	if ev.Has(fsnotify.Rename) {
		s.full = true
	}
	return true
}

// flush applies pending changes. A path that still exists is rebuilt, one
// that is gone has its outputs removed.
func (s *session) flush(ctx context.Context) {
	paths := make([]string, 0, len(s.pending))
	for p := range s.pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	full := s.full
	clear(s.pending)
	s.full = false

	for _, p := range paths {
		s.apply(ctx, p)
	}
	if full {
		if _, err := s.b.Build(ctx); err != nil {
			s.logger.Warn("watcher: full rebuild failed", slog.String("error", err.Error()))
		} else {
			s.logger.Debug("watcher: full rebuild done")
		}
	}
}

func (s *session) apply(ctx context.Context, p string) {
	op := "built"
	var err error
	if _, statErr := os.Stat(filepath.Join(s.root, filepath.FromSlash(p))); statErr == nil {
		_, err = s.b.BuildFile(ctx, p)
	} else {
		op = "removed"
		err = s.b.RemoveFile(ctx, p)
	}
	switch {
	case errors.Is(err, compiler.ErrPassThrough):
	case err != nil:
		s.logger.Warn("watcher: "+op+" with error", slog.String("path", p), slog.String("error", err.Error()))
	default:
		s.logger.Debug("watcher: "+op, slog.String("path", p))
	}
}

// watchTree adds dir and its non-ignored subdirectories to the watcher.
func (s *session) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if s.ignored(p) {
			return filepath.SkipDir
		}
		return s.w.Add(p)
	})
}

// ignoreFunc reports whether an absolute path lies in an ignored directory
// or is a temp file written by storage.FS.
func ignoreFunc(root string, dirs []string) func(string) bool {
	abs := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs = append(abs, filepath.Join(root, filepath.FromSlash(d)))
	}
	return func(p string) bool {
		if strings.HasPrefix(filepath.Base(p), ".codex-tmp-") {
			return true
		}
		for _, d := range abs {
			if p == d || strings.HasPrefix(p, d+string(os.PathSeparator)) {
				return true
			}
		}
		return false
	}
}
