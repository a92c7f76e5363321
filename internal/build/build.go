// Package build compiles every configured collection into an output
// directory: one module per record, one accessor module per collection, the
// shared declaration file and optional JSON Schema documents.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/compiler"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/metrics"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/plugin"
	"github.com/starford/codex/internal/sse"
	"github.com/starford/codex/internal/storage"
	"github.com/starford/codex/internal/typegen"
)

// Notifier is told about record changes made by incremental builds.
type Notifier interface {
	PublishRecordEvent(kind, collection, id string)
}

// Options configures a Builder.
type Options struct {
	OutputDir    string // relative to the store root
	JSONSchema   bool
	Workers      int // 0 means NumCPU
	Declarations compiler.Declarations
	Index        index.RecordIndex // optional
	Notifier     Notifier          // optional
	Metrics      *metrics.Recorder // optional
	Logger       *slog.Logger
}

// CollectionReport summarizes one collection of a build.
type CollectionReport struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Failed  int    `json:"failed"`
}

// Report summarizes a full build.
type Report struct {
	BuildID     string             `json:"build_id"`
	Collections []CollectionReport `json:"collections"`
	Records     int                `json:"records"`
	Failed      int                `json:"failed"`
	Duration    time.Duration      `json:"duration"`
}

// Builder writes build artifacts for a plugin.Host.
type Builder struct {
	host   *plugin.Host
	store  storage.Provider
	opts   Options
	logger *slog.Logger
}

// New returns a Builder.
func New(host *plugin.Host, store storage.Provider, opts Options) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = ".codex"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{host: host, store: store, opts: opts, logger: logger}
}

// OutputDir returns the output directory relative to the store root.
func (b *Builder) OutputDir() string {
	return b.opts.OutputDir
}

// Build compiles every collection. Failing files do not stop the build; all
// of their errors are returned joined, alongside the report.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep := &Report{BuildID: uuid.NewString()}
	logger := b.logger.With(slog.String("build_id", rep.BuildID))
	logger.Info("build: started", slog.Int("collections", len(b.host.Collections())))

	var errs []error
	for _, c := range b.host.Collections() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		cr, err := b.buildCollection(ctx, logger, c)
		rep.Collections = append(rep.Collections, cr)
		rep.Records += cr.Records
		rep.Failed += cr.Failed
		if err != nil {
			errs = append(errs, err)
		}
	}
	rep.Duration = time.Since(start)
	err := errors.Join(errs...)
	b.opts.Metrics.ObserveBuild(rep.Duration, err)

	attrs := []any{
		slog.Int("records", rep.Records),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", rep.Duration),
	}
	if err != nil {
		logger.Error("build: finished with errors", append(attrs, slog.String("error", err.Error()))...)
	} else {
		logger.Info("build: finished", attrs...)
	}
	return rep, err
}

func (b *Builder) buildCollection(ctx context.Context, logger *slog.Logger, c *collection.Collection) (CollectionReport, error) {
	cr := CollectionReport{Name: c.Name()}
	logger = logger.With(slog.String("collection", c.Name()))

	if err := b.declare(c); err != nil {
		return cr, err
	}
	entries, err := c.Entries()
	if err != nil {
		return cr, err
	}

	records := make([]*models.Record, len(entries))
	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(b.opts.Workers)
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := b.writeRecord(ctx, c, e.Path)
			if err != nil {
				logger.Warn("build: compile failed", slog.String("path", e.Path), slog.String("error", err.Error()))
				// Drop the previous output so a failed file leaves no module behind.
				if derr := b.store.Delete(b.RecordPath(c, e.ID)); derr != nil && !errors.Is(derr, fs.ErrNotExist) {
					err = errors.Join(err, derr)
				}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cr, err
	}

	compiled := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r != nil {
			compiled = append(compiled, *r)
		}
	}
	cr.Records = len(compiled)
	cr.Failed = len(errs)
	b.opts.Metrics.SetRecords(c.Name(), cr.Records)

	// The generated comparator would throw on these at runtime.
	if err := collection.SortRecords(c.Name(), append([]models.Record(nil), compiled...), c.Config().Sort); err != nil {
		errs = append(errs, err)
	}
	if err := b.writeModule(c); err != nil {
		errs = append(errs, err)
	}
	if err := b.prune(logger, c, entries); err != nil {
		errs = append(errs, err)
	}
	if b.opts.JSONSchema {
		if err := b.writeSchema(c); err != nil {
			errs = append(errs, err)
		}
	}
	if b.opts.Index != nil {
		if err := index.Sync(b.opts.Index, c.Name(), compiled, logger); err != nil {
			errs = append(errs, err)
		}
	}
	logger.Debug("build: collection done", slog.Int("records", cr.Records), slog.Int("failed", cr.Failed))
	return cr, errors.Join(errs...)
}

// BuildFile recompiles one document after a change and refreshes its
// collection module. Files no collection owns return compiler.ErrPassThrough.
func (b *Builder) BuildFile(ctx context.Context, p string) (*models.Record, error) {
	c, ok := b.host.Owner(p)
	if !ok {
		return nil, compiler.ErrPassThrough
	}
	// Re-check uniqueness: the new file may collide with an existing one.
	if _, err := c.Entries(); err != nil {
		return nil, err
	}
	target := b.RecordPath(c, compiler.ID(p))
	_, readErr := b.store.Read(target)
	existed := readErr == nil

	rec, err := b.writeRecord(ctx, c, p)
	if err != nil {
		// A document that no longer compiles must not keep serving its last
		// good output.
		if existed {
			if derr := b.dropRecord(c, compiler.ID(p)); derr != nil {
				err = errors.Join(err, derr)
			}
		}
		return nil, err
	}
	if err := b.writeModule(c); err != nil {
		return nil, err
	}
	if b.opts.Index != nil {
		if err := b.opts.Index.Upsert(*rec); err != nil {
			return nil, err
		}
	}
	kind := sse.KindUpdated
	if !existed {
		kind = sse.KindCreated
	}
	b.notify(kind, rec.Collection, rec.ID)
	b.logger.Debug("build: file rebuilt", slog.String("path", p), slog.String("op", kind))
	return rec, nil
}

// RemoveFile drops the outputs of a deleted document.
func (b *Builder) RemoveFile(ctx context.Context, p string) error {
	c, ok := b.host.Owner(p)
	if !ok {
		return compiler.ErrPassThrough
	}
	if err := b.dropRecord(c, compiler.ID(p)); err != nil {
		return err
	}
	b.logger.Debug("build: file removed", slog.String("path", p))
	return nil
}

// dropRecord deletes the record module and index row of id, rewrites the
// collection module and announces the deletion.
func (b *Builder) dropRecord(c *collection.Collection, id string) error {
	if err := b.store.Delete(b.RecordPath(c, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := b.writeModule(c); err != nil {
		return err
	}
	if b.opts.Index != nil {
		if err := b.opts.Index.Delete(c.Name(), id); err != nil {
			return err
		}
	}
	b.notify(sse.KindDeleted, c.Name(), id)
	return nil
}

// RecordPath is the output path of a record module.
func (b *Builder) RecordPath(c *collection.Collection, id string) string {
	return path.Join(b.opts.OutputDir, c.Config().Base, id+".js")
}

// ModulePath is the output path of a collection accessor module.
func (b *Builder) ModulePath(c *collection.Collection) string {
	return path.Join(b.opts.OutputDir, c.Synthesizer().OutputPath())
}

// SchemaPath is the output path of a collection's JSON Schema document.
func (b *Builder) SchemaPath(c *collection.Collection) string {
	return path.Join(b.opts.OutputDir, c.Name()+".schema.json")
}

func (b *Builder) declare(c *collection.Collection) error {
	if b.opts.Declarations == nil {
		return nil
	}
	cfg := c.Config()
	target := typegen.Target{Module: cfg.Module(), Base: cfg.Base}
	return b.opts.Declarations.Emit(c.Name(), target, c.Compiler().Adapter().Describe())
}

func (b *Builder) writeRecord(ctx context.Context, c *collection.Collection, p string) (*models.Record, error) {
	out, err := c.Compiler().Compile(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := b.store.Write(b.RecordPath(c, out.Record.ID), []byte(out.Code)); err != nil {
		return nil, fmt.Errorf("build: write %s: %w", p, err)
	}
	return &out.Record, nil
}

func (b *Builder) writeModule(c *collection.Collection) error {
	synth := c.Synthesizer().WithImportPath("./"+path.Base(c.Config().Base)+"/", ".js")
	code, err := synth.Load(synth.ModuleID())
	if err != nil {
		return err
	}
	if err := b.store.Write(b.ModulePath(c), []byte(code)); err != nil {
		return fmt.Errorf("build: write module %s: %w", c.Name(), err)
	}
	return nil
}

func (b *Builder) writeSchema(c *collection.Collection) error {
	doc, err := c.Compiler().Adapter().JSONSchema()
	if err != nil || doc == nil {
		return err
	}
	if err := b.store.Write(b.SchemaPath(c), doc); err != nil {
		return fmt.Errorf("build: write schema %s: %w", c.Name(), err)
	}
	return nil
}

// prune removes record modules whose source document is gone.
func (b *Builder) prune(logger *slog.Logger, c *collection.Collection, entries []collection.Entry) error {
	dir := path.Join(b.opts.OutputDir, c.Config().Base)
	files, err := b.store.List(dir, []string{".js"})
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		keep[e.ID] = struct{}{}
	}
	for _, f := range files {
		if _, ok := keep[compiler.ID(f.Path)]; ok {
			continue
		}
		if err := b.store.Delete(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		logger.Debug("build: pruned", slog.String("path", f.Path))
	}
	return nil
}

func (b *Builder) notify(kind, collection, id string) {
	if b.opts.Notifier != nil {
		b.opts.Notifier.PublishRecordEvent(kind, collection, id)
	}
}
