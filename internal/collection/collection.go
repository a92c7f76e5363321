package collection

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/starford/codex/internal/apperr"
	"github.com/starford/codex/internal/compiler"
	"github.com/starford/codex/internal/models"
	"github.com/starford/codex/internal/pipeline"
	"github.com/starford/codex/internal/schema"
)

// Store is what a collection reads documents from.
type Store interface {
	Lister
	pipeline.Source
}

// Options tunes a Collection.
type Options struct {
	Declarations compiler.Declarations
	Observer     compiler.Observer
	Workers      int // concurrent compiles in List; 0 means NumCPU
}

// Collection is the Go-side counterpart of the synthesized module: List and
// Get compile records on demand with the same ordering rules.
type Collection struct {
	cfg      Config
	store    Store
	compiler *compiler.Compiler
	synth    *Synthesizer
	workers  int
}

// New validates cfg and wires its compiler.
func New(cfg Config, store Store, opts Options) (*Collection, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	adapter, err := schema.NewAdapter(cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", cfg.Name, err)
	}
	comp, err := compiler.New(compiler.Options{
		Collection:   cfg.Name,
		Base:         cfg.Base,
		Module:       cfg.Module(),
		Extensions:   cfg.Extensions,
		Adapter:      adapter,
		Runner:       pipeline.NewRunner(cfg.Pre, cfg.Post),
		Source:       store,
		Declarations: opts.Declarations,
		Observer:     opts.Observer,
	})
	if err != nil {
		return nil, fmt.Errorf("collection %q: %w", cfg.Name, err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Collection{
		cfg:      cfg,
		store:    store,
		compiler: comp,
		synth:    NewSynthesizer(cfg, store),
		workers:  workers,
	}, nil
}

func (c *Collection) Name() string { return c.cfg.Name }
func (c *Collection) Config() Config { return c.cfg }
func (c *Collection) Compiler() *compiler.Compiler { return c.compiler }
func (c *Collection) Synthesizer() *Synthesizer { return c.synth }

// Entries lists the collection's documents sorted by id.
func (c *Collection) Entries() ([]Entry, error) {
	return Scan(c.store, c.cfg)
}

// List compiles every record and orders them by the sort specification.
func (c *Collection) List(ctx context.Context) ([]models.Record, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}
	records := make([]models.Record, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, e := range entries {
		g.Go(func() error {
			out, err := c.compiler.Compile(gctx, e.Path)
			if err != nil {
				return err
			}
			records[i] = out.Record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := SortRecords(c.cfg.Name, records, c.cfg.Sort); err != nil {
		return nil, err
	}
	return records, nil
}

// Get compiles the record with the given id. An unknown id returns an error
// wrapping apperr.ErrNotFound.
func (c *Collection) Get(ctx context.Context, id string) (*models.Record, error) {
	entries, err := c.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.ID != id {
			continue
		}
		out, err := c.compiler.Compile(ctx, e.Path)
		if err != nil {
			return nil, err
		}
		return &out.Record, nil
	}
	return nil, fmt.Errorf("collection %q: record %q: %w", c.cfg.Name, id, apperr.ErrNotFound)
}
