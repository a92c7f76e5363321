// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/codex/internal/api"
	"github.com/starford/codex/internal/build"
	"github.com/starford/codex/internal/collection"
	"github.com/starford/codex/internal/index"
	"github.com/starford/codex/internal/mcpserver"
	"github.com/starford/codex/internal/metrics"
	"github.com/starford/codex/internal/plugin"
	"github.com/starford/codex/internal/recordservice"
	"github.com/starford/codex/internal/sse"
	"github.com/starford/codex/internal/storage"
	"github.com/starford/codex/internal/typegen"
	"github.com/starford/codex/internal/watcher"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe, out: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	switch app.mode {
	case ModeBuild, ModeWatch, ModeServe, ModeMCP, ModeList:
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}

	cfg := app.config

	// Initialize structured JSON logger. MCP owns stdout, so it logs to stderr.
	var logOut io.Writer = os.Stdout
	if app.mode == ModeMCP || app.mode == ModeList {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}
	sqlitePath := cfg.SQLite.Path
	if !filepath.IsAbs(sqlitePath) {
		sqlitePath = filepath.Join(root, sqlitePath)
	}

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("root", root),
		slog.String("output_dir", cfg.Output.Dir),
		slog.String("sqlite_path", sqlitePath),
		slog.Int("collections", len(cfg.Collections)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage.
	store, err := storage.NewFS(root)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	rec := metrics.NewRecorder(nil)
	decls := typegen.NewEmitter(store, cfg.Output.DeclarationsPath())

	host, err := newHost(cfg, store, decls, rec)
	if err != nil {
		return err
	}

	if app.mode == ModeList {
		return printTree(ctx, app.out, host)
	}

	// Initialize SQLite index.
	db, err := index.Open(sqlitePath)
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	builder := build.New(host, store, build.Options{
		OutputDir:    cfg.Output.Dir,
		JSONSchema:   cfg.Output.JSONSchema,
		Workers:      cfg.Build.Workers,
		Declarations: decls,
		Index:        db,
		Notifier:     broker,
		Metrics:      rec,
		Logger:       logger,
	})

	// Initial build.
	report, buildErr := builder.Build(ctx)
	if report != nil {
		logger.Info("Build finished",
			slog.String("build_id", report.BuildID),
			slog.Int("records", report.Records),
			slog.Int("failed", report.Failed),
			slog.Duration("duration", report.Duration))
	}
	if buildErr != nil {
		if app.mode == ModeBuild {
			return buildErr
		}
		logger.Warn("initial build failed", slog.String("error", buildErr.Error()))
	}

	svc := recordservice.NewService(host, db, decls)

	switch app.mode {
	case ModeBuild:
		return nil
	case ModeMCP:
		logger.Info("Serving MCP over stdio")
		return mcpserver.New(svc, store, builder).ServeStdio()
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start file watcher.
	g.Go(func() error {
		return watcher.Watch(gCtx, builder, watcher.Options{
			Root:   root,
			Ignore: []string{cfg.Output.Dir, ".git"},
			Logger: logger,
		})
	})

	if app.mode == ModeServe {
		httpServer := &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: newRouter(cfg, svc, broker, rec, filepath.Join(root, cfg.Output.Dir)),
		}

		// Start HTTP server.
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})

		// Handle shutdown signals.
		g.Go(func() error {
			waitForShutdown(gCtx, logger)

			logger.Info("Shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
			return errShutdown
		})
	} else {
		g.Go(func() error {
			waitForShutdown(gCtx, logger)
			return errShutdown
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Stopped successfully")
	return nil
}

// errShutdown cancels the errgroup so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
}

func newHost(cfg *Config, store *storage.FS, decls *typegen.Emitter, rec *metrics.Recorder) (*plugin.Host, error) {
	cfgs, err := cfg.CollectionConfigs()
	if err != nil {
		return nil, err
	}
	cols := make([]*collection.Collection, 0, len(cfgs))
	for _, c := range cfgs {
		col, err := collection.New(c, store, collection.Options{
			Declarations: decls,
			Observer:     rec.ObserveCompile,
			Workers:      cfg.Build.Workers,
		})
		if err != nil {
			return nil, fmt.Errorf("init collection: %w", err)
		}
		cols = append(cols, col)
	}
	return plugin.New(cols...)
}

func newRouter(cfg *Config, svc *recordservice.Service, broker *sse.Broker, rec *metrics.Recorder, outputDir string) http.Handler {
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, outputDir)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Metrics.
	r.Handle("/metrics", rec.Handler())

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	return r
}
