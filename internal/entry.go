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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/scribe/internal/api"
	"github.com/starford/scribe/internal/entryservice"
	"github.com/starford/scribe/internal/extract"
	"github.com/starford/scribe/internal/fields"
	"github.com/starford/scribe/internal/importer"
	"github.com/starford/scribe/internal/inbox"
	"github.com/starford/scribe/internal/mcpserver"
	"github.com/starford/scribe/internal/richtext"
	"github.com/starford/scribe/internal/sse"
	"github.com/starford/scribe/internal/storage"
	"github.com/starford/scribe/internal/store"
)

// NewPipeline builds the import pipeline described by cfg.
func NewPipeline(cfg *Config) (*importer.Pipeline, *richtext.Converter) {
	conv := richtext.NewConverter(nil)
	x := extract.New(fields.Default(), conv, extract.WithExcerptMaxChars(cfg.Import.ExcerptMaxChars))
	return importer.New(x), conv
}

func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openService opens the entry store and builds the entry service on top of it.
// The caller closes the returned store.
func openService(cfg *Config, opts ...entryservice.Option) (*entryservice.Service, *store.DB, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	pipeline, conv := NewPipeline(cfg)
	opts = append([]entryservice.Option{
		entryservice.WithMaxPayloadBytes(cfg.Import.MaxPayloadBytes),
		entryservice.WithDefaultMode(cfg.Import.Mode()),
	}, opts...)
	return entryservice.NewService(pipeline, db, conv, opts...), db, nil
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(cfg, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("default_mode", string(cfg.Import.Mode())),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, db, err := openService(cfg, entryservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer db.Close()

	var drop *inbox.Inbox
	if cfg.Inbox.Enabled {
		// Ensure inbox directory exists.
		if err := os.MkdirAll(cfg.Inbox.Path, 0o755); err != nil {
			return fmt.Errorf("create inbox dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox storage: %w", err)
		}
		drop = inbox.New(fs, svc,
			inbox.WithProcessedDir(cfg.Inbox.ProcessedDir),
			inbox.WithFailedDir(cfg.Inbox.FailedDir),
			inbox.WithLogger(logger))
	}

	// Build API router.
	apiRouter := api.NewRouter(svc, fields.Default(), cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start inbox watcher.
	if drop != nil {
		g.Go(func() error {
			if err := drop.Watch(gCtx); err != nil {
				logger.Error("inbox watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
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
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools over stdin/stdout until the client
// disconnects. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, app.logOutput)

	svc, db, err := openService(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path))
	return mcpserver.New(svc, fields.Default()).ServeStdio()
}

// RunInboxOnce processes the files currently in the inbox and returns
// their reports.
func RunInboxOnce(ctx context.Context, opts ...Option) ([]inbox.Report, error) {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	cfg := app.config
	logger := newLogger(cfg, app.logOutput)

	svc, db, err := openService(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	fs, err := storage.NewFS(cfg.Inbox.Path)
	if err != nil {
		return nil, fmt.Errorf("init inbox storage: %w", err)
	}
	return inbox.New(fs, svc,
		inbox.WithProcessedDir(cfg.Inbox.ProcessedDir),
		inbox.WithFailedDir(cfg.Inbox.FailedDir),
		inbox.WithLogger(logger)).Sync(ctx)
}
