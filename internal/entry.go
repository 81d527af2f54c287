// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
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

	"github.com/starford/adrkb/internal/api"
	"github.com/starford/adrkb/internal/diag"
	"github.com/starford/adrkb/internal/index"
	"github.com/starford/adrkb/internal/kb"
	"github.com/starford/adrkb/internal/mcpserver"
	"github.com/starford/adrkb/internal/repository"
	"github.com/starford/adrkb/internal/sse"
)

// NewService builds the knowledge-base service for cfg, resolving folders
// against baseDir.
func NewService(cfg *Config, baseDir string, logger *slog.Logger) (*kb.Service, error) {
	folders, err := cfg.Project.Folders(baseDir)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Project.Location()
	if err != nil {
		return nil, err
	}
	return kb.NewService(folders, kb.WithLocation(loc), kb.WithLogger(logger)), nil
}

func (a *application) resolve(p string) string {
	if filepath.IsAbs(p) || a.baseDir == "" {
		return p
	}
	return filepath.Join(a.baseDir, p)
}

func (a *application) openIndex() (*index.DB, error) {
	path := a.resolve(a.config.SQLite.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	return index.Open(path)
}

// refresher feeds index syncs with fresh scans and fans the results out to
// SSE clients.
type refresher struct {
	svc    *kb.Service
	broker *sse.Broker
}

// rescan scans the folders and publishes the diagnostics summary.
func (r *refresher) rescan(ctx context.Context) (*repository.Repository, error) {
	res, err := r.svc.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if r.broker != nil {
		sum := sse.DiagnosticsSummary{Records: len(res.Records)}
		for _, d := range res.Diagnostics {
			switch d.Severity {
			case diag.SevError:
				sum.Errors++
			case diag.SevWarning:
				sum.Warnings++
			default:
				sum.Infos++
			}
		}
		r.broker.PublishDiagnostics(sum)
	}
	return res.Repository(), nil
}

func (r *refresher) publish(kind, ref string) {
	if r.broker != nil {
		r.broker.PublishRecordEvent(kind, ref)
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: cfg.App.LogLevel,
		}))
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project", cfg.Project.Name),
		slog.String("adr_folder", cfg.Project.ADRFolder),
		slog.Int("packages", len(cfg.Project.Packages)),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, err := NewService(cfg, app.baseDir, logger)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}

	// Initialize SQLite index.
	db, err := app.openIndex()
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	ref := &refresher{svc: svc, broker: broker}
	syncer := index.NewSyncer(db, ref.rescan, logger, ref.publish)

	// Run initial sync.
	if err := syncer.Refresh(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	handler := api.NewHandler(svc, db, syncer.Refresh, logger)
	apiRouter := api.NewRouter(handler, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start folder watcher with SSE callback.
	g.Go(func() error {
		return index.Watch(gCtx, svc.Folders(), syncer.Refresh, logger)
	})

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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Closing the broker ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// A non-nil result cancels gCtx, which stops the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	}

	svc, err := NewService(cfg, app.baseDir, logger)
	if err != nil {
		return fmt.Errorf("init service: %w", err)
	}
	db, err := app.openIndex()
	if err != nil {
		return fmt.Errorf("init index: %w", err)
	}
	defer db.Close()

	ref := &refresher{svc: svc}
	syncer := index.NewSyncer(db, ref.rescan, logger, nil)
	if err := syncer.Refresh(ctx); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	logger.Info("MCP server starting", slog.String("project", cfg.Project.Name))
	return mcpserver.New(svc, db, syncer.Refresh, logger, app.version).ServeStdio()
}
