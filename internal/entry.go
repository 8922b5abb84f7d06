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

	"github.com/starford/dirtools/internal/api"
	"github.com/starford/dirtools/internal/index"
	"github.com/starford/dirtools/internal/mcpserver"
	"github.com/starford/dirtools/internal/sse"
	"github.com/starford/dirtools/internal/storage"
	"github.com/starford/dirtools/internal/treeservice"
)

// NewLogger builds the structured JSON logger used by every entry point.
func NewLogger(cfg *Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Services bundles the components built from a Config. Index is nil when
// the services were opened with OpenTree.
type Services struct {
	Tree  *treeservice.Service
	Index *index.DB
}

// Close releases the snapshot index.
func (s *Services) Close() error {
	if s.Index == nil {
		return nil
	}
	return s.Index.Close()
}

// Open builds the tree service and snapshot index described by cfg.
// Extra options are applied after the ones derived from cfg.
func Open(cfg *Config, logger *slog.Logger, opts ...treeservice.Option) (*Services, error) {
	return open(cfg, logger, true, opts)
}

// OpenTree builds a tree service without a snapshot index, for operations
// that never touch recorded snapshots.
func OpenTree(cfg *Config, logger *slog.Logger) (*Services, error) {
	return open(cfg, logger, false, nil)
}

func open(cfg *Config, logger *slog.Logger, withIndex bool, opts []treeservice.Option) (*Services, error) {
	alg, err := cfg.Hash.Resolve()
	if err != nil {
		return nil, fmt.Errorf("init hash: %w", err)
	}

	store, err := storage.NewFS(cfg.Tree.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	out := &Services{}
	var snapshots index.SnapshotIndex
	if withIndex {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		out.Index = db
		snapshots = db
	}

	base := []treeservice.Option{
		treeservice.WithAlgorithm(alg),
		treeservice.WithExcludeFile(cfg.Tree.ExcludeFile),
		treeservice.WithArchiveDir(cfg.Archive.Dir),
		treeservice.WithLogger(logger),
	}
	out.Tree = treeservice.New(store, snapshots, append(base, opts...)...)
	return out, nil
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Run starts the HTTP API with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	if app.logOutput == nil {
		app.logOutput = os.Stdout
	}

	logger := NewLogger(cfg, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("tree_root", cfg.Tree.Root),
		slog.String("hash_algorithm", cfg.Hash.Algorithm),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	services, err := Open(cfg, logger, treeservice.WithOnSnapshot(broker.PublishSnapshot))
	if err != nil {
		return err
	}
	defer services.Close()

	apiRouter := api.NewRouter(services.Tree, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := services.Tree.Ready(req.Context()); err != nil {
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

	g, gCtx := errgroup.WithContext(ctx)

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

// RunMCP serves the MCP tools over stdio until the client disconnects.
// Logs go to stderr because stdout carries the protocol.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	if app.logOutput == nil {
		app.logOutput = os.Stderr
	}

	logger := NewLogger(app.config, app.logOutput)
	slog.SetDefault(logger)

	services, err := Open(app.config, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	logger.Info("Starting MCP server", slog.String("tree_root", services.Tree.Root()))
	return mcpserver.New(services.Tree).ServeStdio()
}
