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

	"github.com/starford/prepcost/internal/api"
	"github.com/starford/prepcost/internal/mcpserver"
	"github.com/starford/prepcost/internal/seed"
	"github.com/starford/prepcost/internal/session"
	"github.com/starford/prepcost/internal/settings"
	"github.com/starford/prepcost/internal/sse"
	"github.com/starford/prepcost/internal/store"
)

// Version is reported by the MCP server.
const Version = "0.1.0"

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg, os.Stdout)
	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("validation_mode", string(cfg.Costing.ValidationMode)),
		slog.String("pricing_basis", string(cfg.Costing.PricingBasis)),
		slog.String("settings_file", cfg.Costing.SettingsFile),
		slog.String("permission", cfg.Access.Permission),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	settingsFile := newSettings(cfg, logger)

	broker := sse.NewBroker(sse.WithThrottle(2*time.Second), sse.WithKeepAlive(30*time.Second))
	defer broker.Close()

	sess := newSession(cfg, db, settingsFile, logger, session.WithSaveHook(func(res session.Result) {
		broker.PublishSave(sse.SaveEvent{
			Created:    res.Created,
			Updated:    res.Updated,
			Deprecated: res.Deprecated,
		})
	}))
	if err := sess.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints.
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

	r.Mount("/api", api.NewRouter(sess, cfg.Access.CanEdit(), broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the costing settings file and announce reloads.
	if settingsFile.Path() != "" {
		g.Go(func() error {
			return settingsFile.Watch(gCtx, logger, func(v settings.Values) {
				broker.Publish(sse.Event{Type: sse.TypeSettingsChanged, Data: v})
			})
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
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group context so the settings watcher stops with
// the server.
var errShutdown = errors.New("shutdown")

// RunSeed imports the catalog file at path into the configured database.
func RunSeed(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stdout)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	catalog, err := seed.Parse(data)
	if err != nil {
		return err
	}

	db, err := store.Open(app.config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	ids, err := seed.Import(ctx, db, catalog)
	if err != nil {
		return fmt.Errorf("import catalog: %w", err)
	}
	logger.Info("Catalog seeded",
		slog.String("file", path),
		slog.Int("base_items", len(catalog.BaseItems)),
		slog.Int("items", len(ids)))
	return nil
}

// RunMCP serves the catalog tools over stdio. Logs go to stderr; stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, os.Stderr)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	sess := newSession(cfg, db, newSettings(cfg, logger), logger)
	if err := sess.Load(ctx); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	logger.Info("MCP server starting", slog.String("version", Version))
	return mcpserver.New(sess, Version).ServeStdio()
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

// newLogger installs a structured JSON logger writing to w as the default.
func newLogger(cfg *Config, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

func newSettings(cfg *Config, logger *slog.Logger) *settings.File {
	f := settings.New(cfg.Costing.SettingsFile, settings.Values{ValidationMode: cfg.Costing.ValidationMode})
	if err := f.Reload(); err != nil {
		logger.Warn("costing settings not loaded, using defaults",
			slog.String("path", f.Path()),
			slog.String("error", err.Error()))
	}
	return f
}

func newSession(cfg *Config, db *store.DB, sf *settings.File, logger *slog.Logger, extra ...session.Option) *session.Session {
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithDefaultMode(cfg.Costing.ValidationMode),
		session.WithPricingBasis(cfg.Costing.PricingBasis),
	}
	opts = append(opts, extra...)
	return session.New(session.Deps{
		Items:    db,
		Lines:    db,
		Costs:    db,
		Settings: sf,
		History:  db,
	}, opts...)
}
