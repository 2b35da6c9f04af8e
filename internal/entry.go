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
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/alignos/internal/api"
	"github.com/starford/alignos/internal/changefeed"
	"github.com/starford/alignos/internal/graphview"
	"github.com/starford/alignos/internal/inbox"
	"github.com/starford/alignos/internal/ingest"
	"github.com/starford/alignos/internal/metrics"
)

const (
	shutdownTimeout = 10 * time.Second
	readyTimeout    = 2 * time.Second
)

// Run starts the HTTP API, the inbox watcher and the graph session sweeper.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.initLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("storage_path", cfg.Storage.Path),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := app.build(logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	// Changefeed: store commits fan out to SSE clients and graph views.
	broker := changefeed.NewBroker(cfg.Graph.ChangefeedThrottle)
	defer broker.Close()
	c.db.SetNotifier(broker)

	views := graphview.NewManager(c.db, c.org, app.graphViewConfig())
	broker.AddConsumer(views)

	apiRouter := api.NewRouter(api.Services{
		Snapshots:      c.db,
		Views:          views,
		Ledger:         c.ledger,
		Org:            c.org,
		Ingest:         c.ingest,
		Assistant:      c.assistant,
		Voice:          c.voice,
		Uploads:        c.objects,
		Events:         broker,
		MaxUploadBytes: cfg.Ingest.MaxFileBytes + 1<<20,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if cfg.Metrics.Enabled {
		m := metrics.New()
		c.observe(m.ObserveUpstream)
		views.SetGauge(m.Sessions)
		m.WatchStream(broker.ClientCount, func() uint64 { return broker.Stats().Dropped })
		r.Use(m.Middleware)
		r.Method(http.MethodGet, cfg.Metrics.Path, m.Handler())
	}

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		pingCtx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := c.db.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
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

	// Expire idle graph view sessions.
	g.Go(func() error {
		return views.Run(gCtx)
	})

	if cfg.Inbox.Enabled {
		g.Go(func() error {
			err := inbox.Watch(gCtx, c.ingest, inbox.Config{
				Path:        cfg.Inbox.Path,
				AutoExtract: cfg.Inbox.AutoExtract,
			}, logger, func(path string, res *ingest.FileResult) {
				broker.Publish(changefeed.Event{Type: "inbox.ingested", Data: map[string]any{
					"path":      path,
					"source_id": res.SourceID,
					"duplicate": res.Duplicate,
				}})
			})
			if err != nil {
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
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams stay open until their clients leave; close the broker first.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}
