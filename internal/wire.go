package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/alignos/internal/aigateway"
	"github.com/starford/alignos/internal/assistant"
	"github.com/starford/alignos/internal/graphview"
	"github.com/starford/alignos/internal/ingest"
	"github.com/starford/alignos/internal/ledger"
	"github.com/starford/alignos/internal/org"
	"github.com/starford/alignos/internal/speech"
	"github.com/starford/alignos/internal/storage"
	"github.com/starford/alignos/internal/store"
	"github.com/starford/alignos/internal/voice"
)

// components are the services shared by every run mode.
type components struct {
	db      *store.DB
	objects *storage.FS

	ai     *aigateway.Client
	speech *speech.Client
	voice  *voice.Client

	ledger    *ledger.Service
	org       *org.Service
	ingest    *ingest.Service
	assistant *assistant.Service
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

// initLogger installs the structured JSON logger as the default.
func (a *application) initLogger() *slog.Logger {
	var out io.Writer = os.Stdout
	if a.logOutput != nil {
		out = a.logOutput
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// build opens the database and object store and constructs the services.
// The caller closes c.db.
func (a *application) build(logger *slog.Logger) (*components, error) {
	cfg := a.config

	objects, err := storage.NewFS(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	c := &components{
		db:      db,
		objects: objects,
		ai: aigateway.New(aigateway.Config{
			URL:             cfg.AI.GatewayURL,
			APIKey:          cfg.AI.APIKey,
			ExtractionModel: cfg.AI.ExtractionModel,
			OCRModel:        cfg.AI.OCRModel,
			QueryModel:      cfg.AI.QueryModel,
			Timeout:         cfg.AI.Timeout,
		}),
		speech: speech.New(speech.Config{
			URL:     cfg.Speech.URL,
			APIKey:  cfg.Speech.APIKey,
			Model:   cfg.Speech.Model,
			Timeout: cfg.Speech.Timeout,
		}),
		voice: voice.New(voice.Config{
			URL:     cfg.Voice.URL,
			APIKey:  cfg.Voice.APIKey,
			AgentID: cfg.Voice.AgentID,
			Timeout: cfg.Voice.Timeout,
		}),
		ledger: ledger.NewService(db),
		org:    org.NewService(db),
	}
	c.ingest = ingest.NewService(db, c.ai, c.speech, objects, ingest.Config{
		MaxFileBytes:      cfg.Ingest.MaxFileBytes,
		AllowedExtensions: cfg.Ingest.AllowedExtensions,
		PDFMode:           cfg.Ingest.PDFMode,
	})
	c.assistant = assistant.NewService(db, c.ai)

	for name, ok := range map[string]bool{
		"ai":     c.ai.Configured(),
		"speech": c.speech.Configured(),
		"voice":  c.voice.Configured(),
	} {
		if !ok {
			logger.Warn("upstream not configured", slog.String("service", name))
		}
	}
	return c, nil
}

// observe routes upstream call outcomes to fn.
func (c *components) observe(fn func(service, outcome string)) {
	c.ai.SetObserver(fn)
	c.speech.SetObserver(fn)
	c.voice.SetObserver(fn)
}

func (a *application) graphViewConfig() graphview.Config {
	g := a.config.Graph
	return graphview.Config{
		Width:    g.Width,
		Height:   g.Height,
		TTL:      g.SessionTTL,
		MaxTicks: g.MaxTicks,
	}
}
