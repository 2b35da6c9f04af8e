// Package inbox watches a drop directory and ingests documents placed in it.
package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/alignos/internal/checksum"
	"github.com/starford/alignos/internal/ingest"
)

// DefaultExtensions are the file types picked up from the inbox.
var DefaultExtensions = []string{".txt", ".md", ".pdf"}

const defaultDebounce = 300 * time.Millisecond

// Ingester is the part of the ingest service the watcher drives.
type Ingester interface {
	ExtractFile(ctx context.Context, filename string, data []byte) (*ingest.FileResult, error)
	IngestText(ctx context.Context, content string) (*ingest.ExtractResult, *ingest.CommitResult, error)
}

// Config controls the watcher.
type Config struct {
	Path string
	// AutoExtract also runs entity extraction and commits the result.
	AutoExtract bool
	Extensions  []string
	// Debounce is how long a file must be quiet before it is read.
	Debounce time.Duration
}

// Callback is invoked after a file has been ingested. Duplicates are
// reported too, with res.Duplicate set.
type Callback func(path string, res *ingest.FileResult)

// Watch ingests files already in cfg.Path, then follows fsnotify events until
// ctx is cancelled. Files are handled once their writes settle; directories
// created at runtime are watched as well.
func Watch(ctx context.Context, svc Ingester, cfg Config, logger *slog.Logger, cb Callback) error {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, cfg.Path); err != nil {
		return err
	}
	logger.Info("inbox: started", slog.String("root", cfg.Path), slog.Bool("auto_extract", cfg.AutoExtract))

	h := &handler{svc: svc, cfg: cfg, logger: logger, cb: cb, handled: make(map[string]string)}
	pending := make(map[string]time.Time)
	walkFiles(cfg.Path, func(p string) { pending[p] = time.Time{} })

	ticker := time.NewTicker(cfg.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("inbox: stopped")
			return nil

		case now := <-ticker.C:
			for p, last := range pending {
				if now.Sub(last) < cfg.Debounce {
					continue
				}
				delete(pending, p)
				h.ingest(ctx, p)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					walkFiles(ev.Name, func(p string) { pending[p] = time.Now() })
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && h.accepts(ev.Name) {
				pending[ev.Name] = time.Now()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(pending, ev.Name)
				delete(h.handled, ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

type handler struct {
	svc    Ingester
	cfg    Config
	logger *slog.Logger
	cb     Callback
	// handled maps a path to the digest it was last ingested with.
	handled map[string]string
}

func (h *handler) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return slices.Contains(h.cfg.Extensions, strings.ToLower(filepath.Ext(base)))
}

func (h *handler) ingest(ctx context.Context, path string) {
	if !h.accepts(path) {
		return
	}
	sum, _, err := checksum.File(path)
	if err != nil {
		h.logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if h.handled[path] == sum {
		h.logger.Debug("inbox: unchanged", slog.String("path", path))
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Warn("inbox: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	res, err := h.svc.ExtractFile(ctx, filepath.Base(path), data)
	if err != nil {
		h.logger.Warn("inbox: ingest failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	h.handled[path] = sum
	h.logger.Info("inbox: ingested",
		slog.String("path", path),
		slog.String("source_id", res.SourceID),
		slog.Bool("duplicate", res.Duplicate))

	if h.cfg.AutoExtract && !res.Duplicate && strings.TrimSpace(res.Text) != "" {
		if _, commit, err := h.svc.IngestText(ctx, res.Text); err != nil {
			h.logger.Warn("inbox: auto extract failed", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			h.logger.Info("inbox: committed",
				slog.String("path", path),
				slog.Int("decisions", commit.Created.Decisions),
				slog.Int("people", commit.Created.People))
		}
	}
	if h.cb != nil {
		h.cb(path, res)
	}
}

func walkFiles(root string, fn func(path string)) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		fn(p)
		return nil
	})
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
