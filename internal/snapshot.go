package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/alignos/internal/graphview"
)

// defaultSnapshotTicks lets a fresh layout settle before it is drawn.
const defaultSnapshotTicks = 300

// SnapshotOptions selects what RunSnapshot draws.
type SnapshotOptions struct {
	// Out is the destination file; its extension (.svg or .png) picks the format.
	Out   string
	Query string
	Type  string
	Ticks int
}

// RunSnapshot lays out the current graph once and writes a static image.
func RunSnapshot(ctx context.Context, so SnapshotOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.initLogger()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(so.Out)), ".")
	if format != "svg" && format != "png" {
		return fmt.Errorf("snapshot: output must end in .svg or .png, got %q", so.Out)
	}
	if so.Ticks <= 0 {
		so.Ticks = defaultSnapshotTicks
	}

	c, err := app.build(logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	vcfg := app.graphViewConfig()
	vcfg.MaxTicks = so.Ticks
	views := graphview.NewManager(c.db, nil, vcfg)

	f, err := views.Create(ctx, so.Query, so.Type, 0, 0)
	if err != nil {
		return fmt.Errorf("snapshot: open view: %w", err)
	}
	if _, err := views.Tick(ctx, f.Info.ID, so.Ticks); err != nil {
		return fmt.Errorf("snapshot: layout: %w", err)
	}

	out, err := os.Create(so.Out)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", so.Out, err)
	}
	if err := views.Render(ctx, f.Info.ID, format, out); err != nil {
		out.Close()
		return fmt.Errorf("snapshot: render: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", so.Out, err)
	}

	logger.Info("snapshot written",
		slog.String("path", so.Out),
		slog.Int("nodes", f.Info.Nodes),
		slog.Int("links", f.Info.Links))
	return nil
}
