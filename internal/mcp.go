package internal

import (
	"context"
	"log/slog"

	"github.com/starford/alignos/internal/mcpserver"
)

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
// Logs go to the writer set with WithLogOutput (stderr from the CLI).
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.initLogger()

	c, err := app.build(logger)
	if err != nil {
		return err
	}
	defer c.db.Close()

	logger.Info("MCP server starting", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(c.db, c.ledger, c.org, c.ingest).ServeStdio()
}
