package internal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/alignos/internal/store"
	"github.com/starford/alignos/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "alignos.db")
	cfg.Storage.Path = filepath.Join(dir, "uploads")
	cfg.Inbox.Path = filepath.Join(dir, "inbox")
	return cfg
}

func seed(t *testing.T, path string) {
	t.Helper()
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	testutil.SeedOrg(t, db)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunSnapshot(t *testing.T) {
	cfg := testConfig(t)
	seed(t, cfg.SQLite.Path)
	dir := filepath.Dir(cfg.SQLite.Path)

	svgPath := filepath.Join(dir, "graph.svg")
	err := RunSnapshot(context.Background(), SnapshotOptions{Out: svgPath, Ticks: 50},
		WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<svg") || !strings.Contains(string(data), "Migrate to GCP") {
		t.Errorf("svg snapshot missing content: %.200s", data)
	}

	pngPath := filepath.Join(dir, "people.PNG")
	err = RunSnapshot(context.Background(), SnapshotOptions{Out: pngPath, Type: "person"},
		WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(pngPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("png snapshot has no PNG signature")
	}
}

func TestRunSnapshot_BadFormat(t *testing.T) {
	cfg := testConfig(t)
	err := RunSnapshot(context.Background(), SnapshotOptions{Out: "graph.gif"},
		WithConfig(cfg), WithLogOutput(io.Discard))
	if err == nil || !strings.Contains(err.Error(), ".svg or .png") {
		t.Errorf("err = %v", err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
	if err := RunMCP(context.Background()); err == nil {
		t.Error("RunMCP without config should fail")
	}
}

func TestBuild_WarnsForMissingKeys(t *testing.T) {
	cfg := testConfig(t)
	var logs bytes.Buffer
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(&logs)})
	if err != nil {
		t.Fatal(err)
	}
	c, err := app.build(app.initLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer c.db.Close()

	if c.ai.Configured() {
		t.Error("ai should be unconfigured without an api key")
	}
	for _, svc := range []string{`"service":"ai"`, `"service":"speech"`, `"service":"voice"`} {
		if !strings.Contains(logs.String(), svc) {
			t.Errorf("missing warning for %s in %s", svc, logs.String())
		}
	}
}
