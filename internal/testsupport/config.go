package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"optic/internal/config"
	"optic/internal/post"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.ResultsDB = filepath.Join(base, "results.db")
	cfgVal.Analysis.BaseURL = "http://127.0.0.1:1/v1"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	return builder.cfg
}

// WithBaseURL points the analysis endpoint at the given URL, usually an
// httptest server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.BaseURL = url
	}
}

// WithItemsFile writes the given items as the batch input file and wires the
// path into the config.
func WithItemsFile(items []post.Item) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "items.json")
		data, err := json.Marshal(items)
		if err != nil {
			b.t.Fatalf("marshal items: %v", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			b.t.Fatalf("write items file: %v", err)
		}
		b.cfg.Input.ItemsFile = path
	}
}
