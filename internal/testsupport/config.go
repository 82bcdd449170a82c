package testsupport

import (
	"path/filepath"
	"testing"

	"folio/internal/config"
)

// ConfigOption adjusts the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a validated default config whose broker database and
// directories live under a fresh temp dir, with short backoff intervals.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Broker.SQLitePath = filepath.Join(base, "queue.db")
	cfg.Paths.ProvenanceDir = filepath.Join(base, "xml")
	cfg.Paths.CropDir = filepath.Join(base, "cropped")
	cfg.Paths.OCRDir = filepath.Join(base, "ocr")
	cfg.Paths.DumpDir = filepath.Join(base, "dumps")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Backoff.WaitSeconds = 0.01
	cfg.Backoff.WaitMaxSeconds = 0.05
	cfg.Workflow.ProcessTimeout = 30
	cfg.Workflow.HeartbeatInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithExitWhenEmpty makes workers stop on the first empty poll.
func WithExitWhenEmpty() ConfigOption {
	return func(cfg *config.Config) { cfg.Backoff.ExitWhenEmpty = true }
}

// WithProcessTimeout overrides the processor timeout in seconds.
func WithProcessTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) { cfg.Workflow.ProcessTimeout = seconds }
}

// BaseDir returns the temp directory backing a config built by NewConfig.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ProvenanceDir)
}
