package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"folio/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantXML := filepath.Join(tempHome, ".local", "share", "folio", "xml")
	if cfg.Paths.ProvenanceDir != wantXML {
		t.Fatalf("unexpected provenance dir: got %q want %q", cfg.Paths.ProvenanceDir, wantXML)
	}
	if cfg.Broker.Backend != config.BackendSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Broker.Backend)
	}
	if !strings.HasPrefix(cfg.Broker.SQLitePath, tempHome) {
		t.Fatalf("expected sqlite path under HOME, got %q", cfg.Broker.SQLitePath)
	}
	if cfg.Crop.Queues.Read != "images:to_process" || cfg.OCR.Queues.Error != "ocr:errors" {
		t.Fatalf("unexpected default queues: %+v %+v", cfg.Crop.Queues, cfg.OCR.Queues)
	}
	if got := strings.Join(cfg.OCR.Dicts, ","); got != "eng,enm" {
		t.Fatalf("unexpected default dicts: %q", got)
	}
	if cfg.Backoff.WaitSeconds != 15 || cfg.Backoff.WaitMaxSeconds != 900 {
		t.Fatalf("unexpected backoff defaults: %+v", cfg.Backoff)
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[broker]
backend = "REDIS"
redis_addr = "10.0.0.5:6379"

[paths]
provenance_dir = "~/cases"

[backoff]
wait_seconds = 15
wait_modifier = 2
wait_maxseconds = 900
exit_when_empty = true

[ocr]
engine = "gosseract"
dicts = ["deu", " lat "]

[logging]
format = "JSON"

[logging.stage_overrides]
OCR = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Broker.Backend != config.BackendRedis || cfg.Broker.RedisAddr != "10.0.0.5:6379" {
		t.Fatalf("unexpected broker: %+v", cfg.Broker)
	}
	if cfg.Paths.ProvenanceDir != filepath.Join(tempHome, "cases") {
		t.Fatalf("unexpected provenance dir: %q", cfg.Paths.ProvenanceDir)
	}
	if cfg.Backoff.WaitModifier != 2 || !cfg.Backoff.ExitWhenEmpty {
		t.Fatalf("unexpected backoff: %+v", cfg.Backoff)
	}
	if cfg.OCR.Engine != config.EngineGosseract {
		t.Fatalf("unexpected engine: %q", cfg.OCR.Engine)
	}
	if got := strings.Join(cfg.OCR.Dicts, ","); got != "deu,lat" {
		t.Fatalf("unexpected dicts: %q", got)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.Logging.StageOverrides["ocr"] != "debug" {
		t.Fatalf("unexpected stage overrides: %v", cfg.Logging.StageOverrides)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[broker]\nbackend = \"sqlite\"\nqueue_host = \"x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvironmentOverridesBroker(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("FOLIO_BROKER_BACKEND", "redis")
	t.Setenv("FOLIO_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FOLIO_REDIS_PASSWORD", "secret")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Broker.Backend != config.BackendRedis {
		t.Fatalf("expected redis backend from env, got %q", cfg.Broker.Backend)
	}
	if cfg.Broker.RedisAddr != "redis.internal:6380" || cfg.Broker.RedisPassword != "secret" {
		t.Fatalf("unexpected broker: %+v", cfg.Broker)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Broker.Backend = "kafka" }, "broker.backend"},
		{"wait", func(c *config.Config) { c.Backoff.WaitSeconds = 0 }, "backoff.wait_seconds"},
		{"modifier", func(c *config.Config) { c.Backoff.WaitModifier = 0.5 }, "backoff.wait_modifier"},
		{"max", func(c *config.Config) { c.Backoff.WaitMaxSeconds = 1 }, "backoff.wait_maxseconds"},
		{"threshold", func(c *config.Config) { c.Crop.Threshold = 300 }, "crop.threshold"},
		{"engine", func(c *config.Config) { c.OCR.Engine = "cuneiform" }, "ocr.engine"},
		{"dicts", func(c *config.Config) { c.OCR.Dicts = nil }, "ocr.dicts"},
		{"duplicate queue", func(c *config.Config) { c.OCR.Queues.Read = c.Crop.Queues.Read }, "already used"},
		{"reserved queue", func(c *config.Config) { c.Crop.Queues.Error = "status:errors" }, "status/pid"},
		{"worker names", func(c *config.Config) { c.OCR.WorkerName = c.Crop.WorkerName }, "ocr.worker_name"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestStageLookups(t *testing.T) {
	cfg := config.Default()
	queues, ok := cfg.StageQueues("OCR")
	if !ok || queues.Work != "ocr:in_progress" {
		t.Fatalf("unexpected ocr queues: %+v ok=%v", queues, ok)
	}
	if _, ok := cfg.StageQueues("bind"); ok {
		t.Fatal("expected unknown stage to miss")
	}
	if stage, ok := cfg.StageForWorker("image_worker"); !ok || stage != config.StageCrop {
		t.Fatalf("unexpected stage for image_worker: %q %v", stage, ok)
	}
	if got := len(cfg.AllQueues()); got != 8 {
		t.Fatalf("expected 8 queues, got %d", got)
	}
	errs := cfg.ErrorQueues()
	if errs[0] != "images:errors" || errs[1] != "ocr:errors" {
		t.Fatalf("unexpected error queues: %v", errs)
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Broker.SQLitePath = filepath.Join(base, "db", "queue.db")
	cfg.Paths.ProvenanceDir = filepath.Join(base, "xml")
	cfg.Paths.CropDir = filepath.Join(base, "cropped")
	cfg.Paths.OCRDir = filepath.Join(base, "ocr")
	cfg.Paths.DumpDir = filepath.Join(base, "dumps")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{"db", "xml", "cropped", "ocr", "dumps", "logs"} {
		info, err := os.Stat(filepath.Join(base, dir))
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestSampleConfigParsesAndValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}
