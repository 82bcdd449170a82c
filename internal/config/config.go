package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Broker selects and configures the list store shared by workers and the console.
type Broker struct {
	Backend       string `toml:"backend"`
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// Paths contains directory configuration.
type Paths struct {
	ProvenanceDir string `toml:"provenance_dir"`
	CropDir       string `toml:"crop_dir"`
	OCRDir        string `toml:"ocr_dir"`
	DumpDir       string `toml:"dump_dir"`
	LogDir        string `toml:"log_dir"`
}

// Backoff controls poll cadence after an empty read-queue poll.
type Backoff struct {
	WaitSeconds    float64 `toml:"wait_seconds"`
	WaitModifier   float64 `toml:"wait_modifier"`
	WaitMaxSeconds float64 `toml:"wait_maxseconds"`
	ExitWhenEmpty  bool    `toml:"exit_when_empty"`
}

// Workflow contains timing for the claim engine.
type Workflow struct {
	ProcessTimeout     int `toml:"process_timeout"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Queues names the four lists one pipeline stage works against.
type Queues struct {
	Read  string `toml:"read"`
	Work  string `toml:"work"`
	Write string `toml:"write"`
	Error string `toml:"error"`
}

// All returns the queue names in read, work, write, error order.
func (q Queues) All() []string {
	return []string{q.Read, q.Work, q.Write, q.Error}
}

// Crop configures the crop stage.
type Crop struct {
	WorkerName   string  `toml:"worker_name"`
	ImageType    string  `toml:"image_type"`
	Threshold    int     `toml:"threshold"`
	MinCoverage  float64 `toml:"min_coverage"`
	Padding      int     `toml:"padding"`
	MaxDimension int     `toml:"max_dimension"`
	JPEGQuality  int     `toml:"jpeg_quality"`
	Queues       Queues  `toml:"queues"`
}

// OCR configures the OCR stage.
type OCR struct {
	WorkerName      string   `toml:"worker_name"`
	Engine          string   `toml:"engine"`
	TesseractBinary string   `toml:"tesseract_binary"`
	Dicts           []string `toml:"dicts"`
	SourceImageType string   `toml:"source_image_type"`
	OutputType      string   `toml:"output_type"`
	Queues          Queues   `toml:"queues"`
}

// Supervisor configures how the console launches worker processes.
type Supervisor struct {
	WorkerBinary string `toml:"worker_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format"`
	Level          string            `toml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides"`
}

// Config encapsulates all configuration values for folio.
//
// Configuration sections by subsystem:
//   - Broker: queue store backend (sqlite or redis)
//   - Paths: provenance, artifact, dump, and log directories
//   - Backoff: empty-queue poll cadence
//   - Workflow: processor timeout and heartbeat
//   - Crop / OCR: per-stage settings and queue names
//   - Supervisor: worker launch settings for the console
//   - Logging: log format and level
type Config struct {
	Broker     Broker     `toml:"broker"`
	Paths      Paths      `toml:"paths"`
	Backoff    Backoff    `toml:"backoff"`
	Workflow   Workflow   `toml:"workflow"`
	Crop       Crop       `toml:"crop"`
	OCR        OCR        `toml:"ocr"`
	Supervisor Supervisor `toml:"supervisor"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("folio.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories workers write into. Artifact
// directories referenced by explicit item paths are never created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ProvenanceDir, c.Paths.CropDir, c.Paths.OCRDir, c.Paths.DumpDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Broker.Backend == BackendSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Broker.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create broker directory: %w", err)
		}
	}
	return nil
}

// StageQueues returns the queue set for a stage name ("crop" or "ocr").
func (c *Config) StageQueues(stage string) (Queues, bool) {
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case StageCrop:
		return c.Crop.Queues, true
	case StageOCR:
		return c.OCR.Queues, true
	default:
		return Queues{}, false
	}
}

// StageWorkerName returns the base worker name for a stage.
func (c *Config) StageWorkerName(stage string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case StageCrop:
		return c.Crop.WorkerName, true
	case StageOCR:
		return c.OCR.WorkerName, true
	default:
		return "", false
	}
}

// StageForWorker maps a base worker name back to its stage.
func (c *Config) StageForWorker(base string) (string, bool) {
	switch strings.TrimSpace(base) {
	case c.Crop.WorkerName:
		return StageCrop, true
	case c.OCR.WorkerName:
		return StageOCR, true
	default:
		return "", false
	}
}

// AllQueues lists every configured queue across stages.
func (c *Config) AllQueues() []string {
	out := append([]string{}, c.Crop.Queues.All()...)
	return append(out, c.OCR.Queues.All()...)
}

// ErrorQueues lists the error queue of every stage.
func (c *Config) ErrorQueues() []string {
	return []string{c.Crop.Queues.Error, c.OCR.Queues.Error}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
