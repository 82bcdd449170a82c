package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBroker(); err != nil {
		return err
	}
	if err := c.validateBackoff(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateCrop(); err != nil {
		return err
	}
	if err := c.validateOCR(); err != nil {
		return err
	}
	if err := c.validateQueueNames(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBroker() error {
	switch c.Broker.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Broker.SQLitePath) == "" {
			return errors.New("broker.sqlite_path must be set when broker.backend is sqlite")
		}
	case BackendRedis:
		if c.Broker.RedisDB < 0 {
			return errors.New("broker.redis_db must be zero or positive")
		}
	default:
		return fmt.Errorf("broker.backend: unsupported value %q (use sqlite or redis)", c.Broker.Backend)
	}
	return nil
}

func (c *Config) validateBackoff() error {
	if c.Backoff.WaitSeconds <= 0 {
		return errors.New("backoff.wait_seconds must be positive")
	}
	if c.Backoff.WaitModifier < 1 {
		return errors.New("backoff.wait_modifier must be at least 1")
	}
	if c.Backoff.WaitMaxSeconds < c.Backoff.WaitSeconds {
		return errors.New("backoff.wait_maxseconds must be at least backoff.wait_seconds")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.ProcessTimeout < 0 {
		return errors.New("workflow.process_timeout must be zero (disabled) or positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	return nil
}

func (c *Config) validateCrop() error {
	if c.Crop.WorkerName == "" {
		return errors.New("crop.worker_name must be set")
	}
	if c.Crop.Threshold < 0 || c.Crop.Threshold > 255 {
		return errors.New("crop.threshold must be between 0 and 255")
	}
	if c.Crop.MinCoverage < 0 || c.Crop.MinCoverage > 1 {
		return errors.New("crop.min_coverage must be between 0 and 1")
	}
	if c.Crop.Padding < 0 {
		return errors.New("crop.padding must be zero or positive")
	}
	if c.Crop.MaxDimension < 0 {
		return errors.New("crop.max_dimension must be zero (disabled) or positive")
	}
	if c.Crop.JPEGQuality < 1 || c.Crop.JPEGQuality > 100 {
		return errors.New("crop.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateOCR() error {
	if c.OCR.WorkerName == "" {
		return errors.New("ocr.worker_name must be set")
	}
	if c.OCR.WorkerName == c.Crop.WorkerName {
		return errors.New("ocr.worker_name must differ from crop.worker_name")
	}
	switch c.OCR.Engine {
	case EngineTesseractCLI, EngineGosseract:
	default:
		return fmt.Errorf("ocr.engine: unsupported value %q (use tesseract or gosseract)", c.OCR.Engine)
	}
	if len(c.OCR.Dicts) == 0 {
		return errors.New("ocr.dicts must list at least one tesseract language")
	}
	return nil
}

func (c *Config) validateQueueNames() error {
	seen := make(map[string]string)
	check := func(section string, q Queues) error {
		for label, name := range map[string]string{"read": q.Read, "work": q.Work, "write": q.Write, "error": q.Error} {
			key := section + ".queues." + label
			if name == "" {
				return fmt.Errorf("%s must be set", key)
			}
			if strings.HasPrefix(name, "status:") || strings.HasPrefix(name, "pid:") {
				return fmt.Errorf("%s: %q collides with the status/pid key space", key, name)
			}
			if other, ok := seen[name]; ok {
				return fmt.Errorf("%s: %q is already used by %s", key, name, other)
			}
			seen[name] = key
		}
		return nil
	}
	if err := check(StageCrop, c.Crop.Queues); err != nil {
		return err
	}
	return check(StageOCR, c.OCR.Queues)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
