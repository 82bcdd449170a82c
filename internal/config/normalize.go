package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBroker()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStages()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBroker() {
	if value, ok := os.LookupEnv("FOLIO_BROKER_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Broker.Backend = value
	}
	if value, ok := os.LookupEnv("FOLIO_REDIS_ADDR"); ok && strings.TrimSpace(value) != "" {
		c.Broker.RedisAddr = value
	}
	if value, ok := os.LookupEnv("FOLIO_REDIS_PASSWORD"); ok {
		c.Broker.RedisPassword = value
	}
	c.Broker.Backend = strings.ToLower(strings.TrimSpace(c.Broker.Backend))
	if c.Broker.Backend == "" {
		c.Broker.Backend = BackendSQLite
	}
	c.Broker.RedisAddr = strings.TrimSpace(c.Broker.RedisAddr)
	if c.Broker.RedisAddr == "" {
		c.Broker.RedisAddr = defaultRedisAddr
	}
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"broker.sqlite_path", &c.Broker.SQLitePath, defaultSQLitePath},
		{"paths.provenance_dir", &c.Paths.ProvenanceDir, defaultProvenanceDir},
		{"paths.crop_dir", &c.Paths.CropDir, defaultCropDir},
		{"paths.ocr_dir", &c.Paths.OCRDir, defaultOCRDir},
		{"paths.dump_dir", &c.Paths.DumpDir, defaultDumpDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeStages() {
	c.Crop.WorkerName = strings.TrimSpace(c.Crop.WorkerName)
	c.Crop.ImageType = strings.TrimSpace(c.Crop.ImageType)
	if c.Crop.ImageType == "" {
		c.Crop.ImageType = defaultCropImageType
	}
	c.Crop.Queues = trimQueues(c.Crop.Queues)

	c.OCR.WorkerName = strings.TrimSpace(c.OCR.WorkerName)
	c.OCR.Engine = strings.ToLower(strings.TrimSpace(c.OCR.Engine))
	if c.OCR.Engine == "" {
		c.OCR.Engine = EngineTesseractCLI
	}
	c.OCR.TesseractBinary = strings.TrimSpace(c.OCR.TesseractBinary)
	if c.OCR.TesseractBinary == "" {
		c.OCR.TesseractBinary = defaultTesseractBinary
	}
	dicts := make([]string, 0, len(c.OCR.Dicts))
	for _, dict := range c.OCR.Dicts {
		if trimmed := strings.TrimSpace(dict); trimmed != "" {
			dicts = append(dicts, trimmed)
		}
	}
	c.OCR.Dicts = dicts
	c.OCR.SourceImageType = strings.TrimSpace(c.OCR.SourceImageType)
	if c.OCR.SourceImageType == "" {
		c.OCR.SourceImageType = c.Crop.ImageType
	}
	c.OCR.OutputType = strings.TrimSpace(c.OCR.OutputType)
	if c.OCR.OutputType == "" {
		c.OCR.OutputType = defaultOCROutputType
	}
	c.OCR.Queues = trimQueues(c.OCR.Queues)

	c.Supervisor.WorkerBinary = strings.TrimSpace(c.Supervisor.WorkerBinary)
	if c.Supervisor.WorkerBinary == "" {
		c.Supervisor.WorkerBinary = defaultWorkerBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.StageOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.StageOverrides))
		for stage, level := range c.Logging.StageOverrides {
			normalized[strings.ToLower(strings.TrimSpace(stage))] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.StageOverrides = normalized
	}
}

func trimQueues(q Queues) Queues {
	return Queues{
		Read:  strings.TrimSpace(q.Read),
		Work:  strings.TrimSpace(q.Work),
		Write: strings.TrimSpace(q.Write),
		Error: strings.TrimSpace(q.Error),
	}
}
