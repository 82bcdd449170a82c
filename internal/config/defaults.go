package config

const (
	// BackendSQLite stores queues in a local SQLite database shared by processes on one host.
	BackendSQLite = "sqlite"
	// BackendRedis stores queues in a Redis server.
	BackendRedis = "redis"

	// StageCrop names the crop stage.
	StageCrop = "crop"
	// StageOCR names the OCR stage.
	StageOCR = "ocr"

	// EngineTesseractCLI runs OCR through the tesseract executable.
	EngineTesseractCLI = "tesseract"
	// EngineGosseract runs OCR in-process through libtesseract.
	EngineGosseract = "gosseract"
)

const (
	defaultConfigPath         = "~/.config/folio/config.toml"
	defaultSQLitePath         = "~/.local/share/folio/queue.db"
	defaultRedisAddr          = "127.0.0.1:6379"
	defaultProvenanceDir      = "~/.local/share/folio/xml"
	defaultCropDir            = "~/.local/share/folio/cropped"
	defaultOCRDir             = "~/.local/share/folio/ocr"
	defaultDumpDir            = "~/.local/share/folio/dumps"
	defaultLogDir             = "~/.local/share/folio/logs"
	defaultWaitSeconds        = 15
	defaultWaitModifier       = 1
	defaultWaitMaxSeconds     = 900
	defaultProcessTimeout     = 1800
	defaultHeartbeatInterval  = 30
	defaultErrorRetryInterval = 10
	defaultCropWorkerName     = "image_worker"
	defaultOCRWorkerName      = "ocr_worker"
	defaultCropImageType      = "cropped"
	defaultCropThreshold      = 48
	defaultCropMinCoverage    = 0.02
	defaultCropPadding        = 8
	defaultJPEGQuality        = 90
	defaultOCROutputType      = "text"
	defaultTesseractBinary    = "tesseract"
	defaultWorkerBinary       = "folio-worker"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Broker: Broker{
			Backend:    BackendSQLite,
			SQLitePath: defaultSQLitePath,
			RedisAddr:  defaultRedisAddr,
		},
		Paths: Paths{
			ProvenanceDir: defaultProvenanceDir,
			CropDir:       defaultCropDir,
			OCRDir:        defaultOCRDir,
			DumpDir:       defaultDumpDir,
			LogDir:        defaultLogDir,
		},
		Backoff: Backoff{
			WaitSeconds:    defaultWaitSeconds,
			WaitModifier:   defaultWaitModifier,
			WaitMaxSeconds: defaultWaitMaxSeconds,
		},
		Workflow: Workflow{
			ProcessTimeout:     defaultProcessTimeout,
			HeartbeatInterval:  defaultHeartbeatInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Crop: Crop{
			WorkerName:  defaultCropWorkerName,
			ImageType:   defaultCropImageType,
			Threshold:   defaultCropThreshold,
			MinCoverage: defaultCropMinCoverage,
			Padding:     defaultCropPadding,
			JPEGQuality: defaultJPEGQuality,
			Queues: Queues{
				Read:  "images:to_process",
				Work:  "images:in_progress",
				Write: "images:processed",
				Error: "images:errors",
			},
		},
		OCR: OCR{
			WorkerName:      defaultOCRWorkerName,
			Engine:          EngineTesseractCLI,
			TesseractBinary: defaultTesseractBinary,
			Dicts:           []string{"eng", "enm"},
			SourceImageType: defaultCropImageType,
			OutputType:      defaultOCROutputType,
			Queues: Queues{
				Read:  "ocr:to_process",
				Work:  "ocr:in_progress",
				Write: "ocr:processed",
				Error: "ocr:errors",
			},
		},
		Supervisor: Supervisor{
			WorkerBinary: defaultWorkerBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
