// Package ocr implements the OCR stage: it runs tesseract over a page image
// once per requested dictionary and writes one text file per dictionary.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/stage"
	"folio/internal/textutil"
	"folio/internal/workitem"
)

const stageName = config.StageOCR

// ImageSource resolves case items to a recorded image of a given type.
type ImageSource interface {
	Image(ctx context.Context, c workitem.Case, imageType string) (string, bool, error)
}

// Handler validates and processes OCR items.
type Handler struct {
	cfg    *config.Config
	images ImageSource
	engine Engine
	logger *slog.Logger
}

var _ stage.Handler = (*Handler)(nil)

type job struct {
	infile  string
	outpath string
	dicts   []string
}

// NewHandler builds an OCR handler around engine.
func NewHandler(cfg *config.Config, images ImageSource, engine Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		images: images,
		engine: engine,
		logger: logging.NewComponentLogger(logger, "ocr"),
	}
}

// Name returns the stage name.
func (h *Handler) Name() string {
	return stageName
}

// Prepare decodes and validates an OCR item: required fields, input present,
// output path is a directory, dicts is a list.
func (h *Handler) Prepare(ctx context.Context, raw string) (*stage.Job, error) {
	item, err := workitem.DecodeOCR(raw)
	if err != nil {
		return nil, err
	}
	c, hasCase := item.Case()

	infile, outpath := item.Infile, item.Outpath
	switch {
	case item.Direct():
	case hasCase:
		infile, outpath, err = h.resolveCase(ctx, c)
		if err != nil {
			return nil, err
		}
	default:
		return nil, stage.Reject(stageName, services.ErrValidation, workitem.ReasonOCRMissing)
	}

	if !fileutil.IsFile(infile) {
		return nil, stage.Reject(stageName, services.ErrNotFound, workitem.ReasonInputMissing)
	}
	if !fileutil.IsDir(outpath) {
		return nil, stage.Reject(stageName, services.ErrDirectory, workitem.ReasonOutputNotDir)
	}
	dicts, err := item.Languages()
	if err != nil {
		return nil, err
	}

	return &stage.Job{
		Raw:     raw,
		Input:   infile,
		Case:    c,
		HasCase: hasCase,
		Payload: job{infile: infile, outpath: outpath, dicts: dicts},
	}, nil
}

func (h *Handler) resolveCase(ctx context.Context, c workitem.Case) (string, string, error) {
	if h.images == nil {
		return "", "", stage.Reject(stageName, services.ErrNotFound, workitem.ReasonCaseSource)
	}
	infile, ok, err := h.images.Image(ctx, c, h.cfg.OCR.SourceImageType)
	if err != nil {
		return "", "", services.Wrap(services.ErrNotFound, stageName, "validate", workitem.ReasonCaseSource, err)
	}
	if !ok {
		return "", "", stage.Reject(stageName, services.ErrNotFound, workitem.ReasonCaseSource)
	}
	outpath := filepath.Join(h.cfg.Paths.OCRDir, textutil.DocumentID(c.Shelfmark), textutil.DocumentID(c.Index))
	if err := os.MkdirAll(outpath, 0o755); err != nil {
		return "", "", services.Wrap(services.ErrDirectory, stageName, "validate", workitem.ReasonOutputNotDir, err)
	}
	return infile, outpath, nil
}

// OutputPath returns the text file written for one dictionary:
// <outpath>/<input file name>-<dict>-text.txt.
func OutputPath(outpath, infile, dict string) string {
	return filepath.Join(outpath, filepath.Base(infile)+"-"+dict+"-text.txt")
}

// Execute recognizes the page once per dictionary.
func (h *Handler) Execute(ctx context.Context, j *stage.Job) (stage.Outcome, error) {
	payload, ok := j.Payload.(job)
	if !ok {
		return stage.Outcome{}, services.Wrap(services.ErrProcessing, stageName, "process", "job payload is not an ocr job", nil)
	}
	artifacts := make([]stage.Artifact, 0, len(payload.dicts))
	for _, dict := range payload.dicts {
		if err := ctx.Err(); err != nil {
			return stage.Outcome{}, err
		}
		text, err := h.engine.Recognize(ctx, payload.infile, dict)
		if err != nil {
			return stage.Outcome{}, stage.Failed(stageName, err)
		}
		path := OutputPath(payload.outpath, payload.infile, dict)
		if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
			return stage.Outcome{}, stage.Failed(stageName, fmt.Errorf("write %s: %w", path, err))
		}
		h.logger.Debug("ocr text written",
			logging.String("input", payload.infile),
			logging.String("language", dict),
			logging.String("output", path),
			logging.Int("chars", len(text)),
		)
		artifacts = append(artifacts, stage.Artifact{
			Kind:     stage.ArtifactOCR,
			Type:     h.cfg.OCR.OutputType,
			Language: dict,
			Path:     path,
		})
	}
	return stage.Outcome{
		Artifacts: artifacts,
		Message:   fmt.Sprintf("Recognized %d dictionaries", len(artifacts)),
	}, nil
}

// HealthCheck reports whether the OCR engine can run.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.engine == nil {
		return stage.Unhealthy(stageName, "No Tesseract found! - no engine configured")
	}
	if err := h.engine.Check(ctx); err != nil {
		return stage.Unhealthy(stageName, "No Tesseract found! - "+err.Error())
	}
	return stage.Healthy(stageName)
}
