// Package crop implements the crop stage: it trims the scanner background
// from page images and records the cropped image in provenance.
package crop

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"folio/internal/config"
	"folio/internal/fileutil"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/services"
	"folio/internal/stage"
	"folio/internal/textutil"
	"folio/internal/workitem"
)

const stageName = config.StageCrop

// OriginSource resolves case items to their origin scan.
type OriginSource interface {
	Origin(ctx context.Context, c workitem.Case) (string, bool, error)
}

// Handler validates and processes crop items.
type Handler struct {
	cfg     *config.Config
	origins OriginSource
	logger  *slog.Logger
	opts    Options
}

var _ stage.Handler = (*Handler)(nil)

type job struct {
	infile  string
	outfile string
}

// NewHandler builds a crop handler. origins may be a *provenance.Store.
func NewHandler(cfg *config.Config, origins OriginSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		origins: origins,
		logger:  logging.NewComponentLogger(logger, "crop"),
		opts: Options{
			Threshold:    uint8(cfg.Crop.Threshold),
			MinCoverage:  cfg.Crop.MinCoverage,
			Padding:      cfg.Crop.Padding,
			MaxDimension: cfg.Crop.MaxDimension,
			JPEGQuality:  cfg.Crop.JPEGQuality,
		},
	}
}

var _ OriginSource = (*provenance.Store)(nil)

// Name returns the stage name.
func (h *Handler) Name() string {
	return stageName
}

// Prepare decodes and validates a crop item. Checks run in a fixed order and
// the first failure wins: required fields, input present, output not already
// present (unless overwrite is set), output directory present.
func (h *Handler) Prepare(ctx context.Context, raw string) (*stage.Job, error) {
	item, err := workitem.DecodeCrop(raw)
	if err != nil {
		return nil, err
	}
	c, hasCase := item.Case()

	infile, outfile := item.Infile, item.Outfile
	switch {
	case item.Direct():
	case hasCase:
		infile, outfile, err = h.resolveCase(ctx, c)
		if err != nil {
			return nil, err
		}
	default:
		return nil, stage.Reject(stageName, services.ErrValidation, workitem.ReasonCropMissing)
	}

	if !fileutil.IsFile(infile) {
		return nil, stage.Reject(stageName, services.ErrNotFound, workitem.ReasonInputMissing)
	}
	if fileutil.Exists(outfile) && !item.OverwriteAllowed() {
		return nil, stage.Reject(stageName, services.ErrStateConflict, workitem.ReasonOutputExists)
	}
	if !fileutil.IsDir(filepath.Dir(outfile)) {
		return nil, stage.Reject(stageName, services.ErrDirectory, workitem.ReasonOutputDirectory)
	}

	return &stage.Job{
		Raw:     raw,
		Input:   infile,
		Case:    c,
		HasCase: hasCase,
		Payload: job{infile: infile, outfile: outfile},
	}, nil
}

// resolveCase finds the origin scan in provenance and derives the output path
// <crop_dir>/<shelfmark>/<index>/<sequence>.png, creating its directory.
func (h *Handler) resolveCase(ctx context.Context, c workitem.Case) (string, string, error) {
	if h.origins == nil {
		return "", "", stage.Reject(stageName, services.ErrNotFound, workitem.ReasonCaseOrigin)
	}
	origin, ok, err := h.origins.Origin(ctx, c)
	if err != nil {
		return "", "", services.Wrap(services.ErrNotFound, stageName, "validate", workitem.ReasonCaseOrigin, err)
	}
	if !ok {
		return "", "", stage.Reject(stageName, services.ErrNotFound, workitem.ReasonCaseOrigin)
	}
	dir := filepath.Join(h.cfg.Paths.CropDir, textutil.DocumentID(c.Shelfmark), textutil.DocumentID(c.Index))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", services.Wrap(services.ErrDirectory, stageName, "validate", workitem.ReasonOutputDirectory, err)
	}
	return origin, filepath.Join(dir, textutil.DocumentID(c.Sequence)+".png"), nil
}

// Execute crops the page image.
func (h *Handler) Execute(ctx context.Context, j *stage.Job) (stage.Outcome, error) {
	payload, ok := j.Payload.(job)
	if !ok {
		return stage.Outcome{}, services.Wrap(services.ErrProcessing, stageName, "process", "job payload is not a crop job", nil)
	}
	result, err := Process(ctx, payload.infile, payload.outfile, h.opts)
	if err != nil {
		return stage.Outcome{}, stage.Failed(stageName, err)
	}
	h.logger.Debug("page cropped",
		logging.String("input", payload.infile),
		logging.String("output", payload.outfile),
		logging.String("crop", result.Crop.String()),
		logging.String("source", result.Source.String()),
	)
	return stage.Outcome{
		Artifacts: []stage.Artifact{{
			Kind: stage.ArtifactImage,
			Type: h.cfg.Crop.ImageType,
			Path: payload.outfile,
		}},
		Message: fmt.Sprintf("Cropped to %dx%d", result.Output.X, result.Output.Y),
	}, nil
}

// HealthCheck always succeeds; cropping needs no external tools.
func (h *Handler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stageName)
}
