package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"folio/internal/config"
	"folio/internal/deps"
	"folio/internal/stages/ocr/tesslib"
)

// Engine recognizes the text of one image in one tesseract language.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath, language string) (string, error)
	// Check reports whether the engine can run at all.
	Check(ctx context.Context) error
}

// NewEngine returns the engine selected by cfg.OCR.Engine.
func NewEngine(cfg *config.Config) (Engine, error) {
	switch cfg.OCR.Engine {
	case config.EngineTesseractCLI, "":
		return NewCLIEngine(cfg.OCR.TesseractBinary), nil
	case config.EngineGosseract:
		return tesslib.New(), nil
	default:
		return nil, fmt.Errorf("unknown ocr engine %q", cfg.OCR.Engine)
	}
}

// CLIEngine runs the tesseract executable once per language.
type CLIEngine struct {
	binary string
}

// NewCLIEngine returns an engine that invokes binary.
func NewCLIEngine(binary string) *CLIEngine {
	if strings.TrimSpace(binary) == "" {
		binary = "tesseract"
	}
	return &CLIEngine{binary: binary}
}

// Name identifies the engine in logs.
func (e *CLIEngine) Name() string {
	return "tesseract"
}

// Check verifies the binary is on PATH.
func (e *CLIEngine) Check(context.Context) error {
	status := deps.CheckBinaries([]deps.Requirement{{Name: "Tesseract", Command: e.binary}})[0]
	if !status.Available {
		return errors.New(status.Detail)
	}
	return nil
}

// Recognize runs "tesseract <image> stdout -l <language>" and returns stdout.
func (e *CLIEngine) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	cmd := exec.CommandContext(ctx, e.binary, imagePath, "stdout", "-l", language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", fmt.Errorf("tesseract %s: %w", language, err)
		}
		return "", fmt.Errorf("tesseract %s: %w: %s", language, err, lastLine(detail))
	}
	return stdout.String(), nil
}

func lastLine(s string) string {
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
