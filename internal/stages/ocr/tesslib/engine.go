//go:build gosseract

package tesslib

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text with a fresh gosseract client per call.
type Engine struct {
	clientFactory func() *gosseract.Client
}

// New returns a libtesseract-backed engine.
func New() *Engine {
	return &Engine{clientFactory: gosseract.NewClient}
}

// Name identifies the engine in logs.
func (e *Engine) Name() string { return "gosseract" }

// Check verifies libtesseract is linked and reports a version.
func (e *Engine) Check(context.Context) error {
	if gosseract.Version() == "" {
		return fmt.Errorf("libtesseract did not report a version")
	}
	return nil
}

// Recognize returns the plain text of imagePath in language.
func (e *Engine) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := e.clientFactory()
	defer c.Close()
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(language); err != nil {
		return "", fmt.Errorf("set language %s: %w", language, err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
