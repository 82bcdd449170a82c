//go:build !gosseract

package tesslib

import (
	"context"
	"errors"
)

// ErrNotBuilt is returned when folio was compiled without the gosseract tag.
var ErrNotBuilt = errors.New("gosseract support not built in (rebuild with -tags gosseract)")

// Engine is a placeholder that always reports ErrNotBuilt.
type Engine struct{}

// New returns the placeholder engine.
func New() *Engine { return &Engine{} }

// Name identifies the engine in logs.
func (e *Engine) Name() string { return "gosseract" }

// Check reports ErrNotBuilt.
func (e *Engine) Check(context.Context) error { return ErrNotBuilt }

// Recognize reports ErrNotBuilt.
func (e *Engine) Recognize(context.Context, string, string) (string, error) {
	return "", ErrNotBuilt
}
