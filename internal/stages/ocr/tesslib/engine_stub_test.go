//go:build !gosseract

package tesslib

import (
	"context"
	"errors"
	"testing"
)

func TestStubReportsNotBuilt(t *testing.T) {
	e := New()
	if e.Name() != "gosseract" {
		t.Fatalf("unexpected name %q", e.Name())
	}
	if err := e.Check(context.Background()); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
	if _, err := e.Recognize(context.Background(), "a.png", "eng"); !errors.Is(err, ErrNotBuilt) {
		t.Fatalf("expected ErrNotBuilt, got %v", err)
	}
}
