package logging

import (
	"context"
	"log/slog"
	"strings"
)

// minLevelHandler drops records below min before they reach next. The wrapped
// handler keeps its own level, so an override can only make a logger quieter.
type minLevelHandler struct {
	next slog.Handler
	min  slog.Level
}

func (h minLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.next.Enabled(ctx, level)
}

func (h minLevelHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.min {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h minLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return minLevelHandler{next: h.next.WithAttrs(attrs), min: h.min}
}

func (h minLevelHandler) WithGroup(name string) slog.Handler {
	return minLevelHandler{next: h.next.WithGroup(name), min: h.min}
}

// ForStage applies the [logging.stage_overrides] level configured for stage,
// matched case-insensitively. Without an override the logger is returned as is.
func ForStage(logger *slog.Logger, overrides map[string]string, stage string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	value := strings.TrimSpace(overrides[strings.ToLower(strings.TrimSpace(stage))])
	if value == "" {
		return logger
	}
	next := logger.Handler()
	if h, ok := next.(minLevelHandler); ok {
		next = h.next
	}
	return slog.New(minLevelHandler{next: next, min: parseLevel(value)})
}
