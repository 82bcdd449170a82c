package workflow

import (
	"context"
	"fmt"

	"folio/internal/logging"
	"folio/internal/status"
)

// Preflight registers the worker's PID and checks the stage's health. An
// unhealthy stage leaves a fatal status entry and returns an error marked
// services.ErrConfiguration; the worker must not enter Run.
func (e *Engine) Preflight(ctx context.Context, pid int) error {
	if err := e.reporter.RegisterPID(ctx, pid); err != nil {
		return fmt.Errorf("register pid: %w", err)
	}
	health := e.handler.HealthCheck(ctx)
	if err := health.Err(); err != nil {
		e.setStatus(ctx, status.Fatal(health.Detail))
		logging.ErrorWithContext(e.logger, "stage unavailable", "preflight_failed",
			logging.String(logging.FieldStage, e.handler.Name()),
			logging.String("detail", health.Detail),
			logging.String(logging.FieldErrorHint, "install the missing dependency or fix the configuration"),
		)
		return err
	}
	return nil
}
