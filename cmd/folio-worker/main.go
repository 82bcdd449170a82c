// Command folio-worker runs one claim loop for the crop or OCR stage.
//
// It exits 0 when stopped by SIGINT or SIGTERM and 1 on a fatal startup
// failure or when the queue is empty and backoff.exit_when_empty is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"folio/internal/workflow"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, workflow.ErrQueueEmpty) && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
