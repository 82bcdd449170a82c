package workflow

import (
	"context"
	"sync"
	"time"

	"folio/internal/status"
)

// heartbeat refreshes the worker's processing status until ctx ends so the
// console can tell a long-running item from a hung worker.
func (e *Engine) heartbeat(ctx context.Context, wg *sync.WaitGroup, input string) {
	defer wg.Done()
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	message := status.Processing(input)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.setStatus(ctx, message)
		}
	}
}
