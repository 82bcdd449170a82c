package workflow

import (
	"context"
	"errors"
	"time"

	"folio/internal/backoff"
	"folio/internal/logging"
	"folio/internal/services"
	"folio/internal/status"
)

// Run executes the claim loop until ctx is cancelled or, with
// exit_when_empty set, the read queue is found empty. Cancellation returns
// nil; an empty-queue exit returns ErrQueueEmpty.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("workflow already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ctx = services.WithStage(ctx, e.handler.Name())
	ctx = services.WithWorker(ctx, e.reporter.Name())
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("worker started",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.String("read_queue", e.queues.Read),
		logging.String("work_queue", e.queues.Work),
	)
	e.setStatus(ctx, status.MessageWaiting)

	for {
		if ctx.Err() != nil {
			e.stopped(ctx)
			return nil
		}

		raw, ok, err := e.store.Move(ctx, e.queues.Read, e.queues.Work)
		if err != nil {
			if ctx.Err() != nil {
				e.stopped(ctx)
				return nil
			}
			e.handleClaimError(ctx, err)
			continue
		}
		if !ok {
			if e.cfg.Backoff.ExitWhenEmpty {
				e.setStatus(ctx, status.MessageTerminated)
				logger.Info("queue empty, exiting",
					logging.String(logging.FieldEventType, "worker_exit_empty"),
					logging.String(logging.FieldQueue, e.queues.Read),
				)
				return ErrQueueEmpty
			}
			delay := e.backoff.Next()
			e.setStatus(ctx, status.Sleeping(backoff.FormatSeconds(delay)))
			if !sleep(ctx, delay) {
				e.stopped(ctx)
				return nil
			}
			continue
		}

		e.backoff.Reset()
		e.processClaim(ctx, raw)
	}
}

func (e *Engine) handleClaimError(ctx context.Context, err error) {
	e.setLastError(err)
	logging.ErrorWithContext(logging.WithContext(ctx, e.logger), "failed to claim queue item", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldQueue, e.queues.Read),
		logging.String(logging.FieldErrorHint, "check broker connectivity"),
	)
	sleep(ctx, e.retryInterval)
}

func (e *Engine) stopped(ctx context.Context) {
	e.setStatus(context.WithoutCancel(ctx), status.MessageStopped)
	logging.WithContext(ctx, e.logger).Info("worker stopped",
		logging.String(logging.FieldEventType, "worker_stop"),
	)
}

// setStatus publishes message; failures are logged only.
func (e *Engine) setStatus(ctx context.Context, message string) {
	if err := e.reporter.Set(ctx, message); err != nil && ctx.Err() == nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "status update failed", "status_update_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "console shows a stale status"),
		)
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
