package workflow

import (
	"context"
	"log/slog"

	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/services"
	"folio/internal/stage"
	"folio/internal/status"
	"folio/internal/workitem"
)

// reject records a validation failure. The case is taken from the raw
// payload since a rejected item never produced a Job.
func (e *Engine) reject(ctx context.Context, logger *slog.Logger, raw string, err error) {
	ctx = context.WithoutCancel(ctx)
	reason := services.Reason(err)
	details := services.Details(err)
	logging.WarnWithContext(logger, "item rejected", "stage_rejected",
		logging.String("reason", reason),
		logging.String("error_kind", details.Kind),
		logging.String(logging.FieldImpact, "item moved to the error queue"),
		logging.String(logging.FieldErrorHint, "fix the item and load it back into the read queue"),
	)
	e.pushError(ctx, logger, raw, reason)
	if c, ok := workitem.CaseOf(raw); ok {
		e.record(ctx, logger, c.Shelfmark, c.Index, func(doc *provenance.Document) {
			doc.AppendLog(c.Sequence, e.handler.Name(), "Rejected: "+reason, e.now())
		})
	}
	e.count(func(c *Counts) { c.Rejected++ })
	e.setStatus(ctx, status.MessageWaiting)
}

// fail records a processor failure or timeout.
func (e *Engine) fail(ctx context.Context, logger *slog.Logger, raw string, job *stage.Job, err error) {
	ctx = context.WithoutCancel(ctx)
	e.setLastError(err)
	reason := services.Reason(err)
	details := services.Details(err)
	attrs := []logging.Attr{
		logging.String("reason", reason),
		logging.String("error_kind", details.Kind),
		logging.Error(err),
	}
	if details.Operation != "" {
		attrs = append(attrs, logging.String("operation", details.Operation))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)

	e.pushError(ctx, logger, raw, reason)
	if job.HasCase {
		e.record(ctx, logger, job.Case.Shelfmark, job.Case.Index, func(doc *provenance.Document) {
			doc.AppendLog(job.Case.Sequence, e.handler.Name(), "Failed: "+reason, e.now())
		})
	}
	e.count(func(c *Counts) { c.Failed++ })
	e.setStatus(ctx, status.MessageWaiting)
}

// release hands an interrupted item back to the tail of the read queue so it
// is the next one claimed.
func (e *Engine) release(ctx context.Context, logger *slog.Logger, raw string) {
	ctx = context.WithoutCancel(ctx)
	if e.transition(ctx, logger, e.queues.Read, raw, raw, false) {
		e.count(func(c *Counts) { c.Released++ })
		logger.Info("item released for shutdown",
			logging.String(logging.FieldEventType, "claim_released"),
			logging.String(logging.FieldQueue, e.queues.Read),
		)
	}
}

func (e *Engine) pushError(ctx context.Context, logger *slog.Logger, raw, reason string) {
	encoded, err := workitem.NewErrorRecord(reason, raw, e.now()).Encode()
	if err != nil {
		e.setLastError(err)
		logging.ErrorWithContext(logger, "failed to encode error record", "error_record_failed", logging.Error(err))
		return
	}
	e.transition(ctx, logger, e.queues.Error, encoded, raw, true)
}

// transition pushes value onto dst and then removes raw from the work queue.
// If the push fails the item stays in the work queue for operator recovery.
func (e *Engine) transition(ctx context.Context, logger *slog.Logger, dst, value, raw string, head bool) bool {
	push := e.store.PushTail
	if head {
		push = e.store.PushHead
	}
	if err := push(ctx, dst, value); err != nil {
		e.setLastError(err)
		logging.ErrorWithContext(logger, "queue transition failed; item left in work queue", "queue_transition_failed",
			logging.Error(err),
			logging.String(logging.FieldQueue, dst),
			logging.String(logging.FieldErrorHint, "move the item out of "+e.queues.Work+" once the broker recovers"),
		)
		return false
	}
	removed, err := e.store.Remove(ctx, e.queues.Work, raw, 1)
	if err != nil {
		e.setLastError(err)
		logging.ErrorWithContext(logger, "failed to remove item from work queue", "queue_remove_failed",
			logging.Error(err),
			logging.String(logging.FieldQueue, e.queues.Work),
			logging.String(logging.FieldErrorHint, "remove the duplicate from "+e.queues.Work+" manually"),
		)
		return true
	}
	if removed == 0 {
		logging.WarnWithContext(logger, "claimed item was no longer in the work queue", "queue_remove_missing",
			logging.String(logging.FieldQueue, e.queues.Work),
			logging.String(logging.FieldImpact, "an operator may have moved the item while it was processing"),
		)
	}
	return true
}

// record applies fn to a case document. Failures are logged and never block
// the queue transition.
func (e *Engine) record(ctx context.Context, logger *slog.Logger, shelfmark, index string, fn func(*provenance.Document)) {
	if e.docs == nil {
		return
	}
	err := e.docs.Update(ctx, shelfmark, index, func(doc *provenance.Document) error {
		fn(doc)
		return nil
	})
	if err != nil {
		e.setLastError(err)
		logging.WarnWithContext(logger, "provenance update failed", "provenance_write_failed",
			logging.Error(err),
			logging.String(logging.FieldCase, shelfmark+"/"+index),
			logging.String(logging.FieldImpact, "case document is missing this entry"),
			logging.String(logging.FieldErrorHint, "check permissions under the provenance directory"),
		)
	}
}
