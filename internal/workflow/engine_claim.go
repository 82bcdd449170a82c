package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"folio/internal/backoff"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/services"
	"folio/internal/stage"
	"folio/internal/status"
)

// errReleased marks a processor interrupted by worker shutdown.
var errReleased = errors.New("processing interrupted by shutdown")

type execResult struct {
	outcome stage.Outcome
	err     error
}

// processClaim drives one claimed item to a terminal queue, or back to the
// read queue if the worker is shutting down.
func (e *Engine) processClaim(ctx context.Context, raw string) {
	ctx = services.WithClaimID(ctx, uuid.NewString())
	ctx = services.WithQueue(ctx, e.queues.Work)
	logger := logging.WithContext(ctx, e.logger)
	e.noteClaim(raw)

	job, err := e.handler.Prepare(ctx, raw)
	if err != nil {
		if ctx.Err() != nil {
			e.release(ctx, logger, raw)
			return
		}
		e.reject(ctx, logger, raw, err)
		return
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("input", job.Input),
	}
	if job.HasCase {
		attrs = append(attrs,
			logging.String(logging.FieldCase, job.Case.Label()),
			logging.String(logging.FieldSequence, job.Case.Sequence),
		)
	}
	logger = logger.With(logging.Args(attrs[1:]...)...)
	logger.Info("stage started", logging.Args(attrs[0])...)
	e.setStatus(ctx, status.Processing(job.Input))

	start := time.Now()
	outcome, err := e.execute(ctx, logger, job)
	switch {
	case err == nil:
		e.complete(ctx, logger, raw, job, outcome, time.Since(start))
	case errors.Is(err, errReleased):
		e.release(ctx, logger, raw)
	default:
		e.fail(ctx, logger, raw, job, err)
	}
}

// execute runs the processor under the configured timeout with a heartbeat.
// A processor that ignores cancellation is abandoned after abandonGrace.
func (e *Engine) execute(ctx context.Context, logger *slog.Logger, job *stage.Job) (stage.Outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	if e.processTimeout > 0 {
		cancel()
		runCtx, cancel = context.WithTimeout(ctx, e.processTimeout)
	}
	defer cancel()

	var wg sync.WaitGroup
	beatCtx, stopBeat := context.WithCancel(runCtx)
	wg.Add(1)
	go e.heartbeat(beatCtx, &wg, job.Input)
	defer func() {
		stopBeat()
		wg.Wait()
	}()

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: fmt.Errorf("processor panic: %v", r)}
			}
		}()
		outcome, err := e.handler.Execute(runCtx, job)
		done <- execResult{outcome: outcome, err: err}
	}()

	select {
	case r := <-done:
		return e.settle(ctx, runCtx, r)
	case <-runCtx.Done():
	}

	grace := time.NewTimer(e.abandonGrace)
	defer grace.Stop()
	select {
	case r := <-done:
		return e.settle(ctx, runCtx, r)
	case <-grace.C:
	}

	logging.WarnWithContext(logger, "processor ignored cancellation; abandoning", "processor_abandoned",
		logging.Duration("grace", e.abandonGrace),
		logging.String(logging.FieldImpact, "processor goroutine may still be running"),
	)
	if ctx.Err() != nil {
		return stage.Outcome{}, errReleased
	}
	return stage.Outcome{}, e.timeoutError()
}

// settle classifies a processor result. A successful result always wins,
// even when shutdown raced with it.
func (e *Engine) settle(ctx, runCtx context.Context, r execResult) (stage.Outcome, error) {
	if r.err == nil {
		return r.outcome, nil
	}
	if ctx.Err() != nil {
		return stage.Outcome{}, errReleased
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return stage.Outcome{}, e.timeoutError()
	}
	return stage.Outcome{}, stage.Failed(e.handler.Name(), r.err)
}

func (e *Engine) timeoutError() error {
	message := "Processing timed out after " + backoff.FormatSeconds(e.processTimeout)
	return services.Wrap(services.ErrTimeout, e.handler.Name(), "process", message, nil)
}

// writeQueueUnreachable is logged to the case document when a finished item
// cannot be handed to the write queue and stays in the work queue.
const writeQueueUnreachable = "Failed: could not reach write queue"

// complete moves the item to the write queue and records its artifacts.
func (e *Engine) complete(ctx context.Context, logger *slog.Logger, raw string, job *stage.Job, outcome stage.Outcome, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	if !e.transition(ctx, logger, e.queues.Write, raw, raw, false) {
		if job.HasCase {
			e.record(ctx, logger, job.Case.Shelfmark, job.Case.Index, func(doc *provenance.Document) {
				doc.AppendLog(job.Case.Sequence, e.handler.Name(), writeQueueUnreachable, e.now())
			})
		}
		e.setStatus(ctx, status.MessageWaiting)
		return
	}
	entry := "Success"
	if outcome.Message != "" {
		entry = "Success: " + outcome.Message
	}
	if job.HasCase {
		e.record(ctx, logger, job.Case.Shelfmark, job.Case.Index, func(doc *provenance.Document) {
			for _, artifact := range outcome.Artifacts {
				switch artifact.Kind {
				case stage.ArtifactImage:
					doc.AddImage(job.Case.Sequence, artifact.Type, artifact.Path)
				case stage.ArtifactOCR:
					doc.AddOCR(job.Case.Sequence, artifact.Type, artifact.Language, artifact.Path)
				}
			}
			doc.AppendLog(job.Case.Sequence, e.handler.Name(), entry, e.now())
		})
	}
	e.count(func(c *Counts) { c.Completed++ })
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", elapsed),
		logging.Int("artifacts", len(outcome.Artifacts)),
	)
	e.setStatus(ctx, status.MessageWaiting)
}
