package workflow

import (
	"context"

	"folio/internal/stage"
)

// Counts tallies claim outcomes since the engine was built.
type Counts struct {
	Claimed   int
	Completed int
	Failed    int
	Rejected  int
	Released  int
}

// StatusSummary represents lightweight engine diagnostics.
type StatusSummary struct {
	Running   bool
	Worker    string
	Stage     string
	LastError string
	LastClaim string
	Counts    Counts
	Health    stage.Health
}

// Status returns the latest engine information.
func (e *Engine) Status(ctx context.Context) StatusSummary {
	e.mu.RLock()
	summary := StatusSummary{
		Running:   e.running,
		Worker:    e.reporter.Name(),
		Stage:     e.handler.Name(),
		LastClaim: e.lastClaim,
		Counts:    e.counts,
	}
	if e.lastErr != nil {
		summary.LastError = e.lastErr.Error()
	}
	e.mu.RUnlock()
	summary.Health = e.handler.HealthCheck(ctx)
	return summary
}

func (e *Engine) setLastError(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func (e *Engine) noteClaim(raw string) {
	e.mu.Lock()
	e.lastClaim = raw
	e.counts.Claimed++
	e.mu.Unlock()
}

func (e *Engine) count(fn func(*Counts)) {
	e.mu.Lock()
	fn(&e.counts)
	e.mu.Unlock()
}
