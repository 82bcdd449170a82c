package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"folio/internal/backoff"
	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/stage"
	"folio/internal/status"
)

// ErrQueueEmpty is returned by Run when the read queue was empty and the
// worker is configured to exit instead of sleeping.
var ErrQueueEmpty = errors.New("queue empty")

// Provenance is the subset of the provenance store the engine writes to.
type Provenance interface {
	Update(ctx context.Context, shelfmark, index string, fn func(*provenance.Document) error) error
}

var _ Provenance = (*provenance.Store)(nil)

// Engine coordinates one worker's claim loop.
type Engine struct {
	cfg      *config.Config
	queues   config.Queues
	store    broker.Store
	docs     Provenance
	reporter *status.Reporter
	handler  stage.Handler
	logger   *slog.Logger
	backoff  *backoff.Scheduler
	now      func() time.Time

	processTimeout    time.Duration
	heartbeatInterval time.Duration
	retryInterval     time.Duration
	abandonGrace      time.Duration

	mu        sync.RWMutex
	running   bool
	lastErr   error
	lastClaim string
	counts    Counts
}

// Deps bundles the collaborators an Engine needs.
type Deps struct {
	Config     *config.Config
	Queues     config.Queues
	Store      broker.Store
	Provenance Provenance
	Reporter   *status.Reporter
	Handler    stage.Handler
	Logger     *slog.Logger
}

// Option configures optional Engine behaviour.
type Option func(*Engine)

// WithClock overrides the clock used for error record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithAbandonGrace sets how long the engine waits for a processor to return
// after its timeout fires before abandoning it.
func WithAbandonGrace(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.abandonGrace = d
		}
	}
}

// NewEngine constructs an engine from deps. Config, Store, Reporter and
// Handler are required.
func NewEngine(deps Deps, opts ...Option) (*Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("workflow: config is required")
	case deps.Store == nil:
		return nil, errors.New("workflow: broker store is required")
	case deps.Reporter == nil:
		return nil, errors.New("workflow: status reporter is required")
	case deps.Handler == nil:
		return nil, errors.New("workflow: stage handler is required")
	}
	queues := deps.Queues
	if queues.Read == "" {
		q, ok := deps.Config.StageQueues(deps.Handler.Name())
		if !ok {
			return nil, errors.New("workflow: no queues configured for stage " + deps.Handler.Name())
		}
		queues = q
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	wf := deps.Config.Workflow
	e := &Engine{
		cfg:               deps.Config,
		queues:            queues,
		store:             deps.Store,
		docs:              deps.Provenance,
		reporter:          deps.Reporter,
		handler:           deps.Handler,
		logger:            logging.NewComponentLogger(logger, "workflow"),
		backoff:           backoff.FromConfig(deps.Config.Backoff),
		now:               time.Now,
		processTimeout:    time.Duration(wf.ProcessTimeout) * time.Second,
		heartbeatInterval: time.Duration(wf.HeartbeatInterval) * time.Second,
		retryInterval:     time.Duration(wf.ErrorRetryInterval) * time.Second,
		abandonGrace:      2 * time.Second,
	}
	if e.heartbeatInterval <= 0 {
		e.heartbeatInterval = 30 * time.Second
	}
	if e.retryInterval <= 0 {
		e.retryInterval = time.Second
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Queues returns the queue set the engine operates on.
func (e *Engine) Queues() config.Queues {
	return e.queues
}
