package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/provenance"
	"folio/internal/stage"
	"folio/internal/status"
	"folio/internal/workflow"
)

type fakeHandler struct {
	name    string
	prepare func(context.Context, string) (*stage.Job, error)
	execute func(context.Context, *stage.Job) (stage.Outcome, error)
	health  stage.Health

	mu    sync.Mutex
	calls []string
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{name: config.StageCrop, health: stage.Healthy(config.StageCrop)}
}

func (f *fakeHandler) Name() string { return f.name }

func (f *fakeHandler) Prepare(ctx context.Context, raw string) (*stage.Job, error) {
	if f.prepare != nil {
		return f.prepare(ctx, raw)
	}
	return &stage.Job{Raw: raw, Input: raw}, nil
}

func (f *fakeHandler) Execute(ctx context.Context, job *stage.Job) (stage.Outcome, error) {
	f.mu.Lock()
	f.calls = append(f.calls, job.Raw)
	f.mu.Unlock()
	if f.execute != nil {
		return f.execute(ctx, job)
	}
	return stage.Outcome{}, nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health { return f.health }

func (f *fakeHandler) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type failingProvenance struct{}

func (failingProvenance) Update(context.Context, string, string, func(*provenance.Document) error) error {
	return errors.New("disk full")
}

// countingStore counts status writes.
type countingStore struct {
	broker.Store
	mu   sync.Mutex
	sets map[string]int
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	if c.sets == nil {
		c.sets = make(map[string]int)
	}
	c.sets[value[strings.Index(value, ": ")+2:]]++
	c.mu.Unlock()
	return c.Store.Set(ctx, key, value)
}

func (c *countingStore) count(message string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[message]
}

// refusingStore fails every push onto one key.
type refusingStore struct {
	broker.Store
	key string
}

func (r refusingStore) PushTail(ctx context.Context, key, value string) error {
	if key == r.key {
		return errors.New("connection refused")
	}
	return r.Store.PushTail(ctx, key, value)
}

type engineFixture struct {
	cfg      *config.Config
	store    broker.Store
	docs     workflow.Provenance
	reporter *status.Reporter
	engine   *workflow.Engine
}

func newEngine(t *testing.T, cfg *config.Config, store broker.Store, docs workflow.Provenance, handler stage.Handler, opts ...workflow.Option) *engineFixture {
	t.Helper()
	name, _ := cfg.StageWorkerName(handler.Name())
	reporter := status.NewReporter(store, name)
	engine, err := workflow.NewEngine(workflow.Deps{
		Config:     cfg,
		Store:      store,
		Provenance: docs,
		Reporter:   reporter,
		Handler:    handler,
		Logger:     logging.NewNop(),
	}, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return &engineFixture{cfg: cfg, store: store, docs: docs, reporter: reporter, engine: engine}
}

func (f *engineFixture) statusMessage(t *testing.T) string {
	t.Helper()
	raw, ok, err := f.store.Get(context.Background(), status.StatusPrefix+f.reporter.Name())
	if err != nil || !ok {
		t.Fatalf("status entry: ok=%v err=%v", ok, err)
	}
	return status.Parse(f.reporter.Name(), raw).Message
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
