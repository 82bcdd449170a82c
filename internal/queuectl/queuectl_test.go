package queuectl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"testing"
	"time"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/queuectl"
	"folio/internal/status"
	"folio/internal/testsupport"
	"folio/internal/workitem"
)

func newController(t *testing.T) (*queuectl.Controller, broker.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := broker.NewMemory()
	return queuectl.New(store, cfg), store, cfg
}

func TestDumpLoadRoundTrip(t *testing.T) {
	ctl, store, cfg := newController(t)
	ctx := context.Background()
	read := cfg.Crop.Queues.Read
	if err := store.PushTail(ctx, read, "a"); err != nil {
		t.Fatal(err)
	}
	_ = store.PushTail(ctx, read, "b")
	_ = store.PushTail(ctx, read, "c")

	path, n, err := ctl.Dump(ctx, read)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if n != 3 || filepath.Base(path) != read+".dump" {
		t.Fatalf("dump = %s (%d)", path, n)
	}
	if got := testsupport.ListValues(t, store, read); len(got) != 3 {
		t.Fatalf("dump must not consume the queue: %q", got)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a\nb\nc\n" {
		t.Fatalf("dump contents = %q", data)
	}

	if _, err := ctl.Empty(ctx, read); err != nil {
		t.Fatalf("Empty: %v", err)
	}
	loaded, err := ctl.Load(ctx, path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != 3 {
		t.Fatalf("loaded %d", loaded)
	}
	if got := testsupport.ListValues(t, store, read); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("round trip order = %q", got)
	}
}

func TestDumpRefusesItemsLoadCannotRestore(t *testing.T) {
	ctl, store, cfg := newController(t)
	ctx := context.Background()
	for _, bad := range []string{"", "two\nlines"} {
		queue := cfg.OCR.Queues.Read
		if _, err := ctl.Empty(ctx, queue); err != nil {
			t.Fatalf("Empty: %v", err)
		}
		_ = store.PushTail(ctx, queue, "a")
		_ = store.PushTail(ctx, queue, bad)

		if _, _, err := ctl.Dump(ctx, queue); err == nil {
			t.Fatalf("Dump accepted item %q", bad)
		}
		if _, err := os.Stat(ctl.DumpPath(queue)); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("dump file written for item %q: %v", bad, err)
		}
	}
}

func TestLoadQueuesBehindExistingItems(t *testing.T) {
	ctl, store, _ := newController(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "extra.dump")
	if err := os.WriteFile(path, []byte("x\n\ny\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = store.PushTail(ctx, "q", "old")

	n, err := ctl.Load(ctx, path, "q")
	if err != nil || n != 2 {
		t.Fatalf("Load = %d, %v", n, err)
	}
	if got := testsupport.ListValues(t, store, "q"); !slices.Equal(got, []string{"x", "y", "old"}) {
		t.Fatalf("queue = %q", got)
	}
	if _, err := ctl.Load(ctx, filepath.Join(t.TempDir(), "missing.dump"), "q"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMoveAllPreservesOrder(t *testing.T) {
	ctl, store, _ := newController(t)
	ctx := context.Background()
	items := []string{"1", "2", "3", "4", "5"}
	for _, item := range items {
		_ = store.PushTail(ctx, "src", item)
	}

	moved, err := ctl.Move(ctx, "src", "dst", 0)
	if err != nil || moved != 5 {
		t.Fatalf("Move = %d, %v", moved, err)
	}
	if got := testsupport.ListValues(t, store, "src"); len(got) != 0 {
		t.Fatalf("src = %q", got)
	}
	if got := testsupport.ListValues(t, store, "dst"); !slices.Equal(got, items) {
		t.Fatalf("dst = %q", got)
	}
}

func TestMoveCountAndValidation(t *testing.T) {
	ctl, store, _ := newController(t)
	ctx := context.Background()
	testsupport.MustPush(t, store, "src", "a", "b", "c")

	moved, err := ctl.Move(ctx, "src", "dst", 2)
	if err != nil || moved != 2 {
		t.Fatalf("Move = %d, %v", moved, err)
	}
	if got := testsupport.ListValues(t, store, "dst"); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("dst = %q", got)
	}
	if _, err := ctl.Move(ctx, "src", "src", 0); !errors.Is(err, queuectl.ErrSameQueue) {
		t.Fatalf("expected ErrSameQueue, got %v", err)
	}
	if _, err := ctl.Move(ctx, "status:x", "dst", 0); err == nil {
		t.Fatal("expected error for worker key")
	}
	if _, err := ctl.Move(ctx, "src", "dst", -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestEmptyIsIdempotent(t *testing.T) {
	ctl, store, _ := newController(t)
	ctx := context.Background()
	testsupport.MustPush(t, store, "q", "a", "b")

	n, err := ctl.Empty(ctx, "q")
	if err != nil || n != 2 {
		t.Fatalf("Empty = %d, %v", n, err)
	}
	n, err = ctl.Empty(ctx, "q")
	if err != nil || n != 0 {
		t.Fatalf("second Empty = %d, %v", n, err)
	}
}

func TestListQueuesIncludesConfiguredAndExtra(t *testing.T) {
	ctl, store, cfg := newController(t)
	ctx := context.Background()
	read := cfg.Crop.Queues.Read
	testsupport.MustPush(t, store, read, "a", "b")
	testsupport.MustPush(t, store, "scratch", "z")
	_ = store.Set(ctx, "status:image_worker", "x")

	infos, err := ctl.ListQueues(ctx)
	if err != nil {
		t.Fatalf("ListQueues: %v", err)
	}
	lengths := make(map[string]int)
	for _, info := range infos {
		lengths[info.Name] = info.Length
	}
	if len(infos) != 9 {
		t.Fatalf("expected 8 configured queues plus scratch, got %+v", infos)
	}
	if lengths[read] != 2 || lengths["scratch"] != 1 {
		t.Fatalf("lengths = %v", lengths)
	}
	if _, ok := lengths["status:image_worker"]; ok {
		t.Fatal("status key listed as a queue")
	}
}

func TestListWorkersLiveness(t *testing.T) {
	ctl, store, _ := newController(t)
	ctx := context.Background()
	self := status.NewReporter(store, "image_worker_1")
	if err := self.Set(ctx, status.MessageWaiting); err != nil {
		t.Fatal(err)
	}
	if err := self.RegisterPID(ctx, os.Getpid()); err != nil {
		t.Fatal(err)
	}
	_ = store.Set(ctx, status.PIDPrefix+"ocr_worker", strconv.Itoa(1<<22+12345))

	workers, err := ctl.ListWorkers(ctx)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 2 {
		t.Fatalf("workers = %+v", workers)
	}
	if w := workers[0]; w.Name != "image_worker_1" || !w.Alive || w.Stage != "crop" || w.Status.Message != status.MessageWaiting {
		t.Fatalf("unexpected first worker: %+v", w)
	}
	if w := workers[1]; w.Name != "ocr_worker" || w.Alive || w.Stage != "ocr" {
		t.Fatalf("unexpected second worker: %+v", w)
	}

	if err := ctl.Forget(ctx, "ocr_worker"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if workers, _ := ctl.ListWorkers(ctx); len(workers) != 1 {
		t.Fatalf("worker not forgotten: %+v", workers)
	}
}

func TestKillRefusesSelf(t *testing.T) {
	if err := queuectl.Kill(os.Getpid(), false); err == nil {
		t.Fatal("expected refusal")
	}
	if err := queuectl.Kill(0, true); err == nil {
		t.Fatal("expected error for pid 0")
	}
}

func TestRecentErrorsAndRequeue(t *testing.T) {
	ctl, store, cfg := newController(t)
	ctx := context.Background()
	read := cfg.Crop.Queues.Read
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local)
	for _, item := range []string{`{"n":1}`, `{"n": 2, "tag": "<a&b>"}`, "broken"} {
		encoded, err := workitem.NewErrorRecord("Input file does not exist", item, now).Encode()
		if err != nil {
			t.Fatal(err)
		}
		_ = store.PushHead(ctx, cfg.Crop.Queues.Error, encoded)
	}
	_ = store.PushHead(ctx, cfg.OCR.Queues.Error, "not a record")

	entries, err := ctl.RecentErrors(ctx, 2)
	if err != nil {
		t.Fatalf("RecentErrors: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Record.Item() != "broken" || entries[1].Record.Item() != `{"n": 2, "tag": "<a&b>"}` {
		t.Fatalf("newest first expected: %+v", entries[:2])
	}
	if entries[2].Queue != cfg.OCR.Queues.Error || entries[2].ParseErr == nil {
		t.Fatalf("malformed record not flagged: %+v", entries[2])
	}

	moved, err := ctl.Requeue(ctx, cfg.Crop.Queues.Error, read, 0)
	if err != nil || moved != 3 {
		t.Fatalf("Requeue = %d, %v", moved, err)
	}
	if got := testsupport.ListValues(t, store, read); !slices.Equal(got, []string{"broken", `{"n": 2, "tag": "<a&b>"}`, `{"n":1}`}) {
		t.Fatalf("read queue = %q", got)
	}
}
