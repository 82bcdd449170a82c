package supervisor_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"folio/internal/broker"
	"folio/internal/logging"
	"folio/internal/queuectl"
	"folio/internal/status"
	"folio/internal/supervisor"
	"folio/internal/testsupport"
)

func TestStartNameLaunchesWorkerWithInstanceArgs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	argsFile := filepath.Join(base, "args.txt")
	binary := filepath.Join(base, "bin", "folio-worker")
	testsupport.WriteScript(t, binary, "#!/bin/sh\necho \"$@\" > "+argsFile+"\n")
	cfg.Supervisor.WorkerBinary = binary

	sup := supervisor.New(cfg, broker.NewMemory(), "/etc/folio.toml", logging.NewNop())
	child, err := sup.StartName(context.Background(), "ocr_worker_3")
	if err != nil {
		t.Fatalf("StartName: %v", err)
	}
	select {
	case <-child.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit")
	}
	if err := child.Err(); err != nil {
		t.Fatalf("worker exit: %v", err)
	}
	if child.Stage != "ocr" || child.N != 3 || child.PID <= 0 {
		t.Fatalf("unexpected child: %+v", child)
	}
	data, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "ocr -n 3 -c /etc/folio.toml" {
		t.Fatalf("args = %q", got)
	}
	if _, err := os.Stat(child.LogPath); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
}

func TestStartNameUnknownWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sup := supervisor.New(cfg, nil, "", nil)
	if _, err := sup.StartName(context.Background(), "bind_worker"); !errors.Is(err, supervisor.ErrUnknownWorker) {
		t.Fatalf("expected ErrUnknownWorker, got %v", err)
	}
}

func TestStartRefusesWorkerWithLivePID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	binary := filepath.Join(testsupport.BaseDir(cfg), "bin", "folio-worker")
	testsupport.WriteScript(t, binary, "#!/bin/sh\nexec sleep 30\n")
	cfg.Supervisor.WorkerBinary = binary
	store := broker.NewMemory()
	ctx := context.Background()

	child, err := supervisor.New(cfg, store, "", nil).Start(ctx, "crop", 0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { stopChild(child) })

	pid, ok, err := store.Get(ctx, status.PIDPrefix+"image_worker")
	if err != nil || !ok || pid != strconv.Itoa(child.PID) {
		t.Fatalf("pid entry = %q, %v, %v; want %d", pid, ok, err, child.PID)
	}

	// A second console sharing the broker sees the live pid.
	if _, err := supervisor.New(cfg, store, "", nil).Start(ctx, "crop", 0); !errors.Is(err, supervisor.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if err := queuectl.Kill(child.PID, false); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	select {
	case <-child.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if child.Err() == nil {
		t.Fatal("expected signal exit error")
	}

	restarted, err := supervisor.New(cfg, store, "", nil).Start(ctx, "crop", 0)
	if err != nil {
		t.Fatalf("restart over stale pid: %v", err)
	}
	t.Cleanup(func() { stopChild(restarted) })
	if pid, _, _ := store.Get(ctx, status.PIDPrefix+"image_worker"); pid != strconv.Itoa(restarted.PID) {
		t.Fatalf("pid entry = %q, want %d", pid, restarted.PID)
	}
}

func TestArgsOmitDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sup := supervisor.New(cfg, nil, "", nil)
	if got := sup.Args("crop", 0); !slices.Equal(got, []string{"crop"}) {
		t.Fatalf("args = %v", got)
	}
}

func stopChild(child *supervisor.Child) {
	select {
	case <-child.Done():
		return
	default:
	}
	_ = queuectl.Kill(child.PID, true)
	<-child.Done()
}
