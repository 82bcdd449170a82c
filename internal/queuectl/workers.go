package queuectl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"folio/internal/status"
)

// ListStatuses returns every worker status entry, sorted by worker name.
func (c *Controller) ListStatuses(ctx context.Context) ([]status.Entry, error) {
	keys, err := c.store.Scan(ctx, status.StatusPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan status keys: %w", err)
	}
	entries := make([]status.Entry, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		entries = append(entries, status.Parse(strings.TrimPrefix(key, status.StatusPrefix), raw))
	}
	return entries, nil
}

// WorkerInfo combines a worker's status and pid entries.
type WorkerInfo struct {
	Name   string
	Stage  string
	PID    int
	Alive  bool
	Status status.Entry
}

// ListWorkers reports every worker that has a status or pid entry, with a
// best-effort liveness check on its pid.
func (c *Controller) ListWorkers(ctx context.Context) ([]WorkerInfo, error) {
	byName := make(map[string]*WorkerInfo)
	get := func(name string) *WorkerInfo {
		info, ok := byName[name]
		if !ok {
			info = &WorkerInfo{Name: name}
			base, _ := status.SplitInstance(name)
			info.Stage, _ = c.cfg.StageForWorker(base)
			byName[name] = info
		}
		return info
	}

	statuses, err := c.ListStatuses(ctx)
	if err != nil {
		return nil, err
	}
	for _, entry := range statuses {
		get(entry.Worker).Status = entry
	}

	keys, err := c.store.Scan(ctx, status.PIDPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan pid keys: %w", err)
	}
	for _, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		info := get(strings.TrimPrefix(key, status.PIDPrefix))
		if pid, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && pid > 0 {
			info.PID = pid
			info.Alive = ProcessAlive(pid)
		}
	}

	out := make([]WorkerInfo, 0, len(byName))
	for _, info := range byName {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Forget removes a worker's status and pid entries.
func (c *Controller) Forget(ctx context.Context, name string) error {
	for _, key := range []string{status.StatusPrefix + name, status.PIDPrefix + name} {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// ProcessAlive reports whether a process with pid exists. A process owned by
// another user counts as alive.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Kill signals a worker process: SIGTERM for a graceful stop that releases
// any in-flight item, SIGKILL when force is set.
func Kill(pid int, force bool) error {
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	sig := unix.SIGTERM
	if force {
		sig = unix.SIGKILL
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("process %d is not running", pid)
		}
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}

// KillWorker looks up a worker's pid entry and signals it.
func (c *Controller) KillWorker(ctx context.Context, name string, force bool) (int, error) {
	raw, ok, err := c.store.Get(ctx, status.PIDPrefix+name)
	if err != nil {
		return 0, fmt.Errorf("read pid for %s: %w", name, err)
	}
	if !ok {
		return 0, fmt.Errorf("no pid recorded for worker %s", name)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("pid entry for %s is not a number: %q", name, raw)
	}
	return pid, Kill(pid, force)
}
