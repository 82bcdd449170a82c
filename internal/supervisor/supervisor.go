// Package supervisor launches and tracks worker processes for the console.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/logging"
	"folio/internal/logs"
	"folio/internal/queuectl"
	"folio/internal/status"
)

// DefaultWorkerBinary is looked up on PATH when no binary is configured.
const DefaultWorkerBinary = "folio-worker"

// ErrUnknownWorker is returned for names that match no configured worker.
var ErrUnknownWorker = errors.New("unknown worker name")

// ErrAlreadyRunning is returned when the worker's recorded pid is still alive.
var ErrAlreadyRunning = errors.New("worker already running")

// Child is a worker process started by a Supervisor.
type Child struct {
	Name    string
	Stage   string
	N       int
	PID     int
	LogPath string
	Started time.Time

	done chan struct{}
	err  error
}

// Done is closed once the process has exited.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Err returns the exit error after Done is closed.
func (c *Child) Err() error {
	<-c.done
	return c.err
}

// Supervisor launches worker processes. Liveness is judged from the pid
// entries in the broker, so separate console invocations agree on which
// workers are running.
type Supervisor struct {
	cfg        *config.Config
	store      broker.Store
	configPath string
	binary     string
	logger     *slog.Logger
}

// New returns a Supervisor. configPath is passed to workers with -c when set.
func New(cfg *config.Config, store broker.Store, configPath string, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Supervisor{
		cfg:        cfg,
		store:      store,
		configPath: configPath,
		binary:     strings.TrimSpace(cfg.Supervisor.WorkerBinary),
		logger:     logging.NewComponentLogger(logger, "supervisor"),
	}
}

// ResolveBinary locates the worker executable: the configured path, then
// PATH, then alongside the running executable.
func (s *Supervisor) ResolveBinary() (string, error) {
	if s.binary != "" {
		if strings.ContainsRune(s.binary, os.PathSeparator) {
			return s.binary, nil
		}
		return exec.LookPath(s.binary)
	}
	if path, err := exec.LookPath(DefaultWorkerBinary); err == nil {
		return path, nil
	}
	self, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(self), DefaultWorkerBinary)
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found on PATH; set supervisor.worker_binary", DefaultWorkerBinary)
}

// Args builds the worker command line for stage and instance n.
func (s *Supervisor) Args(stage string, n int) []string {
	args := []string{stage}
	if n > 0 {
		args = append(args, "-n", strconv.Itoa(n))
	}
	if s.configPath != "" {
		args = append(args, "-c", s.configPath)
	}
	return args
}

// StartName starts the worker identified by an instance name such as
// "image_worker_2".
func (s *Supervisor) StartName(ctx context.Context, name string) (*Child, error) {
	base, n := status.SplitInstance(name)
	stage, ok := s.cfg.StageForWorker(base)
	if !ok {
		stage, ok = s.cfg.StageForWorker(name)
		n = 0
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorker, name)
	}
	return s.Start(ctx, stage, n)
}

// Start launches a worker for stage with instance number n in its own
// session so it outlives the console. Output goes to
// <log_dir>/<instance>.out. A worker whose pid entry names a live process is
// refused; a stale entry is overwritten with the new pid.
func (s *Supervisor) Start(ctx context.Context, stage string, n int) (*Child, error) {
	base, ok := s.cfg.StageWorkerName(stage)
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}
	name := status.InstanceName(base, n)

	if pid, err := s.recordedPID(ctx, name); err != nil {
		return nil, err
	} else if pid > 0 && queuectl.ProcessAlive(pid) {
		return nil, fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, name, pid)
	}

	binary, err := s.ResolveBinary()
	if err != nil {
		return nil, err
	}
	logPath := logs.OutputPath(s.cfg.Paths.LogDir, name)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open worker log: %w", err)
	}

	cmd := exec.Command(binary, s.Args(stage, n)...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		_ = out.Close()
		return nil, fmt.Errorf("launch %s: %w", name, err)
	}

	child := &Child{
		Name:    name,
		Stage:   stage,
		N:       n,
		PID:     cmd.Process.Pid,
		LogPath: logPath,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
	if s.store != nil {
		if err := status.NewReporter(s.store, name).RegisterPID(ctx, child.PID); err != nil {
			s.logger.Warn("record worker pid failed",
				logging.String(logging.FieldWorker, name),
				logging.Error(err),
			)
		}
	}
	go func() {
		child.err = cmd.Wait()
		_ = out.Close()
		close(child.done)
		s.logger.Info("worker exited",
			logging.String(logging.FieldWorker, name),
			logging.Int("pid", child.PID),
			logging.Int("exit_code", cmd.ProcessState.ExitCode()),
		)
	}()

	s.logger.Info("worker started",
		logging.String(logging.FieldWorker, name),
		logging.String(logging.FieldStage, stage),
		logging.Int("pid", child.PID),
		logging.String("log", logPath),
	)
	return child, nil
}

func (s *Supervisor) recordedPID(ctx context.Context, name string) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	raw, ok, err := s.store.Get(ctx, status.PIDPrefix+name)
	if err != nil {
		return 0, fmt.Errorf("read pid for %s: %w", name, err)
	}
	if !ok {
		return 0, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}
