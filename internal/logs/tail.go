package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"folio/internal/textutil"
)

// Path returns the structured log file of a worker instance under logDir.
// The worker name is reduced to a safe token so it cannot leave logDir.
func Path(logDir, worker string) string {
	return filepath.Join(logDir, textutil.SanitizeToken(worker)+".log")
}

// OutputPath returns the captured stdout/stderr file of a supervised worker.
func OutputPath(logDir, worker string) string {
	return filepath.Join(logDir, textutil.SanitizeToken(worker)+".out")
}

// Last returns up to n trailing lines of path and the offset just past the
// last complete line. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	lines, offset, err := readComplete(file, 0)
	if err != nil {
		return nil, 0, err
	}
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	if n <= 0 {
		lines = nil
	}
	return lines, offset, nil
}

// Follow emits lines appended to path after offset until ctx is done. The
// returned error is nil when ctx ends the follow.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := poll(path, offset, emit)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func poll(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	lines, next, err := readComplete(file, offset)
	if err != nil {
		return offset, err
	}
	for _, line := range lines {
		emit(line)
	}
	return next, nil
}

// readComplete reads newline-terminated lines from offset. A trailing partial
// line is left for the next read.
func readComplete(file *os.File, offset int64) ([]string, int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return nil, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
}
