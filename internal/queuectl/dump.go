package queuectl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"folio/internal/fileutil"
)

// DumpExt is the extension of queue dump files.
const DumpExt = ".dump"

const maxLineBytes = 4 << 20

// DumpPath returns the side file a queue is dumped to.
func (c *Controller) DumpPath(queue string) string {
	return filepath.Join(c.cfg.Paths.DumpDir, queue+DumpExt)
}

// Dump writes queue head to tail, one item per line, to its side file and
// returns the path and item count. The queue is left untouched. Items claimed
// while the dump runs may or may not appear. Queues holding empty items or
// items with line breaks are refused, since Load could not restore them.
func (c *Controller) Dump(ctx context.Context, queue string) (string, int, error) {
	if err := checkQueueName(queue); err != nil {
		return "", 0, err
	}
	items, err := c.store.Range(ctx, queue, 0, -1)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", queue, err)
	}
	for i, item := range items {
		if item == "" {
			return "", 0, fmt.Errorf("dump %s: item %d is empty and would be skipped on load", queue, i)
		}
		if strings.ContainsAny(item, "\r\n") {
			return "", 0, fmt.Errorf("dump %s: item contains a line break and cannot be written one per line", queue)
		}
	}
	if err := os.MkdirAll(c.cfg.Paths.DumpDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create dump directory: %w", err)
	}
	path := c.DumpPath(queue)
	err = fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		buf := bufio.NewWriter(w)
		for _, item := range items {
			if _, err := buf.WriteString(item); err != nil {
				return err
			}
			if err := buf.WriteByte('\n'); err != nil {
				return err
			}
		}
		return buf.Flush()
	})
	if err != nil {
		return "", 0, fmt.Errorf("write dump %s: %w", path, err)
	}
	return path, len(items), nil
}

// QueueForDump derives the target queue from a dump file name.
func QueueForDump(path string) string {
	return strings.TrimSuffix(filepath.Base(path), DumpExt)
}

// Load pushes every non-empty line of path onto queue and returns the count.
// An empty queue name loads into the queue the file was dumped from. Loaded
// items keep their file order and queue up behind items already present.
func (c *Controller) Load(ctx context.Context, path, queue string) (int, error) {
	if queue == "" {
		queue = QueueForDump(path)
	}
	if err := checkQueueName(queue); err != nil {
		return 0, err
	}
	lines, err := readLines(path)
	if err != nil {
		return 0, err
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if err := c.store.PushHead(ctx, queue, lines[i]); err != nil {
			return len(lines) - 1 - i, fmt.Errorf("push to %s: %w", queue, err)
		}
	}
	return len(lines), nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("dump file %s does not exist", path)
		}
		return nil, fmt.Errorf("open dump file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dump file %s: %w", path, err)
	}
	return lines, nil
}
