package queuectl

import (
	"context"
	"fmt"

	"folio/internal/workitem"
)

// ErrorEntry is one error-queue record. Record is zero and ParseErr set when
// the raw value is not a valid error record.
type ErrorEntry struct {
	Queue    string               `json:"queue"`
	Raw      string               `json:"raw"`
	Record   workitem.ErrorRecord `json:"record"`
	ParseErr error                `json:"-"`
}

// RecentErrors returns up to n records from the head (newest end) of every
// configured error queue.
func (c *Controller) RecentErrors(ctx context.Context, n int) ([]ErrorEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	var out []ErrorEntry
	for _, queue := range c.cfg.ErrorQueues() {
		items, err := c.store.Range(ctx, queue, 0, n-1)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", queue, err)
		}
		for _, raw := range items {
			entry := ErrorEntry{Queue: queue, Raw: raw}
			entry.Record, entry.ParseErr = workitem.ParseErrorRecord(raw)
			out = append(out, entry)
		}
	}
	return out, nil
}

// Requeue takes up to n records (all when n is 0) from the tail (oldest end)
// of errorQueue and pushes their original items onto the head of dst. Records
// that cannot be parsed are left in place and end the run.
func (c *Controller) Requeue(ctx context.Context, errorQueue, dst string, n int) (int, error) {
	if err := checkQueueName(errorQueue); err != nil {
		return 0, err
	}
	if err := checkQueueName(dst); err != nil {
		return 0, err
	}
	moved := 0
	for n == 0 || moved < n {
		tail, err := c.store.Range(ctx, errorQueue, -1, -1)
		if err != nil {
			return moved, fmt.Errorf("read %s: %w", errorQueue, err)
		}
		if len(tail) == 0 {
			break
		}
		record, err := workitem.ParseErrorRecord(tail[0])
		if err != nil {
			return moved, err
		}
		item := record.Item()
		if item == "" {
			return moved, fmt.Errorf("error record in %s carries no item", errorQueue)
		}
		removed, err := c.store.Remove(ctx, errorQueue, tail[0], 1)
		if err != nil {
			return moved, fmt.Errorf("remove from %s: %w", errorQueue, err)
		}
		if removed == 0 {
			continue
		}
		if err := c.store.PushHead(ctx, dst, item); err != nil {
			_ = c.store.PushTail(ctx, errorQueue, tail[0])
			return moved, fmt.Errorf("push to %s: %w", dst, err)
		}
		moved++
	}
	return moved, nil
}
