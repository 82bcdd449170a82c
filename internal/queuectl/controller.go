package queuectl

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"folio/internal/broker"
	"folio/internal/config"
	"folio/internal/status"
)

// ErrSameQueue is returned when a move names the same queue twice.
var ErrSameQueue = errors.New("source and destination queues are the same")

// Controller runs console operations against one broker.
type Controller struct {
	store broker.Store
	cfg   *config.Config
}

// New returns a Controller. cfg supplies the configured queue names and the
// dump directory.
func New(store broker.Store, cfg *config.Config) *Controller {
	return &Controller{store: store, cfg: cfg}
}

// QueueInfo describes one queue.
type QueueInfo struct {
	Name   string
	Stage  string
	Role   string
	Length int
}

// ListQueues reports the length of every configured queue followed by any
// other list found in the broker.
func (c *Controller) ListQueues(ctx context.Context) ([]QueueInfo, error) {
	var out []QueueInfo
	known := make(map[string]struct{})
	for _, stageName := range []string{config.StageCrop, config.StageOCR} {
		queues, _ := c.cfg.StageQueues(stageName)
		roles := []string{"read", "work", "write", "error"}
		for i, name := range queues.All() {
			n, err := c.store.Len(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("length of %s: %w", name, err)
			}
			known[name] = struct{}{}
			out = append(out, QueueInfo{Name: name, Stage: stageName, Role: roles[i], Length: n})
		}
	}

	keys, err := c.store.Scan(ctx, "*")
	if err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	for _, key := range keys {
		if _, ok := known[key]; ok || isControlKey(key) {
			continue
		}
		n, err := c.store.Len(ctx, key)
		if err != nil || n == 0 {
			continue
		}
		out = append(out, QueueInfo{Name: key, Length: n})
	}
	return out, nil
}

// Length returns the number of items in queue.
func (c *Controller) Length(ctx context.Context, queue string) (int, error) {
	n, err := c.store.Len(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", queue, err)
	}
	return n, nil
}

// Peek returns up to n items from the head of queue; n <= 0 returns all.
func (c *Controller) Peek(ctx context.Context, queue string, n int) ([]string, error) {
	stop := n - 1
	if n <= 0 {
		stop = -1
	}
	items, err := c.store.Range(ctx, queue, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", queue, err)
	}
	return items, nil
}

// Empty deletes queue and reports how many items it held. Emptying a queue
// that does not exist is a no-op.
func (c *Controller) Empty(ctx context.Context, queue string) (int, error) {
	if err := checkQueueName(queue); err != nil {
		return 0, err
	}
	n, err := c.store.Len(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", queue, err)
	}
	if err := c.store.Delete(ctx, queue); err != nil {
		return 0, fmt.Errorf("delete %s: %w", queue, err)
	}
	return n, nil
}

// Move transfers n items (all when n is 0) from the tail of src to the head
// of dst, one atomic move per item, so order is preserved and nothing is lost
// to a worker claiming from src at the same time. It stops early when src
// runs dry and returns the number moved.
func (c *Controller) Move(ctx context.Context, src, dst string, n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("move count must not be negative, got %d", n)
	}
	if err := checkQueueName(src); err != nil {
		return 0, err
	}
	if err := checkQueueName(dst); err != nil {
		return 0, err
	}
	if src == dst {
		return 0, ErrSameQueue
	}
	moved := 0
	for n == 0 || moved < n {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		_, ok, err := c.store.Move(ctx, src, dst)
		if err != nil {
			return moved, fmt.Errorf("move %s -> %s after %d items: %w", src, dst, moved, err)
		}
		if !ok {
			break
		}
		moved++
	}
	return moved, nil
}

// Queues returns the sorted names of every configured queue.
func (c *Controller) Queues() []string {
	names := c.cfg.AllQueues()
	slices.Sort(names)
	return names
}

func isControlKey(key string) bool {
	return strings.HasPrefix(key, status.StatusPrefix) || strings.HasPrefix(key, status.PIDPrefix)
}

func checkQueueName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("queue name is required")
	}
	if isControlKey(name) {
		return fmt.Errorf("%q is a worker key, not a queue", name)
	}
	return nil
}
