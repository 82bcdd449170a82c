package broker

import (
	"context"
	"fmt"

	"folio/internal/config"
)

// Store is the list-and-key contract shared by workers and the console.
//
// List indices follow the Redis convention: 0 is the head, -1 is the tail,
// and Range bounds are inclusive.
type Store interface {
	// Move pops the tail of src and pushes it to the head of dst as one
	// atomic step. ok is false when src is empty.
	Move(ctx context.Context, src, dst string) (value string, ok bool, err error)
	PushHead(ctx context.Context, key, value string) error
	PushTail(ctx context.Context, key, value string) error
	// Remove deletes up to count occurrences of value scanning from the head;
	// count <= 0 removes every occurrence. It returns the number removed.
	Remove(ctx context.Context, key, value string, count int) (int, error)
	Range(ctx context.Context, key string, start, stop int) ([]string, error)
	Len(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
	// Scan returns the sorted keys matching a glob pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open connects to the backend selected by cfg.Broker.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open broker: config is nil")
	}
	switch cfg.Broker.Backend {
	case config.BackendSQLite:
		return OpenSQLite(ctx, cfg.Broker.SQLitePath)
	case config.BackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Broker.RedisAddr,
			Password: cfg.Broker.RedisPassword,
			DB:       cfg.Broker.RedisDB,
		})
	default:
		return nil, fmt.Errorf("open broker: unsupported backend %q", cfg.Broker.Backend)
	}
}

// normalizeRange converts inclusive Redis-style bounds into an offset and
// count for a list of length n. count is zero when the range is empty.
func normalizeRange(n, start, stop int) (offset, count int) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0
	}
	return start, stop - start + 1
}
