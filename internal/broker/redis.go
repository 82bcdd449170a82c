package broker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

const redisScanCount = 200

// RedisOptions configures OpenRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore maps the Store contract onto native Redis list and string commands.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// OpenRedis connects to a Redis server and verifies it answers PING.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ensureContext(ctx)).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client}, nil
}

// Move pops the tail of src and pushes it to the head of dst.
func (r *RedisStore) Move(ctx context.Context, src, dst string) (string, bool, error) {
	value, err := r.client.RPopLPush(ensureContext(ctx), src, dst).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return value, true, nil
}

// PushHead inserts value at the head of key.
func (r *RedisStore) PushHead(ctx context.Context, key, value string) error {
	if err := r.client.LPush(ensureContext(ctx), key, value).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// PushTail appends value at the tail of key.
func (r *RedisStore) PushTail(ctx context.Context, key, value string) error {
	if err := r.client.RPush(ensureContext(ctx), key, value).Err(); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

// Remove deletes up to count occurrences of value from the head of key.
func (r *RedisStore) Remove(ctx context.Context, key, value string, count int) (int, error) {
	if count < 0 {
		count = 0
	}
	removed, err := r.client.LRem(ensureContext(ctx), key, int64(count), value).Result()
	if err != nil {
		return 0, fmt.Errorf("remove from %s: %w", key, err)
	}
	return int(removed), nil
}

// Range returns the values between start and stop inclusive.
func (r *RedisStore) Range(ctx context.Context, key string, start, stop int) ([]string, error) {
	values, err := r.client.LRange(ensureContext(ctx), key, int64(start), int64(stop)).Result()
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return values, nil
}

// Len returns the number of values in key.
func (r *RedisStore) Len(ctx context.Context, key string) (int, error) {
	n, err := r.client.LLen(ensureContext(ctx), key).Result()
	if err != nil {
		return 0, fmt.Errorf("len %s: %w", key, err)
	}
	return int(n), nil
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ensureContext(ctx), key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Scan lists keys matching a glob pattern using SCAN, never KEYS.
func (r *RedisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	ctx = ensureContext(ctx)
	seen := make(map[string]struct{})
	iter := r.client.Scan(ctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(ctx) {
		seen[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", pattern, err)
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns a plain value; ok is false when the key is absent.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ensureContext(ctx), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a plain value without expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ensureContext(ctx), key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *RedisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
