package broker

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// SQLiteStore keeps lists and keys in a single SQLite database. Every process
// on the host that opens the same file shares the same queues.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the broker database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("open sqlite broker: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create broker directory: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(ensureContext(ctx)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file backing the store.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			var version sql.NullInt64
			err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
					return fmt.Errorf("record schema version: %w", err)
				}
				return nil
			case err != nil:
				return fmt.Errorf("read schema version: %w", err)
			}
			if version.Int64 != schemaVersion {
				return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
					ErrSchemaMismatch, version.Int64, schemaVersion, s.path)
			}
			return nil
		})
	})
}

// Move pops the tail of src and pushes it to the head of dst.
func (s *SQLiteStore) Move(ctx context.Context, src, dst string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var (
		value string
		found bool
	)
	err := retryOnBusy(ctx, func() error {
		value, found = "", false
		return s.withTx(ctx, func(tx *sql.Tx) error {
			var id int64
			row := tx.QueryRowContext(ctx, "SELECT id, value FROM list_items WHERE key = ? ORDER BY pos DESC LIMIT 1", src)
			if err := row.Scan(&id, &value); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return fmt.Errorf("select tail of %s: %w", src, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM list_items WHERE id = ?", id); err != nil {
				return fmt.Errorf("pop tail of %s: %w", src, err)
			}
			if err := insertAt(ctx, tx, dst, value, true); err != nil {
				return err
			}
			found = true
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("move %s -> %s: %w", src, dst, err)
	}
	return value, found, nil
}

// PushHead inserts value at the head of key.
func (s *SQLiteStore) PushHead(ctx context.Context, key, value string) error {
	return s.push(ctx, key, value, true)
}

// PushTail appends value at the tail of key.
func (s *SQLiteStore) PushTail(ctx context.Context, key, value string) error {
	return s.push(ctx, key, value, false)
}

func (s *SQLiteStore) push(ctx context.Context, key, value string, head bool) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			return insertAt(ctx, tx, key, value, head)
		})
	})
	if err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	return nil
}

func insertAt(ctx context.Context, tx *sql.Tx, key, value string, head bool) error {
	query := "SELECT MAX(pos) FROM list_items WHERE key = ?"
	if head {
		query = "SELECT MIN(pos) FROM list_items WHERE key = ?"
	}
	var edge sql.NullInt64
	if err := tx.QueryRowContext(ctx, query, key).Scan(&edge); err != nil {
		return fmt.Errorf("read edge of %s: %w", key, err)
	}
	pos := int64(0)
	if edge.Valid {
		pos = edge.Int64 + 1
		if head {
			pos = edge.Int64 - 1
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO list_items (key, pos, value) VALUES (?, ?, ?)", key, pos, value); err != nil {
		return fmt.Errorf("insert into %s: %w", key, err)
	}
	return nil
}

// Remove deletes up to count occurrences of value from the head of key.
func (s *SQLiteStore) Remove(ctx context.Context, key, value string, count int) (int, error) {
	ctx = ensureContext(ctx)
	limit := count
	if limit <= 0 {
		limit = -1
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM list_items WHERE id IN (
                SELECT id FROM list_items WHERE key = ? AND value = ? ORDER BY pos LIMIT ?
            )`, key, value, limit)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("remove from %s: %w", key, err)
	}
	return int(removed), nil
}

// Range returns the values between start and stop inclusive.
func (s *SQLiteStore) Range(ctx context.Context, key string, start, stop int) ([]string, error) {
	ctx = ensureContext(ctx)
	var values []string
	err := retryOnBusy(ctx, func() error {
		values = nil
		return s.withTx(ctx, func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM list_items WHERE key = ?", key).Scan(&n); err != nil {
				return err
			}
			offset, count := normalizeRange(n, start, stop)
			if count == 0 {
				return nil
			}
			rows, err := tx.QueryContext(ctx,
				"SELECT value FROM list_items WHERE key = ? ORDER BY pos LIMIT ? OFFSET ?", key, count, offset)
			if err != nil {
				return err
			}
			defer rows.Close()
			for rows.Next() {
				var value string
				if err := rows.Scan(&value); err != nil {
					return err
				}
				values = append(values, value)
			}
			return rows.Err()
		})
	})
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", key, err)
	}
	return values, nil
}

// Len returns the number of values in key.
func (s *SQLiteStore) Len(ctx context.Context, key string) (int, error) {
	ctx = ensureContext(ctx)
	var n int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM list_items WHERE key = ?", key).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("len %s: %w", key, err)
	}
	return n, nil
}

// Delete removes key whether it holds a list or a plain value.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "DELETE FROM list_items WHERE key = ?", key); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Scan lists keys matching a glob pattern.
func (s *SQLiteStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	ctx = ensureContext(ctx)
	var keys []string
	err := retryOnBusy(ctx, func() error {
		keys = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT key FROM (
                SELECT DISTINCT key FROM list_items WHERE key GLOB ?1
                UNION
                SELECT key FROM kv WHERE key GLOB ?1
            ) ORDER BY key`, pattern)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", pattern, err)
	}
	return keys, nil
}

// Get returns a plain value; ok is false when the key is absent.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx = ensureContext(ctx)
	var (
		value string
		found bool
	)
	err := retryOnBusy(ctx, func() error {
		found = false
		err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, found, nil
}

// Set stores a plain value, replacing any previous one.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
