package testsupport

import (
	"context"
	"testing"

	"folio/internal/broker"
	"folio/internal/config"
)

// MustOpenBroker opens the SQLite broker configured by cfg and registers cleanup.
func MustOpenBroker(t testing.TB, cfg *config.Config) broker.Store {
	t.Helper()
	store, err := broker.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open broker: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// ListValues returns every value of a list head to tail.
func ListValues(t testing.TB, store broker.Store, key string) []string {
	t.Helper()
	values, err := store.Range(context.Background(), key, 0, -1)
	if err != nil {
		t.Fatalf("range %s: %v", key, err)
	}
	return values
}

// MustPush pushes values to the head of key in order, so the first value is
// claimed first.
func MustPush(t testing.TB, store broker.Store, key string, values ...string) {
	t.Helper()
	for _, value := range values {
		if err := store.PushHead(context.Background(), key, value); err != nil {
			t.Fatalf("push %s: %v", key, err)
		}
	}
}
