package broker

import (
	"context"
	"path"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and single-process tools.
type MemoryStore struct {
	mu     sync.Mutex
	lists  map[string][]string
	values map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemory returns an empty in-process store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		lists:  make(map[string][]string),
		values: make(map[string]string),
	}
}

// Move pops the tail of src and pushes it to the head of dst.
func (m *MemoryStore) Move(_ context.Context, src, dst string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[src]
	if len(list) == 0 {
		return "", false, nil
	}
	value := list[len(list)-1]
	m.setList(src, list[:len(list)-1])
	m.lists[dst] = append([]string{value}, m.lists[dst]...)
	return value, true, nil
}

// PushHead inserts value at the head of key.
func (m *MemoryStore) PushHead(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

// PushTail appends value at the tail of key.
func (m *MemoryStore) PushTail(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append(m.lists[key], value)
	return nil
}

// Remove deletes up to count occurrences of value from the head of key.
func (m *MemoryStore) Remove(_ context.Context, key, value string, count int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	kept := make([]string, 0, len(list))
	removed := 0
	for _, v := range list {
		if v == value && (count <= 0 || removed < count) {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	m.setList(key, kept)
	return removed, nil
}

// Range returns the values between start and stop inclusive.
func (m *MemoryStore) Range(_ context.Context, key string, start, stop int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	offset, count := normalizeRange(len(list), start, stop)
	if count == 0 {
		return nil, nil
	}
	return append([]string(nil), list[offset:offset+count]...), nil
}

// Len returns the number of values in key.
func (m *MemoryStore) Len(_ context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[key]), nil
}

// Delete removes key whether it holds a list or a plain value.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lists, key)
	delete(m.values, key)
	return nil
}

// Scan lists keys matching a glob pattern.
func (m *MemoryStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for key := range m.lists {
		seen[key] = struct{}{}
	}
	for key := range m.values {
		seen[key] = struct{}{}
	}
	var keys []string
	for key := range seen {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Get returns a plain value; ok is false when the key is absent.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

// Set stores a plain value.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) setList(key string, list []string) {
	if len(list) == 0 {
		delete(m.lists, key)
		return
	}
	m.lists[key] = list
}
