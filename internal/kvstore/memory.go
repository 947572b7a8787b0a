// ABOUTME: In-memory Store implementation for unit tests
// ABOUTME: Supports injecting read and write failures to exercise degradation paths

package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore is a map-backed Store for tests. The zero value is not usable;
// create instances with NewMemStore.
type MemStore struct {
	mu   sync.Mutex
	data map[Area]map[string][]byte

	// GetErr, when set, is returned by every Get call.
	GetErr error
	// SetErr, when set, is returned by every Set call.
	SetErr error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		data: map[Area]map[string][]byte{
			AreaLocal: {},
			AreaSync:  {},
		},
	}
}

func (m *MemStore) Get(ctx context.Context, area Area, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	value, ok := m.data[area][key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

func (m *MemStore) Set(ctx context.Context, area Area, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[area][key] = cp
	return nil
}

func (m *MemStore) Delete(ctx context.Context, area Area, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[area], key)
	return nil
}

func (m *MemStore) Keys(ctx context.Context, area Area, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var keys []string
	for key := range m.data[area] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemStore) Close() error { return nil }

// Ensure MemStore implements Store.
var _ Store = (*MemStore)(nil)
