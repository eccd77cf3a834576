package cache

import (
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps entries in a map. With MaxBytes set, a write
// that would take the total of keys and values past it fails with
// ErrQuotaExceeded.
type MemoryStorage struct {
	MaxBytes int64

	mu    sync.Mutex
	items map[string][]byte
	size  int64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string][]byte{}}
}

func (m *MemoryStorage) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, ErrNotCached
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	size := m.size + int64(len(key)+len(value))
	if old, ok := m.items[key]; ok {
		size -= int64(len(key) + len(old))
	}
	if m.MaxBytes > 0 && size > m.MaxBytes {
		return ErrQuotaExceeded
	}
	m.items[key] = append([]byte(nil), value...)
	m.size = size
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[key]; ok {
		m.size -= int64(len(key) + len(old))
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryStorage) Keys(prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
