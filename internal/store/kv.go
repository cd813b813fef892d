// Package store keeps the accumulated order records and their aggregate
// statistics in a keyed string store that outlives a single page sweep.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ginjaninja78/order-history-export/internal/config"
)

// KV is the keyed persistence the aggregate store is built on. Values are
// opaque strings; Get reports absent keys with ok == false.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes every pair or none of them.
	SetMany(ctx context.Context, values map[string]string) error
	Remove(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix. An empty prefix lists all.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Open builds the KV selected by cfg. The returned close function releases
// any connection and is always non-nil on success.
func Open(ctx context.Context, cfg config.StoreConfig) (KV, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryKV(), noop, nil
	case config.BackendFile:
		kv, err := OpenFileKV(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return kv, noop, nil
	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisKV(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// memoryKV is a map-backed KV that lives as long as the process.
type memoryKV struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryKV returns an empty in-memory KV.
func NewMemoryKV() KV {
	return &memoryKV{items: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	return nil
}

func (m *memoryKV) SetMany(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range values {
		m.items[k] = v
	}
	return nil
}

func (m *memoryKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	return nil
}

func (m *memoryKV) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedKeys(m.items, prefix), nil
}

func sortedKeys(items map[string]string, prefix string) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

var _ KV = (*memoryKV)(nil)
