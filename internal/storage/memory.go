package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryBackend keeps values in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

func NewMemory() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]json.RawMessage)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), v...), true, nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
