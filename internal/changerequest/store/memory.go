package store

import (
	"bytes"
	"context"
	"sync"

	"crboard/pkg/platform/sentinel"
)

// MemoryBackend keeps the document in process memory. The zero value is an
// empty store.
type MemoryBackend struct {
	mu      sync.RWMutex
	doc     []byte
	version int64
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Get(_ context.Context) ([]byte, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.version == 0 {
		return nil, 0, sentinel.ErrNotFound
	}
	return bytes.Clone(m.doc), m.version, nil
}

func (m *MemoryBackend) Put(_ context.Context, doc []byte, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.version != expected {
		return 0, sentinel.ErrConflict
	}
	m.doc = bytes.Clone(doc)
	m.version++
	return m.version, nil
}
