package memory

import (
	"context"
	"sync"
)

// MapBlobStore keeps records in process memory.
type MapBlobStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMapBlobStore returns an empty MapBlobStore.
func NewMapBlobStore() *MapBlobStore {
	return &MapBlobStore{records: make(map[string][]byte)}
}

func (m *MapBlobStore) Get(_ context.Context, userID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *MapBlobStore) Put(_ context.Context, userID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[userID] = append([]byte(nil), data...)
	return nil
}

func (m *MapBlobStore) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, userID)
	return nil
}

// Len returns the number of stored records.
func (m *MapBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
