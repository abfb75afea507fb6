package store

import (
	"context"
	"sync"

	"studio/internal/domain"
)

// Memory is an in-process Store used in tests and as a fallback when no
// durable backend is configured. A non-zero MaxValueBytes makes oversized
// writes fail with domain.ErrStorageQuota, mimicking browser storage limits.
type Memory struct {
	mu            sync.RWMutex
	data          map[string][]byte
	maxValueBytes int
}

// NewMemory creates an empty in-memory store. maxValueBytes <= 0 disables
// the quota.
func NewMemory(maxValueBytes int) *Memory {
	return &Memory{
		data:          make(map[string][]byte),
		maxValueBytes: maxValueBytes,
	}
}

func (m *Memory) Get(ctx context.Context, userID, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[namespaced(userID, key)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, userID, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.maxValueBytes > 0 && len(value) > m.maxValueBytes {
		return domain.ErrStorageQuota
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[namespaced(userID, key)] = stored
	return nil
}

func (m *Memory) Delete(ctx context.Context, userID, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, namespaced(userID, key))
	return nil
}

func namespaced(userID, key string) string {
	return userID + "/" + key
}

var _ Store = (*Memory)(nil)
