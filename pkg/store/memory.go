package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]Record
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Key]Record), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key Key) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) Upsert(_ context.Context, key Key, p Payload) (Record, error) {
	if !key.valid() {
		return Record{}, ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := upsert(m.records[key], p.record(key), m.now())
	m.records[key] = r
	return r, nil
}

// upsert stamps next, keeping the creation time of prev when it exists.
func upsert(prev, next Record, now time.Time) Record {
	next.CreatedAt = prev.CreatedAt
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	return next
}
