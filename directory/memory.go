package directory

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store, used for development and tests.
type Memory struct {
	users map[string]Record
	mu    sync.RWMutex
}

// NewMemory creates a Memory seeded with records.
func NewMemory(records ...Record) *Memory {
	m := &Memory{users: make(map[string]Record, len(records))}
	for _, rec := range records {
		m.users[rec.Username] = rec
	}
	return m
}

// Put inserts or replaces rec.
func (m *Memory) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[rec.Username] = rec
}

func (m *Memory) FindByIdentity(_ context.Context, identity string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.users[identity]
	if !ok {
		return Record{}, ErrUserNotFound
	}
	return rec, nil
}

func (m *Memory) Authenticate(ctx context.Context, username, password string) (Record, error) {
	return authenticate(ctx, m, username, password)
}

func (m *Memory) Save(_ context.Context, rec Record) error {
	if err := ValidateUsername(rec.Username); err != nil {
		return err
	}
	m.Put(rec)
	return nil
}

func (m *Memory) AddScore(_ context.Context, identity string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[identity]
	if !ok {
		return 0, ErrUserNotFound
	}
	rec.Score += delta
	m.users[identity] = rec
	return rec.Score, nil
}

func (m *Memory) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	records := make([]Record, 0, len(m.users))
	for _, rec := range m.users {
		records = append(records, rec.Public())
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Username < records[j].Username
	})
	return records, nil
}
