package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	members   map[string]struct{}
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Cache for single-node deployments and tests.
// Entries are reaped lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// get returns the live entry for key, dropping it first if expired.
// Callers must hold mu.
func (m *Memory) get(key string) *memoryEntry {
	e, ok := m.entries[key]
	if !ok {
		return nil
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil
	}
	return e
}

func (m *Memory) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil {
		e = &memoryEntry{expiresAt: m.now().Add(ttl)}
		m.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (m *Memory) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil {
		return 0, nil
	}
	return e.count, nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) AddSetMember(_ context.Context, key, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil {
		e = &memoryEntry{}
		m.entries[key] = e
	}
	if e.members == nil {
		e.members = make(map[string]struct{})
	}
	e.members[member] = struct{}{}
	e.expiresAt = m.now().Add(ttl)
	return nil
}

func (m *Memory) HasSetMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.get(key)
	if e == nil {
		return false, nil
	}
	_, ok := e.members[member]
	return ok, nil
}
